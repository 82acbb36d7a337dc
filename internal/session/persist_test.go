package session

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ayusman/dactilo/internal/detector"
)

// failingStore fails every operation with err.
type failingStore struct {
	err error
}

func (f failingStore) Get(string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(string, string) error         { return f.err }
func (f failingStore) Delete(string) error              { return f.err }

func TestSession_SaveLoadRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	a := New(DefaultConfig(), store)
	train(t, a, "H", "O", "L", "A")

	if err := a.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, found, _ := store.Get(DefaultConfig().DatasetKey)
	if !found {
		t.Fatal("dataset not written under the configured key")
	}
	if !strings.Contains(raw, `"label":"H"`) || !strings.Contains(raw, `"vec":[`) {
		t.Errorf("unexpected blob format: %.80s", raw)
	}

	b := New(DefaultConfig(), store)
	if err := b.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(a.Labels(), b.Labels()) {
		t.Errorf("labels = %v, want %v", b.Labels(), a.Labels())
	}
	if len(a.Samples()) != len(b.Samples()) {
		t.Errorf("samples = %d, want %d", len(b.Samples()), len(a.Samples()))
	}

	lm := detector.VictoryLandmarks()
	p, ok, err := b.Predict(&lm)
	if err != nil || !ok || p.Label != "L" {
		t.Errorf("Predict() after load = %+v, %v, %v; want L", p, ok, err)
	}
}

func TestSession_SaveEmptyDataset(t *testing.T) {
	store := NewMemoryStore()
	s := New(DefaultConfig(), store)
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if raw, _, _ := store.Get(DefaultConfig().DatasetKey); raw != "[]" {
		t.Errorf("empty dataset saved as %q, want []", raw)
	}
}

func TestSession_LoadMissingKey(t *testing.T) {
	s := New(DefaultConfig(), NewMemoryStore())
	train(t, s, "H")

	if err := s.Load(); err != nil {
		t.Fatalf("Load() error = %v, want nil for a missing key", err)
	}
	if len(s.Samples()) != 3 {
		t.Errorf("dataset changed by a missing key: %d samples", len(s.Samples()))
	}
}

func TestSession_StoreErrors(t *testing.T) {
	disk := errors.New("disk unavailable")
	s := New(DefaultConfig(), failingStore{err: disk})
	train(t, s, "H")

	tests := []struct {
		name string
		op   func() error
	}{
		{"save", s.Save},
		{"load", s.Load},
		{"reset", s.Reset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if !errors.Is(err, ErrStore) {
				t.Errorf("error = %v, want ErrStore", err)
			}
			if !errors.Is(err, disk) {
				t.Errorf("error = %v, want the store's error wrapped", err)
			}
		})
	}

	if len(s.Samples()) != 0 {
		t.Errorf("reset should clear memory even when the store fails")
	}
}

func TestSession_FailedLoadKeepsDataset(t *testing.T) {
	store := NewMemoryStore()
	key := DefaultConfig().DatasetKey
	_ = store.Set(key, "{not json")

	s := New(DefaultConfig(), store)
	train(t, s, "O")

	if err := s.Load(); !errors.Is(err, ErrStore) {
		t.Fatalf("Load() error = %v, want ErrStore", err)
	}
	if got := s.Labels(); len(got) != 1 || got[0] != "O" {
		t.Errorf("Labels() = %v; a failed load must not touch the dataset", got)
	}
}

func TestSession_NoStore(t *testing.T) {
	s := New(DefaultConfig(), nil)
	if err := s.Save(); !errors.Is(err, ErrNoStore) {
		t.Errorf("Save() error = %v, want ErrNoStore", err)
	}
	if err := s.Load(); !errors.Is(err, ErrNoStore) {
		t.Errorf("Load() error = %v, want ErrNoStore", err)
	}
	if err := s.Reset(); err != nil {
		t.Errorf("Reset() error = %v", err)
	}
}

func TestSession_Reset(t *testing.T) {
	store := NewMemoryStore()
	s := New(DefaultConfig(), store)
	train(t, s, "H", "A")
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if len(s.Labels()) != 0 || len(s.Samples()) != 0 {
		t.Errorf("dataset not empty after Reset: %v", s.Labels())
	}

	lm := detector.ThumbsUpLandmarks()
	if _, ok, _ := s.Predict(&lm); ok {
		t.Error("Predict() should find nothing after Reset")
	}
	if _, found, _ := store.Get(DefaultConfig().DatasetKey); found {
		t.Error("Reset should delete the stored dataset")
	}

	// Loading after a reset keeps the dataset empty.
	if err := s.Load(); err != nil || len(s.Samples()) != 0 {
		t.Errorf("Load() after Reset = %v, %d samples", err, len(s.Samples()))
	}
}
