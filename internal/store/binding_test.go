package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newBinding(kind, trigger, plugin string) *Binding {
	return &Binding{
		ID:         uuid.New().String(),
		Kind:       kind,
		Trigger:    trigger,
		PluginName: plugin,
		ActionName: "run",
		Enabled:    true,
	}
}

func TestBindingRepository_CRUD(t *testing.T) {
	repo := newTestStore(t).Bindings()

	b := newBinding("word", "HOLA", "speak")
	b.Config = json.RawMessage(`{"voice":"es"}`)
	if err := repo.Create(b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(b.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Trigger != "HOLA" || got.PluginName != "speak" || !got.Enabled {
		t.Errorf("GetByID() = %+v", got)
	}
	if string(got.Config) != `{"voice":"es"}` {
		t.Errorf("Config = %s", got.Config)
	}

	got.Enabled = false
	got.ActionName = "say"
	if err := repo.Update(got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.GetByID(b.ID)
	if got.Enabled || got.ActionName != "say" {
		t.Errorf("Update() not applied: %+v", got)
	}

	list, err := repo.List()
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %d, %v", len(list), err)
	}

	if err := repo.Delete(b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestBindingRepository_NotFound(t *testing.T) {
	repo := newTestStore(t).Bindings()

	if err := repo.Update(newBinding("word", "X", "p")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestBindingRepository_DefaultConfig(t *testing.T) {
	repo := newTestStore(t).Bindings()

	b := newBinding("shortcut", "OK", "keyboard")
	if err := repo.Create(b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, _ := repo.GetByID(b.ID)
	if string(got.Config) != "{}" {
		t.Errorf("Config = %q, want {}", got.Config)
	}
}

func TestBindingRepository_Match(t *testing.T) {
	repo := newTestStore(t).Bindings()

	exact := newBinding("word", "HOLA", "speak")
	wildcard := newBinding("word", "", "keyboard")
	other := newBinding("word", "AL", "speak")
	shortcut := newBinding("shortcut", "HOLA", "speak")
	disabled := newBinding("word", "HOLA", "notify")
	disabled.Enabled = false

	for _, b := range []*Binding{wildcard, exact, other, shortcut, disabled} {
		if err := repo.Create(b); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.Match("word", "HOLA")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Match() returned %d bindings, want 2", len(got))
	}
	if got[0].ID != exact.ID || got[1].ID != wildcard.ID {
		t.Errorf("Match() = [%s %s], want exact trigger before wildcard", got[0].PluginName, got[1].PluginName)
	}

	got, _ = repo.Match("shortcut", "GRACIAS")
	if len(got) != 0 {
		t.Errorf("Match(shortcut, GRACIAS) = %d bindings, want 0", len(got))
	}
}
