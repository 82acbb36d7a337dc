package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/dactilo/internal/capture"
	"github.com/ayusman/dactilo/internal/config"
	"github.com/ayusman/dactilo/internal/detector"
	"github.com/ayusman/dactilo/internal/session"
	"github.com/ayusman/dactilo/internal/store"
)

type fakePublisher struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

func (f *fakePublisher) Publish(ctx context.Context, sessionID string, ev session.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, Record{SessionID: sessionID, Event: ev})
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePublisher) snapshot() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Record(nil), f.records...)
}

type harness struct {
	app       *App
	store     *store.Store
	camera    *capture.MockCamera
	detector  *detector.MockDetector
	publisher *fakePublisher
	records   chan Record
	pluginDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })

	cfg := config.Default()
	cfg.Camera.IdleFPS = 50
	cfg.Camera.ActiveFPS = 50
	cfg.Camera.MotionThreshold = 0
	cfg.Session.Word.IdleGap = 150 * time.Millisecond
	cfg.Plugins.Dir = filepath.Join(dir, "plugins")
	cfg.Plugins.Timeout = 5 * time.Second

	h := &harness{
		store:     st,
		camera:    capture.NewMockCamera([]*gocv.Mat{&frame}, true),
		detector:  detector.NewMockDetector(),
		publisher: &fakePublisher{},
		records:   make(chan Record, 32),
		pluginDir: cfg.Plugins.Dir,
	}
	h.app = New(Options{
		Config:    cfg,
		Store:     st,
		Camera:    h.camera,
		Detector:  h.detector,
		Publisher: h.publisher,
	})
	h.app.AddListener(ListenerFunc(func(r Record) { h.records <- r }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		h.app.Close()
	})

	return h
}

func (h *harness) train(t *testing.T, label string, lm detector.HandLandmarks) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if err := h.app.Session().AddExample(label, &lm); err != nil {
			t.Fatalf("AddExample() error = %v", err)
		}
	}
}

func (h *harness) next(t *testing.T) Record {
	t.Helper()
	select {
	case r := <-h.records:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for an event")
		return Record{}
	}
}

// writeRecorderPlugin installs a plugin that saves its request to out.json.
func writeRecorderPlugin(t *testing.T, dir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	pluginDir := filepath.Join(dir, "recorder")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","version":"1.0.0","executable":"run.sh","actions":["save"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat > out.json\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(pluginDir, "out.json")
}

func TestApp_SpellsWordEndToEnd(t *testing.T) {
	h := newHarness(t)
	out := writeRecorderPlugin(t, h.pluginDir)
	if err := h.app.Plugins().Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if err := h.store.Bindings().Create(&store.Binding{
		ID: "b1", Kind: "word", PluginName: "recorder", ActionName: "save", Enabled: true,
	}); err != nil {
		t.Fatalf("Create binding error = %v", err)
	}

	h.train(t, "H", detector.ThumbsUpLandmarks())
	h.detector.SetHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()})

	if err := h.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	id := h.app.SessionID()
	if id == "" {
		t.Fatal("Start() should assign a session id")
	}

	letter := h.next(t)
	if letter.Kind != session.KindLetter || letter.Text != "H" || letter.SessionID != id {
		t.Fatalf("first event = %+v, want letter H for session %s", letter, id)
	}

	h.detector.SetHands(nil)
	word := h.next(t)
	if word.Kind != session.KindWord || word.Text != "H" {
		t.Fatalf("second event = %+v, want word H", word)
	}

	h.app.Stop()
	if h.app.Session().Running() {
		t.Error("session should be stopped")
	}
	if h.camera.IsOpen() {
		t.Error("Stop should release the camera")
	}

	// Letters are not kept in history
	entries, err := h.store.History().List(store.HistoryFilter{SessionID: id})
	if err != nil {
		t.Fatalf("History().List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != "word" || entries[0].Text != "H" {
		t.Errorf("history = %+v, want the single word H", entries)
	}

	published := h.publisher.snapshot()
	if len(published) != 2 || published[0].Kind != session.KindLetter || published[1].Kind != session.KindWord {
		t.Errorf("published = %+v, want letter then word", published)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(out)
		if err == nil && len(data) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bound plugin was not run for the word")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestApp_StartStopToggle(t *testing.T) {
	h := newHarness(t)

	if err := h.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first := h.app.SessionID()

	if err := h.app.Start(); !errors.Is(err, session.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	running, err := h.app.Toggle()
	if err != nil || running {
		t.Fatalf("Toggle() = %v, %v; want stopped", running, err)
	}
	h.app.Stop()

	running, err = h.app.Toggle()
	if err != nil || !running {
		t.Fatalf("Toggle() = %v, %v; want running", running, err)
	}
	if h.app.SessionID() == first {
		t.Error("each start should get a new session id")
	}
	h.app.Stop()
}

func TestApp_NoHandsDetectedStaysQuiet(t *testing.T) {
	h := newHarness(t)
	h.train(t, "H", detector.ThumbsUpLandmarks())

	if err := h.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer h.app.Stop()

	select {
	case r := <-h.records:
		t.Errorf("unexpected event %+v with no hand in view", r)
	case <-time.After(300 * time.Millisecond):
	}
	if h.detector.Calls() == 0 {
		t.Error("detector should run on every frame without motion gating")
	}
}

func TestApp_LoadsStoredDataset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	cfg := config.Default()
	cfg.Plugins.Dir = t.TempDir()
	opts := Options{Config: cfg, Store: st, Camera: capture.NewMockCamera(nil, false), Detector: detector.NewMockDetector(), Publisher: &fakePublisher{}}

	first := New(opts)
	lm := detector.FistLandmarks()
	first.Session().AddExample("O", &lm)
	if err := first.Session().Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := New(opts)
	if labels := second.Session().Labels(); len(labels) != 1 || labels[0] != "O" {
		t.Errorf("Labels() = %v, want the saved dataset", labels)
	}
}
