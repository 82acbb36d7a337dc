package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/dactilo/internal/session"
	"github.com/ayusman/dactilo/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// idleSource blocks until the session is stopped.
var idleSource = session.FrameSourceFunc(func(ctx context.Context) (session.Frame, error) {
	<-ctx.Done()
	return session.Frame{}, ctx.Err()
})

// fakeRecognizer runs a session over idleSource.
type fakeRecognizer struct {
	sess     *session.Session
	startErr error
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{sess: session.New(session.DefaultConfig(), session.NewMemoryStore())}
}

func (f *fakeRecognizer) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	return f.sess.Start(context.Background(), idleSource)
}

func (f *fakeRecognizer) Stop()                     { f.sess.Stop() }
func (f *fakeRecognizer) SessionID() string         { return "test-session" }
func (f *fakeRecognizer) Session() *session.Session { return f.sess }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
