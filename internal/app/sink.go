package app

import (
	"context"

	"github.com/ayusman/dactilo/internal/plugin"
	"github.com/ayusman/dactilo/internal/session"
	"github.com/ayusman/dactilo/internal/store"
)

// Record is a recognized event tagged with the session run that produced it.
type Record struct {
	SessionID string `json:"sessionId"`
	session.Event
}

// Listener receives every record after it has been stored and published.
// Listeners run on the delivery goroutine and must not block.
type Listener interface {
	HandleEvent(Record)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Record)

// HandleEvent implements Listener.
func (f ListenerFunc) HandleEvent(r Record) { f(r) }

// Publisher forwards records to an external broker.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, ev session.Event) error
	Close() error
}

// AddListener registers l for all future records.
func (a *App) AddListener(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

// enqueue is the session subscriber. It runs on the frame goroutine, so it
// only hands the event over to the delivery loop.
func (a *App) enqueue(ev session.Event) {
	a.mu.RLock()
	rec := Record{SessionID: a.sessionID, Event: ev}
	a.mu.RUnlock()

	select {
	case a.records <- rec:
	default:
		a.metrics.RecordDropped("events")
		a.log.Warn().Str("kind", string(ev.Kind)).Str("text", ev.Text).Msg("Event queue full, dropping event")
	}
}

// deliverLoop hands records to history, plugins, the broker and listeners in
// the order they were recognized.
func (a *App) deliverLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec := <-a.records:
			a.deliver(ctx, rec)
		}
	}
}

func (a *App) deliver(ctx context.Context, rec Record) {
	if a.store != nil {
		if rec.Kind != session.KindLetter {
			err := a.store.History().Create(&store.HistoryEntry{
				SessionID: rec.SessionID,
				Kind:      string(rec.Kind),
				Text:      rec.Text,
				CreatedAt: rec.At,
			})
			a.metrics.RecordStoreOp("history", err)
			if err != nil {
				a.log.Error().Err(err).Str("text", rec.Text).Msg("Failed to record history")
			}
		}
		a.runBindings(rec)
	}

	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, rec.SessionID, rec.Event); err != nil {
			a.log.Warn().Err(err).Str("kind", string(rec.Kind)).Msg("Failed to publish event")
		}
	}

	a.mu.RLock()
	listeners := a.listeners
	a.mu.RUnlock()
	for _, l := range listeners {
		l.HandleEvent(rec)
	}
}

func (a *App) runBindings(rec Record) {
	bindings, err := a.store.Bindings().Match(string(rec.Kind), rec.Text)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to match bindings")
		return
	}

	for _, b := range bindings {
		a.dispatcher.Enqueue(plugin.Job{
			Plugin: b.PluginName,
			Request: plugin.Request{
				Action:    b.ActionName,
				Kind:      string(rec.Kind),
				Text:      rec.Text,
				SessionID: rec.SessionID,
				At:        rec.At,
				Config:    b.Config,
			},
		})
	}
}
