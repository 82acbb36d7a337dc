// Package tray provides the system tray menu for dactilo: recognition on/off,
// the last recognized word and shortcuts to the web UI.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/dactilo/internal/app"
	"github.com/ayusman/dactilo/internal/session"
)

// Tray is the system tray menu. It implements app.Listener to show the last
// word or shortcut.
type Tray struct {
	onToggle   func() (bool, error)
	onSettings func()
	onQuit     func()
	running    bool
	last       string
	mu         sync.RWMutex

	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
	menuError  *systray.MenuItem
}

// New creates a Tray. running is the recognition state shown at startup.
func New(running bool) *Tray {
	return &Tray{running: running}
}

// OnToggle sets the callback run when recognition is switched on or off. It
// returns the resulting running state.
func (t *Tray) OnToggle(fn func() (bool, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback run when the settings item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback run when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It must be called from the main goroutine and blocks
// until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("dactilo")
	systray.SetTooltip("dactilo fingerspelling recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop recognition")
	systray.AddSeparator()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last recognized word")
	t.menuLast.Disable()
	t.menuError = systray.AddMenuItem("", "")
	t.menuError.Disable()
	t.menuError.Hide()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open the web UI in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit dactilo")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.RLock()
	callback := t.onToggle
	t.mu.RUnlock()
	if callback == nil {
		return
	}

	// Outside the lock: starting the camera can take a while.
	running, err := callback()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = running
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(running))
	}
	if t.menuError != nil {
		if err != nil {
			t.menuError.SetTitle("Error: " + err.Error())
			t.menuError.Show()
		} else {
			t.menuError.Hide()
		}
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// HandleEvent shows words and shortcuts as the last recognized text. Letters
// are ignored.
func (t *Tray) HandleEvent(rec app.Record) {
	if rec.Kind == session.KindLetter {
		return
	}
	t.SetLast(rec.Text)
}

// SetLast updates the last recognized text in the menu.
func (t *Tray) SetLast(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = text
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(text))
	}
}

// Last returns the last recognized text.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Running returns the recognition state last shown in the menu.
func (t *Tray) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func toggleTitle(running bool) string {
	if running {
		return "● Recognizing"
	}
	return "○ Stopped"
}

func lastTitle(text string) string {
	if text == "" {
		return "Last: none"
	}
	return "Last: " + text
}
