package session

import "time"

// Kind identifies the channel an event was emitted on.
type Kind string

// Event kinds, in the order they are dispatched within a single frame.
const (
	KindLetter   Kind = "letter"
	KindWord     Kind = "word"
	KindShortcut Kind = "shortcut"
)

// Event is a recognized symbol, word or shortcut.
type Event struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}
