// Package word groups emitted letters into words using hand-absence timing.
package word

import (
	"strings"
	"time"
)

// Config holds the segmenter's timing parameters.
type Config struct {
	// IdleGap is how long the hand must be absent before the buffered
	// letters are flushed as a word.
	IdleGap time.Duration
	// Cooldown suppresses re-emitting the same word within this period.
	Cooldown time.Duration
}

// DefaultConfig returns the default segmenter timing.
func DefaultConfig() Config {
	return Config{
		IdleGap:  1200 * time.Millisecond,
		Cooldown: 800 * time.Millisecond,
	}
}

// Flush describes what happened when the buffer was closed.
type Flush struct {
	Word       string
	Suppressed bool // Word matched the previous one inside the cooldown and was dropped
}

// Segmenter accumulates letters into a word buffer.
type Segmenter struct {
	cfg          Config
	buf          strings.Builder
	lastHandSeen time.Time
	lastWord     string
	lastWordAt   time.Time
}

// NewSegmenter creates a segmenter with an empty buffer.
func NewSegmenter(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// Reset clears the buffer and duplicate history and treats now as the last
// moment a hand was seen.
func (s *Segmenter) Reset(now time.Time) {
	s.buf.Reset()
	s.lastHandSeen = now
	s.lastWord = ""
	s.lastWordAt = time.Time{}
}

// Letter appends an emitted symbol to the current word.
func (s *Segmenter) Letter(symbol string) {
	s.buf.WriteString(symbol)
}

// Buffer returns the word spelled so far.
func (s *Segmenter) Buffer() string {
	return s.buf.String()
}

// HandSeen records that a hand is present at now.
func (s *Segmenter) HandSeen(now time.Time) {
	s.lastHandSeen = now
}

// HandAbsent is called for every frame without a hand. Once the hand has been
// gone for IdleGap and the buffer holds letters, the buffer is flushed and
// cleared. The returned bool reports whether a flush happened; a flush of a
// duplicate inside the cooldown is marked Suppressed.
func (s *Segmenter) HandAbsent(now time.Time) (Flush, bool) {
	if s.buf.Len() == 0 || now.Sub(s.lastHandSeen) < s.cfg.IdleGap {
		return Flush{}, false
	}

	w := s.buf.String()
	s.buf.Reset()

	if w == s.lastWord && !s.lastWordAt.IsZero() && now.Sub(s.lastWordAt) < s.cfg.Cooldown {
		return Flush{Word: w, Suppressed: true}, true
	}

	s.lastWord = w
	s.lastWordAt = now
	return Flush{Word: w}, true
}
