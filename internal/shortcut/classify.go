// Package shortcut recognizes a small fixed vocabulary of whole-hand gestures
// that map straight to words, independently of letter recognition.
package shortcut

import "github.com/ayusman/dactilo/internal/detector"

// Shortcut vocabulary.
const (
	Hola    = "HOLA"    // Open hand: four or more fingers extended
	OK      = "OK"      // Closed fist: no finger extended
	Gracias = "GRACIAS" // Index and middle only
)

// Thresholds are the planar tip distances above which a finger counts as extended.
type Thresholds struct {
	Thumb  float64 // Thumb tip to thumb MCP
	Finger float64 // Fingertip to its DIP joint
}

// DefaultThresholds returns thresholds tuned for normalized image coordinates.
func DefaultThresholds() Thresholds {
	return Thresholds{Thumb: 0.1, Finger: 0.07}
}

// Finger indices into the array returned by ExtendedFingers.
const (
	Thumb = iota
	Index
	Middle
	Ring
	Pinky
)

// ExtendedFingers reports which fingers are extended, thumb first.
func ExtendedFingers(h *detector.HandLandmarks, th Thresholds) ([5]bool, int) {
	p := h.Points
	ext := [5]bool{
		detector.Distance2D(p[detector.ThumbTip], p[detector.ThumbMCP]) > th.Thumb,
		detector.Distance2D(p[detector.IndexTip], p[detector.IndexDIP]) > th.Finger,
		detector.Distance2D(p[detector.MiddleTip], p[detector.MiddleDIP]) > th.Finger,
		detector.Distance2D(p[detector.RingTip], p[detector.RingDIP]) > th.Finger,
		detector.Distance2D(p[detector.PinkyTip], p[detector.PinkyDIP]) > th.Finger,
	}

	count := 0
	for _, e := range ext {
		if e {
			count++
		}
	}
	return ext, count
}

// Classify maps a hand to a shortcut label using the fixed decision table.
// Returns false for frames that match no shortcut or are malformed.
func Classify(h *detector.HandLandmarks, th Thresholds) (string, bool) {
	if h.Validate() != nil {
		return "", false
	}

	ext, count := ExtendedFingers(h, th)
	switch {
	case count >= 4:
		return Hola, true
	case count == 0:
		return OK, true
	case ext[Index] && ext[Middle] && !ext[Ring] && !ext[Pinky]:
		return Gracias, true
	}
	return "", false
}
