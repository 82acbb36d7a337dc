// Package detector provides hand landmark types, the pose source interface and
// the feature extraction used by the fingerspelling classifier.
package detector

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrInvalidFrame is returned when a landmark frame has fewer than NumLandmarks points.
var ErrInvalidFrame = errors.New("invalid landmark frame")

// Point3D represents a point in frame-relative coordinates. Z is only
// meaningful when the owning HandLandmarks has Has3D set.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// HandLandmarks is one frame of landmarks for a single hand, as produced by
// the pose estimator.
type HandLandmarks struct {
	Points     []Point3D `json:"points"`
	Has3D      bool      `json:"has3d"`
	Handedness string    `json:"handedness,omitempty"` // "Left" or "Right"
	Score      float64   `json:"score,omitempty"`
}

// UnmarshalJSON decodes a frame. When has3d is omitted the frame is 3D if
// every point carries a z value.
func (h *HandLandmarks) UnmarshalJSON(data []byte) error {
	var raw struct {
		Points []struct {
			X float64  `json:"x"`
			Y float64  `json:"y"`
			Z *float64 `json:"z"`
		} `json:"points"`
		Has3D      *bool   `json:"has3d"`
		Handedness string  `json:"handedness"`
		Score      float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	has3D := len(raw.Points) > 0
	points := make([]Point3D, len(raw.Points))
	for i, p := range raw.Points {
		points[i] = Point3D{X: p.X, Y: p.Y}
		if p.Z == nil {
			has3D = false
			continue
		}
		points[i].Z = *p.Z
	}
	if raw.Has3D != nil {
		has3D = *raw.Has3D
	}

	*h = HandLandmarks{Points: points, Has3D: has3D, Handedness: raw.Handedness, Score: raw.Score}
	return nil
}

// Validate reports ErrInvalidFrame when the frame is too short to describe a hand.
func (h *HandLandmarks) Validate() error {
	if h == nil {
		return fmt.Errorf("%w: no landmarks", ErrInvalidFrame)
	}
	if len(h.Points) < NumLandmarks {
		return fmt.Errorf("%w: got %d points, need %d", ErrInvalidFrame, len(h.Points), NumLandmarks)
	}
	return nil
}

// Translate returns a copy of the frame with every point shifted by d.
func (h HandLandmarks) Translate(d Point3D) HandLandmarks {
	out := h
	out.Points = make([]Point3D, len(h.Points))
	for i, p := range h.Points {
		out.Points[i] = Point3D{X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z}
	}
	return out
}

// Distance2D returns the planar distance between two landmarks.
func Distance2D(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
