package gesture

import (
	"errors"
	"strings"
	"sync"

	"github.com/ayusman/dactilo/internal/detector"
)

// Recording limits for a single "record N samples" request.
const (
	MinRecordSamples = 1
	MaxRecordSamples = 50
)

// ErrEmptyLabel is returned when a recording is requested without a label.
var ErrEmptyLabel = errors.New("label is required")

// NormalizeLabel trims and upper-cases a user supplied label.
func NormalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// ClampSamples bounds a requested sample count to [MinRecordSamples, MaxRecordSamples].
func ClampSamples(n int) int {
	if n < MinRecordSamples {
		return MinRecordSamples
	}
	if n > MaxRecordSamples {
		return MaxRecordSamples
	}
	return n
}

// Recording captures the next N hand frames as training samples for one label.
type Recording struct {
	mu        sync.Mutex
	label     string
	target    int
	taken     int
	cancelled bool
}

// NewRecording prepares a recording of n samples for label.
func NewRecording(label string, n int) (*Recording, error) {
	label = NormalizeLabel(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}
	return &Recording{label: label, target: ClampSamples(n)}, nil
}

// Take adds vec to the classifier if the recording still needs samples and
// reports whether the recording is complete.
func (r *Recording) Take(c Classifier, vec detector.FeatureVector) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancelled || r.taken >= r.target {
		return true
	}
	c.AddExample(r.label, vec)
	r.taken++
	return r.taken >= r.target
}

// Cancel stops the recording; samples already taken are kept.
func (r *Recording) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = true
}

// Progress describes how far a recording has got.
type Progress struct {
	Label  string `json:"label"`
	Taken  int    `json:"taken"`
	Target int    `json:"target"`
	Done   bool   `json:"done"`
}

// Progress returns a snapshot of the recording.
func (r *Recording) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Progress{
		Label:  r.label,
		Taken:  r.taken,
		Target: r.target,
		Done:   r.cancelled || r.taken >= r.target,
	}
}
