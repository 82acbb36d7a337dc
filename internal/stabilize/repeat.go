package stabilize

// Repeat is the simple stabilizer: emit once a label has been predicted for
// Frames consecutive frames, then start counting again. A held shape fires
// every Frames frames.
type Repeat struct {
	frames        int
	minConfidence float64
	last          string
	count         int
}

// NewRepeat creates a Repeat stabilizer.
func NewRepeat(frames int, minConfidence float64) *Repeat {
	if frames < 1 {
		frames = 1
	}
	return &Repeat{frames: frames, minConfidence: minConfidence}
}

// Observe counts consecutive identical confident predictions.
func (r *Repeat) Observe(obs Observation) (string, bool) {
	if !obs.Hand || !obs.Predicted || obs.Confidence < r.minConfidence {
		r.Reset()
		return "", false
	}

	if obs.Label == r.last {
		r.count++
	} else {
		r.last = obs.Label
		r.count = 1
	}

	if r.count >= r.frames {
		symbol := r.last
		r.Reset()
		return symbol, true
	}
	return "", false
}

// Reset clears the run counter.
func (r *Repeat) Reset() {
	r.last = ""
	r.count = 0
}

// State is always Idle; Repeat has no lock.
func (r *Repeat) State() State {
	return StateIdle
}
