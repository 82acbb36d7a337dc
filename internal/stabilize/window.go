package stabilize

// Entry is one confident classifier output held in a Window.
type Entry struct {
	Label      string
	Confidence float64
}

// Window is a bounded FIFO of the most recent confident predictions.
type Window struct {
	size    int
	entries []Entry
}

// NewWindow creates a window holding at most size entries.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, entries: make([]Entry, 0, size)}
}

// Push appends e, dropping the oldest entry when the window is full.
func (w *Window) Push(e Entry) {
	if len(w.entries) >= w.size {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:w.size-1]
	}
	w.entries = append(w.entries, e)
}

// Len returns the number of entries currently held.
func (w *Window) Len() int {
	return len(w.entries)
}

// Clear empties the window.
func (w *Window) Clear() {
	w.entries = w.entries[:0]
}

// Candidate is the window's most frequent label.
type Candidate struct {
	Label         string
	Count         int
	AvgConfidence float64
}

// Candidate returns the label with the highest count, ties broken by the
// higher average confidence and then by the label seen first.
func (w *Window) Candidate() (Candidate, bool) {
	if len(w.entries) == 0 {
		return Candidate{}, false
	}

	type acc struct {
		count int
		sum   float64
	}
	stats := make(map[string]*acc)
	order := make([]string, 0, len(w.entries))
	for _, e := range w.entries {
		a, ok := stats[e.Label]
		if !ok {
			a = &acc{}
			stats[e.Label] = a
			order = append(order, e.Label)
		}
		a.count++
		a.sum += e.Confidence
	}

	var best Candidate
	for i, label := range order {
		a := stats[label]
		c := Candidate{Label: label, Count: a.count, AvgConfidence: a.sum / float64(a.count)}
		if i == 0 || c.Count > best.Count || (c.Count == best.Count && c.AvgConfidence > best.AvgConfidence) {
			best = c
		}
	}
	return best, true
}
