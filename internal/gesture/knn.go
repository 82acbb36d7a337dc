// Package gesture provides the fingerspelling symbol classifier and the
// training-sample recorder that feeds it.
package gesture

import (
	"sort"
	"sync"

	"github.com/ayusman/dactilo/internal/detector"
)

// DefaultK is the neighbour count used when callers pass k < 1.
const DefaultK = 3

// Sample is one labelled training example. The JSON field names match the
// persisted dataset blob.
type Sample struct {
	Label  string                 `json:"label"`
	Vector detector.FeatureVector `json:"vec"`
}

// Prediction is the classifier's answer for a single feature vector.
type Prediction struct {
	Label string // Winning label

	// Confidence is the votes for Label divided by the neighbours actually
	// consulted, min(k, comparable samples), rather than by k. A dataset
	// smaller than k can still reach full confidence.
	Confidence float64
	Distance   float64 // Mean distance from the input to Label's neighbours
	Votes      int     // Neighbours that voted for Label
}

// Classifier maps feature vectors to symbols using a mutable dataset.
type Classifier interface {
	AddExample(label string, vec detector.FeatureVector)
	Predict(vec detector.FeatureVector, k int) (Prediction, bool)
	Reset()
	Labels() []string
	Counts() map[string]int
	Len() int
	Samples() []Sample
	Replace(samples []Sample)
}

// KNN is an online k-nearest-neighbour classifier. New symbols are learned
// by appending samples; there is no training phase. Safe for concurrent use.
type KNN struct {
	mu      sync.RWMutex
	samples []Sample
	labels  map[string]int
}

// NewKNN creates an empty KNN classifier.
func NewKNN() *KNN {
	return &KNN{labels: make(map[string]int)}
}

// AddExample appends a training sample.
func (c *KNN) AddExample(label string, vec detector.FeatureVector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, Sample{Label: label, Vector: append(detector.FeatureVector(nil), vec...)})
	c.labels[label]++
}

type neighbour struct {
	label    string
	distance float64
}

type tally struct {
	votes int
	total float64
	first int
}

// Predict returns the majority label among the k nearest samples.
//
// Ties in vote count go to the label whose neighbours have the lowest total
// distance, then to the label that appeared first in distance order.
// Samples whose dimensionality differs from vec are ignored. Returns false
// when no comparable sample exists.
func (c *KNN) Predict(vec detector.FeatureVector, k int) (Prediction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if k < 1 {
		k = DefaultK
	}

	neighbours := make([]neighbour, 0, len(c.samples))
	for _, s := range c.samples {
		if len(s.Vector) != len(vec) {
			continue
		}
		neighbours = append(neighbours, neighbour{label: s.Label, distance: detector.Distance(vec, s.Vector)})
	}
	if len(neighbours) == 0 {
		return Prediction{}, false
	}

	sort.SliceStable(neighbours, func(i, j int) bool {
		return neighbours[i].distance < neighbours[j].distance
	})
	if k > len(neighbours) {
		k = len(neighbours)
	}
	top := neighbours[:k]

	tallies := make(map[string]*tally)
	for i, n := range top {
		t, ok := tallies[n.label]
		if !ok {
			t = &tally{first: i}
			tallies[n.label] = t
		}
		t.votes++
		t.total += n.distance
	}

	var best string
	var bestTally *tally
	for label, t := range tallies {
		if bestTally == nil || better(t, bestTally) {
			best, bestTally = label, t
		}
	}

	return Prediction{
		Label:      best,
		Confidence: float64(bestTally.votes) / float64(len(top)),
		Distance:   bestTally.total / float64(bestTally.votes),
		Votes:      bestTally.votes,
	}, true
}

func better(a, b *tally) bool {
	if a.votes != b.votes {
		return a.votes > b.votes
	}
	if a.total != b.total {
		return a.total < b.total
	}
	return a.first < b.first
}

// Reset clears every sample and the derived label set.
func (c *KNN) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = nil
	c.labels = make(map[string]int)
}

// Labels returns the distinct labels in the dataset, sorted.
func (c *KNN) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	labels := make([]string, 0, len(c.labels))
	for l := range c.labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Counts returns the number of samples recorded per label.
func (c *KNN) Counts() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[string]int, len(c.labels))
	for l, n := range c.labels {
		counts[l] = n
	}
	return counts
}

// Len returns the number of samples.
func (c *KNN) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// Samples returns a copy of the dataset in insertion order.
func (c *KNN) Samples() []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Replace swaps the whole dataset, typically after loading it from storage.
func (c *KNN) Replace(samples []Sample) {
	labels := make(map[string]int)
	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Label == "" || len(s.Vector) == 0 {
			continue
		}
		kept = append(kept, s)
		labels[s.Label]++
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = kept
	c.labels = labels
}
