package memory

import (
	"context"
	"strings"
	"sync"

	"hearth/contexts/moderation-safety/moderation-service/ports"
)

// Classifier is a scriptable content classifier. Tests register canned
// results per content substring and can force errors for specific content.
type Classifier struct {
	mu sync.Mutex

	results map[string]ports.Classification
	errors  map[string]error

	Calls int
}

func NewClassifier() *Classifier {
	return &Classifier{
		results: make(map[string]ports.Classification),
		errors:  make(map[string]error),
	}
}

// ScoreContent returns the given classification for any content containing
// the substring.
func (c *Classifier) ScoreContent(substring string, classification ports.Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[substring] = classification
}

// FailContent makes Classify error for any content containing the substring.
func (c *Classifier) FailContent(substring string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[substring] = err
}

func (c *Classifier) Classify(_ context.Context, _ string, content string) (ports.Classification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls++
	for substring, err := range c.errors {
		if strings.Contains(content, substring) {
			return ports.Classification{}, err
		}
	}
	for substring, classification := range c.results {
		if strings.Contains(content, substring) {
			return classification, nil
		}
	}
	return ports.Classification{
		Scores: map[string]float64{"toxicity": 0.01, "spam": 0.01, "fake": 0.01},
	}, nil
}
