// Package texts serves the passages raced over. Room creation and the practice
// endpoint both draw from the same fixed pool.
package texts

import "math/rand"

var racePassages = []string{
	"The quick brown fox jumps over the lazy dog and runs through the meadow.",
	"To be or not to be, that is the question that Shakespeare posed in Hamlet.",
	"All that glitters is not gold, but it sure does shine bright in the sunlight.",
	"A journey of a thousand miles begins with a single step forward into the unknown.",
	"Actions speak louder than words, so let your actions define who you are.",
}

var practicePassages = []string{
	"The quick brown fox jumps over the lazy dog.",
	"To be or not to be, that is the question.",
	"All that glitters is not gold.",
	"A journey of a thousand miles begins with a single step.",
	"Practice makes perfect, and perfect practice makes perfect typing.",
}

// Provider hands out passages for races and practice sessions.
type Provider struct{}

// NewProvider constructs the passage provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Random returns a race passage, uniformly picked. Assigned to a room at
// creation time so every participant types the same passage.
func (p *Provider) Random() string {
	return racePassages[rand.Intn(len(racePassages))]
}

// RandomPractice returns a shorter passage for solo practice.
func (p *Provider) RandomPractice() string {
	return practicePassages[rand.Intn(len(practicePassages))]
}
