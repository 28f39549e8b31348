package phonemizer

import (
	"fmt"

	"github.com/maypok86/otter"
)

// Cached memoizes a Phonemizer per word in a bounded otter cache. Errors are
// not cached.
type Cached struct {
	next  Phonemizer
	cache otter.Cache[string, []Phoneme]
}

var _ Phonemizer = (*Cached)(nil)

// NewCached wraps next with a cache holding up to capacity words.
func NewCached(next Phonemizer, capacity int) (*Cached, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("phoneme cache capacity must be positive, got %d", capacity)
	}

	cache, err := otter.MustBuilder[string, []Phoneme](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("build phoneme cache: %w", err)
	}

	return &Cached{next: next, cache: cache}, nil
}

// Phonemize implements Phonemizer. The returned slice is never shared with
// the cache.
func (c *Cached) Phonemize(word string) ([]Phoneme, error) {
	if ps, ok := c.cache.Get(word); ok {
		return clonePhonemes(ps), nil
	}

	ps, err := c.next.Phonemize(word)
	if err != nil {
		return nil, err
	}

	c.cache.Set(word, clonePhonemes(ps))

	return ps, nil
}

// Hits returns the number of cache hits so far.
func (c *Cached) Hits() int64 {
	return c.cache.Stats().Hits()
}

// Len returns the number of cached words.
func (c *Cached) Len() int {
	return c.cache.Size()
}

// Close releases the cache.
func (c *Cached) Close() {
	c.cache.Close()
}

func clonePhonemes(ps []Phoneme) []Phoneme {
	out := make([]Phoneme, len(ps))
	copy(out, ps)

	return out
}
