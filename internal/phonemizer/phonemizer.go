// Package phonemizer turns single words into phoneme records. Backends return
// IPA text; SplitIPA cuts it into symbols and lifts the primary-stress mark
// into an explicit flag so callers never parse backend conventions.
package phonemizer

// Phoneme is one pronounced unit. Symbol never contains a stress mark.
type Phoneme struct {
	Symbol   string
	Stressed bool
}

// Phonemizer converts one word into phonemes. An unpronounceable word yields
// an empty slice and a nil error.
type Phonemizer interface {
	Phonemize(word string) ([]Phoneme, error)
}

// Func adapts a plain function to Phonemizer.
type Func func(word string) ([]Phoneme, error)

// Phonemize implements Phonemizer.
func (f Func) Phonemize(word string) ([]Phoneme, error) {
	return f(word)
}

// Symbols returns the symbol of every phoneme.
func Symbols(ps []Phoneme) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Symbol
	}

	return out
}
