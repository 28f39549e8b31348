package phonemizer

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/neurlang/goruut/lib"
	"github.com/neurlang/goruut/models/requests"
)

// DefaultLanguage is the goruut language name for Haitian Creole.
const DefaultLanguage = "HaitianCreole"

// ErrEmptyLanguage is returned when a Goruut backend is built without a language.
var ErrEmptyLanguage = errors.New("phonemizer language must not be empty")

// Goruut phonemizes words with the pure-Go goruut engine for one fixed language.
type Goruut struct {
	mu       sync.Mutex
	p        *lib.Phonemizer
	language string
}

var _ Phonemizer = (*Goruut)(nil)

// NewGoruut builds a goruut-backed phonemizer. The embedded models load on
// first use.
func NewGoruut(language string) (*Goruut, error) {
	if language == "" {
		return nil, ErrEmptyLanguage
	}

	return &Goruut{
		p:        lib.NewPhonemizer(nil),
		language: language,
	}, nil
}

// Language returns the configured goruut language name.
func (g *Goruut) Language() string {
	return g.language
}

// Phonemize implements Phonemizer.
func (g *Goruut) Phonemize(word string) ([]Phoneme, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return []Phoneme{}, nil
	}

	g.mu.Lock()
	resp := g.p.Sentence(requests.PhonemizeSentence{
		Language: g.language,
		Sentence: word,
	})
	g.mu.Unlock()

	var ipa strings.Builder
	for i, w := range resp.Words {
		if i > 0 {
			ipa.WriteByte(' ')
		}
		ipa.WriteString(w.Phonetic)
	}

	phonemes := SplitIPA(ipa.String())
	if len(phonemes) == 0 {
		slog.Debug("goruut returned no phonemes", "word", word, "language", g.language)
	}

	return phonemes, nil
}
