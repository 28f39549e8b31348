package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	defaultUnkToken     = "[UNK]"
	defaultClsToken     = "[CLS]"
	defaultSepToken     = "[SEP]"
	defaultSubwordMark  = "##"
	defaultMaxWordChars = 100
)

// WordPieceOptions configures a WordPiece tokenizer.
type WordPieceOptions struct {
	Lowercase bool
	// UnkToken, ClsToken and SepToken default to the BERT literals.
	UnkToken string
	ClsToken string
	SepToken string
	// ContinuationPrefix defaults to "##".
	ContinuationPrefix string
	// MaxWordChars defaults to 100; longer words map to UnkToken.
	MaxWordChars int
}

func (o *WordPieceOptions) setDefaults() {
	if o.UnkToken == "" {
		o.UnkToken = defaultUnkToken
	}
	if o.ClsToken == "" {
		o.ClsToken = defaultClsToken
	}
	if o.SepToken == "" {
		o.SepToken = defaultSepToken
	}
	if o.ContinuationPrefix == "" {
		o.ContinuationPrefix = defaultSubwordMark
	}
	if o.MaxWordChars <= 0 {
		o.MaxWordChars = defaultMaxWordChars
	}
}

// WordPiece implements BERT tokenization: basic whitespace/punctuation
// splitting followed by greedy longest-match-first subword lookup.
type WordPiece struct {
	vocab map[string]int64
	opts  WordPieceOptions
	unkID int64
	clsID int64
	sepID int64
}

var _ Tokenizer = (*WordPiece)(nil)

// NewWordPiece builds a tokenizer over an in-memory vocabulary.
func NewWordPiece(vocab map[string]int64, opts WordPieceOptions) (*WordPiece, error) {
	opts.setDefaults()

	if len(vocab) == 0 {
		return nil, fmt.Errorf("wordpiece: empty vocabulary")
	}

	wp := &WordPiece{vocab: vocab, opts: opts}

	var ok bool
	if wp.unkID, ok = vocab[opts.UnkToken]; !ok {
		return nil, fmt.Errorf("wordpiece: unknown token %q not in vocabulary", opts.UnkToken)
	}
	if wp.clsID, ok = vocab[opts.ClsToken]; !ok {
		return nil, fmt.Errorf("wordpiece: start token %q not in vocabulary", opts.ClsToken)
	}
	if wp.sepID, ok = vocab[opts.SepToken]; !ok {
		return nil, fmt.Errorf("wordpiece: end token %q not in vocabulary", opts.SepToken)
	}

	return wp, nil
}

// LoadWordPiece reads a vocab.txt (one token per line, id = line number) or
// a Hugging Face tokenizer.json with a WordPiece model.
func LoadWordPiece(path string, opts WordPieceOptions) (*WordPiece, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return loadTokenizerJSON(path, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab %q: %w", path, err)
	}
	defer f.Close()

	vocab := make(map[string]int64, 120000)
	var id int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if tok != "" {
			vocab[tok] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab %q: %w", path, err)
	}

	return NewWordPiece(vocab, opts)
}

type tokenizerJSON struct {
	Normalizer *struct {
		Type         string `json:"type"`
		Lowercase    *bool  `json:"lowercase"`
		StripAccents *bool  `json:"strip_accents"`
	} `json:"normalizer"`
	Model struct {
		Type                    string           `json:"type"`
		Vocab                   map[string]int64 `json:"vocab"`
		UnkToken                string           `json:"unk_token"`
		ContinuingSubwordPrefix string           `json:"continuing_subword_prefix"`
		MaxInputCharsPerWord    int              `json:"max_input_chars_per_word"`
	} `json:"model"`
}

func loadTokenizerJSON(path string, opts WordPieceOptions) (*WordPiece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer.json %q: %w", path, err)
	}

	var tj tokenizerJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("decode tokenizer.json %q: %w", path, err)
	}

	if tj.Model.Type != "" && tj.Model.Type != "WordPiece" {
		return nil, fmt.Errorf("tokenizer.json %q: unsupported model type %q (want WordPiece)", path, tj.Model.Type)
	}

	if opts.UnkToken == "" {
		opts.UnkToken = tj.Model.UnkToken
	}
	if opts.ContinuationPrefix == "" {
		opts.ContinuationPrefix = tj.Model.ContinuingSubwordPrefix
	}
	if opts.MaxWordChars == 0 {
		opts.MaxWordChars = tj.Model.MaxInputCharsPerWord
	}
	if n := tj.Normalizer; n != nil && n.Lowercase != nil && *n.Lowercase {
		opts.Lowercase = true
	}

	return NewWordPiece(tj.Model.Vocab, opts)
}

// Tokenize implements Tokenizer.
func (w *WordPiece) Tokenize(text string) ([]Token, error) {
	var tokens []Token
	for _, word := range w.basicTokenize(text) {
		tokens = append(tokens, w.wordPiece(word)...)
	}

	return tokens, nil
}

// EncodeIDs implements Tokenizer: [CLS] tokens... [SEP].
func (w *WordPiece) EncodeIDs(text string) ([]int64, error) {
	tokens, err := w.Tokenize(text)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(tokens)+2)
	ids = append(ids, w.clsID)
	for _, tok := range tokens {
		ids = append(ids, tok.ID)
	}
	ids = append(ids, w.sepID)

	return ids, nil
}

// VocabSize returns the number of entries in the vocabulary.
func (w *WordPiece) VocabSize() int {
	return len(w.vocab)
}

func (w *WordPiece) basicTokenize(text string) []string {
	text = cleanText(text)
	text = padCJK(text)
	if w.opts.Lowercase {
		text = stripAccents(strings.ToLower(text))
	}

	var words []string
	for _, field := range strings.Fields(text) {
		words = append(words, splitPunct(field)...)
	}

	return words
}

// wordPiece splits one pre-token into vocabulary pieces. A word with no
// complete segmentation becomes a single unknown token.
func (w *WordPiece) wordPiece(word string) []Token {
	if utf8.RuneCountInString(word) > w.opts.MaxWordChars {
		return []Token{w.unknown()}
	}

	var pieces []Token
	start := 0
	for start < len(word) {
		end := len(word)
		found := false

		for end > start {
			sub := word[start:end]
			key := sub
			if start > 0 {
				key = w.opts.ContinuationPrefix + sub
			}
			if id, ok := w.vocab[key]; ok {
				pieces = append(pieces, Token{Text: sub, ID: id, Continuation: start > 0})
				found = true
				break
			}
			_, size := utf8.DecodeLastRuneInString(word[start:end])
			end -= size
		}

		if !found {
			return []Token{w.unknown()}
		}
		start = end
	}

	return pieces
}

func (w *WordPiece) unknown() Token {
	return Token{Text: w.opts.UnkToken, ID: w.unkID, Unknown: true}
}

func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == utf8.RuneError:
		case r == '\t' || r == '\n' || r == '\r' || unicode.IsSpace(r):
			b.WriteByte(' ')
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

func padCJK(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isCJK(r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// splitPunct isolates every punctuation rune of a whitespace-free field.
func splitPunct(field string) []string {
	var out []string
	start := 0
	for i, r := range field {
		if !isPunct(r) {
			continue
		}
		if start < i {
			out = append(out, field[start:i])
		}
		size := utf8.RuneLen(r)
		out = append(out, field[i:i+size])
		start = i + size
	}
	if start < len(field) {
		out = append(out, field[start:])
	}

	return out
}

// isPunct follows BERT: all non-alphanumeric ASCII counts as punctuation,
// plus the Unicode P* categories.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}

	return unicode.IsPunct(r)
}
