package tokenizer

import (
	"fmt"
	"strings"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
)

// wordStart is the SentencePiece marker (U+2581) prefixed to pieces that
// begin a new word.
const wordStart = "▁"

// SentencePieceVocab selects how piece ids map onto model input ids.
type SentencePieceVocab int

const (
	// VocabFairseq is the fairseq dictionary XLM-R checkpoints use:
	// <s>=0 <pad>=1 </s>=2 <unk>=3 and every other piece at its spm id + 1.
	VocabFairseq SentencePieceVocab = iota
	// VocabRaw passes spm ids through; <s> and </s> come from the model's
	// control pieces.
	VocabRaw
)

const (
	fairseqBOS    = 0
	fairseqEOS    = 2
	fairseqUnk    = 3
	fairseqOffset = 1
)

// SentencePieceOptions configures a SentencePiece tokenizer.
type SentencePieceOptions struct {
	Lowercase bool
	Vocab     SentencePieceVocab
}

// SentencePiece implements Tokenizer on a pure-Go UNIGRAM SentencePiece
// model. Pieces that lack the word-start marker are continuations.
type SentencePiece struct {
	proc   gosp.Sentencepiece
	vocab  SentencePieceVocab
	unk    int32
	bos    int64
	eos    int64
	offset int64
}

var _ Tokenizer = (*SentencePiece)(nil)

// NewSentencePiece loads a SentencePiece model from the given path.
func NewSentencePiece(modelPath string, opts SentencePieceOptions) (*SentencePiece, error) {
	if modelPath == "" {
		return nil, ErrEmptyPath
	}

	proc, err := gosp.NewSentencepieceFromFile(modelPath, opts.Lowercase)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model %q: %w", modelPath, err)
	}

	sp := &SentencePiece{proc: proc, vocab: opts.Vocab, unk: proc.GetUnknownIndex()}

	switch opts.Vocab {
	case VocabFairseq:
		sp.bos, sp.eos, sp.offset = fairseqBOS, fairseqEOS, fairseqOffset
	case VocabRaw:
		bos, ok := proc.GetControlWord("<s>")
		if !ok {
			return nil, fmt.Errorf("sentencepiece model %q has no <s> piece", modelPath)
		}
		eos, ok := proc.GetControlWord("</s>")
		if !ok {
			return nil, fmt.Errorf("sentencepiece model %q has no </s> piece", modelPath)
		}
		sp.bos, sp.eos = int64(bos), int64(eos)
	default:
		return nil, fmt.Errorf("unknown sentencepiece vocab %d", opts.Vocab)
	}

	return sp, nil
}

// Tokenize implements Tokenizer. Unknown pieces keep their surface text and
// are flagged Unknown.
func (t *SentencePiece) Tokenize(text string) ([]Token, error) {
	if text == "" {
		return []Token{}, nil
	}

	pieces := t.proc.Tokenize(text)
	tokens := make([]Token, 0, len(pieces))
	for _, p := range pieces {
		tok := Token{ID: t.modelID(p.ID), Unknown: p.ID == t.unk}
		if strings.HasPrefix(p.Text, wordStart) {
			// A bare marker yields empty text; the pieces after it complete the word.
			tok.Text = strings.TrimPrefix(p.Text, wordStart)
		} else {
			tok.Text = p.Text
			tok.Continuation = len(tokens) > 0
		}
		tokens = append(tokens, tok)
	}

	return tokens, nil
}

func (t *SentencePiece) modelID(id int32) int64 {
	if t.vocab == VocabFairseq && id == t.unk {
		return fairseqUnk
	}
	return int64(id) + t.offset
}

// EncodeIDs implements Tokenizer: <s> pieces... </s>.
func (t *SentencePiece) EncodeIDs(text string) ([]int64, error) {
	tokens, err := t.Tokenize(text)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(tokens)+2)
	ids = append(ids, t.bos)
	for _, tok := range tokens {
		ids = append(ids, tok.ID)
	}
	ids = append(ids, t.eos)

	return ids, nil
}
