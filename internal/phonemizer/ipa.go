package phonemizer

import (
	"strings"
	"unicode"
)

const (
	primaryStress   = 'ˈ'
	secondaryStress = 'ˌ'
	lengthMark      = 'ː'
	halfLengthMark  = 'ˑ'
	tieAbove        = '͡'
	tieBelow        = '͜'
	linking         = '‿'
)

// SplitIPA cuts an IPA transcription into phonemes.
//
// Combining diacritics, length marks and modifier letters stay with the
// symbol before them, and a tie bar joins the following base character into
// the same symbol (t͡ʃ). The primary-stress mark flags the next symbol as
// stressed and is removed. Secondary stress, whitespace, syllable dots,
// hyphens, linking marks and other punctuation only separate symbols.
func SplitIPA(ipa string) []Phoneme {
	var (
		out     []Phoneme
		cur     strings.Builder
		curStr  bool
		pending bool
		join    bool
	)

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, Phoneme{Symbol: cur.String(), Stressed: curStr})
			cur.Reset()
		}
		curStr = false
	}

	for _, r := range ipa {
		switch {
		case r == primaryStress:
			flush()
			pending = true
			join = false
		case isSeparator(r):
			flush()
			join = false
		case r == tieAbove || r == tieBelow:
			if cur.Len() > 0 {
				cur.WriteRune(r)
				join = true
			}
		case isAttaching(r) && cur.Len() > 0:
			cur.WriteRune(r)
		case join && cur.Len() > 0:
			cur.WriteRune(r)
			join = false
		default:
			flush()
			cur.WriteRune(r)
			curStr = pending
			pending = false
		}
	}
	flush()

	return out
}

func isSeparator(r rune) bool {
	switch r {
	case secondaryStress, linking, '-', '.', '|', '‖':
		return true
	}

	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

func isAttaching(r rune) bool {
	if r == lengthMark || r == halfLengthMark {
		return true
	}

	return unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Lm, r)
}
