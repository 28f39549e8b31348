package text

import (
	"regexp"
	"strconv"
)

// MaxSpelledNumber is the largest value NumberToWords is applied to by
// ExpandNumbers. Larger digit runs are left as digits.
const MaxSpelledNumber = 999_999

var (
	units = [...]string{"zewo", "en", "de", "twa", "kat", "senk", "sis", "sèt", "uit", "nèf"}
	teens = [...]string{"dis", "onz", "douz", "trèz", "katòz", "kenz", "sèz", "disèt", "dizuit", "diznèf"}
	tens  = [...]string{"", "", "ven", "trant", "karant", "senkant", "swasant", "swasanndis", "katreven", "katrevendis"}
)

var digitRunRe = regexp.MustCompile(`[0-9]+`)

// ExpandNumbers replaces every maximal run of ASCII digits with its spelled
// Haitian Creole form. Runs above MaxSpelledNumber are kept verbatim.
func ExpandNumbers(s string) string {
	return digitRunRe.ReplaceAllStringFunc(s, func(run string) string {
		n, err := strconv.Atoi(run)
		if err != nil || n > MaxSpelledNumber {
			return run
		}

		return NumberToWords(n)
	})
}

// NumberToWords spells a nonnegative integer in Haitian Creole.
// Negative input is spelled by its absolute value.
func NumberToWords(n int) string {
	if n < 0 {
		n = -n
	}

	switch {
	case n < 10:
		return units[n]
	case n < 20:
		return teens[n-10]
	case n < 100:
		word := tens[n/10]
		if r := n % 10; r != 0 {
			unit := units[r]
			if r == 1 {
				unit = "youn"
			}
			word += "-" + unit
		}
		return word
	case n < 1000:
		return compose(n/100, n%100, "san")
	default:
		return compose(n/1000, n%1000, "mil")
	}
}

// compose spells "<count> <scale> <rest>", dropping a count of one and a
// zero rest.
func compose(count, rest int, scale string) string {
	word := scale
	if count > 1 {
		word = NumberToWords(count) + " " + scale
	}
	if rest != 0 {
		word += " " + NumberToWords(rest)
	}

	return word
}
