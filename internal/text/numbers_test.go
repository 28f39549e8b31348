package text

import "testing"

func TestNumberToWords(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "zewo"},
		{1, "en"},
		{7, "sèt"},
		{10, "dis"},
		{15, "kenz"},
		{19, "diznèf"},
		{20, "ven"},
		{21, "ven-youn"},
		{35, "trant-senk"},
		{80, "katreven"},
		{99, "katrevendis-nèf"},
		{100, "san"},
		{101, "san en"},
		{200, "de san"},
		{342, "twa san karant-de"},
		{1000, "mil"},
		{1001, "mil en"},
		{2024, "de mil ven-kat"},
		{15000, "kenz mil"},
		{999999, "nèf san katrevendis-nèf mil nèf san katrevendis-nèf"},
		{-4, "kat"},
	}

	for _, tt := range tests {
		if got := NumberToWords(tt.n); got != tt.want {
			t.Errorf("NumberToWords(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestExpandNumbers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mwen gen 21 dola", "mwen gen ven-youn dola"},
		{"12h30", "douzhtrant"},
		{"007", "sèt"},
		{"999999 ak 1000000", "nèf san katrevendis-nèf mil nèf san katrevendis-nèf ak 1000000"},
		{"pa gen chif", "pa gen chif"},
	}

	for _, tt := range tests {
		if got := ExpandNumbers(tt.in); got != tt.want {
			t.Errorf("ExpandNumbers(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
