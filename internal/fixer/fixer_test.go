package fixer

import (
	"strings"
	"testing"
)

func TestFixNumber_TableDriven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "234_short_padded", in: "2340712345", want: "23407123450000"},
		{name: "234_short_with_rest", in: "2340712345\tpass1", want: "23407123450000\tpass1"},
		{name: "234_exact_unchanged", in: "23470123456789", want: "23470123456789"},
		{name: "234_long_truncated", in: "2347012345678999", want: "23470123456789"},
		{name: "234_only_prefix", in: "234", want: "23400000000000"},
		{name: "234_non_digit_rest_padded", in: "234abc", want: "234abc00000000"},
		{name: "local_zero_11", in: "07012345678\tpass2", want: "2347012345678\tpass2"},
		{name: "local_zero_10_takes_bare_rule", in: "0701234567", want: "2340701234567"},
		{name: "local_zero_12_untouched", in: "070123456789", want: "070123456789"},
		{name: "bare_10_digits", in: "7012345678", want: "2347012345678"},
		{name: "bare_10_non_digit", in: "70123a5678", want: "70123a5678"},
		{name: "no_rule", in: "12345", want: "12345"},
		{name: "primary_trimmed", in: "  07012345678 \tpw", want: "2347012345678\tpw"},
		{name: "rest_verbatim", in: "7012345678\t a\tb \t", want: "2347012345678\t a\tb \t"},
		{name: "empty_line_unchanged", in: "", want: ""},
		{name: "blank_primary_returns_original", in: "  \tpass", want: "  \tpass"},
		{name: "only_tab", in: "\t", want: "\t"},
		{name: "nbsp_trimmed", in: "\u00a07012345678\u00a0", want: "2347012345678"},
		{name: "bom_trimmed", in: "\ufeff7012345678", want: "2347012345678"},
		{name: "non_ascii_234_rest_counts_runes", in: "234ééé", want: "234ééé00000000"},
		{name: "non_ascii_234_truncate_runes", in: "234"+strings.Repeat("é", 13), want: "234"+strings.Repeat("é", 11)},
		{name: "astral_234_rest_counts_runes_not_utf16", in: "234" + strings.Repeat("\U0001F600", 10), want: "234" + strings.Repeat("\U0001F600", 10) + "0"},
		{name: "astral_234_truncate_whole_runes", in: "234" + strings.Repeat("\U0001F600", 12), want: "234" + strings.Repeat("\U0001F600", 11)},
		{name: "non_ascii_zero_11_runes", in: "0"+strings.Repeat("é", 10), want: "234"+strings.Repeat("é", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FixNumber(tt.in); got != tt.want {
				t.Fatalf("FixNumber(%q)=%q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeLine_FixDisabledTrimsOnly(t *testing.T) {
	t.Parallel()

	in := "  07012345678\tpass  \r"
	if got, want := NormalizeLine(in, false), "07012345678\tpass"; got != want {
		t.Fatalf("NormalizeLine(fix=false)=%q, want %q", got, want)
	}
	if got, want := NormalizeLine(in, true), "2347012345678\tpass  \r"; got != want {
		t.Fatalf("NormalizeLine(fix=true)=%q, want %q", got, want)
	}
}

func TestFixNumber_FixedPoints(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"2340712345\tx",
		"07012345678",
		"7012345678\ty",
		"23470123456789123",
		"234",
		"hello\tworld",
	}
	for _, in := range inputs {
		once := FixNumber(in)
		twice := FixNumber(once)
		p, _ := SplitPrimary(once)
		canonical := strings.HasPrefix(p, CountryPrefix) && len(p) == len(CountryPrefix)+SubscriberLen
		if canonical && once != twice {
			t.Fatalf("FixNumber not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestFixNumber_NeverPanics(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "\t", "\t\t\t", "\xff\xfe", "234\xff", "0\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff", "🙂\t🙂"}
	for _, in := range inputs {
		_ = FixNumber(in)
		_ = NormalizeLine(in, false)
	}
}

func TestTrimSpace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "abc", want: "abc"},
		{in: " \t\r\n abc \v\f", want: "abc"},
		{in: "\u3000abc\u00a0", want: "abc"},
		{in: "\u0085abc\u0085", want: "\u0085abc\u0085"},
		{in: "\ufeffabc", want: "abc"},
		{in: "a b", want: "a b"},
	}
	for _, tt := range tests {
		if got := TrimSpace(tt.in); got != tt.want {
			t.Fatalf("TrimSpace(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitPrimary(t *testing.T) {
	t.Parallel()

	p, r := SplitPrimary("a\tb\tc")
	if p != "a" || r != "\tb\tc" {
		t.Fatalf("SplitPrimary=%q,%q", p, r)
	}
	p, r = SplitPrimary("abc")
	if p != "abc" || r != "" {
		t.Fatalf("SplitPrimary(no tab)=%q,%q", p, r)
	}
}

func BenchmarkFixNumber(b *testing.B) {
	lines := []string{"2340712345\tpass1", "07012345678\tpass2", "7012345678", "hello\tworld"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = FixNumber(lines[i%len(lines)])
	}
}
