package dnsname

import (
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com."},
		{"example.com.", "example.com."},
		{"Example.COM", "example.com."},
		{"  example.com  ", "example.com."},
		{"example..com", "example.com."},
		{"example.com..", "example.com."},
		{".example.com", "example.com."},
		{"acme.test", "acme.test."},
		{"", "."},
		{".", "."},
		{"...", "."},
		{"xn--80ak6aa92e.com", "xn--80ak6aa92e.com."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Canonicalize(tt.in); got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, ожидается %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{"example.com", "EXAMPLE.com.", " a..b.c ", "", ".", "sub.zone.example.org."}
	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(once)
		if once != twice {
			t.Errorf("Canonicalize не идемпотентна для %q: %q != %q", in, once, twice)
		}
	}
}

func TestCanonicalize_WithAndWithoutDotAgree(t *testing.T) {
	if Canonicalize("example.com") != Canonicalize("example.com.") {
		t.Error("example.com и example.com. должны иметь одну каноническую форму")
	}
	if !Equal("Example.com", "example.com.") {
		t.Error("Equal должен сравнивать по канонической форме")
	}
}

func TestDisplay(t *testing.T) {
	tests := map[string]string{
		"example.com.": "example.com",
		"example.com":  "example.com",
		"A.B.":         "a.b",
		".":            "",
	}
	for in, want := range tests {
		if got := Display(in); got != want {
			t.Errorf("Display(%q) = %q, ожидается %q", in, got, want)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"обычное имя", "example.com", true},
		{"одна метка", "localhost", true},
		{"корень", ".", false},
		{"пусто", "", false},
		{"пробел внутри", "exa mple.com", false},
		{"длинная метка", strings.Repeat("a", 64) + ".com", false},
		{"метка 63", strings.Repeat("a", 63) + ".com", true},
		{"слишком длинное имя", strings.Repeat("abcdefghi.", 26) + "com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.in); got != tt.want {
				t.Errorf("Valid(%q) = %v, ожидается %v", tt.in, got, tt.want)
			}
		})
	}
}
