package fieldfmt

import (
	"math/rand"
	"strings"
	"testing"
)

func TestFormatIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.1.10", "192.168.1.10"},
		{"19216811", "192.168.11"},
		{"1921681100255", "192.168.110.025"},
		{"10..0.0.1", "10.0.0.1"},
		{".10.0", "10.0"},
		{"10.0.0.1.5", "10.0.0.15"},
		{"1a2b3", "123"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FormatIP(tt.in); got != tt.want {
			t.Errorf("FormatIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func checkShape(t *testing.T, s string) {
	t.Helper()
	groups := strings.Split(s, ".")
	if len(groups) > maxGroups {
		t.Fatalf("%q has %d groups", s, len(groups))
	}
	for _, g := range groups {
		if len(g) > maxGroupDigits {
			t.Fatalf("%q has group %q longer than 3 digits", s, g)
		}
	}
}

func TestIncrementalMatchesOnePass(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("0123456789..")

	for i := 0; i < 500; i++ {
		f := NewIPFormatter("")
		var typed []rune
		for n := rng.Intn(25); n > 0; n-- {
			r := alphabet[rng.Intn(len(alphabet))]
			typed = append(typed, r)
			f.Type(r)
			checkShape(t, f.String())
		}
		if got, want := f.String(), FormatIP(string(typed)); got != want {
			t.Fatalf("incremental %q = %q, one pass = %q", string(typed), got, want)
		}
	}
}

func TestIncrementalWithBackspace(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	alphabet := []rune("0123456789.")

	for i := 0; i < 500; i++ {
		f := NewIPFormatter("")
		for n := rng.Intn(30); n > 0; n-- {
			if rng.Intn(5) == 0 {
				f.Backspace()
			} else {
				f.Type(alphabet[rng.Intn(len(alphabet))])
			}
			checkShape(t, f.String())
		}
		if got := f.String(); FormatIP(got) != got {
			t.Fatalf("one pass over %q = %q", got, FormatIP(got))
		}
	}
}

func TestValidIPv4(t *testing.T) {
	valid := []string{"192.168.1.10", "0.0.0.0", "255.255.255.255"}
	for _, s := range valid {
		if !ValidIPv4(s) {
			t.Errorf("ValidIPv4(%q) = false", s)
		}
	}
	invalid := []string{"", "192.168.1", "192.168.1.", "256.1.1.1", "::1", "1.2.3.4.5"}
	for _, s := range invalid {
		if ValidIPv4(s) {
			t.Errorf("ValidIPv4(%q) = true", s)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		h, m int
		ok   bool
	}{
		{"08:00", 8, 0, true},
		{"23:59", 23, 59, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"8:00", 0, 0, false},
		{"sunrise", 0, 0, false},
	}

	for _, tt := range tests {
		h, m, ok := ParseTime(tt.in)
		if ok != tt.ok || (ok && (h != tt.h || m != tt.m)) {
			t.Errorf("ParseTime(%q) = %d, %d, %v", tt.in, h, m, ok)
		}
	}
	if got := FormatTime(7, 5); got != "07:05" {
		t.Errorf("FormatTime() = %q", got)
	}
}
