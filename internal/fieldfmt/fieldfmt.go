// Package fieldfmt formats free-text form inputs as the user types them.
package fieldfmt

import (
	"fmt"
	"net/netip"
	"strings"
	"unicode/utf8"
)

const (
	maxGroups      = 4
	maxGroupDigits = 3
)

// IPFormatter formats an IPv4 address one keystroke at a time. Digits past
// the third in a group start a new group; stray dots and any other
// characters are dropped. Output never exceeds four groups of three digits.
type IPFormatter struct {
	out string
}

// NewIPFormatter starts from an existing, possibly unformatted, value.
func NewIPFormatter(initial string) *IPFormatter {
	return &IPFormatter{out: FormatIP(initial)}
}

// Type feeds one character.
func (f *IPFormatter) Type(r rune) {
	f.out = appendIPRune(f.out, r)
}

// Backspace removes the last character.
func (f *IPFormatter) Backspace() {
	if f.out == "" {
		return
	}
	_, size := utf8.DecodeLastRuneInString(f.out)
	f.out = f.out[:len(f.out)-size]
}

// String returns the formatted value.
func (f *IPFormatter) String() string {
	return f.out
}

// FormatIP formats a complete input in one pass.
func FormatIP(s string) string {
	out := ""
	for _, r := range s {
		out = appendIPRune(out, r)
	}
	return out
}

func appendIPRune(out string, r rune) string {
	groups := strings.Split(out, ".")
	last := groups[len(groups)-1]

	switch {
	case r >= '0' && r <= '9':
		if len(last) < maxGroupDigits {
			return out + string(r)
		}
		if len(groups) == maxGroups {
			return out
		}
		return out + "." + string(r)
	case r == '.':
		if last == "" || len(groups) == maxGroups {
			return out
		}
		return out + "."
	default:
		return out
	}
}

// ValidIPv4 reports whether s is a complete dotted-quad IPv4 address.
func ValidIPv4(s string) bool {
	if strings.Count(s, ".") != 3 {
		return false
	}
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}

// ParseTime parses a 24h "HH:MM" trigger.
func ParseTime(s string) (hour, minute int, ok bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, false
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// FormatTime renders a trigger time.
func FormatTime(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
