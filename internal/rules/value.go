package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/nodecfg/internal/units"
)

// Value is a rule value as the user typed it. Numeric values travel as JSON
// numbers, everything else as JSON strings.
type Value string

// Common sentinel values shared by several variants.
const (
	Enabled  Value = "enabled"
	Disabled Value = "disabled"
)

// String returns the raw value.
func (v Value) String() string {
	return string(v)
}

// IsSentinel reports whether v is one of the enabled/disabled keywords.
func (v Value) IsSentinel() bool {
	return v == Enabled || v == Disabled
}

// MarshalJSON emits numeric values as numbers so a seeded document round
// trips unchanged. Inputs like "05" or "+5" that are not valid JSON numbers
// are written in canonical form.
func (v Value) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(v))
	if !units.IsNumeric(s) {
		return json.Marshal(string(v))
	}
	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return json.Marshal(string(v))
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a JSON string, number or null. Numbers keep their
// original text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode rule value: %w", err)
		}
		*v = Value(s)
		return nil
	case '{', '[':
		return fmt.Errorf("unsupported rule value shape: %s", string(data))
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode rule value: %w", err)
	}
	*v = Value(n.String())
	return nil
}
