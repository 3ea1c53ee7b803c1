package rules

import (
	"strings"

	"github.com/muurk/nodecfg/internal/units"
)

// RemoteRule is the parsed form of a remote-command rule. On the wire it is
// the flat string "<target-address> <command> <arg0> <arg1> ...".
type RemoteRule struct {
	Target  string
	Command string
	Args    []string
}

// ParseRemote splits a remote-command rule. A value with fewer than two
// tokens (no command chosen yet) does not parse.
func ParseRemote(v Value) (RemoteRule, bool) {
	fields := strings.Fields(string(v))
	if len(fields) < 2 {
		return RemoteRule{}, false
	}
	rule := RemoteRule{
		Target:  fields[0],
		Command: fields[1],
	}
	if len(fields) > 2 {
		rule.Args = append([]string(nil), fields[2:]...)
	}
	return rule, true
}

// String re-emits the flat wire form.
func (r RemoteRule) String() string {
	parts := append([]string{r.Target, r.Command}, r.Args...)
	return strings.Join(parts, " ")
}

// Value returns the rule as a rule value.
func (r RemoteRule) Value() Value {
	return Value(r.String())
}

// Arg returns the i-th argument or "".
func (r RemoteRule) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// commandArity is the number of arguments a command needs. Commands not in
// the table are checked only by the resolver.
var commandArity = map[string]int{
	"enable":         1,
	"disable":        1,
	"turn_on":        1,
	"turn_off":       1,
	"reset_rule":     1,
	"trigger_sensor": 1,
	"enable_in":      2,
	"disable_in":     2,
	"set_rule":       2,
	"ir_key":         2,
}

// complete reports whether the rule carries every argument its command
// needs. Delays must be numeric.
func (r RemoteRule) complete() bool {
	need, known := commandArity[r.Command]
	if !known {
		return true
	}
	if len(r.Args) < need {
		return false
	}
	switch r.Command {
	case "enable_in", "disable_in":
		return units.IsNumeric(r.Args[1])
	}
	return true
}
