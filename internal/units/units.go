// Package units converts temperatures between the unit systems a thermostat
// instance can be configured in.
//
// All conversions pass through Celsius and are rounded to one decimal place,
// which is the precision rules are displayed and stored with.
package units

import (
	"math"
	"strconv"
	"strings"
)

// Units identifies a temperature unit system.
type Units string

const (
	Celsius    Units = "celsius"
	Fahrenheit Units = "fahrenheit"
	Kelvin     Units = "kelvin"
)

// All lists the supported unit systems in menu order.
var All = []Units{Celsius, Fahrenheit, Kelvin}

// ParseUnits parses a units field value. Empty input means Celsius, which is
// what templates default to.
func ParseUnits(s string) (Units, bool) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case "", Celsius:
		return Celsius, true
	case Fahrenheit:
		return Fahrenheit, true
	case Kelvin:
		return Kelvin, true
	default:
		return "", false
	}
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func toCelsius(v float64, from Units) float64 {
	switch from {
	case Fahrenheit:
		return (v - 32) * 5 / 9
	case Kelvin:
		return v - 273.15
	default:
		return v
	}
}

func fromCelsius(v float64, to Units) float64 {
	switch to {
	case Fahrenheit:
		return v*1.8 + 32
	case Kelvin:
		return v + 273.15
	default:
		return v
	}
}

// Convert converts v from one unit system to another through Celsius and
// rounds the result to one decimal.
func Convert(v float64, from, to Units) float64 {
	if from == to {
		return Round1(v)
	}
	return Round1(fromCelsius(toCelsius(v, from), to))
}

// IsNumeric reports whether s is a complete decimal number. Sentinel rule
// values such as "enabled" or "disabled" are not numeric and must never be
// converted.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, ".") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	// Reject forms ParseFloat accepts but a rule input never produces
	lower := strings.ToLower(s)
	return !strings.ContainsAny(lower, "xpe_") && !strings.Contains(lower, "inf") && !strings.Contains(lower, "nan")
}

// FormatNumber renders a rounded value without trailing zeros ("68", "71.6").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(Round1(v), 'f', -1, 64)
}

// ConvertString converts a numeric string. Non-numeric input is returned
// unchanged with ok=false.
func ConvertString(s string, from, to Units) (string, bool) {
	if !IsNumeric(s) {
		return s, false
	}
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return FormatNumber(Convert(v, from, to)), true
}
