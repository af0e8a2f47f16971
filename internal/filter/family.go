// Package filter compiles per-column browse filters into a parameterized
// SELECT statement. Identifiers are validated and quoted, values are always
// bound as positional parameters.
package filter

import "strings"

type Family int

const (
	FamilyText Family = iota
	FamilyNumeric
	FamilyBoolean
	FamilyTemporal
	FamilyIdentifier
)

func (f Family) String() string {
	switch f {
	case FamilyNumeric:
		return "numeric"
	case FamilyBoolean:
		return "boolean"
	case FamilyTemporal:
		return "temporal"
	case FamilyIdentifier:
		return "identifier"
	default:
		return "text"
	}
}

// Classify maps a raw catalog type name to its family. Every input maps to
// exactly one family; unrecognized names fall back to FamilyText.
func Classify(rawType string) Family {
	t := strings.ToLower(rawType)
	switch {
	case containsAny(t, "int", "numeric", "float", "double"):
		return FamilyNumeric
	case strings.Contains(t, "bool"):
		return FamilyBoolean
	case containsAny(t, "timestamp", "date"):
		return FamilyTemporal
	case strings.Contains(t, "uuid"):
		return FamilyIdentifier
	default:
		return FamilyText
	}
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

type ColumnType struct {
	Name    string
	RawType string
	Family  Family
}

func NewColumnType(name, rawType string) ColumnType {
	return ColumnType{Name: name, RawType: rawType, Family: Classify(rawType)}
}
