package contract

import "strings"

// Flag is a tri-state boolean for contractual requirements the source text
// may not state at all. Unknown is the zero value and is distinct from No:
// a contract that is silent about drafts has not waived them.
type Flag int

const (
	FlagUnknown Flag = iota
	FlagYes
	FlagNo
)

// ParseFlag maps free-form Yes/No answers to a Flag. Anything that is not a
// clear yes or no stays Unknown.
func ParseFlag(s string) Flag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "required":
		return FlagYes
	case "n", "no", "false", "not required":
		return FlagNo
	default:
		return FlagUnknown
	}
}

func (f Flag) String() string {
	switch f {
	case FlagYes:
		return "Yes"
	case FlagNo:
		return "No"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the flag as its display string.
func (f Flag) MarshalJSON() ([]byte, error) {
	return []byte(`"` + f.String() + `"`), nil
}

// UnmarshalJSON accepts the display strings and JSON booleans.
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*f = ParseFlag(s)
	return nil
}
