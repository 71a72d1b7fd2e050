package maildir

import "strings"

// Flag is a Maildir message flag, represented by its single-letter code.
type Flag rune

// Flags defined by the Maildir format.
const (
	FlagPassed  Flag = 'P'
	FlagReplied Flag = 'R'
	FlagSeen    Flag = 'S'
	FlagTrashed Flag = 'T'
	FlagDraft   Flag = 'D'
	FlagFlagged Flag = 'F'
)

// flagOrder lists every flag in the canonical (sorted letter) order.
var flagOrder = [...]Flag{FlagDraft, FlagFlagged, FlagPassed, FlagReplied, FlagSeen, FlagTrashed}

// Code returns the letter stored in file names for f.
func (f Flag) Code() rune {
	return rune(f)
}

func (f Flag) String() string {
	switch f {
	case FlagPassed:
		return "Passed"
	case FlagReplied:
		return "Replied"
	case FlagSeen:
		return "Seen"
	case FlagTrashed:
		return "Trashed"
	case FlagDraft:
		return "Draft"
	case FlagFlagged:
		return "Flagged"
	}
	return "Flag(" + string(rune(f)) + ")"
}

// ParseFlag maps a letter code back to its flag. Unknown letters report false.
func ParseFlag(c rune) (Flag, bool) {
	switch f := Flag(c); f {
	case FlagPassed, FlagReplied, FlagSeen, FlagTrashed, FlagDraft, FlagFlagged:
		return f, true
	}
	return 0, false
}

func (f Flag) bit() FlagSet {
	for i, o := range flagOrder {
		if o == f {
			return 1 << i
		}
	}
	return 0
}

// FlagSet is a set of flags. The zero value is the empty set.
type FlagSet uint8

// NewFlagSet returns the set holding flags. Unknown flags are ignored.
func NewFlagSet(flags ...Flag) FlagSet {
	var s FlagSet
	for _, f := range flags {
		s |= f.bit()
	}
	return s
}

// ParseFlagSet decodes a run of flag letters, dropping unrecognized characters.
func ParseFlagSet(letters string) FlagSet {
	var s FlagSet
	for _, c := range letters {
		if f, ok := ParseFlag(c); ok {
			s |= f.bit()
		}
	}
	return s
}

// Has reports whether f is in the set.
func (s FlagSet) Has(f Flag) bool {
	b := f.bit()
	return b != 0 && s&b != 0
}

// Union returns the flags present in s or o.
func (s FlagSet) Union(o FlagSet) FlagSet { return s | o }

// Difference returns the flags of s not present in o.
func (s FlagSet) Difference(o FlagSet) FlagSet { return s &^ o }

// Len returns the number of flags in the set.
func (s FlagSet) Len() int {
	n := 0
	for _, f := range flagOrder {
		if s.Has(f) {
			n++
		}
	}
	return n
}

// Flags returns the members in canonical order.
func (s FlagSet) Flags() []Flag {
	var flags []Flag
	for _, f := range flagOrder {
		if s.Has(f) {
			flags = append(flags, f)
		}
	}
	return flags
}

// String returns the sorted letter codes, the form written into file names.
func (s FlagSet) String() string {
	var b strings.Builder
	for _, f := range flagOrder {
		if s.Has(f) {
			b.WriteRune(f.Code())
		}
	}
	return b.String()
}
