package granularity

import (
	"fmt"
	"slices"
	"strings"
)

// Type is a partition level. Coarser levels order first; a level may show
// the labels of any level <= itself as a secondary header.
type Type int

const (
	Year Type = iota
	Quarter
	Month
	Week
	Day

	numTypes = iota
)

// Types lists every level, coarse to fine. Sets build their levels in this
// order.
var Types = []Type{Year, Quarter, Month, Week, Day}

var typeNames = [numTypes]string{
	Year:    "year",
	Quarter: "quarter",
	Month:   "month",
	Week:    "week",
	Day:     "day",
}

func (t Type) Valid() bool { return t >= Year && t <= Day }

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("granularity(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType accepts the lower-case level name.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if strings.EqualFold(s, name) {
			return Type(t), nil
		}
	}
	return 0, fmt.Errorf("unknown granularity %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid granularity %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Identifier is the grouping key of a period. Consecutive days with equal
// identifiers fold into one period; fragments of a split period keep it.
type Identifier []int

func (id Identifier) Equal(other Identifier) bool { return slices.Equal(id, other) }
