package enums

import "slices"

// EntryDirection tells whether cargo is arriving at or leaving the origin branch.
type EntryDirection string

const (
	EntryDirectionIncoming EntryDirection = "incoming"
	EntryDirectionOutgoing EntryDirection = "outgoing"
)

var validEntryDirections = []EntryDirection{
	EntryDirectionIncoming,
	EntryDirectionOutgoing,
}

// String implements fmt.Stringer.
func (e EntryDirection) String() string {
	return string(e)
}

// IsValid reports whether the value is a known entry direction.
func (e EntryDirection) IsValid() bool {
	return slices.Contains(validEntryDirections, e)
}

// ParseEntryDirection converts a raw string into a EntryDirection.
func ParseEntryDirection(value string) (EntryDirection, error) {
	return parse(validEntryDirections, "entry direction", value)
}
