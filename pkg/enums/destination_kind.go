package enums

import "slices"

type DestinationKind string

const (
	DestinationCustomer DestinationKind = "customer"
	DestinationBranch   DestinationKind = "branch"
)

var validDestinationKinds = []DestinationKind{
	DestinationCustomer,
	DestinationBranch,
}

// String implements fmt.Stringer.
func (d DestinationKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known destination kind.
func (d DestinationKind) IsValid() bool {
	return slices.Contains(validDestinationKinds, d)
}

// ParseDestinationKind converts a raw string into a DestinationKind.
func ParseDestinationKind(value string) (DestinationKind, error) {
	return parse(validDestinationKinds, "destination kind", value)
}
