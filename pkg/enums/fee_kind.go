package enums

import "slices"

// FeeKind names the fixed flat fees carried by a vehicle link.
type FeeKind string

const (
	FeeKindFreight   FeeKind = "freight"
	FeeKindLoading   FeeKind = "loading"
	FeeKindUnloading FeeKind = "unloading"
	FeeKindCustoms   FeeKind = "customs"
)

var validFeeKinds = []FeeKind{
	FeeKindFreight,
	FeeKindLoading,
	FeeKindUnloading,
	FeeKindCustoms,
}

// String implements fmt.Stringer.
func (f FeeKind) String() string {
	return string(f)
}

// IsValid reports whether the value is a known fee kind.
func (f FeeKind) IsValid() bool {
	return slices.Contains(validFeeKinds, f)
}

// ParseFeeKind converts a raw string into a FeeKind.
func ParseFeeKind(value string) (FeeKind, error) {
	return parse(validFeeKinds, "fee kind", value)
}
