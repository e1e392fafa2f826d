package enums

import "slices"

// PaymentMethod tags a fee as owed on delivery (collect) or already settled (prepaid).
type PaymentMethod string

const (
	PaymentMethodCollect PaymentMethod = "collect"
	PaymentMethodPrepaid PaymentMethod = "prepaid"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCollect,
	PaymentMethodPrepaid,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known payment method.
func (p PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, p)
}

// ParsePaymentMethod converts a raw string into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(validPaymentMethods, "payment method", value)
}
