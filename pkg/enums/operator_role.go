package enums

import (
	"slices"
	"strings"
)

// OperatorRole is supplied by the UI layer alongside the operator id.
type OperatorRole string

const (
	OperatorRoleClerk OperatorRole = "clerk"
	OperatorRoleAdmin OperatorRole = "admin"
)

var validOperatorRoles = []OperatorRole{
	OperatorRoleClerk,
	OperatorRoleAdmin,
}

func (r OperatorRole) String() string {
	return string(r)
}

func (r OperatorRole) IsValid() bool {
	return slices.Contains(validOperatorRoles, r)
}

// ParseOperatorRole is case-insensitive; an empty value means clerk.
func ParseOperatorRole(value string) (OperatorRole, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return OperatorRoleClerk, nil
	}
	return parse(validOperatorRoles, "operator role", value)
}
