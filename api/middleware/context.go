package middleware

import (
	"context"

	"github.com/angelmondragon/branchledger/pkg/enums"
)

type contextKey string

const (
	ctxOperatorID   contextKey = "operator_id"
	ctxOperatorRole contextKey = "operator_role"
)

func OperatorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperatorID).(string); ok {
		return v
	}
	return ""
}

// OperatorRoleFromContext defaults to clerk when no role was supplied.
func OperatorRoleFromContext(ctx context.Context) enums.OperatorRole {
	if ctx == nil {
		return enums.OperatorRoleClerk
	}
	if v, ok := ctx.Value(ctxOperatorRole).(enums.OperatorRole); ok && v != "" {
		return v
	}
	return enums.OperatorRoleClerk
}

// WithOperator injects the operator identity into the context.
func WithOperator(ctx context.Context, operatorID string, role enums.OperatorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxOperatorID, operatorID)
	return context.WithValue(ctx, ctxOperatorRole, role)
}
