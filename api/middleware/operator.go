package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/branchledger/api/responses"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/logger"
)

const (
	OperatorIDHeader   = "X-Operator-Id"
	OperatorRoleHeader = "X-Operator-Role"

	maxOperatorIDLen = 128
)

// Operator reads the identity supplied by the UI layer and seeds the request
// context with it. Requests without an operator pass through; RequireOperator
// rejects them on mutating routes.
func Operator(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operatorID := strings.TrimSpace(r.Header.Get(OperatorIDHeader))
			if len(operatorID) > maxOperatorIDLen {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "operator id too long"))
				return
			}
			role, err := enums.ParseOperatorRole(r.Header.Get(OperatorRoleHeader))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operator role"))
				return
			}

			ctx := WithOperator(r.Context(), operatorID, role)
			if logg != nil && operatorID != "" {
				ctx = logg.WithOperatorID(ctx, operatorID)
				ctx = logg.WithOperatorRole(ctx, role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator rejects requests that carry no operator id.
func RequireOperator(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if OperatorIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator id required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
