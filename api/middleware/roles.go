package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/branchledger/api/responses"
	"github.com/angelmondragon/branchledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/logger"
)

// RequireRole admits operators holding any of allowed.
func RequireRole(logg *logger.Logger, allowed ...enums.OperatorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := OperatorRoleFromContext(r.Context())
			if !slices.Contains(allowed, role) {
				err := pkgerrors.New(pkgerrors.CodeForbidden, "operator role not permitted").
					WithDetails(map[string]any{"role": role, "allowed": allowed})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
