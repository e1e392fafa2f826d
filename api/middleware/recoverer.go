package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/branchledger/api/responses"
	pkgerrors "github.com/angelmondragon/branchledger/pkg/errors"
	"github.com/angelmondragon/branchledger/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer recoverInto(w, r, logg)
			next.ServeHTTP(w, r)
		})
	}
}

func recoverInto(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	rec := recover()
	switch rec {
	case nil:
		return
	case http.ErrAbortHandler:
		panic(rec)
	}
	err := pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("%v", rec), "handler panicked")
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"method": r.Method, "path": r.URL.Path})
	}
	responses.WriteError(ctx, logg, w, err)
}
