package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS returns middleware that lets the operator UI call the API. An empty
// origin list falls back to the local development origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", "If-Match", "X-Requested-With",
			IdempotencyKeyHeader, OperatorIDHeader, OperatorRoleHeader, requestIDHeader,
		},
		ExposedHeaders:   []string{"ETag", requestIDHeader, "Idempotent-Replayed", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler
}
