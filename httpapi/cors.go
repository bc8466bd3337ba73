package httpapi

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// corsHandler applies the CORS policy for origins. Credentials are allowed
// only for an explicit origin list; a "*" entry answers every origin with a
// wildcard and no credentials.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	allowAll := slices.Contains(origins, "*")
	if allowAll {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: !allowAll,
		MaxAge:           600,
	})
}
