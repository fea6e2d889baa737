package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ProblemContentType is the media type of RFC 7807 responses.
const ProblemContentType = "application/problem+json"

// ProblemTypeBase prefixes the type URI of every problem response.
const ProblemTypeBase = "https://github.com/satstac/stac-sentinel/problems/"

// ProblemType returns the type URI for a status code.
func ProblemType(status int) string {
	return fmt.Sprintf("%s%d", ProblemTypeBase, status)
}

// writeProblem writes a minimal RFC 7807 body. Handlers use api.WriteErrorResponse;
// middleware cannot import the api package.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) error {
	problem := map[string]any{
		"type":          ProblemType(status),
		"title":         http.StatusText(status),
		"status":        status,
		"detail":        detail,
		"instance":      r.URL.Path,
		"correlationId": GetCorrelationID(r.Context()),
	}

	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(problem)
}
