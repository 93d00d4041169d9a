// Package handlers implements the HTTP surface SPEC_FULL.md's module map
// item 13 calls for: admin endpoints over the catalog, package composer,
// dimension registry, schema, and release manager, plus the stable
// client-facing serve endpoint backed by the resolver. Grounded on the
// teacher's internal/api/handlers package layout (one file per concern,
// thin handlers delegating to a business-logic struct) and
// internal/api/middleware/validation.go for payload validation.
package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/juspay/airborne/internal/apierr"
	"github.com/juspay/airborne/internal/api/middleware"
	"github.com/juspay/airborne/internal/domain"
)

var validate = validator.New()

// decodeJSON decodes the request body into dst and validates its
// "validate" struct tags, writing a BadRequest response and returning
// false on any failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	requestID := middleware.GetRequestID(r.Context())
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid JSON body: "+err.Error()).WithRequestID(requestID))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		apierr.WriteError(w, apierr.BadRequest("validation failed: "+err.Error()).WithRequestID(requestID))
		return false
	}
	return true
}

// writeJSON writes v as a 200 JSON response.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes v as a JSON response with the given status code.
func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies and writes a business-logic error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apierr.WriteDomainError(w, err, middleware.GetRequestID(r.Context()))
}

// parsePagination reads page/per_page query params, defaulting per_page
// to 20 the way internal/storage.Pagination callers expect.
func parsePagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 20
	}
	return page, perPage
}

var packageKeyPattern = regexp.MustCompile(`^(version|tag):(.+)$`)

// parsePackageKey parses the `version:<n>` / `tag:<t>` grammar a package
// reference arrives in.
func parsePackageKey(key string) (domain.PackageKey, error) {
	m := packageKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return domain.PackageKey{}, domain.ErrInvalidPackageKey
	}
	kind, val := m[1], m[2]
	if kind == "version" {
		v, err := strconv.Atoi(val)
		if err != nil {
			return domain.PackageKey{}, domain.ErrInvalidPackageKey
		}
		return domain.PackageKey{Version: &v}, nil
	}
	return domain.PackageKey{Tag: &val}, nil
}
