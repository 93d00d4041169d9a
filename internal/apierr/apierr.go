// Package apierr is the HTTP-boundary error vocabulary for internal/api,
// mirroring the teacher's internal/api/errors/errors.go shape (a Code
// enum, an APIError with WithDetails/WithRequestID, a StatusCode
// mapping, and WriteError) but collapsed to the six codes spec.md §7
// names: internal packages keep returning typed/sentinel errors and this
// package only translates them at the API boundary.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/juspay/airborne/internal/domain"
)

// Code is one of the error kinds spec.md §7 requires to be surfaced
// uniformly as {code, http-status, message}.
type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeDbError            Code = "DB_ERROR"
	CodeInternalServerError Code = "INTERNAL_SERVER_ERROR"
)

// APIError is the JSON error envelope written to every failed response.
type APIError struct {
	Code      Code        `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails attaches machine-readable detail to the error.
func (e *APIError) WithDetails(details interface{}) *APIError {
	e.Details = details
	return e
}

// WithRequestID stamps the error with the request ID that produced it.
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// StatusCode maps Code to the HTTP status spec.md §7 assigns it.
func (e *APIError) StatusCode() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeDbError, CodeInternalServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func NotFound(resource string) *APIError {
	return New(CodeNotFound, resource+" not found")
}

func BadRequest(message string) *APIError {
	return New(CodeBadRequest, message)
}

func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message)
}

func Forbidden(message string) *APIError {
	return New(CodeForbidden, message)
}

func DbError(message string) *APIError {
	return New(CodeDbError, message)
}

func Internal(message string) *APIError {
	return New(CodeInternalServerError, message)
}

// domainCodes maps the sentinel errors internal packages return to the
// Code a caller should see. BadRequest-class sentinels (malformed keys,
// overlaps, constraint violations) and NotFound-class sentinels are
// listed explicitly; anything unrecognized falls back to
// InternalServerError per spec.md §7's policy for unclassified failures.
var domainCodes = map[error]Code{
	domain.ErrFileNotFound:       CodeNotFound,
	domain.ErrPackageNotFound:    CodeNotFound,
	domain.ErrDimensionNotFound:  CodeNotFound,
	domain.ErrReleaseNotFound:    CodeNotFound,
	domain.ErrWorkspaceNotFound:  CodeNotFound,

	domain.ErrInvalidFileKey:        CodeBadRequest,
	domain.ErrInvalidPackageKey:     CodeBadRequest,
	domain.ErrChecksumMismatch:      CodeBadRequest,
	domain.ErrTagConflict:           CodeBadRequest,
	domain.ErrDuplicateContent:      CodeBadRequest,
	domain.ErrMissingFiles:          CodeBadRequest,
	domain.ErrImportantLazyOverlap:  CodeBadRequest,
	domain.ErrCohortMissingDependsOn: CodeBadRequest,
	domain.ErrCohortUnknownOperator: CodeBadRequest,
	domain.ErrCohortNonLeafChild:    CodeBadRequest,
	domain.ErrCohortAndArity:        CodeBadRequest,
	domain.ErrPositionsNotContiguous: CodeBadRequest,
	domain.ErrDimensionInUse:        CodeBadRequest,
	domain.ErrReorderInProgress:     CodeBadRequest,
	domain.ErrSchemaMigrationInProgress: CodeBadRequest,
	domain.ErrReleaseTerminal:       CodeBadRequest,
	domain.ErrReleaseInvalidRamp:    CodeBadRequest,
	domain.ErrReleaseInvalidConclude: CodeBadRequest,
	domain.ErrReleaseInvalidVariant: CodeBadRequest,
	domain.ErrDuplicatePropertyKey:  CodeBadRequest,
	domain.ErrUnflattenConflict:     CodeBadRequest,
	domain.ErrFileNotInPackage:      CodeBadRequest,

	domain.ErrDownloadError: CodeInternalServerError,
}

// FromError classifies err into an APIError, unwrapping to find a
// recognized domain sentinel and otherwise defaulting to
// InternalServerError (spec.md §7: "external-service failure,
// object-store failure, serialization failure").
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for sentinel, code := range domainCodes {
		if errors.Is(err, sentinel) {
			return New(code, err.Error())
		}
	}
	return Internal(err.Error())
}

// WriteError writes an APIError as the standard JSON error envelope.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	_ = json.NewEncoder(w).Encode(err)
}

// WriteDomainError classifies err and writes it, stamping requestID.
func WriteDomainError(w http.ResponseWriter, err error, requestID string) {
	WriteError(w, FromError(err).WithRequestID(requestID))
}
