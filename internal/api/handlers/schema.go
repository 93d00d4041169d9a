package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/schema"
)

// SchemaHandler serves the Config Property Schema admin endpoints
// (spec.md §4.4).
type SchemaHandler struct {
	schema *schema.Schema
}

func NewSchemaHandler(s *schema.Schema) *SchemaHandler {
	return &SchemaHandler{schema: s}
}

type schemaPropertiesRequest struct {
	Properties map[string]domain.PropertySchemaEntry `json:"properties" validate:"required"`
}

// Diff handles POST /api/v1/{org}/{app}/schema/diff.
func (h *SchemaHandler) Diff(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req schemaPropertiesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	diff, err := h.schema.Diff(r.Context(), vars["org"], vars["app"], req.Properties)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"diff": diff})
}

// Put handles POST /api/v1/{org}/{app}/schema.
func (h *SchemaHandler) Put(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req schemaPropertiesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	diff, err := h.schema.Put(r.Context(), vars["org"], vars["app"], req.Properties)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"diff": diff})
}
