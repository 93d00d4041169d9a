package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/juspay/airborne/internal/dimension"
	"github.com/juspay/airborne/internal/domain"
)

// DimensionHandler serves the Dimension & Cohort Registry admin endpoints
// (spec.md §4.3).
type DimensionHandler struct {
	registry *dimension.Registry
}

func NewDimensionHandler(r *dimension.Registry) *DimensionHandler {
	return &DimensionHandler{registry: r}
}

type registerDimensionRequest struct {
	Name        string          `json:"name" validate:"required"`
	Schema      domain.Document `json:"schema"`
	Type        string          `json:"type" validate:"required,oneof=Standard Cohort"`
	DependsOn   *string         `json:"depends_on,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Register handles POST /api/v1/{org}/{app}/dimensions.
func (h *DimensionHandler) Register(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req registerDimensionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d := &domain.Dimension{
		Org:         vars["org"],
		App:         vars["app"],
		Name:        req.Name,
		Schema:      req.Schema,
		Type:        domain.DimensionType(req.Type),
		DependsOn:   req.DependsOn,
		Description: req.Description,
	}
	if err := h.registry.Register(r.Context(), d); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, d)
}

// List handles GET /api/v1/{org}/{app}/dimensions.
func (h *DimensionHandler) List(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	dims, err := h.registry.List(r.Context(), vars["org"], vars["app"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"dimensions": dims})
}

// Delete handles DELETE /api/v1/{org}/{app}/dimensions/{name}.
func (h *DimensionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.registry.Delete(r.Context(), vars["org"], vars["app"], vars["name"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPriority handles GET /api/v1/{org}/{app}/dimensions/priority.
func (h *DimensionHandler) GetPriority(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	positions, err := h.registry.GetPriority(r.Context(), vars["org"], vars["app"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, positions)
}

// UpdatePriority handles PUT /api/v1/{org}/{app}/dimensions/priority.
func (h *DimensionHandler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var positions map[string]int
	if !decodeJSON(w, r, &positions) {
		return
	}
	if err := h.registry.UpdatePriority(r.Context(), vars["org"], vars["app"], positions); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cohortSetRequest mirrors domain.CohortSet but carries its rule
// definitions as raw JsonLogic objects, parsed via dimension.ParseRule,
// since domain.CohortRule has no JSON codec of its own.
type cohortSetRequest struct {
	DependsOn   string                 `json:"depends_on" validate:"required"`
	Enum        []string               `json:"enum" validate:"required"`
	Definitions map[string]interface{} `json:"definitions" validate:"required"`
}

// PutCohortSet handles PUT /api/v1/{org}/{app}/dimensions/{name}/cohorts.
func (h *DimensionHandler) PutCohortSet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req cohortSetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	defs := make(map[string]domain.CohortRule, len(req.Definitions))
	for name, raw := range req.Definitions {
		rule, err := dimension.ParseRule(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defs[name] = rule
	}
	set := &domain.CohortSet{
		DimensionName: vars["name"],
		DependsOn:     req.DependsOn,
		Enum:          req.Enum,
		Definitions:   defs,
	}
	if err := h.registry.PutCohortSet(r.Context(), vars["org"], vars["app"], set); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, cohortSetResponse(set))
}

// GetCohortSet handles GET /api/v1/{org}/{app}/dimensions/{name}/cohorts.
func (h *DimensionHandler) GetCohortSet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	set, err := h.registry.GetCohortSet(r.Context(), vars["org"], vars["app"], vars["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, cohortSetResponse(set))
}

func cohortSetResponse(set *domain.CohortSet) map[string]interface{} {
	defs := make(map[string]interface{}, len(set.Definitions))
	for name, rule := range set.Definitions {
		defs[name] = dimension.SerializeRule(rule)
	}
	return map[string]interface{}{
		"dimension_name": set.DimensionName,
		"depends_on":     set.DependsOn,
		"enum":           set.Enum,
		"definitions":    defs,
	}
}
