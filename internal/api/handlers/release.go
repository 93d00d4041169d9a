package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/juspay/airborne/internal/apierr"
	"github.com/juspay/airborne/internal/api/middleware"
	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/release"
)

// ReleaseHandler serves the Release/Experiment admin endpoints
// (spec.md §4.8).
type ReleaseHandler struct {
	manager *release.Manager
}

func NewReleaseHandler(m *release.Manager) *ReleaseHandler {
	return &ReleaseHandler{manager: m}
}

type createReleaseRequest struct {
	PackageVersion      int                 `json:"package_version" validate:"required"`
	ConfigVersion       string              `json:"config_version" validate:"required"`
	DimensionContext    map[string]string   `json:"dimension_context"`
	ControlOverrides    domain.Overrides    `json:"control_overrides"`
	ExperimentOverrides domain.Overrides    `json:"experiment_overrides"`
}

// Create handles POST /api/v1/{org}/{app}/releases.
func (h *ReleaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req createReleaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, _ := middleware.GetPrincipal(r.Context())
	rel, err := h.manager.Create(r.Context(), release.CreateInput{
		Org:                 vars["org"],
		App:                 vars["app"],
		PackageVersion:      req.PackageVersion,
		ConfigVersion:       req.ConfigVersion,
		DimensionContext:    req.DimensionContext,
		ControlOverrides:    req.ControlOverrides,
		ExperimentOverrides: req.ExperimentOverrides,
		CreatedBy:           p.Org + "/" + p.App,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, rel)
}

func releaseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		apierr.WriteError(w, apierr.BadRequest("invalid release id").WithRequestID(middleware.GetRequestID(r.Context())))
		return uuid.UUID{}, false
	}
	return id, true
}

type rampRequest struct {
	TrafficPercentage int `json:"traffic_percentage" validate:"min=0,max=100"`
}

// Ramp handles POST /api/v1/{org}/{app}/releases/{id}/ramp.
func (h *ReleaseHandler) Ramp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := releaseID(w, r)
	if !ok {
		return
	}
	var req rampRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rel, err := h.manager.Ramp(r.Context(), vars["org"], vars["app"], id, req.TrafficPercentage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rel)
}

type concludeRequest struct {
	ChosenVariant string `json:"chosen_variant" validate:"required,oneof=control experimental"`
}

// Conclude handles POST /api/v1/{org}/{app}/releases/{id}/conclude.
func (h *ReleaseHandler) Conclude(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := releaseID(w, r)
	if !ok {
		return
	}
	var req concludeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rel, err := h.manager.Conclude(r.Context(), vars["org"], vars["app"], id, domain.VariantKind(req.ChosenVariant))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rel)
}

// Discard handles POST /api/v1/{org}/{app}/releases/{id}/discard.
func (h *ReleaseHandler) Discard(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := releaseID(w, r)
	if !ok {
		return
	}
	rel, err := h.manager.Discard(r.Context(), vars["org"], vars["app"], id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rel)
}

// Get handles GET /api/v1/{org}/{app}/releases/{id}.
func (h *ReleaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := releaseID(w, r)
	if !ok {
		return
	}
	rel, err := h.manager.Get(r.Context(), vars["org"], vars["app"], id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rel)
}
