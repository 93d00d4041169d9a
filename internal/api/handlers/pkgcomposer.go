package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/juspay/airborne/internal/domain"
	"github.com/juspay/airborne/internal/pkgcomposer"
	"github.com/juspay/airborne/internal/storage"
)

// PackageHandler serves the Package Composer admin endpoints (spec.md §4.2).
type PackageHandler struct {
	composer *pkgcomposer.Composer
}

func NewPackageHandler(c *pkgcomposer.Composer) *PackageHandler {
	return &PackageHandler{composer: c}
}

type createPackageRequest struct {
	Index *string  `json:"index,omitempty"`
	Files []string `json:"files" validate:"required,min=1"`
	Tag   *string  `json:"tag,omitempty"`
}

// Create handles POST /api/v1/{org}/{app}/packages.
func (h *PackageHandler) Create(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req createPackageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.composer.Create(r.Context(), domain.CreatePackageInput{
		Org:   vars["org"],
		App:   vars["app"],
		Index: req.Index,
		Files: req.Files,
		Tag:   req.Tag,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

// Get handles GET /api/v1/{org}/{app}/packages?key=<key>, where <key> is
// "version:<n>" or "tag:<t>". An empty key resolves to the latest package.
func (h *PackageHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := r.URL.Query().Get("key")
	if key == "" {
		p, err := h.composer.Latest(r.Context(), vars["org"], vars["app"])
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, p)
		return
	}
	pk, err := parsePackageKey(key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.composer.Get(r.Context(), vars["org"], vars["app"], pk)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// List handles GET /api/v1/{org}/{app}/packages/list.
func (h *PackageHandler) List(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page, perPage := parsePagination(r)
	packages, total, err := h.composer.List(r.Context(), vars["org"], vars["app"],
		storage.Pagination{Page: page, PerPage: perPage}, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"packages": packages, "total": total})
}
