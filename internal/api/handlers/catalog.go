package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/juspay/airborne/internal/apierr"
	"github.com/juspay/airborne/internal/api/middleware"
	"github.com/juspay/airborne/internal/catalog"
	"github.com/juspay/airborne/internal/storage"
)

// CatalogHandler serves the File Catalog admin endpoints (spec.md §4.1).
type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

type registerFileRequest struct {
	FilePath       string                 `json:"file_path" validate:"required"`
	URL            string                 `json:"url" validate:"required,url"`
	Tag            *string                `json:"tag,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	SkipDuplicates bool                   `json:"skip_duplicates"`
}

// Register handles POST /api/v1/{org}/{app}/files.
func (h *CatalogHandler) Register(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req registerFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.catalog.Register(r.Context(), catalog.RegisterInput{
		Org:            vars["org"],
		App:            vars["app"],
		FilePath:       req.FilePath,
		URL:            req.URL,
		Tag:            req.Tag,
		Metadata:       req.Metadata,
		SkipDuplicates: req.SkipDuplicates,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, f)
}

// Upload handles POST /api/v1/{org}/{app}/files/upload. The request body
// is the raw file bytes; file_path arrives as a query param (spec.md §1
// places multipart upload parsing out of scope, so this endpoint accepts
// a single-part body rather than a multipart form).
func (h *CatalogHandler) Upload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := middleware.GetRequestID(r.Context())
	filePath := r.URL.Query().Get("file_path")
	if filePath == "" {
		apierr.WriteError(w, apierr.BadRequest("file_path query parameter is required").WithRequestID(requestID))
		return
	}
	var tag *string
	if t := r.URL.Query().Get("tag"); t != "" {
		tag = &t
	}
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.catalog.Upload(r.Context(), catalog.UploadInput{
		Org:      vars["org"],
		App:      vars["app"],
		FilePath: filePath,
		Data:     data,
		Tag:      tag,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, f)
}

// List handles GET /api/v1/{org}/{app}/files.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 20
	}
	files, total, err := h.catalog.List(r.Context(), vars["org"], vars["app"],
		storage.Pagination{Page: page, PerPage: perPage}, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"files": files, "total": total})
}

type retagRequest struct {
	FilePath string `json:"file_path" validate:"required"`
	Tag      string `json:"tag" validate:"required"`
	Version  int    `json:"version" validate:"required,min=1"`
}

// Retag handles POST /api/v1/{org}/{app}/files/retag.
func (h *CatalogHandler) Retag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req retagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.catalog.Retag(r.Context(), vars["org"], vars["app"], req.FilePath, req.Tag, req.Version); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resolve handles GET /api/v1/{org}/{app}/files/resolve?key=<file key>.
func (h *CatalogHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	f, err := h.catalog.Resolve(r.Context(), vars["org"], vars["app"], r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, f)
}
