package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/news-api/internal/service"
)

// TaxonomyHandler serves categories and tags.
type TaxonomyHandler struct {
	taxonomy *service.TaxonomyService
	logger   *slog.Logger
}

func NewTaxonomyHandler(taxonomy *service.TaxonomyService, logger *slog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy, logger: logger}
}

// HandleListCategories returns the active categories.
//
// HTTP: GET /api/news/categories
func (h *TaxonomyHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.taxonomy.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// HandleGetCategory returns one active category.
//
// HTTP: GET /api/news/categories/{slug}
func (h *TaxonomyHandler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.taxonomy.GetCategory(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type createCategoryRequest struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description"`
	ColorCode   string `json:"color_code"  validate:"omitempty,hexcolor,len=7"`
	IsActive    *bool  `json:"is_active"`
}

// HandleCreateCategory adds a category.
//
// HTTP: POST /api/news/categories (bearer)
func (h *TaxonomyHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.taxonomy.CreateCategory(r.Context(), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ColorCode:   req.ColorCode,
		Inactive:    req.IsActive != nil && !*req.IsActive,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleListTags returns tags by descending usage.
//
// HTTP: GET /api/news/tags?page=&page_size=
func (h *TaxonomyHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tags, err := h.taxonomy.ListTags(r.Context(), page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
