package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/service/link"
	appErrors "coursecraft-backend/pkg/errors"
)

// LinkService is the subset of link.Manager the handlers use.
type LinkService interface {
	RegisterResource(ctx context.Context, in link.NewResource) (*domain.Resource, error)
	GetResource(ctx context.Context, id string) (*domain.Resource, error)
	Link(ctx context.Context, resourceID, contentID, linkType string) (*domain.Resource, error)
	Unlink(ctx context.Context, resourceID, contentID string) (*domain.Resource, error)
}

// ResourceHandler handles resource registration and linking.
type ResourceHandler struct {
	links        LinkService
	logger       *zap.Logger
	errorHandler *appErrors.ErrorHandler
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(links LinkService, logger *zap.Logger, errorHandler *appErrors.ErrorHandler) *ResourceHandler {
	return &ResourceHandler{links: links, logger: logger, errorHandler: errorHandler}
}

// CreateResourceRequest represents the request body for registering a resource
type CreateResourceRequest struct {
	ID    string `json:"id"`
	Title string `json:"title" validate:"required"`
	URL   string `json:"url" validate:"omitempty,url"`
	Type  string `json:"type"`
}

// CreateResource handles POST /resources
func (h *ResourceHandler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	res, err := h.links.RegisterResource(r.Context(), link.NewResource{
		ID:    req.ID,
		Title: req.Title,
		URL:   req.URL,
		Type:  req.Type,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/resources/"+res.ID)
	respondJSON(w, h.logger, http.StatusCreated, res)
}

// GetResource handles GET /resources/{resourceID}
func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.links.GetResource(r.Context(), chi.URLParam(r, "resourceID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, res)
}

// LinkRequest names the content to attach a resource to.
type LinkRequest struct {
	ContentID string `json:"contentId" validate:"required"`
	LinkType  string `json:"linkType" validate:"required"`
}

// Link handles POST /resources/{resourceID}/link
func (h *ResourceHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	res, err := h.links.Link(r.Context(), chi.URLParam(r, "resourceID"), req.ContentID, req.LinkType)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, res)
}

// Unlink handles DELETE /resources/{resourceID}/link/{contentID}
func (h *ResourceHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	res, err := h.links.Unlink(r.Context(), chi.URLParam(r, "resourceID"), chi.URLParam(r, "contentID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, res)
}
