package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/service/ledger"
	appErrors "coursecraft-backend/pkg/errors"
)

// LedgerService is the subset of ledger.Ledger the handlers use.
type LedgerService interface {
	CreateContent(ctx context.Context, in ledger.NewContent) (*domain.Content, error)
	GetContent(ctx context.Context, contentID string) (*domain.Content, error)
	CreateVersion(ctx context.Context, contentID, editorID string, updates ledger.ContentUpdates, notes []string) (*domain.Version, error)
	GetVersion(ctx context.Context, contentID string, number int) (*domain.Version, error)
	ListVersions(ctx context.Context, contentID string) ([]*domain.Version, error)
	CompareVersions(ctx context.Context, contentID string, from, to int) (*ledger.VersionDiff, error)
}

// ContentHandler handles content records and their version ledger.
type ContentHandler struct {
	ledger       LedgerService
	logger       *zap.Logger
	errorHandler *appErrors.ErrorHandler
}

// NewContentHandler creates a new content handler
func NewContentHandler(l LedgerService, logger *zap.Logger, errorHandler *appErrors.ErrorHandler) *ContentHandler {
	return &ContentHandler{ledger: l, logger: logger, errorHandler: errorHandler}
}

// CreateContentRequest represents the request body for creating content
type CreateContentRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// CreateContent handles POST /contents
func (h *ContentHandler) CreateContent(w http.ResponseWriter, r *http.Request) {
	var req CreateContentRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	content, err := h.ledger.CreateContent(r.Context(), ledger.NewContent{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/contents/"+content.ID)
	respondJSON(w, h.logger, http.StatusCreated, content)
}

// GetContent handles GET /contents/{contentID}
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.ledger.GetContent(r.Context(), chi.URLParam(r, "contentID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, content)
}

// CreateVersionRequest is an edit to apply to a content record.
type CreateVersionRequest struct {
	EditorID    string   `json:"editorId" validate:"required"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Notes       []string `json:"notes"`
}

// CreateVersion handles POST /contents/{contentID}/versions
func (h *ContentHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var req CreateVersionRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	contentID := chi.URLParam(r, "contentID")
	version, err := h.ledger.CreateVersion(r.Context(), contentID, req.EditorID,
		ledger.ContentUpdates{Title: req.Title, Description: req.Description}, req.Notes)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/contents/"+contentID+"/versions/"+strconv.Itoa(version.Number))
	respondJSON(w, h.logger, http.StatusCreated, version)
}

// ListVersions handles GET /contents/{contentID}/versions
func (h *ContentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.ledger.ListVersions(r.Context(), chi.URLParam(r, "contentID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"versions": versions,
		"total":    len(versions),
	})
}

// GetVersion handles GET /contents/{contentID}/versions/{number}
func (h *ContentHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		h.errorHandler.Handle(w, r, appErrors.NewValidationError("version number must be an integer"))
		return
	}
	version, err := h.ledger.GetVersion(r.Context(), chi.URLParam(r, "contentID"), number)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, version)
}

// CompareVersions handles GET /contents/{contentID}/versions/compare?from=&to=
func (h *ContentHandler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	from, errFrom := strconv.Atoi(r.URL.Query().Get("from"))
	to, errTo := strconv.Atoi(r.URL.Query().Get("to"))
	if errFrom != nil || errTo != nil {
		h.errorHandler.Handle(w, r, appErrors.NewValidationError("from and to must be version numbers"))
		return
	}
	diff, err := h.ledger.CompareVersions(r.Context(), chi.URLParam(r, "contentID"), from, to)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, diff)
}
