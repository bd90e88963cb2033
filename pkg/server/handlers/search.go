package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/server/dto"
	"github.com/soundprediction/recall/pkg/types"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// Searcher runs a recall search.
type Searcher interface {
	Search(ctx context.Context, query, userID string, opts *types.SearchOptions) (*types.SearchResult, error)
}

// SearchHandler handles search requests
type SearchHandler struct {
	searcher Searcher
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searcher Searcher, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{
		searcher: searcher,
		validate: validator.New(),
		logger:   logger,
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	requestID := c.GetString(RequestIDKey)

	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:     "unavailable",
			Message:   "recall client not initialized",
			RequestID: requestID,
		})
		return
	}

	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:     "invalid_request",
			Message:   err.Error(),
			RequestID: requestID,
		})
		return
	}

	if err := req.Validate(c.GetHeader("X-User-ID")); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:     "validation_failed",
			Message:   err.Error(),
			RequestID: requestID,
		})
		return
	}

	if req.Options != nil {
		if err := h.validate.Struct(req.Options); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:     "validation_failed",
				Message:   err.Error(),
				RequestID: requestID,
			})
			return
		}
	}

	result, err := h.searcher.Search(c.Request.Context(), req.Query, req.UserID, req.Options)
	if err != nil {
		if isClientError(err) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:     "validation_failed",
				Message:   err.Error(),
				RequestID: requestID,
			})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "search failed",
			"user_id", req.UserID,
			"request_id", requestID,
			"error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:     "search_failed",
			Message:   "search could not be completed",
			RequestID: requestID,
		})
		return
	}

	c.JSON(http.StatusOK, dto.NewSearchResponse(result))
}

func isClientError(err error) bool {
	return errors.Is(err, recall.ErrEmptyQuery) ||
		errors.Is(err, recall.ErrMissingUserID) ||
		errors.Is(err, types.ErrInvalidTimeRange)
}
