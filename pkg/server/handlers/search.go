package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	lattice "github.com/latticehq/lattice"
	"github.com/latticehq/lattice/pkg/server/dto"
)

// SearchHandler serves the search pipeline and the item corpus.
type SearchHandler struct {
	engine *lattice.Engine
}

// NewSearchHandler creates a search handler backed by the engine.
func NewSearchHandler(engine *lattice.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Search handles POST /api/v1/search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.engine.Search(c.Request.Context(), req.ToTypes())
	if err != nil {
		switch {
		case errors.Is(err, lattice.ErrEmptyQuery), errors.Is(err, lattice.ErrMissingTenant):
			writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			writeError(c, http.StatusInternalServerError, "search_failed", err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpsertItem handles PUT /api/v1/items.
func (h *SearchHandler) UpsertItem(c *gin.Context) {
	var req dto.UpsertItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.engine.UpsertItem(c.Request.Context(), req.ToItem()); err != nil {
		writeError(c, http.StatusInternalServerError, "upsert_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": req.ItemID})
}

// GetItem handles GET /api/v1/items/:item_id.
func (h *SearchHandler) GetItem(c *gin.Context) {
	var scope dto.Scope
	if err := c.ShouldBindQuery(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	item, err := h.engine.GetItem(c.Request.Context(), scope.TenantID, scope.ProjectID, c.Param("item_id"))
	if err != nil {
		if errors.Is(err, lattice.ErrItemNotFound) {
			writeError(c, http.StatusNotFound, "item_not_found", err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "retrieval_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItem handles DELETE /api/v1/items/:item_id.
func (h *SearchHandler) DeleteItem(c *gin.Context) {
	var scope dto.Scope
	if err := c.ShouldBindQuery(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	h.engine.DeleteItem(c.Request.Context(), scope.TenantID, scope.ProjectID, c.Param("item_id"))
	c.Status(http.StatusNoContent)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *SearchHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.CacheStats())
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{Error: code, Message: message, Code: status})
}
