package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/latticehq/lattice/pkg/graph"
	"github.com/latticehq/lattice/pkg/server/dto"
	"github.com/latticehq/lattice/pkg/types"
)

// SnapshotExporter writes a snapshot to external files and returns the paths.
type SnapshotExporter interface {
	Export(snapshot *types.GraphSnapshot) ([]string, error)
}

// GraphHandler exposes knowledge graph administration.
type GraphHandler struct {
	store    *graph.Store
	exporter SnapshotExporter
}

// NewGraphHandler creates a graph handler over the store. The exporter is
// optional; when nil the export endpoint reports the feature as disabled.
func NewGraphHandler(store *graph.Store, exporter SnapshotExporter) *GraphHandler {
	return &GraphHandler{store: store, exporter: exporter}
}

// AddNode handles POST /api/v1/graph/nodes.
func (h *GraphHandler) AddNode(c *gin.Context) {
	var req dto.AddNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	node, err := h.store.AddNode(c.Request.Context(), req.TenantID, req.ProjectID, req.NodeKey, req.Label, req.Properties)
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

// GetNode handles GET /api/v1/graph/nodes/:node_key.
func (h *GraphHandler) GetNode(c *gin.Context) {
	var scope dto.Scope
	if err := c.ShouldBindQuery(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	node, err := h.store.GetNode(c.Request.Context(), scope.TenantID, scope.ProjectID, c.Param("node_key"))
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// NodeDegree handles GET /api/v1/graph/nodes/:node_key/degree.
func (h *GraphHandler) NodeDegree(c *gin.Context) {
	var scope dto.Scope
	if err := c.ShouldBindQuery(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	degree, err := h.store.NodeDegree(c.Request.Context(), scope.TenantID, scope.ProjectID, c.Param("node_key"))
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, degree)
}

// LinkItems handles POST /api/v1/graph/nodes/:node_key/items.
func (h *GraphHandler) LinkItems(c *gin.Context) {
	var req dto.LinkItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	node, err := h.store.LinkItems(c.Request.Context(), req.TenantID, req.ProjectID, c.Param("node_key"), req.ItemIDs...)
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// AddEdge handles POST /api/v1/graph/edges.
func (h *GraphHandler) AddEdge(c *gin.Context) {
	var req dto.AddEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	edge, err := h.store.AddEdge(c.Request.Context(), req.TenantID, req.ProjectID, req.ToSpec())
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

// GetEdge handles GET /api/v1/graph/edges/:edge_id.
func (h *GraphHandler) GetEdge(c *gin.Context) {
	var scope dto.Scope
	if err := c.ShouldBindQuery(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	edge, err := h.store.GetEdge(c.Request.Context(), scope.TenantID, scope.ProjectID, c.Param("edge_id"))
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

// DeactivateEdge handles POST /api/v1/graph/edges/:edge_id/deactivate.
func (h *GraphHandler) DeactivateEdge(c *gin.Context) {
	h.mutateEdge(c, h.store.DeactivateEdge)
}

// ActivateEdge handles POST /api/v1/graph/edges/:edge_id/activate.
func (h *GraphHandler) ActivateEdge(c *gin.Context) {
	h.mutateEdge(c, h.store.ActivateEdge)
}

// SetEdgeValidity handles PUT /api/v1/graph/edges/:edge_id/validity.
func (h *GraphHandler) SetEdgeValidity(c *gin.Context) {
	var req dto.EdgeValidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	edge, err := h.store.SetEdgeValidity(c.Request.Context(), req.TenantID, req.ProjectID, c.Param("edge_id"), req.ValidFrom, req.ValidTo)
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

// Traverse handles POST /api/v1/graph/traverse.
func (h *GraphHandler) Traverse(c *gin.Context) {
	var req dto.TraverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	results, err := h.store.Traverse(c.Request.Context(), req.TenantID, req.ProjectID, req.StartKey, req.ToOptions())
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TraverseResponse{Results: results, Total: len(results)})
}

// ShortestPath handles POST /api/v1/graph/shortest-path.
func (h *GraphHandler) ShortestPath(c *gin.Context) {
	var req dto.ShortestPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	opts := types.TraversalOptions{MaxDepth: req.MaxDepth, MinWeight: req.MinWeight}
	if req.AtTimestamp != nil {
		opts.AtTimestamp = *req.AtTimestamp
	}
	path, err := h.store.ShortestPath(c.Request.Context(), req.TenantID, req.ProjectID, req.StartKey, req.EndKey, opts)
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, path)
}

// Statistics handles GET /api/v1/graph/stats.
func (h *GraphHandler) Statistics(c *gin.Context) {
	var scope dto.Scope
	if err := c.ShouldBindQuery(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	stats, err := h.store.Statistics(c.Request.Context(), scope.TenantID, scope.ProjectID)
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateSnapshot handles POST /api/v1/graph/snapshots.
func (h *GraphHandler) CreateSnapshot(c *gin.Context) {
	var req dto.CreateSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snapshot, err := h.store.CreateSnapshot(c.Request.Context(), req.TenantID, req.ProjectID, req.Name)
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.SummarizeSnapshot(snapshot))
}

// ListSnapshots handles GET /api/v1/graph/snapshots.
func (h *GraphHandler) ListSnapshots(c *gin.Context) {
	var scope dto.Scope
	if err := c.ShouldBindQuery(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	snapshots, err := h.store.ListSnapshots(c.Request.Context(), scope.TenantID, scope.ProjectID, limit)
	if err != nil {
		writeGraphError(c, err)
		return
	}
	summaries := make([]dto.SnapshotSummary, len(snapshots))
	for i, s := range snapshots {
		summaries[i] = dto.SummarizeSnapshot(s)
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": summaries, "total": len(summaries)})
}

// GetSnapshot handles GET /api/v1/graph/snapshots/:snapshot_id.
func (h *GraphHandler) GetSnapshot(c *gin.Context) {
	var scope dto.Scope
	if err := c.ShouldBindQuery(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snapshot, err := h.store.GetSnapshot(c.Request.Context(), scope.TenantID, scope.ProjectID, c.Param("snapshot_id"))
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// RestoreSnapshot handles POST /api/v1/graph/snapshots/:snapshot_id/restore.
func (h *GraphHandler) RestoreSnapshot(c *gin.Context) {
	var req dto.RestoreSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.store.RestoreSnapshot(c.Request.Context(), req.TenantID, req.ProjectID, c.Param("snapshot_id"), req.ClearExisting)
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportSnapshot handles POST /api/v1/graph/snapshots/:snapshot_id/export.
func (h *GraphHandler) ExportSnapshot(c *gin.Context) {
	if h.exporter == nil {
		writeError(c, http.StatusNotImplemented, "export_disabled", "snapshot export is not configured")
		return
	}

	var scope dto.Scope
	if err := c.ShouldBindJSON(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snapshot, err := h.store.GetSnapshot(c.Request.Context(), scope.TenantID, scope.ProjectID, c.Param("snapshot_id"))
	if err != nil {
		writeGraphError(c, err)
		return
	}

	paths, err := h.exporter.Export(snapshot)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, dto.ExportSnapshotResponse{SnapshotID: snapshot.ID, Files: paths})
}

func (h *GraphHandler) mutateEdge(c *gin.Context, op func(ctx context.Context, tenantID, projectID, edgeID string) (*types.GraphEdge, error)) {
	var scope dto.Scope
	if err := c.ShouldBindJSON(&scope); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	edge, err := op(c.Request.Context(), scope.TenantID, scope.ProjectID, c.Param("edge_id"))
	if err != nil {
		writeGraphError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

// writeGraphError maps store errors onto HTTP statuses.
func writeGraphError(c *gin.Context, err error) {
	var validationErr *graph.ValidationError
	var cycleErr *graph.CycleError
	switch {
	case errors.Is(err, graph.ErrNodeNotFound),
		errors.Is(err, graph.ErrEdgeNotFound),
		errors.Is(err, graph.ErrSnapshotNotFound),
		errors.Is(err, graph.ErrPathNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, graph.ErrDuplicateNode),
		errors.Is(err, graph.ErrDuplicateActiveEdge),
		errors.Is(err, graph.ErrSnapshotExists):
		writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.As(err, &cycleErr):
		writeError(c, http.StatusConflict, "cycle_detected", err.Error())
	case errors.Is(err, graph.ErrSelfLoop), errors.As(err, &validationErr):
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "graph_operation_failed", err.Error())
	}
}
