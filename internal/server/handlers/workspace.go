package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/boardkeeper/internal/models"
	"github.com/iudanet/boardkeeper/internal/server/storage"
	"github.com/iudanet/boardkeeper/pkg/api"
)

// WorkspaceHandler обслуживает REST-поверхность persistence bridge:
// снимок для cold load и идемпотентные upsert/delete по сущностям.
type WorkspaceHandler struct {
	logger  *slog.Logger
	storage storage.WorkspaceStorage
	deltas  storage.DeltaLog
}

// NewWorkspaceHandler creates a new workspace REST handler
func NewWorkspaceHandler(logger *slog.Logger, st storage.WorkspaceStorage, deltas storage.DeltaLog) *WorkspaceHandler {
	return &WorkspaceHandler{
		logger:  logger,
		storage: st,
		deltas:  deltas,
	}
}

// workspaceFromRequest проверяет, что workspace из пути совпадает
// с workspace из токена (установлен AuthMiddleware)
func (h *WorkspaceHandler) workspaceFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	workspaceID, ok := GetWorkspaceID(r.Context())
	if !ok {
		h.logger.Error("Workspace ID not found in context")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}

	if pathID := r.PathValue("workspace_id"); pathID != workspaceID {
		h.logger.Warn("Workspace mismatch", "token", workspaceID, "path", pathID)
		writeError(w, http.StatusForbidden, "token is not valid for this workspace")
		return "", false
	}

	return workspaceID, true
}

// Snapshot обрабатывает GET /api/v1/workspaces/{workspace_id}/snapshot.
// Checkpoint в ответе — последний seq журнала дельт на момент чтения:
// клиент продолжает resync с него.
func (h *WorkspaceHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, ok := h.workspaceFromRequest(w, r)
	if !ok {
		return
	}

	// Checkpoint читается до state: дельта, журналируемая между этими
	// чтениями, сделает снимок новее checkpoint'а (безопасно — resync
	// доставит ее повторно, merge идемпотентен), но никогда не старее
	checkpoint, err := h.deltas.LatestSeq(ctx, workspaceID)
	if err != nil {
		h.logger.Error("Failed to get latest checkpoint", "error", err, "workspace_id", workspaceID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	nodes, err := h.storage.ListNodes(ctx, workspaceID)
	if err != nil {
		h.logger.Error("Failed to list nodes", "error", err, "workspace_id", workspaceID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	conns, err := h.storage.ListConnections(ctx, workspaceID)
	if err != nil {
		h.logger.Error("Failed to list connections", "error", err, "workspace_id", workspaceID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := api.SnapshotResponse{
		Nodes:       make([]api.Node, 0, len(nodes)),
		Connections: make([]api.Connection, 0, len(conns)),
		Checkpoint:  checkpoint,
	}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, *nodeToAPI(n))
	}
	for _, c := range conns {
		resp.Connections = append(resp.Connections, *connectionToAPI(c))
	}

	writeJSON(w, h.logger, http.StatusOK, resp)

	h.logger.Info("Snapshot served",
		"workspace_id", workspaceID,
		"nodes", len(resp.Nodes),
		"connections", len(resp.Connections),
		"checkpoint", checkpoint)
}

// ListNodes обрабатывает GET /api/v1/workspaces/{workspace_id}/nodes
func (h *WorkspaceHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, ok := h.workspaceFromRequest(w, r)
	if !ok {
		return
	}

	nodes, err := h.storage.ListNodes(ctx, workspaceID)
	if err != nil {
		h.logger.Error("Failed to list nodes", "error", err, "workspace_id", workspaceID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := api.NodesResponse{Nodes: make([]api.Node, 0, len(nodes))}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, *nodeToAPI(n))
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// ListConnections обрабатывает GET /api/v1/workspaces/{workspace_id}/connections
func (h *WorkspaceHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, ok := h.workspaceFromRequest(w, r)
	if !ok {
		return
	}

	conns, err := h.storage.ListConnections(ctx, workspaceID)
	if err != nil {
		h.logger.Error("Failed to list connections", "error", err, "workspace_id", workspaceID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := api.ConnectionsResponse{Connections: make([]api.Connection, 0, len(conns))}
	for _, c := range conns {
		resp.Connections = append(resp.Connections, *connectionToAPI(c))
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// UpsertNode обрабатывает PATCH /api/v1/workspaces/{workspace_id}/nodes/{id}.
// Тело — полное состояние узла; повторная доставка после обрыва безопасна.
func (h *WorkspaceHandler) UpsertNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, ok := h.workspaceFromRequest(w, r)
	if !ok {
		return
	}

	var apiNode api.Node
	if err := json.NewDecoder(r.Body).Decode(&apiNode); err != nil {
		h.logger.Warn("Failed to decode node body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if apiNode.ID == "" {
		apiNode.ID = id
	}
	if apiNode.ID != id {
		writeError(w, http.StatusBadRequest, "node id in body does not match path")
		return
	}
	if len(apiNode.Content) > 0 && !json.Valid(apiNode.Content) {
		writeError(w, http.StatusBadRequest, "node content is not valid JSON")
		return
	}

	if err := h.storage.UpsertNode(ctx, workspaceID, nodeFromAPI(&apiNode)); err != nil {
		h.logger.Error("Failed to upsert node", "error", err, "node_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteNode обрабатывает DELETE /api/v1/workspaces/{workspace_id}/nodes/{id}.
// Соединения узла удаляются каскадно — half-connected ребер в
// materialized-состоянии не бывает.
func (h *WorkspaceHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, ok := h.workspaceFromRequest(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")

	if err := h.storage.DeleteNode(ctx, workspaceID, id); err != nil {
		if errors.Is(err, storage.ErrNodeNotFound) {
			// Повторный DELETE после обрыва — не ошибка
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("Failed to delete node", "error", err, "node_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	removed, err := h.storage.DeleteNodeConnections(ctx, workspaceID, id)
	if err != nil {
		h.logger.Error("Failed to cascade node connections", "error", err, "node_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if removed > 0 {
		h.logger.Info("Cascaded connection removal",
			"workspace_id", workspaceID, "node_id", id, "connections", removed)
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpsertConnection обрабатывает PATCH /api/v1/workspaces/{workspace_id}/connections/{id}
func (h *WorkspaceHandler) UpsertConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, ok := h.workspaceFromRequest(w, r)
	if !ok {
		return
	}

	var apiConn api.Connection
	if err := json.NewDecoder(r.Body).Decode(&apiConn); err != nil {
		h.logger.Warn("Failed to decode connection body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if apiConn.ID == "" {
		apiConn.ID = id
	}
	if apiConn.ID != id {
		writeError(w, http.StatusBadRequest, "connection id in body does not match path")
		return
	}
	if apiConn.SourceNodeID == "" || apiConn.TargetNodeID == "" {
		writeError(w, http.StatusBadRequest, "connection endpoints are required")
		return
	}

	conn := connectionFromAPI(&apiConn)
	if err := conn.SourceAnchor.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid source anchor: "+err.Error())
		return
	}
	if err := conn.TargetAnchor.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid target anchor: "+err.Error())
		return
	}

	if err := h.storage.UpsertConnection(ctx, workspaceID, conn); err != nil {
		h.logger.Error("Failed to upsert connection", "error", err, "conn_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteConnection обрабатывает DELETE /api/v1/workspaces/{workspace_id}/connections/{id}
func (h *WorkspaceHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, ok := h.workspaceFromRequest(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")

	if err := h.storage.DeleteConnection(ctx, workspaceID, id); err != nil {
		if errors.Is(err, storage.ErrConnectionNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("Failed to delete connection", "error", err, "conn_id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: msg})
}

func nodeToAPI(n *models.Node) *api.Node {
	return &api.Node{
		ID:       n.ID,
		Position: api.Point{X: n.Position.X, Y: n.Position.Y},
		Size:     api.Size{Width: n.Size.Width, Height: n.Size.Height},
		Content:  n.Content,
		Style:    n.Style,
		Metadata: api.NodeMetadata{NodeType: n.Metadata.NodeType, Locked: n.Metadata.Locked},
		ZIndex:   n.ZIndex,
	}
}

func nodeFromAPI(n *api.Node) *models.Node {
	return &models.Node{
		ID:       n.ID,
		Position: models.Point{X: n.Position.X, Y: n.Position.Y},
		Size:     models.Size{Width: n.Size.Width, Height: n.Size.Height},
		Content:  n.Content,
		Style:    n.Style,
		Metadata: models.NodeMetadata{NodeType: n.Metadata.NodeType, Locked: n.Metadata.Locked},
		ZIndex:   n.ZIndex,
	}
}

func connectionToAPI(c *models.Connection) *api.Connection {
	return &api.Connection{
		ID:           c.ID,
		SourceNodeID: c.SourceNodeID,
		TargetNodeID: c.TargetNodeID,
		SourceAnchor: api.Anchor{Side: c.SourceAnchor.Side, Offset: c.SourceAnchor.Offset},
		TargetAnchor: api.Anchor{Side: c.TargetAnchor.Side, Offset: c.TargetAnchor.Offset},
		Label:        c.Label,
		Style:        c.Style,
	}
}

func connectionFromAPI(c *api.Connection) *models.Connection {
	return &models.Connection{
		ID:           c.ID,
		SourceNodeID: c.SourceNodeID,
		TargetNodeID: c.TargetNodeID,
		SourceAnchor: models.Anchor{Side: c.SourceAnchor.Side, Offset: c.SourceAnchor.Offset},
		TargetAnchor: models.Anchor{Side: c.TargetAnchor.Side, Offset: c.TargetAnchor.Offset},
		Label:        c.Label,
		Style:        c.Style,
	}
}
