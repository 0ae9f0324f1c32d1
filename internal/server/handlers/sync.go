package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/boardkeeper/internal/crdt"
	"github.com/iudanet/boardkeeper/internal/server/hub"
	"github.com/iudanet/boardkeeper/internal/server/storage"
	"github.com/iudanet/boardkeeper/pkg/api"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// SyncHandler обслуживает WebSocket sync-endpoint workspace: принимает
// дельты участников, материализует их в durable-состояние, журналирует
// с присвоением seq и раздает остальным через hub. Resync-request
// отвечает склейкой пропущенных дельт журнала.
type SyncHandler struct {
	logger  *slog.Logger
	hub     *hub.Hub
	storage storage.WorkspaceStorage
	deltas  storage.DeltaLog

	upgrader websocket.Upgrader
}

// NewSyncHandler creates a new WebSocket sync handler
func NewSyncHandler(logger *slog.Logger, h *hub.Hub, st storage.WorkspaceStorage, deltas storage.DeltaLog) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		hub:     h,
		storage: st,
		deltas:  deltas,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Авторизация — bearer-токеном, origin не ограничиваем
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleSync обрабатывает GET /api/v1/workspaces/{workspace_id}/sync
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workspaceID, ok := GetWorkspaceID(ctx)
	if !ok {
		h.logger.Error("Workspace ID not found in context")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if pathID := r.PathValue("workspace_id"); pathID != workspaceID {
		writeError(w, http.StatusForbidden, "token is not valid for this workspace")
		return
	}

	actorID, ok := GetActorID(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	session := h.hub.Register(context.Background(), workspaceID, actorID)
	defer h.hub.Unregister(workspaceID, session)

	// Writer: сливает исходящие кадры hub в соединение
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for data := range session.Receive() {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		// WriteControl безопасен параллельно с writer-горутиной
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsWriteWait))
	})

	h.readLoop(conn, session, workspaceID, actorID)

	_ = conn.Close()
	<-writerDone
}

func (h *SyncHandler) readLoop(conn *websocket.Conn, session *hub.Session, workspaceID, actorID string) {
	ctx := context.Background()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Info("Sync connection closed",
				"workspace_id", workspaceID, "actor_id", actorID, "reason", err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg api.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("Dropping malformed sync frame",
				"workspace_id", workspaceID, "actor_id", actorID, "error", err)
			continue
		}

		switch msg.Type {
		case api.WSTypeDelta:
			h.handleDelta(ctx, workspaceID, actorID, msg.Payload)
		case api.WSTypeResyncRequest:
			h.handleResync(ctx, session, workspaceID, actorID, msg.Since)
		default:
			h.logger.Warn("Unknown sync message type", "type", msg.Type)
		}
	}
}

// handleDelta материализует дельту, журналирует ее и раздает остальным
// участникам. Некорректная дельта отбрасывается целиком: журнал не
// должен содержать кадры, которые получатели не смогут применить.
func (h *SyncHandler) handleDelta(ctx context.Context, workspaceID, actorID string, payload []byte) {
	delta, err := crdt.DecodeDelta(payload)
	if err != nil {
		h.logger.Warn("Rejecting invalid delta",
			"workspace_id", workspaceID, "actor_id", actorID, "error", err)
		return
	}

	// Материализация до присвоения seq: checkpoint снимка (читается
	// до state) никогда не опережает записанное состояние. Ошибка
	// записи не блокирует раздачу live-участникам — недостающее
	// допишет debounce-flush участника-источника
	if err := materializeDelta(ctx, h.storage, workspaceID, delta); err != nil {
		h.logger.Error("Failed to materialize delta",
			"workspace_id", workspaceID, "actor_id", actorID, "error", err)
	}

	seq, err := h.deltas.AppendDelta(ctx, workspaceID, actorID, payload)
	if err != nil {
		h.logger.Error("Failed to journal delta",
			"workspace_id", workspaceID, "actor_id", actorID, "error", err)
		return
	}

	err = h.hub.Broadcast(ctx, workspaceID, actorID, api.WSMessage{
		Type:       api.WSTypeDelta,
		Payload:    payload,
		Checkpoint: seq,
	})
	if err != nil {
		h.logger.Error("Failed to broadcast delta",
			"workspace_id", workspaceID, "checkpoint", seq, "error", err)
	}
}

// handleResync отвечает на resync-request склейкой всех дельт после
// since. Ответ адресный: идет в очередь сессии запросившего, минуя
// broadcast.
func (h *SyncHandler) handleResync(ctx context.Context, session *hub.Session, workspaceID, actorID string, since int64) {
	stored, err := h.deltas.GetDeltasSince(ctx, workspaceID, since)
	if err != nil {
		h.logger.Error("Failed to read delta journal",
			"workspace_id", workspaceID, "since", since, "error", err)
		return
	}

	combined := &crdt.Delta{Version: crdt.DeltaVersion}
	checkpoint := since
	for _, d := range stored {
		delta, err := crdt.DecodeDelta(d.Payload)
		if err != nil {
			// Журнал принимает только валидные дельты, но кадр могла
			// испортить старая версия формата
			h.logger.Warn("Skipping unreadable journaled delta",
				"workspace_id", workspaceID, "seq", d.Seq, "error", err)
			continue
		}
		combined.Ops = append(combined.Ops, delta.Ops...)
		checkpoint = d.Seq
	}

	payload, err := crdt.EncodeDelta(combined)
	if err != nil {
		h.logger.Error("Failed to encode resync payload", "error", err)
		return
	}

	resp := api.WSMessage{
		Type:       api.WSTypeResyncResponse,
		Payload:    payload,
		Checkpoint: checkpoint,
	}
	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("Failed to encode resync response", "error", err)
		return
	}

	if !session.Deliver(data) {
		h.logger.Warn("Failed to queue resync response, session buffer full",
			"workspace_id", workspaceID, "actor_id", actorID)
		return
	}

	h.logger.Info("Resync served",
		"workspace_id", workspaceID,
		"actor_id", actorID,
		"since", since,
		"deltas", len(stored),
		"checkpoint", checkpoint)
}
