// Package hub ведет реестр живых sync-сессий по workspace и раздает
// дельты всем участникам, кроме автора. При наличии Redis раздача
// идет через pub/sub — несколько инстансов сервера видят общий поток.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/boardkeeper/pkg/api"
)

// sessionBuffer емкость исходящей очереди сессии; переполнение —
// медленный потребитель, он догонит состояние через resync
const sessionBuffer = 64

// Session одна живая sync-сессия участника workspace.
type Session struct {
	ActorID string
	send    chan []byte
}

// Receive возвращает канал исходящих кадров сессии. Writer-горутина
// ws-обработчика сливает его в соединение.
func (s *Session) Receive() <-chan []byte {
	return s.send
}

// Deliver ставит кадр в очередь сессии напрямую, минуя broadcast
// (resync-ответы адресные). false — очередь переполнена.
func (s *Session) Deliver(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// envelope кадр, проходящий через Redis между инстансами
type envelope struct {
	OriginActor string        `json:"origin_actor"`
	Message     api.WSMessage `json:"message"`
}

// Hub реестр sync-сессий.
type Hub struct {
	logger *slog.Logger
	rdb    *redis.Client // nil — раздача только внутри инстанса

	mu         sync.RWMutex
	workspaces map[string]map[*Session]struct{}
	pubsubs    map[string]*redis.PubSub
}

// New создает hub. rdb может быть nil: тогда дельты раздаются только
// сессиям этого инстанса.
func New(rdb *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		rdb:        rdb,
		workspaces: make(map[string]map[*Session]struct{}),
		pubsubs:    make(map[string]*redis.PubSub),
	}
}

func channelName(workspaceID string) string {
	return "workspace:" + workspaceID
}

// Register добавляет сессию участника в workspace. Первый участник
// workspace на этом инстансе открывает Redis-подписку.
func (h *Hub) Register(ctx context.Context, workspaceID, actorID string) *Session {
	session := &Session{
		ActorID: actorID,
		send:    make(chan []byte, sessionBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.workspaces[workspaceID]
	if !ok {
		sessions = make(map[*Session]struct{})
		h.workspaces[workspaceID] = sessions

		if h.rdb != nil {
			pubsub := h.rdb.Subscribe(ctx, channelName(workspaceID))
			h.pubsubs[workspaceID] = pubsub
			go h.relay(workspaceID, pubsub)
		}
	}
	sessions[session] = struct{}{}

	h.logger.Info("Sync session registered",
		"workspace_id", workspaceID, "actor_id", actorID, "sessions", len(sessions))

	return session
}

// Unregister убирает сессию. Последний участник закрывает
// Redis-подписку workspace на этом инстансе.
func (h *Hub) Unregister(workspaceID string, session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.workspaces[workspaceID]
	if !ok {
		return
	}

	delete(sessions, session)
	close(session.send)

	if len(sessions) == 0 {
		delete(h.workspaces, workspaceID)
		if pubsub, ok := h.pubsubs[workspaceID]; ok {
			_ = pubsub.Close()
			delete(h.pubsubs, workspaceID)
		}
	}

	h.logger.Info("Sync session unregistered",
		"workspace_id", workspaceID, "actor_id", session.ActorID)
}

// Broadcast раздает сообщение всем участникам workspace, кроме автора.
// Автору его собственная дельта не возвращается: локальное состояние
// у него уже применено.
func (h *Hub) Broadcast(ctx context.Context, workspaceID, originActor string, msg api.WSMessage) error {
	if h.rdb != nil {
		data, err := json.Marshal(envelope{OriginActor: originActor, Message: msg})
		if err != nil {
			return fmt.Errorf("failed to encode broadcast envelope: %w", err)
		}
		if err := h.rdb.Publish(ctx, channelName(workspaceID), data).Err(); err != nil {
			return fmt.Errorf("failed to publish to redis: %w", err)
		}
		// Локальная доставка придет через relay-подписку
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode broadcast message: %w", err)
	}

	h.deliverLocal(workspaceID, originActor, data)
	return nil
}

// relay сливает Redis-канал workspace в локальные сессии.
func (h *Hub) relay(workspaceID string, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.logger.Warn("Dropping malformed relay envelope",
				"workspace_id", workspaceID, "error", err)
			continue
		}

		data, err := json.Marshal(env.Message)
		if err != nil {
			continue
		}
		h.deliverLocal(workspaceID, env.OriginActor, data)
	}
}

func (h *Hub) deliverLocal(workspaceID, originActor string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for session := range h.workspaces[workspaceID] {
		if session.ActorID == originActor {
			continue
		}
		select {
		case session.send <- data:
		default:
			// Медленный потребитель: кадр пропущен, сессия догонит
			// через resync после реконнекта
			h.logger.Warn("Session send buffer full, dropping frame",
				"workspace_id", workspaceID, "actor_id", session.ActorID)
		}
	}
}

// Sessions возвращает число живых сессий workspace на этом инстансе.
func (h *Hub) Sessions(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workspaces[workspaceID])
}
