// Package transport реализует sync-транспорт клиента: постоянное
// дуплексное WebSocket-соединение на пару (участник, workspace).
// Дельты одного участника доставляются в causal-порядке (один writer);
// переживание обрывов — реконнект с экспоненциальным backoff и resync
// с последнего checkpoint, а не предположение, что ничего не пропущено.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/iudanet/boardkeeper/pkg/api"
)

// State состояние транспорта
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSynced       State = "synced"
	StateReconnecting State = "reconnecting"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 256
)

// ErrClosed транспорт закрыт
var ErrClosed = errors.New("transport is closed")

// ErrBufferFull очередь отправки переполнена; правка доедет до сервера
// в составе полного состояния, пересылаемого после реконнекта
var ErrBufferFull = errors.New("transport send buffer is full")

// DeltaSink принимает удаленные дельты. Реализуется workspace store.
type DeltaSink interface {
	// ApplyRemoteDelta вливает дельту; некорректные дельты отбрасываются
	ApplyRemoteDelta(payload []byte, checkpoint int64)

	// Checkpoint последний учтенный серверный sequence для resync-request
	Checkpoint() int64

	// ExportState полное локальное состояние одной дельтой для re-push
	// после реконнекта; nil — документ пуст, пересылать нечего
	ExportState() ([]byte, error)
}

// Config параметры транспорта
type Config struct {
	// URL полный ws:// или wss:// адрес endpoint'а workspace
	URL string

	// Token workspace access token для Authorization header
	Token string
}

// Transport клиентский конец sync-канала.
type Transport struct {
	cfg    Config
	sink   DeltaSink
	logger *slog.Logger

	sendCh chan []byte
	done   chan struct{}

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	onState  func(State)
	closed   bool
	attempts int
}

// New создает транспорт. Run нужно запустить отдельной горутиной.
func New(cfg Config, sink DeltaSink, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		state:  StateDisconnected,
	}
}

// OnStateChange регистрирует наблюдателя смены состояния. UI использует
// его для индикации "offline, changes may not be synced" — без блокировки
// локального редактирования.
func (t *Transport) OnStateChange(fn func(State)) {
	t.mu.Lock()
	t.onState = fn
	t.mu.Unlock()
}

// State возвращает текущее состояние.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	changed := t.state != s
	t.state = s
	fn := t.onState
	t.mu.Unlock()

	if changed && fn != nil {
		fn(s)
	}
}

// Send ставит локальную дельту в очередь отправки. Не блокируется:
// при переполнении буфера дельта отбрасывается (re-push полного
// состояния после реконнекта доставит ее серверу), вызывающий
// получает ErrBufferFull.
func (t *Transport) Send(delta []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	select {
	case t.sendCh <- delta:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run держит соединение открытым до отмены контекста или Close.
// Каждый обрыв — Reconnecting и новая попытка с backoff.
func (t *Transport) Run(ctx context.Context) {
	defer t.setState(StateDisconnected)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // retry бессрочно, пока workspace открыт

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		t.mu.Lock()
		attempts := t.attempts
		t.attempts++
		t.mu.Unlock()

		if attempts == 0 {
			t.setState(StateConnecting)
		} else {
			t.setState(StateReconnecting)
		}

		conn, err := t.dial(ctx)
		if err != nil {
			wait := policy.NextBackOff()
			t.logger.Warn("Sync connection failed, retrying",
				"error", err, "retry_in", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			case <-t.done:
				return
			}
			continue
		}

		policy.Reset()
		t.setState(StateSynced)
		t.logger.Info("Sync transport connected", "url", t.cfg.URL)

		// Запрашиваем пропущенное с последнего checkpoint, а не
		// предполагаем, что ничего не было
		if err := t.requestResync(conn); err != nil {
			t.logger.Warn("Resync request failed", "error", err)
			_ = conn.Close()
			continue
		}

		// Resync закрывает только входящее направление. Исходящие
		// дельты, отброшенные Send за время обрыва, доносим полным
		// состоянием документа: merge на получателях идемпотентен
		if err := t.pushLocalState(conn); err != nil {
			t.logger.Warn("Local state push failed", "error", err)
			_ = conn.Close()
			continue
		}

		t.serve(ctx, conn)
	}
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if t.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, t.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", t.cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", t.cfg.URL, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	return conn, nil
}

func (t *Transport) requestResync(conn *websocket.Conn) error {
	msg := api.WSMessage{
		Type:  api.WSTypeResyncRequest,
		Since: t.sink.Checkpoint(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// pushLocalState пересылает полное состояние документа одной дельтой.
// Вызывается до запуска writer-горутины: соединением владеет Run.
func (t *Transport) pushLocalState(conn *websocket.Conn) error {
	payload, err := t.sink.ExportState()
	if err != nil {
		return fmt.Errorf("export state: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}

	msg := api.WSMessage{Type: api.WSTypeDelta, Payload: payload}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// serve обслуживает одно соединение: writer-горутина сливает очередь
// отправки (единственный writer — причинный порядок дельт участника),
// reader вливает входящие. Возврат — соединение мертво.
func (t *Transport) serve(ctx context.Context, conn *websocket.Conn) {
	connDone := make(chan struct{})
	var once sync.Once
	closeConn := func() {
		once.Do(func() {
			close(connDone)
			_ = conn.Close()
		})
	}
	defer closeConn()

	// Writer
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-connDone:
				return
			case <-ctx.Done():
				closeConn()
				return
			case <-t.done:
				closeConn()
				return
			case payload := <-t.sendCh:
				msg := api.WSMessage{Type: api.WSTypeDelta, Payload: payload}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					t.logger.Warn("Sync write failed", "error", err)
					closeConn()
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					closeConn()
					return
				}
			}
		}
	}()

	// Reader
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
			case <-ctx.Done():
			default:
				t.logger.Warn("Sync connection lost", "error", err)
			}
			return
		}

		var msg api.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Некорректный кадр не роняет merge-цикл
			t.logger.Warn("Dropping malformed sync message", "error", err)
			continue
		}

		switch msg.Type {
		case api.WSTypeDelta, api.WSTypeResyncResponse:
			t.sink.ApplyRemoteDelta(msg.Payload, msg.Checkpoint)
		default:
			t.logger.Warn("Unknown sync message type", "type", msg.Type)
		}
	}
}

// Close разрывает соединение, не дожидаясь подтверждения in-flight
// отправок. Идемпотентен.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	close(t.done)
	if conn != nil {
		_ = conn.Close()
	}
}
