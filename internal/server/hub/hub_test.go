package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardkeeper/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Тесты покрывают локальный режим (без Redis): раздача внутри инстанса.

func TestHub_RegisterUnregister(t *testing.T) {
	h := New(nil, testLogger())
	ctx := context.Background()

	s1 := h.Register(ctx, "ws-1", "actor-1")
	s2 := h.Register(ctx, "ws-1", "actor-2")
	assert.Equal(t, 2, h.Sessions("ws-1"))
	assert.Equal(t, 0, h.Sessions("ws-other"))

	h.Unregister("ws-1", s1)
	assert.Equal(t, 1, h.Sessions("ws-1"))

	// Канал закрытой сессии закрыт
	_, open := <-s1.Receive()
	assert.False(t, open)

	h.Unregister("ws-1", s2)
	assert.Equal(t, 0, h.Sessions("ws-1"))
}

func TestHub_Broadcast_ExcludesOrigin(t *testing.T) {
	h := New(nil, testLogger())
	ctx := context.Background()

	origin := h.Register(ctx, "ws-1", "actor-origin")
	peer := h.Register(ctx, "ws-1", "actor-peer")

	msg := api.WSMessage{Type: api.WSTypeDelta, Payload: []byte(`{"version":1,"ops":[]}`), Checkpoint: 3}
	require.NoError(t, h.Broadcast(ctx, "ws-1", "actor-origin", msg))

	// Участник получает кадр
	select {
	case data := <-peer.Receive():
		var got api.WSMessage
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, api.WSTypeDelta, got.Type)
		assert.Equal(t, int64(3), got.Checkpoint)
	default:
		t.Fatal("peer should have received the frame")
	}

	// Автору собственная дельта не возвращается
	select {
	case <-origin.Receive():
		t.Fatal("origin must not receive its own delta")
	default:
	}
}

func TestHub_Broadcast_WorkspaceIsolation(t *testing.T) {
	h := New(nil, testLogger())
	ctx := context.Background()

	other := h.Register(ctx, "ws-2", "actor-1")

	msg := api.WSMessage{Type: api.WSTypeDelta, Payload: []byte(`{}`)}
	require.NoError(t, h.Broadcast(ctx, "ws-1", "actor-x", msg))

	select {
	case <-other.Receive():
		t.Fatal("session in another workspace must not receive the frame")
	default:
	}
}

func TestHub_Broadcast_SlowConsumerDropsFrame(t *testing.T) {
	h := New(nil, testLogger())
	ctx := context.Background()

	slow := h.Register(ctx, "ws-1", "actor-slow")

	msg := api.WSMessage{Type: api.WSTypeDelta, Payload: []byte(`{}`)}
	// Никто не читает канал: переполняем буфер и еще немного
	for i := 0; i < sessionBuffer+10; i++ {
		require.NoError(t, h.Broadcast(ctx, "ws-1", "actor-other", msg))
	}

	// Broadcast не блокируется; буфер полон ровно на емкость
	assert.Equal(t, sessionBuffer, len(slow.send))
}

func TestSession_Deliver(t *testing.T) {
	h := New(nil, testLogger())
	s := h.Register(context.Background(), "ws-1", "actor-1")

	assert.True(t, s.Deliver([]byte("frame")))

	got := <-s.Receive()
	assert.Equal(t, []byte("frame"), got)

	// Переполненная очередь — false, без блокировки
	for i := 0; i < sessionBuffer; i++ {
		require.True(t, s.Deliver([]byte("x")))
	}
	assert.False(t, s.Deliver([]byte("overflow")))
}
