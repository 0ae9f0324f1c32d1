package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/boardkeeper/internal/client/api"
	clientstorage "github.com/iudanet/boardkeeper/internal/client/storage"
	"github.com/iudanet/boardkeeper/internal/crdt"
	"github.com/iudanet/boardkeeper/internal/geometry"
	"github.com/iudanet/boardkeeper/internal/history"
	"github.com/iudanet/boardkeeper/internal/models"
	"github.com/iudanet/boardkeeper/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// okBridge bridge-мок, принимающий любые записи.
func okBridge() *clientapi.ClientAPIMock {
	return &clientapi.ClientAPIMock{
		GetSnapshotFunc: func(ctx context.Context, workspaceID string) (*api.SnapshotResponse, error) {
			return &api.SnapshotResponse{}, nil
		},
		UpsertNodeFunc: func(ctx context.Context, workspaceID string, node *api.Node) error {
			return nil
		},
		DeleteNodeFunc: func(ctx context.Context, workspaceID, nodeID string) error {
			return nil
		},
		UpsertConnectionFunc: func(ctx context.Context, workspaceID string, conn *api.Connection) error {
			return nil
		},
		DeleteConnectionFunc: func(ctx context.Context, workspaceID, connID string) error {
			return nil
		},
	}
}

// newTestStore store с часовым debounce: flush только явный.
func newTestStore(t *testing.T, bridge clientapi.ClientAPI) *Store {
	t.Helper()
	return NewStore(Config{WorkspaceID: "test-ws", Debounce: time.Hour}, bridge, nil, testLogger())
}

func TestStore_CreateNode(t *testing.T) {
	s := newTestStore(t, okBridge())

	id, err := s.CreateNode(models.Point{X: 10, Y: 20}, models.Size{Width: 100, Height: 50}, json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap := s.Snapshot()
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, models.Point{X: 10, Y: 20}, snap.Nodes[id].Position)
	assert.Equal(t, models.NodeTypeText, snap.Nodes[id].Metadata.NodeType)
}

func TestStore_Flush_WritesDirtyEntities(t *testing.T) {
	bridge := okBridge()
	s := newTestStore(t, bridge)

	id, err := s.CreateNode(models.Point{X: 1, Y: 1}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Flush(context.Background()))

	calls := bridge.UpsertNodeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "test-ws", calls[0].WorkspaceID)
	assert.Equal(t, id, calls[0].Node.ID)

	// Повторный flush без новых правок ничего не пишет
	require.NoError(t, s.Flush(context.Background()))
	assert.Len(t, bridge.UpsertNodeCalls(), 1)
}

func TestStore_Flush_CoalescesRapidEdits(t *testing.T) {
	bridge := okBridge()
	s := newTestStore(t, bridge)

	id, err := s.CreateNode(models.Point{X: 0, Y: 0}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)

	// Серия быстрых правок до flush
	for i := 1; i <= 5; i++ {
		p := models.Point{X: float64(i * 100), Y: 0}
		s.UpdateNode(id, NodeUpdate{Position: &p})
	}

	require.NoError(t, s.Flush(context.Background()))

	// Одна запись, и writer перечитал финальное состояние, а не
	// значение в момент первой пометки dirty
	calls := bridge.UpsertNodeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 500.0, calls[0].Node.Position.X)
}

func TestStore_Flush_DeletedEntity(t *testing.T) {
	bridge := okBridge()
	s := newTestStore(t, bridge)

	id, err := s.CreateNode(models.Point{}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Flush(context.Background()))

	s.DeleteNode(id)
	require.NoError(t, s.Flush(context.Background()))

	calls := bridge.DeleteNodeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, id, calls[0].NodeID)
}

func TestStore_Flush_CreateThenDeleteBeforeFlush(t *testing.T) {
	bridge := okBridge()
	s := newTestStore(t, bridge)

	id, err := s.CreateNode(models.Point{}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)
	s.DeleteNode(id)

	require.NoError(t, s.Flush(context.Background()))

	// Узел умер до первой записи: идет только delete
	assert.Empty(t, bridge.UpsertNodeCalls())
	assert.Len(t, bridge.DeleteNodeCalls(), 1)
}

func TestStore_Flush_RetainsFailedWritesForNextFlush(t *testing.T) {
	bridgeDown := errors.New("bridge unavailable")
	failing := true

	bridge := okBridge()
	bridge.UpsertNodeFunc = func(ctx context.Context, workspaceID string, node *api.Node) error {
		if failing {
			return backoff.Permanent(bridgeDown)
		}
		return nil
	}

	s := newTestStore(t, bridge)
	id, err := s.CreateNode(models.Point{X: 1, Y: 1}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)

	err = s.Flush(context.Background())
	require.ErrorIs(t, err, bridgeDown)

	// Бридж восстановился: повторный flush пишет узел заново, а не
	// находит пустой dirty-набор
	failing = false
	p := models.Point{X: 42, Y: 7}
	s.UpdateNode(id, NodeUpdate{Position: &p})
	require.NoError(t, s.Flush(context.Background()))

	calls := bridge.UpsertNodeCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, id, calls[1].Node.ID)
	// Записано актуальное состояние на момент повторного flush
	assert.Equal(t, 42.0, calls[1].Node.Position.X)
}

func TestStore_Flush_RetainsFailedDelete(t *testing.T) {
	deleteDown := errors.New("bridge unavailable")
	failing := true

	bridge := okBridge()
	bridge.DeleteNodeFunc = func(ctx context.Context, workspaceID, nodeID string) error {
		if failing {
			return backoff.Permanent(deleteDown)
		}
		return nil
	}

	s := newTestStore(t, bridge)
	id, err := s.CreateNode(models.Point{}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Flush(context.Background()))

	s.DeleteNode(id)
	require.ErrorIs(t, s.Flush(context.Background()), deleteDown)

	failing = false
	require.NoError(t, s.Flush(context.Background()))

	calls := bridge.DeleteNodeCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, id, calls[1].NodeID)
}

func TestStore_UndoRedo_Move(t *testing.T) {
	s := newTestStore(t, okBridge())

	id, err := s.CreateNode(models.Point{X: 100, Y: 100}, models.Size{Width: 50, Height: 50}, nil)
	require.NoError(t, err)

	p := models.Point{X: 300, Y: 300}
	s.UpdateNode(id, NodeUpdate{Position: &p})

	require.True(t, s.CanUndo())
	require.True(t, s.Undo())
	assert.Equal(t, models.Point{X: 100, Y: 100}, s.Snapshot().Nodes[id].Position)

	require.True(t, s.CanRedo())
	require.True(t, s.Redo())
	assert.Equal(t, models.Point{X: 300, Y: 300}, s.Snapshot().Nodes[id].Position)
}

func TestStore_Undo_CascadeDeleteRestoresConnections(t *testing.T) {
	s := newTestStore(t, okBridge())

	a, err := s.CreateNode(models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50}, nil)
	require.NoError(t, err)
	b, err := s.CreateNode(models.Point{X: 200, Y: 0}, models.Size{Width: 50, Height: 50}, nil)
	require.NoError(t, err)

	connID, err := s.CreateConnection(a, b,
		models.Anchor{Side: models.AnchorRight, Offset: 0.5},
		models.Anchor{Side: models.AnchorLeft, Offset: 0.5})
	require.NoError(t, err)

	s.DeleteNode(a)
	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 1)
	assert.Empty(t, snap.Connections)

	// Одна операция undo возвращает и узел, и каскадно удаленное соединение
	require.True(t, s.Undo())
	snap = s.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	require.Contains(t, snap.Connections, connID)
	assert.Equal(t, a, snap.Connections[connID].SourceNodeID)
}

func TestStore_Undo_TransientsNotRecorded(t *testing.T) {
	s := newTestStore(t, okBridge())

	id, err := s.CreateNode(models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50}, nil)
	require.NoError(t, err)

	// Промежуточные позиции drag не попадают в историю
	for i := 1; i <= 10; i++ {
		p := models.Point{X: float64(i * 10), Y: 0}
		s.ApplyTransient(id, NodeUpdate{Position: &p})
	}

	// Завершенный жест — одна транзакция
	s.CommitTransaction(&history.Entry{
		Label: "drag node",
		Undo:  []history.Op{{Kind: history.OpSetNodePosition, NodeID: id, Position: models.Point{X: 0, Y: 0}}},
		Redo:  []history.Op{{Kind: history.OpSetNodePosition, NodeID: id, Position: models.Point{X: 100, Y: 0}}},
	})

	require.True(t, s.Undo())
	assert.Equal(t, models.Point{X: 0, Y: 0}, s.Snapshot().Nodes[id].Position)

	// Следующий undo откатывает создание, а не промежуточный кадр drag
	require.True(t, s.Undo())
	assert.Empty(t, s.Snapshot().Nodes)
}

func TestStore_MoveNodes_SingleHistoryEntry(t *testing.T) {
	s := newTestStore(t, okBridge())

	a, err := s.CreateNode(models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50}, nil)
	require.NoError(t, err)
	b, err := s.CreateNode(models.Point{X: 200, Y: 100}, models.Size{Width: 50, Height: 50}, nil)
	require.NoError(t, err)

	s.MoveNodes([]geometry.Move{
		{ID: a, Position: models.Point{X: 0, Y: 500}},
		{ID: b, Position: models.Point{X: 200, Y: 500}},
	}, "align nodes")

	snap := s.Snapshot()
	assert.Equal(t, 500.0, snap.Nodes[a].Position.Y)
	assert.Equal(t, 500.0, snap.Nodes[b].Position.Y)

	// Группа откатывается целиком одной операцией undo
	require.True(t, s.Undo())
	snap = s.Snapshot()
	assert.Equal(t, 0.0, snap.Nodes[a].Position.Y)
	assert.Equal(t, 100.0, snap.Nodes[b].Position.Y)
}

func TestStore_ApplyRemoteDelta(t *testing.T) {
	s := newTestStore(t, okBridge())

	// Дельта от другого участника
	remote := crdt.NewDocument(crdt.NewLamportClockWithActorID("remote-actor"))
	delta, err := remote.CreateNode(&models.Node{
		ID:       "remote-node",
		Position: models.Point{X: 5, Y: 5},
		Size:     models.Size{Width: 10, Height: 10},
	})
	require.NoError(t, err)
	payload, err := crdt.EncodeDelta(delta)
	require.NoError(t, err)

	s.ApplyRemoteDelta(payload, 7)

	snap := s.Snapshot()
	require.Contains(t, snap.Nodes, "remote-node")
	assert.Equal(t, int64(7), s.Checkpoint())

	// Удаленная правка не попадает в локальную историю
	assert.False(t, s.CanUndo())
}

func TestStore_ApplyRemoteDelta_MalformedDropped(t *testing.T) {
	s := newTestStore(t, okBridge())

	s.ApplyRemoteDelta([]byte(`{garbage`), 3)

	assert.Empty(t, s.Snapshot().Nodes)
	// Checkpoint испорченной дельты не учитывается
	assert.Equal(t, int64(0), s.Checkpoint())
}

func TestStore_ApplyRemoteDelta_CheckpointMonotonic(t *testing.T) {
	s := newTestStore(t, okBridge())

	remote := crdt.NewDocument(crdt.NewLamportClockWithActorID("remote-actor"))
	d1, err := remote.CreateNode(&models.Node{ID: "n1", Size: models.Size{Width: 1, Height: 1}})
	require.NoError(t, err)
	p1, _ := crdt.EncodeDelta(d1)

	s.ApplyRemoteDelta(p1, 10)
	// Повторная доставка со старым checkpoint не откатывает счетчик
	s.ApplyRemoteDelta(p1, 4)

	assert.Equal(t, int64(10), s.Checkpoint())
}

func TestStore_ExportState_DeliversUnsentEdits(t *testing.T) {
	// Сценарий обрыва: дельта не ушла (broadcaster отклонил отправку),
	// но полное состояние после реконнекта доносит правку
	source := newTestStore(t, okBridge())
	source.SetBroadcaster(&BroadcasterMock{
		SendFunc: func(delta []byte) error { return errors.New("send buffer full") },
	})

	id, err := source.CreateNode(models.Point{X: 3, Y: 4}, models.Size{Width: 20, Height: 20}, nil)
	require.NoError(t, err)
	deleted, err := source.CreateNode(models.Point{}, models.Size{Width: 5, Height: 5}, nil)
	require.NoError(t, err)
	source.DeleteNode(deleted)

	payload, err := source.ExportState()
	require.NoError(t, err)
	require.NotNil(t, payload)

	other := newTestStore(t, okBridge())
	other.ApplyRemoteDelta(payload, 1)

	snap := other.Snapshot()
	require.Contains(t, snap.Nodes, id)
	assert.Equal(t, models.Point{X: 3, Y: 4}, snap.Nodes[id].Position)
	// Tombstone тоже реплицируется
	assert.NotContains(t, snap.Nodes, deleted)
}

func TestStore_ExportState_EmptyDocument(t *testing.T) {
	s := newTestStore(t, okBridge())

	payload, err := s.ExportState()
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestStore_Broadcaster_ReceivesLocalDeltas(t *testing.T) {
	s := newTestStore(t, okBridge())

	b := &BroadcasterMock{SendFunc: func(delta []byte) error { return nil }}
	s.SetBroadcaster(b)

	id, err := s.CreateNode(models.Point{X: 1, Y: 2}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)

	calls := b.SendCalls()
	require.Len(t, calls, 1)

	delta, err := crdt.DecodeDelta(calls[0].Delta)
	require.NoError(t, err)
	require.Len(t, delta.Ops, 1)
	assert.Equal(t, id, delta.Ops[0].ID)
}

func TestStore_Broadcaster_ErrorDoesNotBlockEditing(t *testing.T) {
	s := newTestStore(t, okBridge())

	s.SetBroadcaster(&BroadcasterMock{
		SendFunc: func(delta []byte) error { return errors.New("transport down") },
	})

	id, err := s.CreateNode(models.Point{}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)
	assert.Contains(t, s.Snapshot().Nodes, id)
}

func TestStore_Hydrate_FromBridge(t *testing.T) {
	bridge := okBridge()
	bridge.GetSnapshotFunc = func(ctx context.Context, workspaceID string) (*api.SnapshotResponse, error) {
		return &api.SnapshotResponse{
			Nodes: []api.Node{
				{ID: "n1", Position: api.Point{X: 9, Y: 9}, Size: api.Size{Width: 10, Height: 10}},
			},
			Checkpoint: 42,
		}, nil
	}

	s := newTestStore(t, bridge)
	require.NoError(t, s.Hydrate(context.Background()))

	assert.Contains(t, s.Snapshot().Nodes, "n1")
	assert.Equal(t, int64(42), s.Checkpoint())

	// История пуста после гидратации
	assert.False(t, s.CanUndo())
}

func TestStore_Hydrate_FallsBackToCache(t *testing.T) {
	bridge := okBridge()
	bridge.GetSnapshotFunc = func(ctx context.Context, workspaceID string) (*api.SnapshotResponse, error) {
		return nil, errors.New("bridge unreachable")
	}

	cache := &clientstorage.SnapshotCacheMock{
		GetSnapshotFunc: func(ctx context.Context, workspaceID string) (*models.Snapshot, error) {
			return &models.Snapshot{
				Nodes: map[string]*models.Node{
					"cached": {ID: "cached", Size: models.Size{Width: 10, Height: 10}},
				},
				Connections: map[string]*models.Connection{},
			}, nil
		},
		GetCheckpointFunc: func(ctx context.Context, workspaceID string) (int64, error) {
			return 17, nil
		},
		SaveSnapshotFunc: func(ctx context.Context, workspaceID string, snap *models.Snapshot) error {
			return nil
		},
		SaveCheckpointFunc: func(ctx context.Context, workspaceID string, checkpoint int64) error {
			return nil
		},
	}

	s := NewStore(Config{WorkspaceID: "test-ws", Debounce: time.Hour}, bridge, cache, testLogger())
	require.NoError(t, s.Hydrate(context.Background()))

	assert.Contains(t, s.Snapshot().Nodes, "cached")
	assert.Equal(t, int64(17), s.Checkpoint())
}

func TestStore_Hydrate_NoBridgeNoCache(t *testing.T) {
	bridge := okBridge()
	bridge.GetSnapshotFunc = func(ctx context.Context, workspaceID string) (*api.SnapshotResponse, error) {
		return nil, errors.New("bridge unreachable")
	}

	s := newTestStore(t, bridge)
	require.Error(t, s.Hydrate(context.Background()))
}

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore(t, okBridge())

	var got []*models.Snapshot
	unsubscribe := s.Subscribe(func(snap *models.Snapshot) {
		got = append(got, snap)
	})

	_, err := s.CreateNode(models.Point{}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Nodes, 1)

	unsubscribe()
	_, err = s.CreateNode(models.Point{}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_ImportEntities_UndoRemovesWholeImport(t *testing.T) {
	s := newTestStore(t, okBridge())

	nodes := []*models.Node{
		{ID: "imp-1", Size: models.Size{Width: 10, Height: 10}},
		{ID: "imp-2", Position: models.Point{X: 100, Y: 0}, Size: models.Size{Width: 10, Height: 10}},
	}
	conns := []*models.Connection{
		{
			ID:           "imp-c",
			SourceNodeID: "imp-1",
			TargetNodeID: "imp-2",
			SourceAnchor: models.Anchor{Side: models.AnchorRight, Offset: 0.5},
			TargetAnchor: models.Anchor{Side: models.AnchorLeft, Offset: 0.5},
		},
	}

	require.NoError(t, s.ImportEntities(nodes, conns))
	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	assert.Len(t, snap.Connections, 1)

	require.True(t, s.Undo())
	snap = s.Snapshot()
	assert.Empty(t, snap.Nodes)
	assert.Empty(t, snap.Connections)
}

func TestStore_SelectionAndViewport(t *testing.T) {
	s := newTestStore(t, okBridge())

	s.SetSelection([]string{"a", "b"})
	assert.ElementsMatch(t, []string{"a", "b"}, s.Selection())

	s.SetViewport(models.Viewport{OffsetX: 100, OffsetY: 200, Scale: 2})
	v := s.Viewport()
	assert.Equal(t, 100.0, v.OffsetX)
	assert.Equal(t, 2.0, v.Scale)
}

func TestStore_Close_FlushesAndClearsHistory(t *testing.T) {
	bridge := okBridge()
	s := newTestStore(t, bridge)

	_, err := s.CreateNode(models.Point{}, models.Size{Width: 10, Height: 10}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, bridge.UpsertNodeCalls(), 1)
	assert.False(t, s.CanUndo())

	// Повторное закрытие безопасно
	require.NoError(t, s.Close(context.Background()))
}
