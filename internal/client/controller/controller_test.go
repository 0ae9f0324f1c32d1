package controller

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/boardkeeper/internal/client/api"
	"github.com/iudanet/boardkeeper/internal/geometry"
	"github.com/iudanet/boardkeeper/internal/models"
	"github.com/iudanet/boardkeeper/internal/workspace"
	"github.com/iudanet/boardkeeper/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t *testing.T) *workspace.Store {
	t.Helper()

	bridge := &clientapi.ClientAPIMock{
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
	return workspace.NewStore(
		workspace.Config{WorkspaceID: "test-ws", Debounce: time.Hour},
		bridge, nil, testLogger())
}

func newTestController(t *testing.T, cfg Config) (*Controller, *workspace.Store) {
	t.Helper()
	s := newTestStore(t)
	return New(s, cfg, testLogger()), s
}

func addNode(t *testing.T, s *workspace.Store, p models.Point, size models.Size) string {
	t.Helper()
	id, err := s.CreateNode(p, size, nil)
	require.NoError(t, err)
	return id
}

func TestController_DragCommit(t *testing.T) {
	c, s := newTestController(t, Config{})
	id := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 100, Height: 50})

	c.PointerDown(models.Point{X: 10, Y: 10}, Modifiers{})
	assert.Equal(t, ModeDrag, c.Mode())
	assert.Equal(t, []string{id}, s.Selection())

	c.PointerMove(models.Point{X: 60, Y: 30})
	c.PointerUp(context.Background())
	assert.Equal(t, ModeIdle, c.Mode())

	assert.Equal(t, models.Point{X: 50, Y: 20}, s.Snapshot().Nodes[id].Position)

	// Жест зафиксирован одной undo-транзакцией: первый Undo возвращает
	// позицию, узел остается
	require.True(t, s.Undo())
	require.NotNil(t, s.Snapshot().Nodes[id])
	assert.Equal(t, models.Point{X: 0, Y: 0}, s.Snapshot().Nodes[id].Position)
}

func TestController_DragGroup(t *testing.T) {
	c, s := newTestController(t, Config{})
	id1 := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50})
	id2 := addNode(t, s, models.Point{X: 200, Y: 0}, models.Size{Width: 50, Height: 50})

	s.SetSelection([]string{id1, id2})

	c.PointerDown(models.Point{X: 10, Y: 10}, Modifiers{})
	c.PointerMove(models.Point{X: 10, Y: 110})
	c.PointerUp(context.Background())

	snap := s.Snapshot()
	assert.Equal(t, models.Point{X: 0, Y: 100}, snap.Nodes[id1].Position)
	assert.Equal(t, models.Point{X: 200, Y: 100}, snap.Nodes[id2].Position)
}

func TestController_LockedNodeNotDraggable(t *testing.T) {
	c, s := newTestController(t, Config{})
	id := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 100, Height: 50})
	c.ToggleLock(id)

	c.PointerDown(models.Point{X: 10, Y: 10}, Modifiers{})

	// Выделить можно, двигать нельзя
	assert.Equal(t, []string{id}, s.Selection())
	assert.Equal(t, ModeIdle, c.Mode())

	c.PointerMove(models.Point{X: 500, Y: 500})
	c.PointerUp(context.Background())
	assert.Equal(t, models.Point{X: 0, Y: 0}, s.Snapshot().Nodes[id].Position)
}

func TestController_ResizeCommit(t *testing.T) {
	c, s := newTestController(t, Config{})
	id := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 100, Height: 50})

	// Захват правого нижнего угла
	c.PointerDown(models.Point{X: 100, Y: 50}, Modifiers{})
	assert.Equal(t, ModeResize, c.Mode())

	c.PointerMove(models.Point{X: 140, Y: 80})
	c.PointerUp(context.Background())

	assert.Equal(t, models.Size{Width: 140, Height: 80}, s.Snapshot().Nodes[id].Size)

	require.True(t, s.Undo())
	assert.Equal(t, models.Size{Width: 100, Height: 50}, s.Snapshot().Nodes[id].Size)
}

func TestController_ResizeClampsToMinimum(t *testing.T) {
	c, s := newTestController(t, Config{})
	id := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 100, Height: 50})

	c.PointerDown(models.Point{X: 100, Y: 50}, Modifiers{})
	c.PointerMove(models.Point{X: -200, Y: -200})
	c.PointerUp(context.Background())

	assert.Equal(t, models.Size{Width: 20, Height: 20}, s.Snapshot().Nodes[id].Size)
}

func TestController_MarqueeSelection(t *testing.T) {
	c, s := newTestController(t, Config{})
	id1 := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 100, Height: 50})
	addNode(t, s, models.Point{X: 500, Y: 500}, models.Size{Width: 100, Height: 50})

	c.PointerDown(models.Point{X: -10, Y: -10}, Modifiers{})
	assert.Equal(t, ModeMarquee, c.Mode())

	c.PointerMove(models.Point{X: 200, Y: 200})
	c.PointerUp(context.Background())

	assert.Equal(t, []string{id1}, s.Selection())
}

func TestController_ShiftClickExtendsSelection(t *testing.T) {
	c, s := newTestController(t, Config{})
	id1 := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50})
	id2 := addNode(t, s, models.Point{X: 200, Y: 0}, models.Size{Width: 50, Height: 50})

	c.PointerDown(models.Point{X: 10, Y: 10}, Modifiers{})
	c.PointerUp(context.Background())
	c.PointerDown(models.Point{X: 210, Y: 10}, Modifiers{Shift: true})
	c.PointerUp(context.Background())

	assert.ElementsMatch(t, []string{id1, id2}, s.Selection())
}

func TestController_LinkMode(t *testing.T) {
	c, s := newTestController(t, Config{})
	id1 := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50})
	id2 := addNode(t, s, models.Point{X: 200, Y: 0}, models.Size{Width: 50, Height: 50})

	c.BeginLink()
	assert.Equal(t, ModeLink, c.Mode())

	c.PointerDown(models.Point{X: 10, Y: 10}, Modifiers{})
	assert.Equal(t, ModeLink, c.Mode())
	c.PointerDown(models.Point{X: 210, Y: 10}, Modifiers{})
	assert.Equal(t, ModeIdle, c.Mode())

	snap := s.Snapshot()
	require.Len(t, snap.Connections, 1)
	for _, conn := range snap.Connections {
		assert.Equal(t, id1, conn.SourceNodeID)
		assert.Equal(t, id2, conn.TargetNodeID)
	}
}

func TestController_LinkMode_ClickOnEmptyCancels(t *testing.T) {
	c, s := newTestController(t, Config{})
	addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50})

	c.BeginLink()
	c.PointerDown(models.Point{X: 900, Y: 900}, Modifiers{})

	assert.Equal(t, ModeIdle, c.Mode())
	assert.Empty(t, s.Snapshot().Connections)
}

func TestController_HandleKey_UndoRedo(t *testing.T) {
	c, s := newTestController(t, Config{})
	id := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50})

	assert.True(t, c.HandleKey(Chord{Key: "z", Ctrl: true}))
	assert.Nil(t, s.Snapshot().Nodes[id])

	assert.True(t, c.HandleKey(Chord{Key: "z", Ctrl: true, Shift: true}))
	assert.NotNil(t, s.Snapshot().Nodes[id])

	// Redo-стек пуст: guard блокирует команду
	assert.False(t, c.HandleKey(Chord{Key: "y", Ctrl: true}))
}

func TestController_HandleKey_TextEditingDisablesCommands(t *testing.T) {
	c, s := newTestController(t, Config{})
	id := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50})
	s.SetSelection([]string{id})

	c.SetTextEditing(true)
	assert.False(t, c.HandleKey(Chord{Key: "delete"}))
	assert.NotNil(t, s.Snapshot().Nodes[id])

	c.SetTextEditing(false)
	assert.True(t, c.HandleKey(Chord{Key: "delete"}))
	assert.Nil(t, s.Snapshot().Nodes[id])
}

func TestController_HandleKey_GuardBlocksWithoutSelection(t *testing.T) {
	c, _ := newTestController(t, Config{})

	assert.False(t, c.HandleKey(Chord{Key: "delete"}))
	assert.False(t, c.HandleKey(Chord{Key: "h", Alt: true}))
}

func TestController_HandleKey_UnknownChord(t *testing.T) {
	c, _ := newTestController(t, Config{})

	assert.False(t, c.HandleKey(Chord{Key: "q", Ctrl: true, Alt: true}))
}

func TestController_HandleKey_SelectAllAndEscape(t *testing.T) {
	c, s := newTestController(t, Config{})
	addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50})
	addNode(t, s, models.Point{X: 100, Y: 0}, models.Size{Width: 50, Height: 50})

	assert.True(t, c.HandleKey(Chord{Key: "a", Ctrl: true}))
	assert.Len(t, s.Selection(), 2)

	assert.True(t, c.HandleKey(Chord{Key: "escape"}))
	assert.Empty(t, s.Selection())
}

func TestController_Bind(t *testing.T) {
	c, _ := newTestController(t, Config{})

	ran := false
	chord := Chord{Key: "g", Ctrl: true}
	c.Bind(chord, &Command{Name: "custom", Run: func(*Controller) { ran = true }})

	assert.True(t, c.HandleKey(chord))
	assert.True(t, ran)

	// nil снимает биндинг
	c.Bind(chord, nil)
	assert.False(t, c.HandleKey(chord))
}

func TestController_AlignSelection(t *testing.T) {
	c, s := newTestController(t, Config{})
	id1 := addNode(t, s, models.Point{X: 100, Y: 0}, models.Size{Width: 50, Height: 50})
	id2 := addNode(t, s, models.Point{X: 300, Y: 100}, models.Size{Width: 50, Height: 50})
	id3 := addNode(t, s, models.Point{X: 700, Y: 200}, models.Size{Width: 50, Height: 50})
	s.SetSelection([]string{id1, id2, id3})

	result := c.AlignSelection(geometry.AlignLeft)
	assert.Equal(t, 3, result.Moved)

	snap := s.Snapshot()
	assert.Equal(t, 100.0, snap.Nodes[id1].Position.X)
	assert.Equal(t, 100.0, snap.Nodes[id2].Position.X)
	assert.Equal(t, 100.0, snap.Nodes[id3].Position.X)
}

func TestController_AlignSelection_InsufficientIsNoop(t *testing.T) {
	c, s := newTestController(t, Config{})
	id := addNode(t, s, models.Point{X: 100, Y: 0}, models.Size{Width: 50, Height: 50})
	s.SetSelection([]string{id})

	result := c.AlignSelection(geometry.AlignLeft)
	assert.Equal(t, 0, result.Moved)
	assert.Equal(t, 100.0, s.Snapshot().Nodes[id].Position.X)
}

func TestController_ToggleLock(t *testing.T) {
	c, s := newTestController(t, Config{})
	id := addNode(t, s, models.Point{}, models.Size{Width: 50, Height: 50})

	c.ToggleLock(id)
	assert.True(t, s.Snapshot().Nodes[id].Metadata.Locked)

	c.ToggleLock(id)
	assert.False(t, s.Snapshot().Nodes[id].Metadata.Locked)
}

func TestController_ExportImportRoundTrip(t *testing.T) {
	var exported []byte
	cfg := Config{
		ViewWidth:  800,
		ViewHeight: 600,
		ExportSink: func(data []byte) error {
			exported = data
			return nil
		},
	}
	cfg.ImportSource = func() ([]byte, error) { return exported, nil }

	c, s := newTestController(t, cfg)
	id1 := addNode(t, s, models.Point{X: 0, Y: 0}, models.Size{Width: 50, Height: 50})
	id2 := addNode(t, s, models.Point{X: 200, Y: 0}, models.Size{Width: 50, Height: 50})
	_, err := s.CreateConnection(id1, id2,
		models.Anchor{Side: models.AnchorRight, Offset: 0.5},
		models.Anchor{Side: models.AnchorLeft, Offset: 0.5})
	require.NoError(t, err)

	// Пустое выделение — экспорт всего workspace
	require.NoError(t, c.ExportSelection())
	require.NotEmpty(t, exported)

	require.NoError(t, c.ImportFile())

	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 4)
	assert.Len(t, snap.Connections, 2)

	// Вставленная группа выделена
	assert.Len(t, s.Selection(), 2)
	for _, sel := range s.Selection() {
		assert.NotContains(t, []string{id1, id2}, sel)
	}
}

func TestController_ExportWithoutSinkFails(t *testing.T) {
	c, _ := newTestController(t, Config{})

	assert.Error(t, c.ExportSelection())
	assert.Error(t, c.ImportFile())
}
