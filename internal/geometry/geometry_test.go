package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardkeeper/internal/models"
)

func entity(id string, x, y, w, h float64) Entity {
	return Entity{
		ID:       id,
		Position: models.Point{X: x, Y: y},
		Size:     models.Size{Width: w, Height: h},
	}
}

func movesByID(moves []Move) map[string]models.Point {
	out := make(map[string]models.Point, len(moves))
	for _, m := range moves {
		out[m.ID] = m.Position
	}
	return out
}

func TestBoundingBox(t *testing.T) {
	entities := []Entity{
		entity("a", 100, 50, 80, 40),
		entity("b", 300, 200, 120, 60),
		entity("c", 250, 10, 50, 50),
	}

	bounds, ok := BoundingBox(entities)
	require.True(t, ok)
	assert.Equal(t, 100.0, bounds.X)
	assert.Equal(t, 10.0, bounds.Y)
	assert.Equal(t, 320.0, bounds.Width)  // 300+120-100
	assert.Equal(t, 250.0, bounds.Height) // 200+60-10
}

func TestBoundingBox_Empty(t *testing.T) {
	_, ok := BoundingBox(nil)
	assert.False(t, ok)
}

func TestAlign_Left(t *testing.T) {
	entities := []Entity{
		entity("a", 100, 0, 50, 50),
		entity("b", 250, 100, 80, 50),
		entity("c", 400, 200, 60, 50),
	}

	res, err := Align(entities, AlignLeft)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Moved)
	assert.Equal(t, 0, res.Skipped)

	got := movesByID(res.Moves)
	// Все левые кромки совпадают с левой кромкой bounding box
	assert.Equal(t, 100.0, got["a"].X)
	assert.Equal(t, 100.0, got["b"].X)
	assert.Equal(t, 100.0, got["c"].X)
	// Ортогональная координата не тронута
	assert.Equal(t, 100.0, got["b"].Y)
}

func TestAlign_Right(t *testing.T) {
	entities := []Entity{
		entity("a", 100, 0, 50, 50),
		entity("b", 250, 100, 80, 50),
	}

	res, err := Align(entities, AlignRight)
	require.NoError(t, err)

	got := movesByID(res.Moves)
	// Правая кромка bounding box: 250+80 = 330
	assert.Equal(t, 280.0, got["a"].X)
	assert.Equal(t, 250.0, got["b"].X)
}

func TestAlign_CenterH(t *testing.T) {
	entities := []Entity{
		entity("a", 0, 0, 100, 50),
		entity("b", 200, 100, 50, 50),
	}

	res, err := Align(entities, AlignCenterH)
	require.NoError(t, err)

	got := movesByID(res.Moves)
	// Центр bounding box по X: (0..250)/2 = 125
	assert.Equal(t, 75.0, got["a"].X)  // 125-50
	assert.Equal(t, 100.0, got["b"].X) // 125-25
}

func TestAlign_TopBottomCenterV(t *testing.T) {
	entities := []Entity{
		entity("a", 0, 100, 50, 40),
		entity("b", 100, 300, 50, 80),
	}

	tests := []struct {
		mode  AlignMode
		wantA float64
		wantB float64
	}{
		{AlignTop, 100, 100},
		{AlignBottom, 340, 300},    // нижняя кромка 380
		{AlignCenterV, 220, 200},   // центр по Y: 240
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			res, err := Align(entities, tt.mode)
			require.NoError(t, err)
			got := movesByID(res.Moves)
			assert.Equal(t, tt.wantA, got["a"].Y)
			assert.Equal(t, tt.wantB, got["b"].Y)
		})
	}
}

func TestAlign_LockedExcluded(t *testing.T) {
	locked := entity("locked", 0, 0, 50, 50)
	locked.Locked = true

	entities := []Entity{
		locked,
		entity("a", 100, 0, 50, 50),
		entity("b", 300, 100, 50, 50),
	}

	res, err := Align(entities, AlignLeft)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Moved)
	assert.Equal(t, 1, res.Skipped)

	got := movesByID(res.Moves)
	// Заблокированная сущность не входит даже в опорный bounding box
	assert.Equal(t, 100.0, got["a"].X)
	assert.Equal(t, 100.0, got["b"].X)
	_, movedLocked := got["locked"]
	assert.False(t, movedLocked)
}

func TestAlign_InsufficientEntities(t *testing.T) {
	locked := entity("locked", 0, 0, 50, 50)
	locked.Locked = true

	res, err := Align([]Entity{locked, entity("a", 100, 0, 50, 50)}, AlignLeft)
	require.ErrorIs(t, err, ErrInsufficientEntities)
	assert.Empty(t, res.Moves)
	assert.Equal(t, 1, res.Skipped)
}

func TestAlign_UnknownMode(t *testing.T) {
	entities := []Entity{
		entity("a", 0, 0, 50, 50),
		entity("b", 100, 0, 50, 50),
	}

	_, err := Align(entities, AlignMode("diagonal"))
	require.Error(t, err)
}

func TestDistribute_Horizontal(t *testing.T) {
	// Якоря на 100 и 700, между ними две сущности по 50
	entities := []Entity{
		entity("first", 100, 0, 50, 50),
		entity("mid1", 180, 10, 50, 50),
		entity("mid2", 620, 20, 50, 50),
		entity("last", 700, 30, 50, 50),
	}

	res, err := Distribute(entities, AxisHorizontal)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Moved)

	got := movesByID(res.Moves)
	// Пространство 150..700 = 550, внутренние 100, зазор (550-100)/3 = 150
	assert.Equal(t, 300.0, got["mid1"].X)
	assert.Equal(t, 500.0, got["mid2"].X)
	// Ортогональная координата сохранена
	assert.Equal(t, 10.0, got["mid1"].Y)

	// Якоря не двигаются
	_, movedFirst := got["first"]
	_, movedLast := got["last"]
	assert.False(t, movedFirst)
	assert.False(t, movedLast)
}

func TestDistribute_Vertical(t *testing.T) {
	entities := []Entity{
		entity("top", 0, 0, 50, 100),
		entity("mid", 10, 500, 50, 100),
		entity("bottom", 20, 900, 50, 100),
	}

	res, err := Distribute(entities, AxisVertical)
	require.NoError(t, err)
	require.Len(t, res.Moves, 1)

	// Пространство 100..900 = 800, внутренний 100, зазор (800-100)/2 = 350
	assert.Equal(t, "mid", res.Moves[0].ID)
	assert.Equal(t, 450.0, res.Moves[0].Position.Y)
	assert.Equal(t, 10.0, res.Moves[0].Position.X)
}

func TestDistribute_UnevenSizes(t *testing.T) {
	// Равные зазоры кромка-к-кромке, а не равный шаг позиций
	entities := []Entity{
		entity("first", 0, 0, 100, 50),
		entity("wide", 200, 0, 300, 50),
		entity("last", 1000, 0, 100, 50),
	}

	res, err := Distribute(entities, AxisHorizontal)
	require.NoError(t, err)
	require.Len(t, res.Moves, 1)

	// Пространство 100..1000 = 900, внутренний 300, зазор (900-300)/2 = 300
	assert.Equal(t, 400.0, res.Moves[0].Position.X)
}

func TestDistribute_InsufficientEntities(t *testing.T) {
	res, err := Distribute([]Entity{
		entity("a", 0, 0, 50, 50),
		entity("b", 100, 0, 50, 50),
	}, AxisHorizontal)
	require.ErrorIs(t, err, ErrInsufficientEntities)
	assert.Empty(t, res.Moves)
}

func TestDistribute_LockedExcluded(t *testing.T) {
	locked := entity("locked", 400, 0, 50, 50)
	locked.Locked = true

	entities := []Entity{
		entity("first", 100, 0, 50, 50),
		locked,
		entity("mid", 300, 0, 50, 50),
		entity("last", 700, 0, 50, 50),
	}

	res, err := Distribute(entities, AxisHorizontal)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Moved)
	assert.Equal(t, 1, res.Skipped)

	got := movesByID(res.Moves)
	_, movedLocked := got["locked"]
	assert.False(t, movedLocked)
	// Единственный свободный внутренний центрируется между якорями:
	// пространство 150..700 = 550, зазор (550-50)/2 = 250
	assert.Equal(t, 400.0, got["mid"].X)
}
