package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardkeeper/internal/models"
)

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Nodes: map[string]*models.Node{
			"n1": {
				ID:       "n1",
				Position: models.Point{X: 100, Y: 100},
				Size:     models.Size{Width: 100, Height: 50},
				Content:  json.RawMessage(`{"text":"one"}`),
				Metadata: models.NodeMetadata{NodeType: models.NodeTypeText},
			},
			"n2": {
				ID:       "n2",
				Position: models.Point{X: 400, Y: 200},
				Size:     models.Size{Width: 100, Height: 50},
				Metadata: models.NodeMetadata{NodeType: models.NodeTypeShape},
			},
			"n3": {
				ID:       "n3",
				Position: models.Point{X: 800, Y: 800},
				Size:     models.Size{Width: 60, Height: 60},
			},
		},
		Connections: map[string]*models.Connection{
			"c12": {
				ID:           "c12",
				SourceNodeID: "n1",
				TargetNodeID: "n2",
				SourceAnchor: models.Anchor{Side: models.AnchorRight, Offset: 0.5},
				TargetAnchor: models.Anchor{Side: models.AnchorLeft, Offset: 0.5},
				Label:        "flows to",
			},
			"c23": {
				ID:           "c23",
				SourceNodeID: "n2",
				TargetNodeID: "n3",
				SourceAnchor: models.Anchor{Side: models.AnchorBottom, Offset: 0.5},
				TargetAnchor: models.Anchor{Side: models.AnchorTop, Offset: 0.5},
			},
		},
	}
}

func TestExport_Selection(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	data, err := Export(testSnapshot(), []string{"n1", "n2"}, now)
	require.NoError(t, err)

	var file File
	require.NoError(t, json.Unmarshal(data, &file))

	assert.Equal(t, FormatVersion, file.Version)
	assert.Equal(t, now, file.Timestamp)
	assert.Len(t, file.Nodes, 2)
	// c23 наполовину висит (n3 вне выделения) — не экспортируется
	require.Len(t, file.Connections, 1)
	assert.Equal(t, "c12", file.Connections[0].ID)

	assert.Equal(t, 2, file.Metadata.NodeCount)
	assert.Equal(t, 1, file.Metadata.ConnectionCount)
	require.NotNil(t, file.Metadata.BoundingBox)
	assert.Equal(t, 100.0, file.Metadata.BoundingBox.X)
	assert.Equal(t, 400.0, file.Metadata.BoundingBox.Width)
}

func TestExport_EmptySelectionExportsAll(t *testing.T) {
	data, err := Export(testSnapshot(), nil, time.Now())
	require.NoError(t, err)

	var file File
	require.NoError(t, json.Unmarshal(data, &file))

	assert.Len(t, file.Nodes, 3)
	assert.Len(t, file.Connections, 2)
}

func TestExport_UnknownSelectionIDsIgnored(t *testing.T) {
	data, err := Export(testSnapshot(), []string{"n1", "ghost"}, time.Now())
	require.NoError(t, err)

	var file File
	require.NoError(t, json.Unmarshal(data, &file))
	require.Len(t, file.Nodes, 1)
	assert.Equal(t, "n1", file.Nodes[0].ID)
}

func TestImport_RoundTripPreservesOffsets(t *testing.T) {
	data, err := Export(testSnapshot(), []string{"n1", "n2"}, time.Now())
	require.NoError(t, err)

	res, err := Import(data, models.Point{X: 1000, Y: 1000})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	require.Len(t, res.Connections, 1)
	assert.Empty(t, res.Dropped)

	byOld := make(map[string]*models.Node)
	for _, n := range res.Nodes {
		for old, fresh := range res.IDMap {
			if fresh == n.ID {
				byOld[old] = n
			}
		}
	}
	require.Contains(t, byOld, "n1")
	require.Contains(t, byOld, "n2")

	// Новые идентификаторы
	assert.NotEqual(t, "n1", byOld["n1"].ID)
	assert.NotEqual(t, "n2", byOld["n2"].ID)

	// Относительное расстояние сохранено в точности
	dx := byOld["n2"].Position.X - byOld["n1"].Position.X
	dy := byOld["n2"].Position.Y - byOld["n1"].Position.Y
	assert.Equal(t, 300.0, dx)
	assert.Equal(t, 100.0, dy)

	// Центр bounding box группы попал в заданную точку:
	// bbox 100..500 x 100..250 => центр (300,175), смещение (700,825)
	assert.Equal(t, 800.0, byOld["n1"].Position.X)
	assert.Equal(t, 925.0, byOld["n1"].Position.Y)

	// Endpoint'ы соединения ремапнуты на свежие id
	conn := res.Connections[0]
	assert.Equal(t, byOld["n1"].ID, conn.SourceNodeID)
	assert.Equal(t, byOld["n2"].ID, conn.TargetNodeID)
	assert.Equal(t, "flows to", conn.Label)
}

func TestImport_DropsConnectionWithUnmappedEndpoint(t *testing.T) {
	file := File{
		Version: FormatVersion,
		Nodes: []*models.Node{
			{ID: "a", Position: models.Point{X: 0, Y: 0}, Size: models.Size{Width: 10, Height: 10}},
		},
		Connections: []*models.Connection{
			{
				ID:           "dangling",
				SourceNodeID: "a",
				TargetNodeID: "not-in-file",
				SourceAnchor: models.Anchor{Side: models.AnchorRight, Offset: 0.5},
				TargetAnchor: models.Anchor{Side: models.AnchorLeft, Offset: 0.5},
			},
		},
	}
	data, err := json.Marshal(file)
	require.NoError(t, err)

	res, err := Import(data, models.Point{})
	require.NoError(t, err)
	assert.Len(t, res.Nodes, 1)
	assert.Empty(t, res.Connections)
	assert.Equal(t, []string{"dangling"}, res.Dropped)
}

func TestImport_UnsupportedVersion(t *testing.T) {
	data := []byte(`{"version":"2.7","nodes":[],"connections":[]}`)

	_, err := Import(data, models.Point{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format version")
}

func TestImport_MalformedJSON(t *testing.T) {
	_, err := Import([]byte(`{broken`), models.Point{})
	require.Error(t, err)
}

func TestImport_AggregatesAllViolations(t *testing.T) {
	data := []byte(`{
		"version": "1.0",
		"nodes": [
			{"id": "", "position": {"x": 0, "y": 0}, "size": {"width": -5, "height": 10}},
			{"id": "dup", "position": {"x": 0, "y": 0}, "size": {"width": 10, "height": 10}},
			{"id": "dup", "position": {"x": 0, "y": 0}, "size": {"width": 10, "height": 10}}
		],
		"connections": [
			{
				"id": "c1",
				"source_node_id": "",
				"target_node_id": "dup",
				"source_anchor": {"side": "nowhere", "offset": 2},
				"target_anchor": {"side": "left", "offset": 0.5}
			}
		]
	}`)

	_, err := Import(data, models.Point{})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	// Полный диагноз, не только первая ошибка
	assert.GreaterOrEqual(t, len(verr.Violations), 5)
	assert.Contains(t, err.Error(), "import validation failed")
}

func TestImport_NothingAppliedOnValidationError(t *testing.T) {
	file := File{
		Version: FormatVersion,
		Nodes: []*models.Node{
			{ID: "good", Size: models.Size{Width: 10, Height: 10}},
			{ID: ""},
		},
	}
	data, err := json.Marshal(file)
	require.NoError(t, err)

	res, err := Import(data, models.Point{})
	require.Error(t, err)
	assert.Nil(t, res)
}
