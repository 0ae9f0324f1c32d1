// Package codec сериализует выбранное подмножество графа узлов и
// соединений в версионированный самоописывающий JSON-формат и
// восстанавливает его с перегенерацией идентификаторов.
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/boardkeeper/internal/geometry"
	"github.com/iudanet/boardkeeper/internal/models"
)

// FormatVersion поддерживаемая версия формата обмена
const FormatVersion = "1.0"

// BoundingBox охватывающий прямоугольник экспортированной группы
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Metadata сводка экспортированного набора
type Metadata struct {
	NodeCount       int          `json:"node_count"`
	ConnectionCount int          `json:"connection_count"`
	BoundingBox     *BoundingBox `json:"bounding_box,omitempty"`
}

// File версионированный формат обмена
type File struct {
	Version     string               `json:"version"`
	Timestamp   time.Time            `json:"timestamp"`
	Metadata    Metadata             `json:"metadata"`
	Nodes       []*models.Node       `json:"nodes"`
	Connections []*models.Connection `json:"connections"`
}

// ValidationError агрегирует ВСЕ нарушения, найденные при валидации
// импортируемого файла: вызывающий получает полный диагноз, а не только
// первую ошибку. Данные с нарушениями не применяются даже частично.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("import validation failed: %d violation(s): %s",
		len(e.Violations), strings.Join(e.Violations, "; "))
}

// Export сериализует выбранные узлы (или весь workspace при пустом
// выделении) вместе с соединениями, у которых ОБА endpoint'а входят
// в экспортируемый набор — наполовину висящее соединение не
// экспортируется никогда.
func Export(snap *models.Snapshot, selection []string, now time.Time) ([]byte, error) {
	selected := make(map[string]struct{}, len(selection))
	for _, id := range selection {
		if _, ok := snap.Nodes[id]; ok {
			selected[id] = struct{}{}
		}
	}
	if len(selected) == 0 {
		for id := range snap.Nodes {
			selected[id] = struct{}{}
		}
	}

	file := &File{
		Version:   FormatVersion,
		Timestamp: now.UTC(),
	}

	entities := make([]geometry.Entity, 0, len(selected))
	for id := range selected {
		n := snap.Nodes[id].Clone()
		file.Nodes = append(file.Nodes, n)
		entities = append(entities, geometry.Entity{ID: id, Position: n.Position, Size: n.Size})
	}

	for _, c := range snap.Connections {
		if _, ok := selected[c.SourceNodeID]; !ok {
			continue
		}
		if _, ok := selected[c.TargetNodeID]; !ok {
			continue
		}
		file.Connections = append(file.Connections, c.Clone())
	}

	file.Metadata = Metadata{
		NodeCount:       len(file.Nodes),
		ConnectionCount: len(file.Connections),
	}
	if bounds, ok := geometry.BoundingBox(entities); ok {
		file.Metadata.BoundingBox = &BoundingBox{
			X: bounds.X, Y: bounds.Y, Width: bounds.Width, Height: bounds.Height,
		}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export file: %w", err)
	}
	return data, nil
}

// ImportResult результат успешного импорта: сущности со свежими
// идентификаторами, готовые к созданию в workspace.
type ImportResult struct {
	Nodes       []*models.Node
	Connections []*models.Connection
	IDMap       map[string]string // old id -> new id
	Dropped     []string          // id соединений, отброшенных из-за незамапленных endpoint'ов
}

// Import валидирует файл обмена и подготавливает сущности к вставке:
// каждый узел получает свежий UUID, endpoint'ы соединений ремапятся
// через карту old->new (соединения с endpoint'ом вне карты отбрасываются),
// вся группа смещается единым offset так, чтобы центр ее bounding box
// попал в center — относительные расстояния между узлами сохраняются
// в точности.
func Import(data []byte, center models.Point) (*ImportResult, error) {
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	if file.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported export format version %q (supported: %q)",
			file.Version, FormatVersion)
	}

	if violations := validate(&file); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	result := &ImportResult{
		IDMap: make(map[string]string, len(file.Nodes)),
	}

	entities := make([]geometry.Entity, 0, len(file.Nodes))
	for _, n := range file.Nodes {
		entities = append(entities, geometry.Entity{ID: n.ID, Position: n.Position, Size: n.Size})
	}

	// Единый сдвиг: центр bounding box группы -> центр вьюпорта
	var dx, dy float64
	if bounds, ok := geometry.BoundingBox(entities); ok {
		dx = center.X - (bounds.X + bounds.Width/2)
		dy = center.Y - (bounds.Y + bounds.Height/2)
	}

	for _, src := range file.Nodes {
		n := src.Clone()
		result.IDMap[src.ID] = uuid.New().String()
		n.ID = result.IDMap[src.ID]
		n.Position.X += dx
		n.Position.Y += dy
		result.Nodes = append(result.Nodes, n)
	}

	for _, src := range file.Connections {
		newSource, okS := result.IDMap[src.SourceNodeID]
		newTarget, okT := result.IDMap[src.TargetNodeID]
		if !okS || !okT {
			// Endpoint не входил в исходный экспорт
			result.Dropped = append(result.Dropped, src.ID)
			continue
		}
		c := src.Clone()
		c.ID = uuid.New().String()
		c.SourceNodeID = newSource
		c.TargetNodeID = newTarget
		result.Connections = append(result.Connections, c)
	}

	return result, nil
}

// validate проверяет каждый узел и соединение по полям, собирая все
// нарушения (не fail-fast).
func validate(file *File) []string {
	var violations []string

	seen := make(map[string]bool, len(file.Nodes))
	for i, n := range file.Nodes {
		where := fmt.Sprintf("nodes[%d]", i)
		if n == nil {
			violations = append(violations, where+": entry is null")
			continue
		}
		if n.ID == "" {
			violations = append(violations, where+": missing id")
		} else if seen[n.ID] {
			violations = append(violations, fmt.Sprintf("%s: duplicate id %q", where, n.ID))
		} else {
			seen[n.ID] = true
		}
		if !isFinite(n.Position.X) || !isFinite(n.Position.Y) {
			violations = append(violations, where+": position is not finite")
		}
		if n.Size.Width < 0 || n.Size.Height < 0 {
			violations = append(violations, where+": negative size")
		}
		if !isFinite(n.Size.Width) || !isFinite(n.Size.Height) {
			violations = append(violations, where+": size is not finite")
		}
		if len(n.Content) > 0 && !json.Valid(n.Content) {
			violations = append(violations, where+": content is not valid JSON")
		}
	}

	seenConn := make(map[string]bool, len(file.Connections))
	for i, c := range file.Connections {
		where := fmt.Sprintf("connections[%d]", i)
		if c == nil {
			violations = append(violations, where+": entry is null")
			continue
		}
		if c.ID == "" {
			violations = append(violations, where+": missing id")
		} else if seenConn[c.ID] {
			violations = append(violations, fmt.Sprintf("%s: duplicate id %q", where, c.ID))
		} else {
			seenConn[c.ID] = true
		}
		if c.SourceNodeID == "" {
			violations = append(violations, where+": missing source_node_id")
		}
		if c.TargetNodeID == "" {
			violations = append(violations, where+": missing target_node_id")
		}
		if err := c.SourceAnchor.Validate(); err != nil {
			violations = append(violations, fmt.Sprintf("%s: source anchor: %v", where, err))
		}
		if err := c.TargetAnchor.Validate(); err != nil {
			violations = append(violations, fmt.Sprintf("%s: target anchor: %v", where, err))
		}
	}

	return violations
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
