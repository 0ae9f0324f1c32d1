package crdt

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/boardkeeper/internal/models"
)

// DeltaVersion текущая версия wire-формата дельты.
const DeltaVersion = 1

// Tag — LWW-регистр одного поля: Lamport timestamp плюс идентификатор
// участника для детерминированного разрешения конфликтов.
type Tag struct {
	ActorID   string `json:"actor"`
	Timestamp int64  `json:"ts"`
}

// Newer сравнивает два тега по правилу LWW (Last-Write-Wins):
// 1. Сначала сравнивается Timestamp (больший выигрывает)
// 2. При равных Timestamp сравнивается ActorID (лексикографически)
func (t Tag) Newer(other Tag) bool {
	if t.Timestamp != other.Timestamp {
		return t.Timestamp > other.Timestamp
	}
	return t.ActorID > other.ActorID
}

// IsZero проверяет, что тег не был установлен.
func (t Tag) IsZero() bool {
	return t.Timestamp == 0 && t.ActorID == ""
}

// Виды сущностей в дельте
const (
	EntityNode       = "node"
	EntityConnection = "connection"
)

// Поля сущностей. Каждое поле — независимый LWW-регистр.
// create/delete образуют общий регистр присутствия (tombstone вместо
// физического удаления, чтобы merge оставался коммутативным).
const (
	FieldCreate   = "create"
	FieldDelete   = "delete"
	FieldPosition = "position"
	FieldSize     = "size"
	FieldContent  = "content"
	FieldStyle    = "style"
	FieldMetadata = "metadata"
	FieldZIndex   = "zindex"
	FieldAnchors  = "anchors"
	FieldLabel    = "label"
)

// Op одна помеченная тегом операция над полем сущности.
type Op struct {
	Entity string          `json:"entity"`
	ID     string          `json:"id"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value,omitempty"`
	Tag    Tag             `json:"tag"`
}

// Delta инкрементальная сериализуемая единица изменений,
// рассылаемая между участниками.
type Delta struct {
	Version int  `json:"version"`
	Ops     []Op `json:"ops"`
}

// AnchorsValue значение поля anchors соединения.
type AnchorsValue struct {
	Source models.Anchor `json:"source"`
	Target models.Anchor `json:"target"`
}

// EncodeDelta сериализует дельту в JSON.
func EncodeDelta(d *Delta) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode delta: %w", err)
	}
	return data, nil
}

// DecodeDelta десериализует дельту и проверяет версию формата.
func DecodeDelta(data []byte) (*Delta, error) {
	var d Delta
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode delta: %w", err)
	}
	if d.Version != DeltaVersion {
		return nil, fmt.Errorf("unsupported delta version: %d", d.Version)
	}
	return &d, nil
}

// validateOp проверяет структуру операции до применения.
// Merge применяет дельту целиком или не применяет вовсе, поэтому
// валидация выполняется отдельным проходом.
func validateOp(op Op) error {
	if op.ID == "" {
		return fmt.Errorf("op has empty entity id")
	}
	if op.Tag.IsZero() {
		return fmt.Errorf("op %s/%s has zero tag", op.Entity, op.ID)
	}

	switch op.Entity {
	case EntityNode:
		switch op.Field {
		case FieldCreate:
			var n models.Node
			if err := json.Unmarshal(op.Value, &n); err != nil {
				return fmt.Errorf("invalid node create value: %w", err)
			}
		case FieldDelete:
		case FieldPosition:
			var p models.Point
			if err := json.Unmarshal(op.Value, &p); err != nil {
				return fmt.Errorf("invalid position value: %w", err)
			}
		case FieldSize:
			var s models.Size
			if err := json.Unmarshal(op.Value, &s); err != nil {
				return fmt.Errorf("invalid size value: %w", err)
			}
		case FieldContent:
			if !json.Valid(op.Value) {
				return fmt.Errorf("invalid content value")
			}
		case FieldStyle:
			var st map[string]string
			if err := json.Unmarshal(op.Value, &st); err != nil {
				return fmt.Errorf("invalid style value: %w", err)
			}
		case FieldMetadata:
			var m models.NodeMetadata
			if err := json.Unmarshal(op.Value, &m); err != nil {
				return fmt.Errorf("invalid metadata value: %w", err)
			}
		case FieldZIndex:
			var z int
			if err := json.Unmarshal(op.Value, &z); err != nil {
				return fmt.Errorf("invalid zindex value: %w", err)
			}
		default:
			return fmt.Errorf("unknown node field: %q", op.Field)
		}
	case EntityConnection:
		switch op.Field {
		case FieldCreate:
			var c models.Connection
			if err := json.Unmarshal(op.Value, &c); err != nil {
				return fmt.Errorf("invalid connection create value: %w", err)
			}
		case FieldDelete:
		case FieldAnchors:
			var a AnchorsValue
			if err := json.Unmarshal(op.Value, &a); err != nil {
				return fmt.Errorf("invalid anchors value: %w", err)
			}
		case FieldLabel:
			var l string
			if err := json.Unmarshal(op.Value, &l); err != nil {
				return fmt.Errorf("invalid label value: %w", err)
			}
		case FieldStyle:
			var st map[string]string
			if err := json.Unmarshal(op.Value, &st); err != nil {
				return fmt.Errorf("invalid style value: %w", err)
			}
		default:
			return fmt.Errorf("unknown connection field: %q", op.Field)
		}
	default:
		return fmt.Errorf("unknown entity kind: %q", op.Entity)
	}

	return nil
}

// mustMarshal сериализует значение поля. Значения полей — собственные
// типы models, их сериализация не может завершиться ошибкой.
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("crdt: marshal field value: %v", err))
	}
	return data
}
