package models

import "encoding/json"

// Point позиция на бесконечном 2D-полотне.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size размер узла.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NodeMetadata служебные свойства узла.
// Locked исключает узел из геометрических операций (выравнивание,
// распределение, drag/resize), но сам флаг остается изменяемым.
type NodeMetadata struct {
	NodeType string `json:"node_type"`
	Locked   bool   `json:"locked"`
}

// NodeType константы для типов узлов
const (
	NodeTypeText   = "text"
	NodeTypeImage  = "image"
	NodeTypeShape  = "shape"
	NodeTypeGroup  = "group"
	NodeTypeCustom = "custom"
)

// Node представляет один узел на общем полотне workspace.
// ID генерируется клиентом (UUID) при создании и никогда не переиспользуется.
// Content — непрозрачный сериализованный документ, эта подсистема его не
// интерпретирует.
type Node struct {
	ID       string            `json:"id"`
	Position Point             `json:"position"`
	Size     Size              `json:"size"`
	Content  json.RawMessage   `json:"content,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Metadata NodeMetadata      `json:"metadata"`
	ZIndex   int               `json:"z_index"`
}

// Clone создает глубокую копию узла
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	content := make(json.RawMessage, len(n.Content))
	copy(content, n.Content)

	var style map[string]string
	if n.Style != nil {
		style = make(map[string]string, len(n.Style))
		for k, v := range n.Style {
			style[k] = v
		}
	}

	return &Node{
		ID:       n.ID,
		Position: n.Position,
		Size:     n.Size,
		Content:  content,
		Style:    style,
		Metadata: n.Metadata,
		ZIndex:   n.ZIndex,
	}
}
