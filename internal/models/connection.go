package models

import "fmt"

// AnchorSide сторона узла, к которой крепится соединение
const (
	AnchorTop    = "top"
	AnchorRight  = "right"
	AnchorBottom = "bottom"
	AnchorLeft   = "left"
)

// Anchor точка крепления соединения: сторона узла плюс смещение
// вдоль этой стороны в диапазоне [0,1].
type Anchor struct {
	Side   string  `json:"side"`
	Offset float64 `json:"offset"`
}

// Validate проверяет корректность anchor
func (a Anchor) Validate() error {
	switch a.Side {
	case AnchorTop, AnchorRight, AnchorBottom, AnchorLeft:
	default:
		return fmt.Errorf("invalid anchor side: %q", a.Side)
	}
	if a.Offset < 0 || a.Offset > 1 {
		return fmt.Errorf("anchor offset out of range [0,1]: %v", a.Offset)
	}
	return nil
}

// Connection представляет направленное ребро между двумя узлами.
// Инвариант: оба endpoint-узла должны существовать в момент создания.
// Соединение, чей узел позже удален, становится orphaned и отфильтровывается
// на чтении — оно никогда не остается указывающим на tombstone.
type Connection struct {
	ID           string            `json:"id"`
	SourceNodeID string            `json:"source_node_id"`
	TargetNodeID string            `json:"target_node_id"`
	SourceAnchor Anchor            `json:"source_anchor"`
	TargetAnchor Anchor            `json:"target_anchor"`
	Label        string            `json:"label,omitempty"`
	Style        map[string]string `json:"style,omitempty"`
}

// Clone создает глубокую копию соединения
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}

	var style map[string]string
	if c.Style != nil {
		style = make(map[string]string, len(c.Style))
		for k, v := range c.Style {
			style[k] = v
		}
	}

	return &Connection{
		ID:           c.ID,
		SourceNodeID: c.SourceNodeID,
		TargetNodeID: c.TargetNodeID,
		SourceAnchor: c.SourceAnchor,
		TargetAnchor: c.TargetAnchor,
		Label:        c.Label,
		Style:        style,
	}
}
