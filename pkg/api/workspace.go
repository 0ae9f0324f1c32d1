package api

import "encoding/json"

// Point координата на полотне
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size размер узла
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NodeMetadata служебные свойства узла
type NodeMetadata struct {
	NodeType string `json:"node_type"`
	Locked   bool   `json:"locked"`
}

// Anchor точка крепления соединения
type Anchor struct {
	Side   string  `json:"side"`
	Offset float64 `json:"offset"`
}

// Node представляет узел workspace в REST API
type Node struct {
	ID       string            `json:"id"`
	Position Point             `json:"position"`
	Size     Size              `json:"size"`
	Content  json.RawMessage   `json:"content,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Metadata NodeMetadata      `json:"metadata"`
	ZIndex   int               `json:"z_index"`
}

// Connection представляет соединение в REST API
type Connection struct {
	ID           string            `json:"id"`
	SourceNodeID string            `json:"source_node_id"`
	TargetNodeID string            `json:"target_node_id"`
	SourceAnchor Anchor            `json:"source_anchor"`
	TargetAnchor Anchor            `json:"target_anchor"`
	Label        string            `json:"label,omitempty"`
	Style        map[string]string `json:"style,omitempty"`
}

// SnapshotResponse cold-load снимок workspace.
// Checkpoint — серверный sequence последней дельты, учтенной в снимке;
// клиент использует его как точку отсчета для resync.
type SnapshotResponse struct {
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Checkpoint  int64        `json:"checkpoint"`
}

// NodesResponse список узлов workspace
type NodesResponse struct {
	Nodes []Node `json:"nodes"`
}

// ConnectionsResponse список соединений workspace
type ConnectionsResponse struct {
	Connections []Connection `json:"connections"`
}

// ErrorResponse стандартный ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}
