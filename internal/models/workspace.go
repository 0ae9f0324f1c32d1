package models

// Snapshot консистентное read-only представление workspace:
// карта узлов и карта соединений. Снимок никогда не содержит
// tombstone-записей и соединений с удаленными endpoint-узлами.
type Snapshot struct {
	Nodes       map[string]*Node       `json:"nodes"`
	Connections map[string]*Connection `json:"connections"`
}

// Clone создает глубокую копию снимка
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	out := &Snapshot{
		Nodes:       make(map[string]*Node, len(s.Nodes)),
		Connections: make(map[string]*Connection, len(s.Connections)),
	}
	for id, n := range s.Nodes {
		out.Nodes[id] = n.Clone()
	}
	for id, c := range s.Connections {
		out.Connections[id] = c.Clone()
	}
	return out
}

// Viewport локальное (не реплицируемое) состояние вьюпорта участника.
type Viewport struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Scale   float64 `json:"scale"`
}

// Center возвращает точку полотна в центре вьюпорта.
// width и height — размеры видимой области в экранных координатах.
func (v Viewport) Center(width, height float64) Point {
	scale := v.Scale
	if scale == 0 {
		scale = 1
	}
	return Point{
		X: v.OffsetX + width/2/scale,
		Y: v.OffsetY + height/2/scale,
	}
}
