// Package history реализует локальный undo/redo участника.
// В историю попадают только собственные транзакции: удаленные дельты
// других участников никогда не записываются. История живет только в
// памяти процесса и не переживает перезапуск.
package history

import (
	"encoding/json"
	"sync"

	"github.com/iudanet/boardkeeper/internal/models"
)

// DefaultLimit размер стека undo по умолчанию
const DefaultLimit = 100

// OpKind вид обратимой операции
type OpKind string

const (
	OpCreateNode       OpKind = "create_node"
	OpDeleteNode       OpKind = "delete_node"
	OpSetNodePosition  OpKind = "set_node_position"
	OpSetNodeSize      OpKind = "set_node_size"
	OpSetNodeContent   OpKind = "set_node_content"
	OpSetNodeStyle     OpKind = "set_node_style"
	OpSetNodeMetadata  OpKind = "set_node_metadata"
	OpSetNodeZIndex    OpKind = "set_node_zindex"
	OpCreateConnection    OpKind = "create_connection"
	OpDeleteConnection    OpKind = "delete_connection"
	OpSetConnectionLabel  OpKind = "set_connection_label"
	OpSetConnectionAnchor OpKind = "set_connection_anchors"
)

// Op одна обратимая операция. Хранит обратные операции, а не полные
// снимки workspace: для set-операций — прежнее значение поля, для
// delete — полную сущность для восстановления.
type Op struct {
	Kind       OpKind
	Node       *models.Node       // для create/delete node
	Connection *models.Connection // для create/delete connection
	NodeID     string
	ConnID     string
	Position   models.Point
	Size       models.Size
	Content    json.RawMessage
	Style      map[string]string
	Metadata   models.NodeMetadata
	ZIndex     int

	Label        string
	SourceAnchor models.Anchor
	TargetAnchor models.Anchor
}

// Entry одна транзакция истории: набор операций для отката (Undo)
// и набор для повтора (Redo). Групповые действия (align, каскадное
// удаление) — одна запись, откатываются как единое целое.
type Entry struct {
	Label string
	Undo  []Op
	Redo  []Op
}

// Manager ограниченный LIFO-стек undo плюс параллельный стек redo.
type Manager struct {
	undo  []*Entry
	redo  []*Entry
	limit int
	mu    sync.Mutex
}

// NewManager создает менеджер истории с заданным лимитом стека.
// limit <= 0 заменяется на DefaultLimit.
func NewManager(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// Push записывает новую локальную транзакцию.
// Любая новая мутация после undo открывает новую временную линию:
// стек redo очищается.
func (m *Manager) Push(e *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.undo = append(m.undo, e)
	if len(m.undo) > m.limit {
		m.undo = m.undo[1:]
	}
	m.redo = nil
}

// CanUndo проверяет наличие транзакций для отката.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

// CanRedo проверяет наличие транзакций для повтора.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// PopUndo снимает верхнюю транзакцию со стека undo и переносит ее
// в redo. Вызывающий применяет entry.Undo как новые локальные мутации.
func (m *Manager) PopUndo() (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.undo) == 0 {
		return nil, false
	}

	e := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, e)
	return e, true
}

// PopRedo снимает верхнюю транзакцию со стека redo и возвращает ее
// в undo. Вызывающий применяет entry.Redo.
func (m *Manager) PopRedo() (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.redo) == 0 {
		return nil, false
	}

	e := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, e)
	return e, true
}

// Clear сбрасывает обе истории. Вызывается при закрытии workspace
// и после гидратации: история не переживает перезагрузку.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.undo = nil
	m.redo = nil
}

// Len возвращает глубину стека undo.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo)
}
