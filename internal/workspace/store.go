// Package workspace реализует reactive store — единственный слой, через
// который прикладной код читает и мутирует состояние workspace. Каждая
// мутация применяется к реплицированному документу, планирует debounce-запись
// в Persistence Bridge и рассылается остальным участникам через транспорт.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	clientapi "github.com/iudanet/boardkeeper/internal/client/api"
	"github.com/iudanet/boardkeeper/internal/client/storage"
	"github.com/iudanet/boardkeeper/internal/crdt"
	"github.com/iudanet/boardkeeper/internal/geometry"
	"github.com/iudanet/boardkeeper/internal/history"
	"github.com/iudanet/boardkeeper/internal/models"
)

// DefaultDebounce окно коалесинга записей в Persistence Bridge
const DefaultDebounce = 500 * time.Millisecond

// ErrEndpointMissing re-export для вызывающих слоев
var ErrEndpointMissing = crdt.ErrEndpointMissing

//go:generate moq -out broadcaster_mock.go . Broadcaster

// Broadcaster отправляет локальные дельты остальным участникам.
// Реализуется sync-транспортом; nil-значение допустимо (offline-режим).
type Broadcaster interface {
	Send(delta []byte) error
}

// Config параметры store
type Config struct {
	WorkspaceID  string
	Debounce     time.Duration // 0 => DefaultDebounce
	HistoryLimit int           // 0 => history.DefaultLimit
}

// NodeUpdate частичное обновление узла: nil-поля не меняются.
type NodeUpdate struct {
	Position *models.Point
	Size     *models.Size
	Content  json.RawMessage
	Style    map[string]string
	Metadata *models.NodeMetadata
	ZIndex   *int
}

// Store клиентский контейнер состояния workspace.
// Весь доступ к реплицированному документу идет через его методы;
// ошибки персистентности и транспорта никогда не всплывают в mutation
// API — локальная правка всегда успешна с точки зрения участника.
type Store struct {
	cfg    Config
	doc    *crdt.Document
	hist   *history.Manager
	bridge clientapi.ClientAPI
	cache  storage.SnapshotCache
	logger *slog.Logger

	mu          sync.Mutex
	broadcaster Broadcaster
	dirtyNodes  map[string]bool // true => удален
	dirtyConns  map[string]bool
	timer       *time.Timer
	selection   map[string]struct{}
	viewport    models.Viewport
	subs        map[int]func(*models.Snapshot)
	nextSub     int
	checkpoint  int64
	closed      bool
}

// NewStore создает store поверх нового реплицированного документа.
// bridge обязателен; cache может быть nil (без offline-кэша).
func NewStore(cfg Config, bridge clientapi.ClientAPI, cache storage.SnapshotCache, logger *slog.Logger) *Store {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		cfg:        cfg,
		doc:        crdt.NewDocument(crdt.NewLamportClock()),
		hist:       history.NewManager(cfg.HistoryLimit),
		bridge:     bridge,
		cache:      cache,
		logger:     logger,
		dirtyNodes: make(map[string]bool),
		dirtyConns: make(map[string]bool),
		selection:  make(map[string]struct{}),
		viewport:   models.Viewport{Scale: 1},
		subs:       make(map[int]func(*models.Snapshot)),
	}
}

// SetBroadcaster подключает транспорт для рассылки локальных дельт.
func (s *Store) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// ActorID возвращает идентификатор локального участника.
func (s *Store) ActorID() string {
	return s.doc.ActorID()
}

// Checkpoint возвращает последний учтенный серверный sequence.
func (s *Store) Checkpoint() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint
}

// ExportState сериализует полное состояние документа (включая tombstone)
// как одну дельту. Транспорт пересылает ее после реконнекта: локальные
// правки, отброшенные очередью отправки за время обрыва, доезжают до
// журнала сервера. Для пустого документа возвращает nil payload.
func (s *Store) ExportState() ([]byte, error) {
	delta := s.doc.ExportState()
	if len(delta.Ops) == 0 {
		return nil, nil
	}
	return crdt.EncodeDelta(delta)
}

// Hydrate выполняет cold load: снимок из Persistence Bridge, при его
// недоступности — последний кэшированный снимок. История после гидратации
// пуста: undo/redo не переживают перезагрузку.
func (s *Store) Hydrate(ctx context.Context) error {
	snap, checkpoint, err := s.loadInitialState(ctx)
	if err != nil {
		return err
	}

	s.doc.Seed(snap)
	s.hist.Clear()

	s.mu.Lock()
	s.checkpoint = checkpoint
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) loadInitialState(ctx context.Context) (*models.Snapshot, int64, error) {
	resp, err := s.bridge.GetSnapshot(ctx, s.cfg.WorkspaceID)
	if err == nil {
		snap := &models.Snapshot{
			Nodes:       make(map[string]*models.Node, len(resp.Nodes)),
			Connections: make(map[string]*models.Connection, len(resp.Connections)),
		}
		for i := range resp.Nodes {
			n := clientapi.NodeFromAPI(&resp.Nodes[i])
			snap.Nodes[n.ID] = n
		}
		for i := range resp.Connections {
			c := clientapi.ConnectionFromAPI(&resp.Connections[i])
			snap.Connections[c.ID] = c
		}

		if s.cache != nil {
			if cerr := s.cache.SaveSnapshot(ctx, s.cfg.WorkspaceID, snap); cerr != nil {
				s.logger.Warn("Failed to cache snapshot", "error", cerr)
			}
			if cerr := s.cache.SaveCheckpoint(ctx, s.cfg.WorkspaceID, resp.Checkpoint); cerr != nil {
				s.logger.Warn("Failed to cache checkpoint", "error", cerr)
			}
		}
		return snap, resp.Checkpoint, nil
	}

	s.logger.Warn("Cold load from bridge failed, trying local cache", "error", err)

	if s.cache == nil {
		return nil, 0, fmt.Errorf("cold load failed and no local cache: %w", err)
	}

	snap, cerr := s.cache.GetSnapshot(ctx, s.cfg.WorkspaceID)
	if cerr != nil {
		return nil, 0, fmt.Errorf("cold load failed: bridge: %w, cache: %v", err, cerr)
	}

	checkpoint, cerr := s.cache.GetCheckpoint(ctx, s.cfg.WorkspaceID)
	if cerr != nil {
		s.logger.Warn("No cached checkpoint, full resync will be requested", "error", cerr)
		checkpoint = 0
	}

	s.logger.Info("Hydrated from local cache", "workspace_id", s.cfg.WorkspaceID)
	return snap, checkpoint, nil
}

// Snapshot возвращает консистентный снимок состояния.
func (s *Store) Snapshot() *models.Snapshot {
	return s.doc.Snapshot()
}

// Subscribe регистрирует наблюдателя; он вызывается с новым снимком после
// каждой мутации (локальной или удаленной). Возвращает функцию отписки.
// Rendering-слой — чистая функция от последнего снимка.
func (s *Store) Subscribe(fn func(*models.Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// notify рассылает свежий снимок подписчикам. Вызывать без мьютекса.
func (s *Store) notify() {
	snap := s.doc.Snapshot()

	s.mu.Lock()
	fns := make([]func(*models.Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// CreateNode создает узел с client-generated UUID (optimistic creation:
// id присвоен до любого сетевого обмена).
func (s *Store) CreateNode(position models.Point, size models.Size, content json.RawMessage) (string, error) {
	node := &models.Node{
		ID:       uuid.New().String(),
		Position: position,
		Size:     size,
		Content:  content,
		Metadata: models.NodeMetadata{NodeType: models.NodeTypeText},
	}

	delta, err := s.doc.CreateNode(node)
	if err != nil {
		return "", err
	}

	s.hist.Push(&history.Entry{
		Label: "create node",
		Undo:  []history.Op{{Kind: history.OpDeleteNode, NodeID: node.ID}},
		Redo:  []history.Op{{Kind: history.OpCreateNode, Node: node.Clone()}},
	})

	s.afterLocalMutation(delta, []string{node.ID}, nil, nil, nil)
	return node.ID, nil
}

// UpdateNode частично обновляет узел. No-op, если узел отсутствует.
func (s *Store) UpdateNode(id string, update NodeUpdate) {
	prev := s.doc.GetNode(id)
	if prev == nil {
		return
	}

	var ops []crdt.Op
	var undo, redo []history.Op

	apply := func(delta *crdt.Delta, err error, u, r history.Op) {
		if err != nil {
			s.logger.Warn("Node field update failed", "node_id", id, "error", err)
			return
		}
		ops = append(ops, delta.Ops...)
		undo = append(undo, u)
		redo = append(redo, r)
	}

	if update.Position != nil {
		delta, err := s.doc.SetNodePosition(id, *update.Position)
		apply(delta, err,
			history.Op{Kind: history.OpSetNodePosition, NodeID: id, Position: prev.Position},
			history.Op{Kind: history.OpSetNodePosition, NodeID: id, Position: *update.Position})
	}
	if update.Size != nil {
		delta, err := s.doc.SetNodeSize(id, *update.Size)
		apply(delta, err,
			history.Op{Kind: history.OpSetNodeSize, NodeID: id, Size: prev.Size},
			history.Op{Kind: history.OpSetNodeSize, NodeID: id, Size: *update.Size})
	}
	if update.Content != nil {
		delta, err := s.doc.SetNodeContent(id, update.Content)
		apply(delta, err,
			history.Op{Kind: history.OpSetNodeContent, NodeID: id, Content: prev.Content},
			history.Op{Kind: history.OpSetNodeContent, NodeID: id, Content: update.Content})
	}
	if update.Style != nil {
		delta, err := s.doc.SetNodeStyle(id, update.Style)
		apply(delta, err,
			history.Op{Kind: history.OpSetNodeStyle, NodeID: id, Style: prev.Style},
			history.Op{Kind: history.OpSetNodeStyle, NodeID: id, Style: update.Style})
	}
	if update.Metadata != nil {
		delta, err := s.doc.SetNodeMetadata(id, *update.Metadata)
		apply(delta, err,
			history.Op{Kind: history.OpSetNodeMetadata, NodeID: id, Metadata: prev.Metadata},
			history.Op{Kind: history.OpSetNodeMetadata, NodeID: id, Metadata: *update.Metadata})
	}
	if update.ZIndex != nil {
		delta, err := s.doc.SetNodeZIndex(id, *update.ZIndex)
		apply(delta, err,
			history.Op{Kind: history.OpSetNodeZIndex, NodeID: id, ZIndex: prev.ZIndex},
			history.Op{Kind: history.OpSetNodeZIndex, NodeID: id, ZIndex: *update.ZIndex})
	}

	if len(ops) == 0 {
		return
	}

	s.hist.Push(&history.Entry{Label: "update node", Undo: undo, Redo: redo})
	s.afterLocalMutation(&crdt.Delta{Version: crdt.DeltaVersion, Ops: ops}, []string{id}, nil, nil, nil)
}

// DeleteNode удаляет узел и каскадно все соединения, где он endpoint.
// No-op, если узел отсутствует.
func (s *Store) DeleteNode(id string) {
	node := s.doc.GetNode(id)
	if node == nil {
		return
	}

	// Захватываем каскадно удаляемые соединения для undo
	snap := s.doc.Snapshot()
	var cascade []*models.Connection
	var cascadeIDs []string
	for cid, c := range snap.Connections {
		if c.SourceNodeID == id || c.TargetNodeID == id {
			cascade = append(cascade, c.Clone())
			cascadeIDs = append(cascadeIDs, cid)
		}
	}

	delta, err := s.doc.DeleteNode(id)
	if err != nil {
		s.logger.Warn("Delete node failed", "node_id", id, "error", err)
		return
	}

	undo := []history.Op{{Kind: history.OpCreateNode, Node: node}}
	for _, c := range cascade {
		undo = append(undo, history.Op{Kind: history.OpCreateConnection, Connection: c})
	}

	s.hist.Push(&history.Entry{
		Label: "delete node",
		Undo:  undo,
		Redo:  []history.Op{{Kind: history.OpDeleteNode, NodeID: id}},
	})

	s.afterLocalMutation(delta, nil, []string{id}, nil, cascadeIDs)
}

// CreateConnection создает соединение между существующими узлами.
// Возвращает ErrEndpointMissing, если какой-то endpoint отсутствует;
// частичное соединение при этом не создается.
func (s *Store) CreateConnection(sourceID, targetID string, sourceAnchor, targetAnchor models.Anchor) (string, error) {
	conn := &models.Connection{
		ID:           uuid.New().String(),
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
		SourceAnchor: sourceAnchor,
		TargetAnchor: targetAnchor,
	}

	delta, err := s.doc.CreateConnection(conn)
	if err != nil {
		return "", err
	}

	s.hist.Push(&history.Entry{
		Label: "create connection",
		Undo:  []history.Op{{Kind: history.OpDeleteConnection, ConnID: conn.ID}},
		Redo:  []history.Op{{Kind: history.OpCreateConnection, Connection: conn.Clone()}},
	})

	s.afterLocalMutation(delta, nil, nil, []string{conn.ID}, nil)
	return conn.ID, nil
}

// SetConnectionLabel меняет подпись соединения.
func (s *Store) SetConnectionLabel(id, label string) {
	prev := s.doc.GetConnection(id)
	if prev == nil {
		return
	}

	delta, err := s.doc.SetConnectionLabel(id, label)
	if err != nil {
		s.logger.Warn("Set connection label failed", "conn_id", id, "error", err)
		return
	}

	s.hist.Push(&history.Entry{
		Label: "edit connection label",
		Undo:  []history.Op{{Kind: history.OpSetConnectionLabel, ConnID: id, Label: prev.Label}},
		Redo:  []history.Op{{Kind: history.OpSetConnectionLabel, ConnID: id, Label: label}},
	})

	s.afterLocalMutation(delta, nil, nil, []string{id}, nil)
}

// SetConnectionAnchors меняет точки крепления соединения.
func (s *Store) SetConnectionAnchors(id string, source, target models.Anchor) error {
	prev := s.doc.GetConnection(id)
	if prev == nil {
		return crdt.ErrConnectionNotFound
	}

	delta, err := s.doc.SetConnectionAnchors(id, source, target)
	if err != nil {
		return err
	}

	s.hist.Push(&history.Entry{
		Label: "move connection anchors",
		Undo: []history.Op{{
			Kind: history.OpSetConnectionAnchor, ConnID: id,
			SourceAnchor: prev.SourceAnchor, TargetAnchor: prev.TargetAnchor,
		}},
		Redo: []history.Op{{
			Kind: history.OpSetConnectionAnchor, ConnID: id,
			SourceAnchor: source, TargetAnchor: target,
		}},
	})

	s.afterLocalMutation(delta, nil, nil, []string{id}, nil)
	return nil
}

// DeleteConnection удаляет соединение. No-op, если оно отсутствует.
func (s *Store) DeleteConnection(id string) {
	conn := s.doc.GetConnection(id)
	if conn == nil {
		return
	}

	delta, err := s.doc.DeleteConnection(id)
	if err != nil {
		s.logger.Warn("Delete connection failed", "conn_id", id, "error", err)
		return
	}

	s.hist.Push(&history.Entry{
		Label: "delete connection",
		Undo:  []history.Op{{Kind: history.OpCreateConnection, Connection: conn}},
		Redo:  []history.Op{{Kind: history.OpDeleteConnection, ConnID: id}},
	})

	s.afterLocalMutation(delta, nil, nil, nil, []string{id})
}

// MoveNodes применяет пакет перемещений (drag группы, align, distribute)
// как одну транзакцию истории: откатывается целиком.
func (s *Store) MoveNodes(moves []geometry.Move, label string) {
	if len(moves) == 0 {
		return
	}

	var ops []crdt.Op
	var undo, redo []history.Op
	var dirty []string

	for _, m := range moves {
		prev := s.doc.GetNode(m.ID)
		if prev == nil {
			continue
		}
		delta, err := s.doc.SetNodePosition(m.ID, m.Position)
		if err != nil {
			s.logger.Warn("Move failed", "node_id", m.ID, "error", err)
			continue
		}
		ops = append(ops, delta.Ops...)
		undo = append(undo, history.Op{Kind: history.OpSetNodePosition, NodeID: m.ID, Position: prev.Position})
		redo = append(redo, history.Op{Kind: history.OpSetNodePosition, NodeID: m.ID, Position: m.Position})
		dirty = append(dirty, m.ID)
	}

	if len(ops) == 0 {
		return
	}

	s.hist.Push(&history.Entry{Label: label, Undo: undo, Redo: redo})
	s.afterLocalMutation(&crdt.Delta{Version: crdt.DeltaVersion, Ops: ops}, dirty, nil, nil, nil)
}

// ApplyTransient применяет обновление узла без записи в историю.
// Используется interaction-слоем во время drag/resize: промежуточные
// позиции реплицируются и персистятся, но не засоряют undo-стек —
// завершенный жест фиксируется одной транзакцией через CommitTransaction.
func (s *Store) ApplyTransient(id string, update NodeUpdate) {
	if s.doc.GetNode(id) == nil {
		return
	}

	var ops []crdt.Op
	collect := func(delta *crdt.Delta, err error) {
		if err != nil {
			s.logger.Warn("Transient update failed", "node_id", id, "error", err)
			return
		}
		ops = append(ops, delta.Ops...)
	}

	if update.Position != nil {
		collect(s.doc.SetNodePosition(id, *update.Position))
	}
	if update.Size != nil {
		collect(s.doc.SetNodeSize(id, *update.Size))
	}

	if len(ops) == 0 {
		return
	}
	s.afterLocalMutation(&crdt.Delta{Version: crdt.DeltaVersion, Ops: ops}, []string{id}, nil, nil, nil)
}

// CommitTransaction записывает завершенный жест в историю. Документ уже
// в конечном состоянии (transient-обновления применены), поэтому меняется
// только undo/redo.
func (s *Store) CommitTransaction(entry *history.Entry) {
	s.hist.Push(entry)
}

// ImportEntities вставляет подготовленный кодеком набор (узлы, затем
// соединения) как одну транзакцию истории: undo убирает весь импорт.
func (s *Store) ImportEntities(nodes []*models.Node, conns []*models.Connection) error {
	var all []crdt.Op
	var undo, redo []history.Op
	var dirtyNodes, dirtyConns []string

	for _, n := range nodes {
		delta, err := s.doc.CreateNode(n.Clone())
		if err != nil {
			return fmt.Errorf("import node %s: %w", n.ID, err)
		}
		all = append(all, delta.Ops...)
		undo = append(undo, history.Op{Kind: history.OpDeleteNode, NodeID: n.ID})
		redo = append(redo, history.Op{Kind: history.OpCreateNode, Node: n.Clone()})
		dirtyNodes = append(dirtyNodes, n.ID)
	}

	for _, c := range conns {
		delta, err := s.doc.CreateConnection(c.Clone())
		if err != nil {
			return fmt.Errorf("import connection %s: %w", c.ID, err)
		}
		all = append(all, delta.Ops...)
		undo = append(undo, history.Op{Kind: history.OpDeleteConnection, ConnID: c.ID})
		redo = append(redo, history.Op{Kind: history.OpCreateConnection, Connection: c.Clone()})
		dirtyConns = append(dirtyConns, c.ID)
	}

	if len(all) == 0 {
		return nil
	}

	// Undo в обратном порядке: соединения раньше узлов
	for i, j := 0, len(undo)-1; i < j; i, j = i+1, j-1 {
		undo[i], undo[j] = undo[j], undo[i]
	}

	s.hist.Push(&history.Entry{Label: "import", Undo: undo, Redo: redo})
	s.afterLocalMutation(&crdt.Delta{Version: crdt.DeltaVersion, Ops: all}, dirtyNodes, nil, dirtyConns, nil)
	return nil
}

// SetSelection задает локальное (нереплицируемое) выделение.
func (s *Store) SetSelection(ids []string) {
	s.mu.Lock()
	s.selection = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.selection[id] = struct{}{}
	}
	s.mu.Unlock()
}

// Selection возвращает текущее выделение.
func (s *Store) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	return ids
}

// SetViewport задает локальный вьюпорт участника.
func (s *Store) SetViewport(v models.Viewport) {
	s.mu.Lock()
	s.viewport = v
	s.mu.Unlock()
}

// Viewport возвращает текущий вьюпорт.
func (s *Store) Viewport() models.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// CanUndo проверяет наличие собственных транзакций для отката.
func (s *Store) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo проверяет наличие транзакций для повтора.
func (s *Store) CanRedo() bool { return s.hist.CanRedo() }

// Undo откатывает последнюю собственную транзакцию. Чужие правки
// не затрагиваются: откат применяется как новая локальная мутация
// с новым Lamport-тегом.
func (s *Store) Undo() bool {
	entry, ok := s.hist.PopUndo()
	if !ok {
		return false
	}
	s.applyHistoryOps(entry.Undo)
	return true
}

// Redo повторяет последнюю откаченную транзакцию.
func (s *Store) Redo() bool {
	entry, ok := s.hist.PopRedo()
	if !ok {
		return false
	}
	s.applyHistoryOps(entry.Redo)
	return true
}

// applyHistoryOps применяет операции истории как локальные мутации,
// не записывая их обратно в историю.
func (s *Store) applyHistoryOps(ops []history.Op) {
	var all []crdt.Op
	var dirtyNodes, deletedNodes, dirtyConns, deletedConns []string

	collect := func(delta *crdt.Delta, err error) bool {
		if err != nil {
			s.logger.Warn("History op failed", "error", err)
			return false
		}
		all = append(all, delta.Ops...)
		return true
	}

	for _, op := range ops {
		switch op.Kind {
		case history.OpCreateNode:
			delta, err := s.doc.CreateNode(op.Node.Clone())
			if collect(delta, err) {
				dirtyNodes = append(dirtyNodes, op.Node.ID)
			}
		case history.OpDeleteNode:
			delta, err := s.doc.DeleteNode(op.NodeID)
			if collect(delta, err) {
				deletedNodes = append(deletedNodes, op.NodeID)
				// Каскад в дельте может содержать tombstone соединений
				for _, dop := range delta.Ops {
					if dop.Entity == crdt.EntityConnection {
						deletedConns = append(deletedConns, dop.ID)
					}
				}
			}
		case history.OpSetNodePosition:
			if collect(s.doc.SetNodePosition(op.NodeID, op.Position)) {
				dirtyNodes = append(dirtyNodes, op.NodeID)
			}
		case history.OpSetNodeSize:
			if collect(s.doc.SetNodeSize(op.NodeID, op.Size)) {
				dirtyNodes = append(dirtyNodes, op.NodeID)
			}
		case history.OpSetNodeContent:
			if collect(s.doc.SetNodeContent(op.NodeID, op.Content)) {
				dirtyNodes = append(dirtyNodes, op.NodeID)
			}
		case history.OpSetNodeStyle:
			if collect(s.doc.SetNodeStyle(op.NodeID, op.Style)) {
				dirtyNodes = append(dirtyNodes, op.NodeID)
			}
		case history.OpSetNodeMetadata:
			if collect(s.doc.SetNodeMetadata(op.NodeID, op.Metadata)) {
				dirtyNodes = append(dirtyNodes, op.NodeID)
			}
		case history.OpSetNodeZIndex:
			if collect(s.doc.SetNodeZIndex(op.NodeID, op.ZIndex)) {
				dirtyNodes = append(dirtyNodes, op.NodeID)
			}
		case history.OpCreateConnection:
			delta, err := s.doc.CreateConnection(op.Connection.Clone())
			if collect(delta, err) {
				dirtyConns = append(dirtyConns, op.Connection.ID)
			}
		case history.OpDeleteConnection:
			if collect(s.doc.DeleteConnection(op.ConnID)) {
				deletedConns = append(deletedConns, op.ConnID)
			}
		case history.OpSetConnectionLabel:
			if collect(s.doc.SetConnectionLabel(op.ConnID, op.Label)) {
				dirtyConns = append(dirtyConns, op.ConnID)
			}
		case history.OpSetConnectionAnchor:
			if collect(s.doc.SetConnectionAnchors(op.ConnID, op.SourceAnchor, op.TargetAnchor)) {
				dirtyConns = append(dirtyConns, op.ConnID)
			}
		}
	}

	if len(all) == 0 {
		return
	}

	s.afterLocalMutation(&crdt.Delta{Version: crdt.DeltaVersion, Ops: all},
		dirtyNodes, deletedNodes, dirtyConns, deletedConns)
}

// ApplyRemoteDelta вливает дельту другого участника. Некорректные дельты
// отбрасываются с логом и никогда не роняют merge-цикл; повторная доставка
// уже слитой дельты безопасна (merge идемпотентен). Удаленные правки
// не попадают ни в историю, ни в очередь персистентности: их сохраняет
// участник-источник.
func (s *Store) ApplyRemoteDelta(payload []byte, checkpoint int64) {
	if err := s.doc.MergeBytes(payload); err != nil {
		s.logger.Warn("Dropping malformed remote delta", "error", err)
		return
	}

	s.mu.Lock()
	if checkpoint > s.checkpoint {
		s.checkpoint = checkpoint
	}
	cp := s.checkpoint
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveCheckpoint(context.Background(), s.cfg.WorkspaceID, cp); err != nil {
			s.logger.Warn("Failed to save checkpoint", "error", err)
		}
	}

	s.notify()
}

// afterLocalMutation общий хвост каждой локальной мутации: пометить
// сущности dirty, перезапустить debounce-таймер, разослать дельту,
// уведомить подписчиков.
func (s *Store) afterLocalMutation(delta *crdt.Delta, dirtyNodes, deletedNodes, dirtyConns, deletedConns []string) {
	s.mu.Lock()
	for _, id := range dirtyNodes {
		s.dirtyNodes[id] = false
	}
	for _, id := range deletedNodes {
		s.dirtyNodes[id] = true
	}
	for _, id := range dirtyConns {
		s.dirtyConns[id] = false
	}
	for _, id := range deletedConns {
		s.dirtyConns[id] = true
	}
	s.scheduleFlushLocked()
	b := s.broadcaster
	s.mu.Unlock()

	if b != nil {
		payload, err := crdt.EncodeDelta(delta)
		if err != nil {
			s.logger.Error("Failed to encode delta", "error", err)
		} else if err := b.Send(payload); err != nil {
			// Транспортная ошибка не блокирует локальное редактирование:
			// после реконнекта транспорт перешлет полное состояние
			// документа, и отброшенная дельта доедет в его составе
			s.logger.Warn("Failed to broadcast delta", "error", err)
		}
	}

	s.notify()
}

// scheduleFlushLocked перезапускает debounce-таймер. Вызывать под мьютексом.
func (s *Store) scheduleFlushLocked() {
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Reset(s.cfg.Debounce)
		return
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, func() {
		if err := s.Flush(context.Background()); err != nil {
			s.logger.Warn("Debounced flush failed", "error", err)
		}
	})
}

// Flush немедленно записывает все накопленные изменения в Persistence
// Bridge. Вызывается debounce-таймером, на drag-end/blur и при закрытии:
// последнее видимое пользователем состояние гарантированно персистится.
// Writer всегда перечитывает актуальное состояние документа в момент
// выполнения — никогда значение, захваченное при постановке таймера.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	nodes := s.dirtyNodes
	conns := s.dirtyConns
	s.dirtyNodes = make(map[string]bool)
	s.dirtyConns = make(map[string]bool)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if len(nodes) == 0 && len(conns) == 0 {
		return nil
	}

	var errs []error
	failedNodes := make(map[string]bool)
	failedConns := make(map[string]bool)

	for id, deleted := range nodes {
		// Перечитываем текущее состояние: rapid edit не может быть
		// затерт устаревшим in-flight значением
		current := s.doc.GetNode(id)
		switch {
		case current != nil:
			n := clientapi.NodeToAPI(current)
			if err := s.withRetry(ctx, func() error {
				return s.bridge.UpsertNode(ctx, s.cfg.WorkspaceID, n)
			}); err != nil {
				errs = append(errs, fmt.Errorf("upsert node %s: %w", id, err))
				failedNodes[id] = deleted
			}
		case deleted:
			if err := s.withRetry(ctx, func() error {
				return s.bridge.DeleteNode(ctx, s.cfg.WorkspaceID, id)
			}); err != nil {
				errs = append(errs, fmt.Errorf("delete node %s: %w", id, err))
				failedNodes[id] = deleted
			}
		}
	}

	for id, deleted := range conns {
		current := s.doc.GetConnection(id)
		switch {
		case current != nil:
			c := clientapi.ConnectionToAPI(current)
			if err := s.withRetry(ctx, func() error {
				return s.bridge.UpsertConnection(ctx, s.cfg.WorkspaceID, c)
			}); err != nil {
				errs = append(errs, fmt.Errorf("upsert connection %s: %w", id, err))
				failedConns[id] = deleted
			}
		case deleted:
			if err := s.withRetry(ctx, func() error {
				return s.bridge.DeleteConnection(ctx, s.cfg.WorkspaceID, id)
			}); err != nil {
				errs = append(errs, fmt.Errorf("delete connection %s: %w", id, err))
				failedConns[id] = deleted
			}
		}
	}

	if s.cache != nil {
		if err := s.cache.SaveSnapshot(ctx, s.cfg.WorkspaceID, s.doc.Snapshot()); err != nil {
			s.logger.Warn("Failed to cache snapshot", "error", err)
		}
	}

	// Неудавшиеся записи возвращаются в dirty-набор: следующий flush
	// повторит их с актуальным на тот момент состоянием документа.
	// Пометки, поставленные правками во время записи, не затираются.
	if len(failedNodes) > 0 || len(failedConns) > 0 {
		s.mu.Lock()
		for id, deleted := range failedNodes {
			if _, marked := s.dirtyNodes[id]; !marked {
				s.dirtyNodes[id] = deleted
			}
		}
		for id, deleted := range failedConns {
			if _, marked := s.dirtyConns[id]; !marked {
				s.dirtyConns[id] = deleted
			}
		}
		s.scheduleFlushLocked()
		s.mu.Unlock()
	}

	// Локальное состояние остается авторитетным даже при деградации
	// персистентности: ошибки логируются, ничего не откатывается
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// withRetry выполняет запись с экспоненциальным backoff.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}

// Close закрывает store: немедленный flush отложенных записей, сброс
// истории. Транспорт закрывает владелец (не блокируясь на in-flight
// отправках).
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	err := s.Flush(ctx)
	s.hist.Clear()
	return err
}
