package crdt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/iudanet/boardkeeper/internal/models"
)

var (
	// ErrNodeNotFound узел отсутствует или удален
	ErrNodeNotFound = errors.New("node not found")
	// ErrConnectionNotFound соединение отсутствует или удалено
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrEndpointMissing endpoint-узел соединения не существует
	ErrEndpointMissing = errors.New("connection endpoint node does not exist")
	// ErrAlreadyExists сущность с таким ID уже существует
	ErrAlreadyExists = errors.New("entity already exists")
)

// nodeRecord хранит узел вместе с LWW-регистрами его полей.
// presence — общий регистр create/delete: победивший по тегу create
// воскрешает запись, победивший delete превращает ее в tombstone.
type nodeRecord struct {
	node     *models.Node
	tags     map[string]Tag
	presence Tag
	created  bool // запись хоть раз видела create
	deleted  bool
}

type connRecord struct {
	conn     *models.Connection
	tags     map[string]Tag
	presence Tag
	created  bool
	deleted  bool
}

// Document — реплицированный документ workspace: единственный источник
// истины для узлов и соединений на стороне одного участника. Независимые
// конкурентные правки разных участников сходятся к идентичному состоянию
// без координации: каждое поле — LWW-регистр, merge коммутативен и
// идемпотентен.
type Document struct {
	clock *LamportClock
	nodes map[string]*nodeRecord
	conns map[string]*connRecord
	mu    sync.RWMutex
}

// NewDocument создает пустой документ с заданными часами.
func NewDocument(clock *LamportClock) *Document {
	return &Document{
		clock: clock,
		nodes: make(map[string]*nodeRecord),
		conns: make(map[string]*connRecord),
	}
}

// ActorID возвращает идентификатор локального участника.
func (d *Document) ActorID() string {
	return d.clock.GetActorID()
}

// tick выдает тег для нового локального события.
func (d *Document) tick() Tag {
	return Tag{Timestamp: d.clock.Tick(), ActorID: d.clock.GetActorID()}
}

// localDelta применяет локальные операции и возвращает дельту для рассылки.
// Локальные мутации проходят через тот же applyOp, что и удаленные —
// семантика применения одна на оба пути.
func (d *Document) localDelta(ops []Op) *Delta {
	for _, op := range ops {
		d.applyOp(op)
	}
	return &Delta{Version: DeltaVersion, Ops: ops}
}

// CreateNode добавляет новый узел. ID должен быть уже присвоен (UUID,
// генерируется на клиенте до любого сетевого обмена).
func (d *Document) CreateNode(n *models.Node) (*Delta, error) {
	if n.ID == "" {
		return nil, fmt.Errorf("node id is empty")
	}
	if len(n.Content) > 0 && !json.Valid(n.Content) {
		return nil, fmt.Errorf("node content is not valid JSON")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.nodes[n.ID]; ok && rec.created && !rec.deleted {
		return nil, fmt.Errorf("node %s: %w", n.ID, ErrAlreadyExists)
	}

	op := Op{
		Entity: EntityNode,
		ID:     n.ID,
		Field:  FieldCreate,
		Value:  mustMarshal(n),
		Tag:    d.tick(),
	}
	return d.localDelta([]Op{op}), nil
}

// setNodeField общий путь для обновления одного поля узла.
func (d *Document) setNodeField(id, field string, value any) (*Delta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.nodes[id]
	if !ok || !rec.created || rec.deleted {
		return nil, fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}

	op := Op{
		Entity: EntityNode,
		ID:     id,
		Field:  field,
		Value:  mustMarshal(value),
		Tag:    d.tick(),
	}
	return d.localDelta([]Op{op}), nil
}

// SetNodePosition обновляет позицию узла.
func (d *Document) SetNodePosition(id string, p models.Point) (*Delta, error) {
	return d.setNodeField(id, FieldPosition, p)
}

// SetNodeSize обновляет размер узла.
func (d *Document) SetNodeSize(id string, s models.Size) (*Delta, error) {
	return d.setNodeField(id, FieldSize, s)
}

// SetNodeContent обновляет непрозрачный контент узла.
func (d *Document) SetNodeContent(id string, content json.RawMessage) (*Delta, error) {
	if len(content) == 0 {
		content = json.RawMessage("null")
	}
	if !json.Valid(content) {
		return nil, fmt.Errorf("node content is not valid JSON")
	}
	return d.setNodeField(id, FieldContent, content)
}

// SetNodeStyle обновляет стиль узла.
func (d *Document) SetNodeStyle(id string, style map[string]string) (*Delta, error) {
	return d.setNodeField(id, FieldStyle, style)
}

// SetNodeMetadata обновляет метаданные узла (тип, lock-флаг).
func (d *Document) SetNodeMetadata(id string, m models.NodeMetadata) (*Delta, error) {
	return d.setNodeField(id, FieldMetadata, m)
}

// SetNodeZIndex обновляет z-порядок узла.
func (d *Document) SetNodeZIndex(id string, z int) (*Delta, error) {
	return d.setNodeField(id, FieldZIndex, z)
}

// DeleteNode помечает узел tombstone. Каскадное удаление соединений —
// ответственность вызывающего слоя (workspace store), который строит
// одну дельту на весь каскад.
func (d *Document) DeleteNode(id string) (*Delta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.nodes[id]
	if !ok || !rec.created || rec.deleted {
		return nil, fmt.Errorf("node %s: %w", id, ErrNodeNotFound)
	}

	ops := []Op{{
		Entity: EntityNode,
		ID:     id,
		Field:  FieldDelete,
		Tag:    d.tick(),
	}}

	// Каскад: tombstone для всех живых соединений с этим endpoint
	for cid, crec := range d.conns {
		if !crec.created || crec.deleted {
			continue
		}
		if crec.conn.SourceNodeID == id || crec.conn.TargetNodeID == id {
			ops = append(ops, Op{
				Entity: EntityConnection,
				ID:     cid,
				Field:  FieldDelete,
				Tag:    d.tick(),
			})
		}
	}

	return d.localDelta(ops), nil
}

// CreateConnection добавляет соединение. Оба endpoint-узла должны
// существовать в момент создания, иначе ErrEndpointMissing.
func (d *Document) CreateConnection(c *models.Connection) (*Delta, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("connection id is empty")
	}
	if err := c.SourceAnchor.Validate(); err != nil {
		return nil, fmt.Errorf("source anchor: %w", err)
	}
	if err := c.TargetAnchor.Validate(); err != nil {
		return nil, fmt.Errorf("target anchor: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if rec, ok := d.conns[c.ID]; ok && rec.created && !rec.deleted {
		return nil, fmt.Errorf("connection %s: %w", c.ID, ErrAlreadyExists)
	}
	if !d.nodeAlive(c.SourceNodeID) {
		return nil, fmt.Errorf("source node %s: %w", c.SourceNodeID, ErrEndpointMissing)
	}
	if !d.nodeAlive(c.TargetNodeID) {
		return nil, fmt.Errorf("target node %s: %w", c.TargetNodeID, ErrEndpointMissing)
	}

	op := Op{
		Entity: EntityConnection,
		ID:     c.ID,
		Field:  FieldCreate,
		Value:  mustMarshal(c),
		Tag:    d.tick(),
	}
	return d.localDelta([]Op{op}), nil
}

func (d *Document) setConnField(id, field string, value any) (*Delta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.conns[id]
	if !ok || !rec.created || rec.deleted {
		return nil, fmt.Errorf("connection %s: %w", id, ErrConnectionNotFound)
	}

	op := Op{
		Entity: EntityConnection,
		ID:     id,
		Field:  field,
		Value:  mustMarshal(value),
		Tag:    d.tick(),
	}
	return d.localDelta([]Op{op}), nil
}

// SetConnectionAnchors обновляет точки крепления соединения.
func (d *Document) SetConnectionAnchors(id string, source, target models.Anchor) (*Delta, error) {
	if err := source.Validate(); err != nil {
		return nil, fmt.Errorf("source anchor: %w", err)
	}
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("target anchor: %w", err)
	}
	return d.setConnField(id, FieldAnchors, AnchorsValue{Source: source, Target: target})
}

// SetConnectionLabel обновляет подпись соединения.
func (d *Document) SetConnectionLabel(id, label string) (*Delta, error) {
	return d.setConnField(id, FieldLabel, label)
}

// SetConnectionStyle обновляет стиль соединения.
func (d *Document) SetConnectionStyle(id string, style map[string]string) (*Delta, error) {
	return d.setConnField(id, FieldStyle, style)
}

// DeleteConnection помечает соединение tombstone.
func (d *Document) DeleteConnection(id string) (*Delta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.conns[id]
	if !ok || !rec.created || rec.deleted {
		return nil, fmt.Errorf("connection %s: %w", id, ErrConnectionNotFound)
	}

	op := Op{
		Entity: EntityConnection,
		ID:     id,
		Field:  FieldDelete,
		Tag:    d.tick(),
	}
	return d.localDelta([]Op{op}), nil
}

// nodeAlive true если узел создан и не удален. Вызывать под мьютексом.
func (d *Document) nodeAlive(id string) bool {
	rec, ok := d.nodes[id]
	return ok && rec.created && !rec.deleted
}

// Merge вливает дельту в документ. Операция коммутативна и идемпотентна:
// повторное применение уже слитой дельты не меняет состояние. Некорректная
// дельта отклоняется целиком, состояние не меняется.
func (d *Document) Merge(delta *Delta) error {
	if delta == nil {
		return fmt.Errorf("nil delta")
	}
	if delta.Version != DeltaVersion {
		return fmt.Errorf("unsupported delta version: %d", delta.Version)
	}

	// Сначала валидируем все операции, потом применяем — всё или ничего
	var maxTS int64
	for _, op := range delta.Ops {
		if err := validateOp(op); err != nil {
			return fmt.Errorf("invalid op: %w", err)
		}
		if op.Tag.Timestamp > maxTS {
			maxTS = op.Tag.Timestamp
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, op := range delta.Ops {
		d.applyOp(op)
	}

	d.clock.Update(maxTS)
	return nil
}

// MergeBytes декодирует и вливает сериализованную дельту.
func (d *Document) MergeBytes(data []byte) error {
	delta, err := DecodeDelta(data)
	if err != nil {
		return err
	}
	return d.Merge(delta)
}

// applyOp применяет одну операцию по правилам LWW. Вызывать под мьютексом.
// Операции уже прошли validateOp, поэтому decode здесь не может упасть.
func (d *Document) applyOp(op Op) {
	switch op.Entity {
	case EntityNode:
		d.applyNodeOp(op)
	case EntityConnection:
		d.applyConnOp(op)
	}
}

func (d *Document) applyNodeOp(op Op) {
	rec, ok := d.nodes[op.ID]
	if !ok {
		rec = &nodeRecord{
			node: &models.Node{ID: op.ID},
			tags: make(map[string]Tag),
		}
		d.nodes[op.ID] = rec
	}

	switch op.Field {
	case FieldCreate:
		if op.Tag.Newer(rec.presence) {
			rec.presence = op.Tag
			rec.deleted = false
		}
		rec.created = true
		var n models.Node
		_ = json.Unmarshal(op.Value, &n)
		n.ID = op.ID
		// Поля из create участвуют в LWW наравне с прямыми обновлениями:
		// конкурентная правка поля с более новым тегом не затирается
		d.setIfNewer(rec, FieldPosition, op.Tag, func() { rec.node.Position = n.Position })
		d.setIfNewer(rec, FieldSize, op.Tag, func() { rec.node.Size = n.Size })
		d.setIfNewer(rec, FieldContent, op.Tag, func() { rec.node.Content = n.Content })
		d.setIfNewer(rec, FieldStyle, op.Tag, func() { rec.node.Style = n.Style })
		d.setIfNewer(rec, FieldMetadata, op.Tag, func() { rec.node.Metadata = n.Metadata })
		d.setIfNewer(rec, FieldZIndex, op.Tag, func() { rec.node.ZIndex = n.ZIndex })
	case FieldDelete:
		if op.Tag.Newer(rec.presence) {
			rec.presence = op.Tag
			rec.deleted = true
		}
	case FieldPosition:
		d.setIfNewer(rec, FieldPosition, op.Tag, func() {
			var p models.Point
			_ = json.Unmarshal(op.Value, &p)
			rec.node.Position = p
		})
	case FieldSize:
		d.setIfNewer(rec, FieldSize, op.Tag, func() {
			var s models.Size
			_ = json.Unmarshal(op.Value, &s)
			rec.node.Size = s
		})
	case FieldContent:
		d.setIfNewer(rec, FieldContent, op.Tag, func() {
			rec.node.Content = append(json.RawMessage(nil), op.Value...)
		})
	case FieldStyle:
		d.setIfNewer(rec, FieldStyle, op.Tag, func() {
			var st map[string]string
			_ = json.Unmarshal(op.Value, &st)
			rec.node.Style = st
		})
	case FieldMetadata:
		d.setIfNewer(rec, FieldMetadata, op.Tag, func() {
			var m models.NodeMetadata
			_ = json.Unmarshal(op.Value, &m)
			rec.node.Metadata = m
		})
	case FieldZIndex:
		d.setIfNewer(rec, FieldZIndex, op.Tag, func() {
			var z int
			_ = json.Unmarshal(op.Value, &z)
			rec.node.ZIndex = z
		})
	}
}

// setIfNewer обновляет поле, если тег операции новее текущего регистра.
func (d *Document) setIfNewer(rec *nodeRecord, field string, tag Tag, apply func()) {
	if tag.Newer(rec.tags[field]) {
		rec.tags[field] = tag
		apply()
	}
}

func (d *Document) setConnIfNewer(rec *connRecord, field string, tag Tag, apply func()) {
	if tag.Newer(rec.tags[field]) {
		rec.tags[field] = tag
		apply()
	}
}

func (d *Document) applyConnOp(op Op) {
	rec, ok := d.conns[op.ID]
	if !ok {
		rec = &connRecord{
			conn: &models.Connection{ID: op.ID},
			tags: make(map[string]Tag),
		}
		d.conns[op.ID] = rec
	}

	switch op.Field {
	case FieldCreate:
		if op.Tag.Newer(rec.presence) {
			rec.presence = op.Tag
			rec.deleted = false
		}
		rec.created = true
		var c models.Connection
		_ = json.Unmarshal(op.Value, &c)
		c.ID = op.ID
		// Endpoint'ы неизменяемы после создания
		rec.conn.SourceNodeID = c.SourceNodeID
		rec.conn.TargetNodeID = c.TargetNodeID
		d.setConnIfNewer(rec, FieldAnchors, op.Tag, func() {
			rec.conn.SourceAnchor = c.SourceAnchor
			rec.conn.TargetAnchor = c.TargetAnchor
		})
		d.setConnIfNewer(rec, FieldLabel, op.Tag, func() { rec.conn.Label = c.Label })
		d.setConnIfNewer(rec, FieldStyle, op.Tag, func() { rec.conn.Style = c.Style })
	case FieldDelete:
		if op.Tag.Newer(rec.presence) {
			rec.presence = op.Tag
			rec.deleted = true
		}
	case FieldAnchors:
		d.setConnIfNewer(rec, FieldAnchors, op.Tag, func() {
			var a AnchorsValue
			_ = json.Unmarshal(op.Value, &a)
			rec.conn.SourceAnchor = a.Source
			rec.conn.TargetAnchor = a.Target
		})
	case FieldLabel:
		d.setConnIfNewer(rec, FieldLabel, op.Tag, func() {
			var l string
			_ = json.Unmarshal(op.Value, &l)
			rec.conn.Label = l
		})
	case FieldStyle:
		d.setConnIfNewer(rec, FieldStyle, op.Tag, func() {
			var st map[string]string
			_ = json.Unmarshal(op.Value, &st)
			rec.conn.Style = st
		})
	}
}

// Snapshot возвращает консистентную глубокую копию состояния.
// Tombstone-записи исключаются; соединения, у которых хотя бы один
// endpoint-узел мертв (orphaned), отфильтровываются на чтении и никогда
// не попадают в снимок.
func (d *Document) Snapshot() *models.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := &models.Snapshot{
		Nodes:       make(map[string]*models.Node),
		Connections: make(map[string]*models.Connection),
	}

	for id, rec := range d.nodes {
		if !rec.created || rec.deleted {
			continue
		}
		snap.Nodes[id] = rec.node.Clone()
	}

	for id, rec := range d.conns {
		if !rec.created || rec.deleted {
			continue
		}
		if _, ok := snap.Nodes[rec.conn.SourceNodeID]; !ok {
			continue
		}
		if _, ok := snap.Nodes[rec.conn.TargetNodeID]; !ok {
			continue
		}
		snap.Connections[id] = rec.conn.Clone()
	}

	return snap
}

// GetNode возвращает копию узла или nil, если узел отсутствует/удален.
func (d *Document) GetNode(id string) *models.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.nodes[id]
	if !ok || !rec.created || rec.deleted {
		return nil
	}
	return rec.node.Clone()
}

// GetConnection возвращает копию соединения или nil.
func (d *Document) GetConnection(id string) *models.Connection {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.conns[id]
	if !ok || !rec.created || rec.deleted {
		return nil
	}
	return rec.conn.Clone()
}

// NodeExists проверяет наличие живого узла.
func (d *Document) NodeExists(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nodeAlive(id)
}

// Seed заполняет пустой документ состоянием cold-load снимка.
// Снимок приходит из Persistence Bridge без CRDT-тегов, поэтому записи
// получают минимальный тег (timestamp 1, пустой actor): любая настоящая
// правка — локальная или удаленная — выигрывает у посеянного значения.
func (d *Document) Seed(snap *models.Snapshot) {
	seedTag := Tag{Timestamp: 1, ActorID: ""}

	d.mu.Lock()
	defer d.mu.Unlock()

	for id, n := range snap.Nodes {
		rec := &nodeRecord{
			node:     n.Clone(),
			tags:     make(map[string]Tag),
			presence: seedTag,
			created:  true,
		}
		for _, f := range []string{FieldPosition, FieldSize, FieldContent, FieldStyle, FieldMetadata, FieldZIndex} {
			rec.tags[f] = seedTag
		}
		d.nodes[id] = rec
	}

	for id, c := range snap.Connections {
		rec := &connRecord{
			conn:     c.Clone(),
			tags:     make(map[string]Tag),
			presence: seedTag,
			created:  true,
		}
		for _, f := range []string{FieldAnchors, FieldLabel, FieldStyle} {
			rec.tags[f] = seedTag
		}
		d.conns[id] = rec
	}
}

// ExportState выгружает полное состояние документа (включая tombstone)
// как одну дельту. Используется для resync-response: слияние полного
// состояния — та же операция Merge, что и для инкрементальных дельт.
func (d *Document) ExportState() *Delta {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ops []Op

	for id, rec := range d.nodes {
		if !rec.created {
			continue
		}
		// Tombstone выгружается одной delete-операцией: create с равным
		// тегом на принимающей стороне проиграл бы delete-регистру
		if rec.deleted {
			ops = append(ops, Op{Entity: EntityNode, ID: id, Field: FieldDelete, Tag: rec.presence})
			continue
		}
		ops = append(ops, Op{
			Entity: EntityNode,
			ID:     id,
			Field:  FieldCreate,
			Value:  mustMarshal(rec.node),
			Tag:    rec.presence,
		})
		for field, tag := range rec.tags {
			ops = append(ops, d.fieldOp(EntityNode, id, field, tag, rec, nil))
		}
	}

	for id, rec := range d.conns {
		if !rec.created {
			continue
		}
		if rec.deleted {
			ops = append(ops, Op{Entity: EntityConnection, ID: id, Field: FieldDelete, Tag: rec.presence})
			continue
		}
		ops = append(ops, Op{
			Entity: EntityConnection,
			ID:     id,
			Field:  FieldCreate,
			Value:  mustMarshal(rec.conn),
			Tag:    rec.presence,
		})
		for field, tag := range rec.tags {
			ops = append(ops, d.fieldOp(EntityConnection, id, field, tag, nil, rec))
		}
	}

	return &Delta{Version: DeltaVersion, Ops: ops}
}

// fieldOp строит операцию с текущим значением поля и его тегом.
func (d *Document) fieldOp(entity, id, field string, tag Tag, nrec *nodeRecord, crec *connRecord) Op {
	op := Op{Entity: entity, ID: id, Field: field, Tag: tag}

	if nrec != nil {
		switch field {
		case FieldPosition:
			op.Value = mustMarshal(nrec.node.Position)
		case FieldSize:
			op.Value = mustMarshal(nrec.node.Size)
		case FieldContent:
			if len(nrec.node.Content) == 0 {
				op.Value = json.RawMessage("null")
			} else {
				op.Value = append(json.RawMessage(nil), nrec.node.Content...)
			}
		case FieldStyle:
			op.Value = mustMarshal(nrec.node.Style)
		case FieldMetadata:
			op.Value = mustMarshal(nrec.node.Metadata)
		case FieldZIndex:
			op.Value = mustMarshal(nrec.node.ZIndex)
		}
	}

	if crec != nil {
		switch field {
		case FieldAnchors:
			op.Value = mustMarshal(AnchorsValue{Source: crec.conn.SourceAnchor, Target: crec.conn.TargetAnchor})
		case FieldLabel:
			op.Value = mustMarshal(crec.conn.Label)
		case FieldStyle:
			op.Value = mustMarshal(crec.conn.Style)
		}
	}

	return op
}
