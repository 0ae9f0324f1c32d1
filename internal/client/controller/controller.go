// Package controller — interaction-слой полотна: переводит pointer- и
// keyboard-ввод хостового UI в вызовы geometry engine и мутации
// workspace store. Сам не хранит состояние документа.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/iudanet/boardkeeper/internal/codec"
	"github.com/iudanet/boardkeeper/internal/geometry"
	"github.com/iudanet/boardkeeper/internal/history"
	"github.com/iudanet/boardkeeper/internal/models"
	"github.com/iudanet/boardkeeper/internal/workspace"
)

// Mode режим pointer-взаимодействия
type Mode string

const (
	ModeIdle    Mode = "idle"
	ModeDrag    Mode = "drag"
	ModeResize  Mode = "resize"
	ModeMarquee Mode = "marquee"
	ModeLink    Mode = "link"
)

// resizeHandleSize зона захвата угла узла для resize, в координатах полотна
const resizeHandleSize = 8.0

// minNodeSize минимальный размер узла при resize
const minNodeSize = 20.0

// Modifiers состояние клавиш-модификаторов при pointer-событии
type Modifiers struct {
	Shift bool
	Ctrl  bool
	Alt   bool
}

// Config параметры контроллера
type Config struct {
	// ViewWidth/ViewHeight размер видимой области: центр вьюпорта
	// нужен импорту для позиционирования вставляемой группы
	ViewWidth  float64
	ViewHeight float64

	// ExportSink принимает сериализованный экспорт (файл, буфер обмена)
	ExportSink func(data []byte) error

	// ImportSource возвращает содержимое импортируемого файла
	ImportSource func() ([]byte, error)
}

// Controller транслирует ввод в действия store.
type Controller struct {
	store  *workspace.Store
	cfg    Config
	logger *slog.Logger

	commands map[Chord]*Command

	mode        Mode
	textEditing bool

	dragStart   models.Point
	dragOrigins map[string]models.Point

	resizeID     string
	resizeOrigin models.Size

	marqueeStart models.Point
	marqueeEnd   models.Point

	linkSourceID string
}

// New создает контроллер с командной таблицей по умолчанию.
func New(store *workspace.Store, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		store:  store,
		cfg:    cfg,
		logger: logger,
		mode:   ModeIdle,
	}
	c.commands = defaultCommands()
	return c
}

// Mode возвращает текущий режим взаимодействия.
func (c *Controller) Mode() Mode { return c.mode }

// SetTextEditing сообщает контроллеру, что каретка находится внутри
// контента узла: вся keyboard-поверхность при этом отключена.
func (c *Controller) SetTextEditing(editing bool) {
	c.textEditing = editing
}

// BeginLink переводит контроллер в режим создания соединения:
// следующие два клика по узлам дают source и target.
func (c *Controller) BeginLink() {
	c.mode = ModeLink
	c.linkSourceID = ""
}

// nodeAt возвращает верхний (по z-index) узел под точкой.
func (c *Controller) nodeAt(p models.Point) *models.Node {
	snap := c.store.Snapshot()

	nodes := make([]*models.Node, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ZIndex > nodes[j].ZIndex
	})

	for _, n := range nodes {
		if p.X >= n.Position.X && p.X <= n.Position.X+n.Size.Width &&
			p.Y >= n.Position.Y && p.Y <= n.Position.Y+n.Size.Height {
			return n
		}
	}
	return nil
}

// inResizeHandle проверяет попадание в resize-угол (правый нижний).
func inResizeHandle(n *models.Node, p models.Point) bool {
	corner := models.Point{
		X: n.Position.X + n.Size.Width,
		Y: n.Position.Y + n.Size.Height,
	}
	return p.X >= corner.X-resizeHandleSize && p.X <= corner.X+resizeHandleSize &&
		p.Y >= corner.Y-resizeHandleSize && p.Y <= corner.Y+resizeHandleSize
}

// PointerDown начало жеста.
func (c *Controller) PointerDown(p models.Point, mods Modifiers) {
	if c.mode == ModeLink {
		c.pointerDownLink(p)
		return
	}

	hit := c.nodeAt(p)
	if hit == nil {
		// Пустое полотно: marquee-выделение
		c.mode = ModeMarquee
		c.marqueeStart = p
		c.marqueeEnd = p
		if !mods.Shift {
			c.store.SetSelection(nil)
		}
		return
	}

	// Выделение: shift добавляет, обычный клик заменяет (если узел
	// еще не в выделении)
	selected := c.selectionSet()
	if _, ok := selected[hit.ID]; !ok {
		if mods.Shift {
			selected[hit.ID] = struct{}{}
		} else {
			selected = map[string]struct{}{hit.ID: {}}
		}
		c.store.SetSelection(keys(selected))
	}

	if hit.Metadata.Locked {
		// Заблокированный узел можно выделить, но не двигать и не менять размер
		return
	}

	if inResizeHandle(hit, p) {
		c.mode = ModeResize
		c.resizeID = hit.ID
		c.resizeOrigin = hit.Size
		c.dragStart = p
		return
	}

	// Drag всей выделенной группы; заблокированные узлы исключаются
	c.mode = ModeDrag
	c.dragStart = p
	c.dragOrigins = make(map[string]models.Point)
	snap := c.store.Snapshot()
	for id := range selected {
		n, ok := snap.Nodes[id]
		if !ok || n.Metadata.Locked {
			continue
		}
		c.dragOrigins[id] = n.Position
	}
}

func (c *Controller) pointerDownLink(p models.Point) {
	hit := c.nodeAt(p)
	if hit == nil {
		// Клик мимо узла отменяет link-режим
		c.mode = ModeIdle
		c.linkSourceID = ""
		return
	}

	if c.linkSourceID == "" {
		c.linkSourceID = hit.ID
		return
	}
	if hit.ID == c.linkSourceID {
		return
	}

	_, err := c.store.CreateConnection(c.linkSourceID, hit.ID,
		models.Anchor{Side: models.AnchorRight, Offset: 0.5},
		models.Anchor{Side: models.AnchorLeft, Offset: 0.5})
	if err != nil {
		c.logger.Warn("Link failed", "source", c.linkSourceID, "target", hit.ID, "error", err)
	}

	c.mode = ModeIdle
	c.linkSourceID = ""
}

// PointerMove продолжение жеста.
func (c *Controller) PointerMove(p models.Point) {
	switch c.mode {
	case ModeDrag:
		dx := p.X - c.dragStart.X
		dy := p.Y - c.dragStart.Y
		for id, origin := range c.dragOrigins {
			pos := models.Point{X: origin.X + dx, Y: origin.Y + dy}
			c.store.ApplyTransient(id, workspace.NodeUpdate{Position: &pos})
		}
	case ModeResize:
		dx := p.X - c.dragStart.X
		dy := p.Y - c.dragStart.Y
		size := models.Size{
			Width:  max(minNodeSize, c.resizeOrigin.Width+dx),
			Height: max(minNodeSize, c.resizeOrigin.Height+dy),
		}
		c.store.ApplyTransient(c.resizeID, workspace.NodeUpdate{Size: &size})
	case ModeMarquee:
		c.marqueeEnd = p
	}
}

// PointerUp завершение жеста. Завершенный drag/resize фиксируется одной
// undo-транзакцией и немедленным flush: последнее визуальное состояние
// гарантированно персистится.
func (c *Controller) PointerUp(ctx context.Context) {
	switch c.mode {
	case ModeDrag:
		c.commitDrag()
	case ModeResize:
		c.commitResize()
	case ModeMarquee:
		c.commitMarquee()
	}

	if c.mode != ModeLink {
		c.mode = ModeIdle
	}

	if err := c.store.Flush(ctx); err != nil {
		c.logger.Warn("Flush after gesture failed", "error", err)
	}
}

func (c *Controller) commitDrag() {
	snap := c.store.Snapshot()
	var undo, redo []history.Op
	moved := false

	for id, origin := range c.dragOrigins {
		n, ok := snap.Nodes[id]
		if !ok || n.Position == origin {
			continue
		}
		moved = true
		undo = append(undo, history.Op{Kind: history.OpSetNodePosition, NodeID: id, Position: origin})
		redo = append(redo, history.Op{Kind: history.OpSetNodePosition, NodeID: id, Position: n.Position})
	}

	if moved {
		c.store.CommitTransaction(&history.Entry{Label: "move", Undo: undo, Redo: redo})
	}
	c.dragOrigins = nil
}

func (c *Controller) commitResize() {
	n := c.store.Snapshot().Nodes[c.resizeID]
	if n != nil && n.Size != c.resizeOrigin {
		c.store.CommitTransaction(&history.Entry{
			Label: "resize",
			Undo:  []history.Op{{Kind: history.OpSetNodeSize, NodeID: c.resizeID, Size: c.resizeOrigin}},
			Redo:  []history.Op{{Kind: history.OpSetNodeSize, NodeID: c.resizeID, Size: n.Size}},
		})
	}
	c.resizeID = ""
}

func (c *Controller) commitMarquee() {
	x1, x2 := minMax(c.marqueeStart.X, c.marqueeEnd.X)
	y1, y2 := minMax(c.marqueeStart.Y, c.marqueeEnd.Y)

	var ids []string
	for id, n := range c.store.Snapshot().Nodes {
		if n.Position.X+n.Size.Width >= x1 && n.Position.X <= x2 &&
			n.Position.Y+n.Size.Height >= y1 && n.Position.Y <= y2 {
			ids = append(ids, id)
		}
	}
	c.store.SetSelection(ids)
}

// selectionEntities собирает геометрические сущности текущего выделения,
// включая lock-флаг: geometry engine сам исключит заблокированные.
func (c *Controller) selectionEntities() []geometry.Entity {
	snap := c.store.Snapshot()
	sel := c.store.Selection()

	entities := make([]geometry.Entity, 0, len(sel))
	for _, id := range sel {
		n, ok := snap.Nodes[id]
		if !ok {
			continue
		}
		entities = append(entities, geometry.Entity{
			ID:       id,
			Position: n.Position,
			Size:     n.Size,
			Locked:   n.Metadata.Locked,
		})
	}
	return entities
}

// AlignSelection выравнивает выделение. Недостаток незаблокированных
// узлов — предупреждение и no-op, не ошибка.
func (c *Controller) AlignSelection(mode geometry.AlignMode) geometry.Result {
	result, err := geometry.Align(c.selectionEntities(), mode)
	if err != nil {
		c.logger.Info("Align skipped", "mode", string(mode), "reason", err)
		return result
	}

	c.store.MoveNodes(result.Moves, "align "+string(mode))
	c.logger.Info("Aligned selection",
		"mode", string(mode), "aligned", result.Moved, "skipped", result.Skipped)
	return result
}

// DistributeSelection равномерно распределяет выделение вдоль оси.
func (c *Controller) DistributeSelection(axis geometry.Axis) geometry.Result {
	result, err := geometry.Distribute(c.selectionEntities(), axis)
	if err != nil {
		c.logger.Info("Distribute skipped", "axis", string(axis), "reason", err)
		return result
	}

	c.store.MoveNodes(result.Moves, "distribute "+string(axis))
	c.logger.Info("Distributed selection",
		"axis", string(axis), "moved", result.Moved, "skipped", result.Skipped)
	return result
}

// ToggleLock переключает lock-флаг узла.
func (c *Controller) ToggleLock(id string) {
	n := c.store.Snapshot().Nodes[id]
	if n == nil {
		return
	}
	meta := n.Metadata
	meta.Locked = !meta.Locked
	c.store.UpdateNode(id, workspace.NodeUpdate{Metadata: &meta})
}

// ExportSelection экспортирует выделение (или весь workspace при пустом
// выделении) через ExportSink.
func (c *Controller) ExportSelection() error {
	if c.cfg.ExportSink == nil {
		return fmt.Errorf("export sink is not configured")
	}

	data, err := codec.Export(c.store.Snapshot(), c.store.Selection(), time.Now())
	if err != nil {
		return err
	}
	return c.cfg.ExportSink(data)
}

// ImportFile импортирует файл из ImportSource: валидация, ремап
// идентификаторов, позиционирование группы в центр вьюпорта.
func (c *Controller) ImportFile() error {
	if c.cfg.ImportSource == nil {
		return fmt.Errorf("import source is not configured")
	}

	data, err := c.cfg.ImportSource()
	if err != nil {
		return fmt.Errorf("failed to read import data: %w", err)
	}

	center := c.store.Viewport().Center(c.cfg.ViewWidth, c.cfg.ViewHeight)
	result, err := codec.Import(data, center)
	if err != nil {
		return err
	}

	for _, dropped := range result.Dropped {
		c.logger.Warn("Dropping connection with endpoint outside import set", "conn_id", dropped)
	}

	if err := c.store.ImportEntities(result.Nodes, result.Connections); err != nil {
		return err
	}

	// Выделяем вставленную группу
	ids := make([]string, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		ids = append(ids, n.ID)
	}
	c.store.SetSelection(ids)

	c.logger.Info("Imported entities",
		"nodes", len(result.Nodes),
		"connections", len(result.Connections),
		"dropped", len(result.Dropped))
	return nil
}

func (c *Controller) selectionSet() map[string]struct{} {
	sel := c.store.Selection()
	out := make(map[string]struct{}, len(sel))
	for _, id := range sel {
		out[id] = struct{}{}
	}
	return out
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func minMax(a, b float64) (float64, float64) {
	if a <= b {
		return a, b
	}
	return b, a
}
