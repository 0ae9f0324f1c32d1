// Package geometry содержит чистые функции над множеством позиционированных
// сущностей: bounding box, выравнивание, равномерное распределение.
// Никакого I/O и разделяемого состояния; ошибки возвращаются значениями,
// потому что interaction-слой вызывает эти функции спекулятивно.
package geometry

import (
	"errors"
	"sort"

	"github.com/iudanet/boardkeeper/internal/models"
)

// ErrInsufficientEntities предупреждение: слишком мало незаблокированных
// сущностей для операции. Это не ошибка — вызывающий обязан трактовать
// ее как no-op, а не как сбой.
var ErrInsufficientEntities = errors.New("not enough unlocked entities")

// AlignMode режим выравнивания
type AlignMode string

const (
	AlignLeft    AlignMode = "left"
	AlignRight   AlignMode = "right"
	AlignTop     AlignMode = "top"
	AlignBottom  AlignMode = "bottom"
	AlignCenterH AlignMode = "centerH"
	AlignCenterV AlignMode = "centerV"
)

// Axis ось распределения
type Axis string

const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// Entity минимальное представление узла для геометрических операций.
type Entity struct {
	ID       string
	Position models.Point
	Size     models.Size
	Locked   bool
}

// Move результат: новая позиция одной сущности.
type Move struct {
	ID       string
	Position models.Point
}

// Result результат операции: перемещения плюс счетчики для отчета
// вида "2 aligned, 1 skipped".
type Result struct {
	Moves   []Move
	Moved   int
	Skipped int
}

// Rect axis-aligned bounding box.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// BoundingBox вычисляет минимальный прямоугольник, накрывающий все
// сущности. ok == false для пустого множества.
func BoundingBox(entities []Entity) (Rect, bool) {
	if len(entities) == 0 {
		return Rect{}, false
	}

	minX := entities[0].Position.X
	minY := entities[0].Position.Y
	maxX := entities[0].Position.X + entities[0].Size.Width
	maxY := entities[0].Position.Y + entities[0].Size.Height

	for _, e := range entities[1:] {
		if e.Position.X < minX {
			minX = e.Position.X
		}
		if e.Position.Y < minY {
			minY = e.Position.Y
		}
		if right := e.Position.X + e.Size.Width; right > maxX {
			maxX = right
		}
		if bottom := e.Position.Y + e.Size.Height; bottom > maxY {
			maxY = bottom
		}
	}

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// unlocked отфильтровывает заблокированные сущности.
// Они не участвуют ни в опорном bounding box, ни в результате.
func unlocked(entities []Entity) ([]Entity, int) {
	out := make([]Entity, 0, len(entities))
	skipped := 0
	for _, e := range entities {
		if e.Locked {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

// Align выравнивает незаблокированные сущности по опорному bounding box.
// Меньше двух незаблокированных — ErrInsufficientEntities и пустой результат.
func Align(entities []Entity, mode AlignMode) (Result, error) {
	free, skipped := unlocked(entities)
	if len(free) < 2 {
		return Result{Skipped: skipped}, ErrInsufficientEntities
	}

	bounds, _ := BoundingBox(free)

	moves := make([]Move, 0, len(free))
	for _, e := range free {
		p := e.Position
		switch mode {
		case AlignLeft:
			p.X = bounds.X
		case AlignRight:
			p.X = bounds.X + bounds.Width - e.Size.Width
		case AlignCenterH:
			p.X = bounds.X + bounds.Width/2 - e.Size.Width/2
		case AlignTop:
			p.Y = bounds.Y
		case AlignBottom:
			p.Y = bounds.Y + bounds.Height - e.Size.Height
		case AlignCenterV:
			p.Y = bounds.Y + bounds.Height/2 - e.Size.Height/2
		default:
			return Result{}, errors.New("unknown align mode")
		}
		moves = append(moves, Move{ID: e.ID, Position: p})
	}

	return Result{Moves: moves, Moved: len(moves), Skipped: skipped}, nil
}

// Distribute равномерно распределяет незаблокированные сущности вдоль оси.
// Первая и последняя (по ведущей кромке) сущности — якоря, они не двигаются.
// Промежуточные размещаются так, чтобы зазоры кромка-к-кромке были равными:
// наивное усреднение позиций дает визуально неравные промежутки при разных
// размерах сущностей.
// Меньше трех незаблокированных — ErrInsufficientEntities и пустой результат.
func Distribute(entities []Entity, axis Axis) (Result, error) {
	free, skipped := unlocked(entities)
	if len(free) < 3 {
		return Result{Skipped: skipped}, ErrInsufficientEntities
	}

	lead := func(e Entity) float64 {
		if axis == AxisVertical {
			return e.Position.Y
		}
		return e.Position.X
	}
	extent := func(e Entity) float64 {
		if axis == AxisVertical {
			return e.Size.Height
		}
		return e.Size.Width
	}

	sorted := make([]Entity, len(free))
	copy(sorted, free)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lead(sorted[i]) < lead(sorted[j])
	})

	first := sorted[0]
	last := sorted[len(sorted)-1]
	interior := sorted[1 : len(sorted)-1]

	// Пространство от задней кромки первого якоря до ведущей кромки последнего
	totalSpace := lead(last) - (lead(first) + extent(first))

	var interiorSize float64
	for _, e := range interior {
		interiorSize += extent(e)
	}

	freeSpace := totalSpace - interiorSize
	gap := freeSpace / float64(len(interior)+1)

	moves := make([]Move, 0, len(interior))
	cursor := lead(first) + extent(first) + gap
	for _, e := range interior {
		p := e.Position
		if axis == AxisVertical {
			p.Y = cursor
		} else {
			p.X = cursor
		}
		moves = append(moves, Move{ID: e.ID, Position: p})
		cursor += extent(e) + gap
	}

	return Result{Moves: moves, Moved: len(moves), Skipped: skipped}, nil
}
