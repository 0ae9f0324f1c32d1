package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/boardkeeper/internal/geometry"
)

// RunAlign выравнивает перечисленные узлы по указанному режиму
func (c *Cli) RunAlign(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: boardkeeper align <left|right|top|bottom|centerH|centerV> <id>...")
	}

	mode := geometry.AlignMode(args[0])
	switch mode {
	case geometry.AlignLeft, geometry.AlignRight, geometry.AlignTop,
		geometry.AlignBottom, geometry.AlignCenterH, geometry.AlignCenterV:
	default:
		return fmt.Errorf("unknown align mode: %s", args[0])
	}

	entities, err := c.collectEntities(args[1:])
	if err != nil {
		return err
	}

	result, err := geometry.Align(entities, mode)
	if err != nil {
		if errors.Is(err, geometry.ErrInsufficientEntities) {
			c.io.Println("Nothing to align: need at least 2 unlocked nodes.")
			return nil
		}
		return err
	}

	c.store.MoveNodes(result.Moves, "align "+string(mode))
	c.io.Printf("Aligned %d node(s)", result.Moved)
	if result.Skipped > 0 {
		c.io.Printf(", skipped %d locked", result.Skipped)
	}
	c.io.Println()

	return nil
}

// RunDistribute равномерно распределяет узлы вдоль оси
func (c *Cli) RunDistribute(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: boardkeeper distribute <horizontal|vertical> <id>...")
	}

	axis := geometry.Axis(args[0])
	if axis != geometry.AxisHorizontal && axis != geometry.AxisVertical {
		return fmt.Errorf("unknown axis: %s", args[0])
	}

	entities, err := c.collectEntities(args[1:])
	if err != nil {
		return err
	}

	result, err := geometry.Distribute(entities, axis)
	if err != nil {
		if errors.Is(err, geometry.ErrInsufficientEntities) {
			c.io.Println("Nothing to distribute: need at least 3 unlocked nodes.")
			return nil
		}
		return err
	}

	c.store.MoveNodes(result.Moves, "distribute "+string(axis))
	c.io.Printf("Distributed %d node(s)", result.Moved)
	if result.Skipped > 0 {
		c.io.Printf(", skipped %d locked", result.Skipped)
	}
	c.io.Println()

	return nil
}

// collectEntities собирает геометрические сущности по списку id;
// пустой список означает все узлы workspace.
func (c *Cli) collectEntities(ids []string) ([]geometry.Entity, error) {
	snap := c.store.Snapshot()

	if len(ids) == 0 {
		entities := make([]geometry.Entity, 0, len(snap.Nodes))
		for _, n := range snap.Nodes {
			entities = append(entities, geometry.Entity{
				ID: n.ID, Position: n.Position, Size: n.Size, Locked: n.Metadata.Locked,
			})
		}
		return entities, nil
	}

	entities := make([]geometry.Entity, 0, len(ids))
	for _, id := range ids {
		n, ok := snap.Nodes[id]
		if !ok {
			return nil, fmt.Errorf("node %s not found", id)
		}
		entities = append(entities, geometry.Entity{
			ID: n.ID, Position: n.Position, Size: n.Size, Locked: n.Metadata.Locked,
		})
	}
	return entities, nil
}
