package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/iudanet/boardkeeper/internal/models"
	"github.com/iudanet/boardkeeper/internal/workspace"
)

// RunAddNode создает узел и печатает его id
func (c *Cli) RunAddNode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-node", flag.ContinueOnError)
	x := fs.Float64("x", 0, "X coordinate")
	y := fs.Float64("y", 0, "Y coordinate")
	w := fs.Float64("w", 160, "Node width")
	h := fs.Float64("h", 90, "Node height")
	nodeType := fs.String("type", models.NodeTypeText, "Node type (text, shape, image, group, custom)")
	content := fs.String("content", "", "Node content as JSON (plain text is wrapped)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var raw json.RawMessage
	if *content != "" {
		if json.Valid([]byte(*content)) {
			raw = json.RawMessage(*content)
		} else {
			// Не-JSON аргумент считаем plain text
			wrapped, err := json.Marshal(map[string]string{"text": *content})
			if err != nil {
				return fmt.Errorf("failed to encode content: %w", err)
			}
			raw = wrapped
		}
	}

	id, err := c.store.CreateNode(models.Point{X: *x, Y: *y}, models.Size{Width: *w, Height: *h}, raw)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	if *nodeType != models.NodeTypeText {
		meta := models.NodeMetadata{NodeType: *nodeType}
		c.store.UpdateNode(id, workspace.NodeUpdate{Metadata: &meta})
	}

	c.io.Printf("Created node %s at (%.0f, %.0f)\n", id, *x, *y)
	return nil
}

// RunMoveNode перемещает узел
func (c *Cli) RunMoveNode(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing node id. Usage: boardkeeper move <id> -x X -y Y")
	}
	id := args[0]

	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	x := fs.Float64("x", 0, "New X coordinate")
	y := fs.Float64("y", 0, "New Y coordinate")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	node := c.store.Snapshot().Nodes[id]
	if node == nil {
		return fmt.Errorf("node %s not found", id)
	}
	if node.Metadata.Locked {
		return fmt.Errorf("node %s is locked", id)
	}

	pos := models.Point{X: *x, Y: *y}
	c.store.UpdateNode(id, workspace.NodeUpdate{Position: &pos})

	c.io.Printf("Moved node %s to (%.0f, %.0f)\n", id, *x, *y)
	return nil
}

// RunSetLock ставит или снимает lock-флаг узла
func (c *Cli) RunSetLock(ctx context.Context, args []string, locked bool) error {
	if len(args) == 0 {
		return fmt.Errorf("missing node id")
	}
	id := args[0]

	node := c.store.Snapshot().Nodes[id]
	if node == nil {
		return fmt.Errorf("node %s not found", id)
	}

	meta := node.Metadata
	meta.Locked = locked
	c.store.UpdateNode(id, workspace.NodeUpdate{Metadata: &meta})

	if locked {
		c.io.Printf("Locked node %s\n", id)
	} else {
		c.io.Printf("Unlocked node %s\n", id)
	}
	return nil
}

// RunDelete удаляет узел (с каскадом соединений) либо соединение
func (c *Cli) RunDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	yes := fs.Bool("y", false, "Skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("missing id. Usage: boardkeeper delete [-y] <id>")
	}
	id := rest[0]

	snap := c.store.Snapshot()

	if _, ok := snap.Nodes[id]; ok {
		attached := 0
		for _, conn := range snap.Connections {
			if conn.SourceNodeID == id || conn.TargetNodeID == id {
				attached++
			}
		}

		if !*yes {
			prompt := fmt.Sprintf("Delete node %s", id)
			if attached > 0 {
				prompt += fmt.Sprintf(" and %d attached connection(s)", attached)
			}
			answer, err := c.io.ReadInput(prompt + "? [y/N]: ")
			if err != nil {
				return err
			}
			if answer != "y" && answer != "Y" {
				c.io.Println("Aborted.")
				return nil
			}
		}

		c.store.DeleteNode(id)
		c.io.Printf("Deleted node %s (%d connection(s) removed)\n", id, attached)
		return nil
	}

	if _, ok := snap.Connections[id]; ok {
		c.store.DeleteConnection(id)
		c.io.Printf("Deleted connection %s\n", id)
		return nil
	}

	return fmt.Errorf("no node or connection with id %s", id)
}

// RunLink соединяет два узла
func (c *Cli) RunLink(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: boardkeeper link <source_id> <target_id> [-label TEXT]")
	}
	sourceID, targetID := args[0], args[1]

	fs := flag.NewFlagSet("link", flag.ContinueOnError)
	label := fs.String("label", "", "Connection label")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	connID, err := c.store.CreateConnection(sourceID, targetID,
		models.Anchor{Side: models.AnchorRight, Offset: 0.5},
		models.Anchor{Side: models.AnchorLeft, Offset: 0.5})
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}

	if *label != "" {
		c.store.SetConnectionLabel(connID, *label)
	}

	c.io.Printf("Linked %s -> %s (connection %s)\n", sourceID, targetID, connID)
	return nil
}
