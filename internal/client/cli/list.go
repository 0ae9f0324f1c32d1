package cli

import (
	"context"
	"sort"
)

// RunList печатает узлы и соединения workspace
func (c *Cli) RunList(ctx context.Context, args []string) error {
	snap := c.store.Snapshot()

	c.io.Printf("=== Workspace %s ===\n", c.cfg.WorkspaceID)
	c.io.Println()

	if len(snap.Nodes) == 0 {
		c.io.Println("No nodes found.")
		c.io.Println()
		c.io.Println("Use 'boardkeeper add-node' to create your first node.")
		return nil
	}

	nodeIDs := make([]string, 0, len(snap.Nodes))
	for id := range snap.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool {
		a, b := snap.Nodes[nodeIDs[i]], snap.Nodes[nodeIDs[j]]
		if a.ZIndex != b.ZIndex {
			return a.ZIndex < b.ZIndex
		}
		return a.ID < b.ID
	})

	c.io.Printf("Found %d node(s):\n", len(nodeIDs))
	c.io.Println()
	for i, id := range nodeIDs {
		n := snap.Nodes[id]
		c.io.Printf("%d. %s\n", i+1, n.ID)
		c.io.Printf("   Type:     %s\n", n.Metadata.NodeType)
		c.io.Printf("   Position: (%.0f, %.0f)  Size: %.0fx%.0f  Z: %d\n",
			n.Position.X, n.Position.Y, n.Size.Width, n.Size.Height, n.ZIndex)
		if n.Metadata.Locked {
			c.io.Println("   Locked:   yes")
		}
		if len(n.Content) > 0 {
			c.io.Printf("   Content:  %s\n", string(n.Content))
		}
		c.io.Println()
	}

	if len(snap.Connections) == 0 {
		return nil
	}

	connIDs := make([]string, 0, len(snap.Connections))
	for id := range snap.Connections {
		connIDs = append(connIDs, id)
	}
	sort.Strings(connIDs)

	c.io.Printf("Found %d connection(s):\n", len(connIDs))
	c.io.Println()
	for i, id := range connIDs {
		conn := snap.Connections[id]
		c.io.Printf("%d. %s\n", i+1, conn.ID)
		c.io.Printf("   %s (%s) -> %s (%s)\n",
			conn.SourceNodeID, conn.SourceAnchor.Side,
			conn.TargetNodeID, conn.TargetAnchor.Side)
		if conn.Label != "" {
			c.io.Printf("   Label: %s\n", conn.Label)
		}
		c.io.Println()
	}

	return nil
}

// RunStatus печатает сводку сессии
func (c *Cli) RunStatus(ctx context.Context, args []string) error {
	snap := c.store.Snapshot()

	c.io.Println("=== BoardKeeper Status ===")
	c.io.Println()
	c.io.Printf("Workspace:   %s\n", c.cfg.WorkspaceID)
	c.io.Printf("Server:      %s\n", c.cfg.ServerURL)
	c.io.Printf("Actor ID:    %s\n", c.store.ActorID())
	c.io.Printf("Nodes:       %d\n", len(snap.Nodes))
	c.io.Printf("Connections: %d\n", len(snap.Connections))
	c.io.Printf("Checkpoint:  %d\n", c.store.Checkpoint())

	return nil
}
