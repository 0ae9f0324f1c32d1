package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/boardkeeper/internal/models"
	"github.com/iudanet/boardkeeper/internal/server/storage"
)

// UpsertNode creates or fully replaces a node in the workspace.
// Идемпотентен: повторная доставка того же состояния после обрыва
// безопасна.
func (s *Storage) UpsertNode(ctx context.Context, workspaceID string, node *models.Node) error {
	style, err := json.Marshal(node.Style)
	if err != nil {
		return fmt.Errorf("failed to marshal node style: %w", err)
	}
	metadata, err := json.Marshal(node.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal node metadata: %w", err)
	}

	now := time.Now().Unix()

	query := `
		INSERT INTO nodes (
			id, workspace_id, position_x, position_y, width, height,
			content, style, metadata, z_index, deleted,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (workspace_id, id) DO UPDATE SET
			position_x = excluded.position_x,
			position_y = excluded.position_y,
			width = excluded.width,
			height = excluded.height,
			content = excluded.content,
			style = excluded.style,
			metadata = excluded.metadata,
			z_index = excluded.z_index,
			deleted = 0,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		node.ID,
		workspaceID,
		node.Position.X,
		node.Position.Y,
		node.Size.Width,
		node.Size.Height,
		string(node.Content),
		string(style),
		string(metadata),
		node.ZIndex,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert node: %w", err)
	}

	return nil
}

// GetNode retrieves a single node by ID
// Returns ErrNodeNotFound if node doesn't exist or is deleted
func (s *Storage) GetNode(ctx context.Context, workspaceID, id string) (*models.Node, error) {
	query := `
		SELECT id, position_x, position_y, width, height,
		       content, style, metadata, z_index, deleted
		FROM nodes
		WHERE workspace_id = ? AND id = ?
	`

	node, deleted, err := scanNode(s.db.QueryRowContext(ctx, query, workspaceID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNodeNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if deleted {
		return nil, storage.ErrNodeNotFound
	}

	return node, nil
}

// ListNodes retrieves all non-deleted nodes of the workspace
func (s *Storage) ListNodes(ctx context.Context, workspaceID string) ([]*models.Node, error) {
	query := `
		SELECT id, position_x, position_y, width, height,
		       content, style, metadata, z_index, deleted
		FROM nodes
		WHERE workspace_id = ? AND deleted = 0
		ORDER BY z_index ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = cerr
		}
	}()

	var nodes []*models.Node
	for rows.Next() {
		node, _, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return nodes, nil
}

// DeleteNode marks node as deleted (soft delete)
// Returns ErrNodeNotFound if node doesn't exist
func (s *Storage) DeleteNode(ctx context.Context, workspaceID, id string) error {
	query := `
		UPDATE nodes
		SET deleted = 1, updated_at = ?
		WHERE workspace_id = ? AND id = ? AND deleted = 0
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().Unix(), workspaceID, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrNodeNotFound
	}

	return nil
}

// DeleteNodeConnections soft-deletes every connection attached to the node
func (s *Storage) DeleteNodeConnections(ctx context.Context, workspaceID, nodeID string) (int64, error) {
	query := `
		UPDATE connections
		SET deleted = 1, updated_at = ?
		WHERE workspace_id = ? AND deleted = 0
		  AND (source_node_id = ? OR target_node_id = ?)
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().Unix(), workspaceID, nodeID, nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete node connections: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// UpsertConnection creates or fully replaces a connection
func (s *Storage) UpsertConnection(ctx context.Context, workspaceID string, conn *models.Connection) error {
	sourceAnchor, err := json.Marshal(conn.SourceAnchor)
	if err != nil {
		return fmt.Errorf("failed to marshal source anchor: %w", err)
	}
	targetAnchor, err := json.Marshal(conn.TargetAnchor)
	if err != nil {
		return fmt.Errorf("failed to marshal target anchor: %w", err)
	}
	style, err := json.Marshal(conn.Style)
	if err != nil {
		return fmt.Errorf("failed to marshal connection style: %w", err)
	}

	now := time.Now().Unix()

	query := `
		INSERT INTO connections (
			id, workspace_id, source_node_id, target_node_id,
			source_anchor, target_anchor, label, style, deleted,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (workspace_id, id) DO UPDATE SET
			source_node_id = excluded.source_node_id,
			target_node_id = excluded.target_node_id,
			source_anchor = excluded.source_anchor,
			target_anchor = excluded.target_anchor,
			label = excluded.label,
			style = excluded.style,
			deleted = 0,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		conn.ID,
		workspaceID,
		conn.SourceNodeID,
		conn.TargetNodeID,
		string(sourceAnchor),
		string(targetAnchor),
		conn.Label,
		string(style),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}

	return nil
}

// GetConnection retrieves a single connection by ID
// Returns ErrConnectionNotFound if connection doesn't exist or is deleted
func (s *Storage) GetConnection(ctx context.Context, workspaceID, id string) (*models.Connection, error) {
	query := `
		SELECT id, source_node_id, target_node_id,
		       source_anchor, target_anchor, label, style, deleted
		FROM connections
		WHERE workspace_id = ? AND id = ?
	`

	conn, deleted, err := scanConnection(s.db.QueryRowContext(ctx, query, workspaceID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if deleted {
		return nil, storage.ErrConnectionNotFound
	}

	return conn, nil
}

// ListConnections retrieves all non-deleted connections of the workspace
func (s *Storage) ListConnections(ctx context.Context, workspaceID string) ([]*models.Connection, error) {
	query := `
		SELECT id, source_node_id, target_node_id,
		       source_anchor, target_anchor, label, style, deleted
		FROM connections
		WHERE workspace_id = ? AND deleted = 0
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = cerr
		}
	}()

	var conns []*models.Connection
	for rows.Next() {
		conn, _, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return conns, nil
}

// DeleteConnection marks connection as deleted (soft delete)
// Returns ErrConnectionNotFound if connection doesn't exist
func (s *Storage) DeleteConnection(ctx context.Context, workspaceID, id string) error {
	query := `
		UPDATE connections
		SET deleted = 1, updated_at = ?
		WHERE workspace_id = ? AND id = ? AND deleted = 0
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().Unix(), workspaceID, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrConnectionNotFound
	}

	return nil
}

// scanner покрывает и *sql.Row, и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*models.Node, bool, error) {
	node := &models.Node{}
	var content, style, metadata string
	var deleted int

	err := row.Scan(
		&node.ID,
		&node.Position.X,
		&node.Position.Y,
		&node.Size.Width,
		&node.Size.Height,
		&content,
		&style,
		&metadata,
		&node.ZIndex,
		&deleted,
	)
	if err != nil {
		return nil, false, err
	}

	node.Content = json.RawMessage(content)
	if err := json.Unmarshal([]byte(style), &node.Style); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal node style: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &node.Metadata); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal node metadata: %w", err)
	}

	return node, intToBool(deleted), nil
}

func scanConnection(row scanner) (*models.Connection, bool, error) {
	conn := &models.Connection{}
	var sourceAnchor, targetAnchor, style string
	var deleted int

	err := row.Scan(
		&conn.ID,
		&conn.SourceNodeID,
		&conn.TargetNodeID,
		&sourceAnchor,
		&targetAnchor,
		&conn.Label,
		&style,
		&deleted,
	)
	if err != nil {
		return nil, false, err
	}

	if err := json.Unmarshal([]byte(sourceAnchor), &conn.SourceAnchor); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal source anchor: %w", err)
	}
	if err := json.Unmarshal([]byte(targetAnchor), &conn.TargetAnchor); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal target anchor: %w", err)
	}
	if err := json.Unmarshal([]byte(style), &conn.Style); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal connection style: %w", err)
	}

	return conn, intToBool(deleted), nil
}

func intToBool(i int) bool {
	return i != 0
}
