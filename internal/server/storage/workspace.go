package storage

import (
	"context"

	"github.com/iudanet/boardkeeper/internal/models"
)

// WorkspaceStorage defines interface for materialized workspace state
// persistence. Это durable-представление полотна, которое наполняет
// persistence bridge клиента: upsert идемпотентен, повтор после обрыва
// безопасен.
type WorkspaceStorage interface {
	// UpsertNode creates or fully replaces a node in the workspace
	UpsertNode(ctx context.Context, workspaceID string, node *models.Node) error

	// GetNode retrieves a single node by ID
	// Returns ErrNodeNotFound if node doesn't exist or is deleted
	GetNode(ctx context.Context, workspaceID, id string) (*models.Node, error)

	// ListNodes retrieves all non-deleted nodes of the workspace
	// Returns empty slice if no nodes found
	ListNodes(ctx context.Context, workspaceID string) ([]*models.Node, error)

	// DeleteNode marks node as deleted (soft delete)
	// Returns ErrNodeNotFound if node doesn't exist
	DeleteNode(ctx context.Context, workspaceID, id string) error

	// DeleteNodeConnections soft-deletes every connection attached to the
	// node from either side. Returns number of connections removed.
	DeleteNodeConnections(ctx context.Context, workspaceID, nodeID string) (int64, error)

	// UpsertConnection creates or fully replaces a connection
	UpsertConnection(ctx context.Context, workspaceID string, conn *models.Connection) error

	// GetConnection retrieves a single connection by ID
	// Returns ErrConnectionNotFound if connection doesn't exist or is deleted
	GetConnection(ctx context.Context, workspaceID, id string) (*models.Connection, error)

	// ListConnections retrieves all non-deleted connections of the workspace
	ListConnections(ctx context.Context, workspaceID string) ([]*models.Connection, error)

	// DeleteConnection marks connection as deleted (soft delete)
	// Returns ErrConnectionNotFound if connection doesn't exist
	DeleteConnection(ctx context.Context, workspaceID, id string) error
}
