package storage

import (
	"context"

	"github.com/iudanet/boardkeeper/internal/models"
)

//go:generate moq -out cache_mock.go . SnapshotCache

// SnapshotCache defines interface for the local workspace cache.
// Кэш хранит последний гидратированный снимок и checkpoint последней
// учтенной серверной дельты: при недоступном Persistence Bridge клиент
// холодно загружается из кэша и продолжает локальное редактирование.
type SnapshotCache interface {
	// SaveSnapshot stores the latest workspace snapshot
	SaveSnapshot(ctx context.Context, workspaceID string, snap *models.Snapshot) error

	// GetSnapshot retrieves the cached snapshot
	// Returns ErrSnapshotNotFound if nothing was cached yet
	GetSnapshot(ctx context.Context, workspaceID string) (*models.Snapshot, error)

	// SaveCheckpoint stores the last applied server delta sequence
	SaveCheckpoint(ctx context.Context, workspaceID string, checkpoint int64) error

	// GetCheckpoint retrieves the saved checkpoint
	// Returns ErrCheckpointNotFound if no checkpoint was saved
	GetCheckpoint(ctx context.Context, workspaceID string) (int64, error)
}
