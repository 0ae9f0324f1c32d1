package storage

import "errors"

// Common client storage errors
var (
	// ErrSnapshotNotFound indicates that no cached snapshot exists
	ErrSnapshotNotFound = errors.New("cached snapshot not found")

	// ErrCheckpointNotFound indicates that no sync checkpoint was saved
	ErrCheckpointNotFound = errors.New("sync checkpoint not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
