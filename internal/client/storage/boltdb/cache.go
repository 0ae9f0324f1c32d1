package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/boardkeeper/internal/client/storage"
	"github.com/iudanet/boardkeeper/internal/models"
)

// SaveSnapshot stores the latest workspace snapshot in BoltDB
func (s *Storage) SaveSnapshot(ctx context.Context, workspaceID string, snap *models.Snapshot) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket missing")
		}
		return bucket.Put([]byte(workspaceID), data)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetSnapshot retrieves the cached snapshot for a workspace
func (s *Storage) GetSnapshot(ctx context.Context, workspaceID string) (*models.Snapshot, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var snap *models.Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return storage.ErrSnapshotNotFound
		}

		data := bucket.Get([]byte(workspaceID))
		if data == nil {
			return storage.ErrSnapshotNotFound
		}

		snap = &models.Snapshot{}
		if err := json.Unmarshal(data, snap); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// SaveCheckpoint stores the last applied server delta sequence
func (s *Storage) SaveCheckpoint(ctx context.Context, workspaceID string, checkpoint int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(checkpoint))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCheckpoints)
		if bucket == nil {
			return fmt.Errorf("checkpoints bucket missing")
		}
		return bucket.Put([]byte(workspaceID), buf)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetCheckpoint retrieves the saved sync checkpoint
func (s *Storage) GetCheckpoint(ctx context.Context, workspaceID string) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var checkpoint int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCheckpoints)
		if bucket == nil {
			return storage.ErrCheckpointNotFound
		}

		data := bucket.Get([]byte(workspaceID))
		if data == nil || len(data) != 8 {
			return storage.ErrCheckpointNotFound
		}

		checkpoint = int64(binary.BigEndian.Uint64(data))
		return nil
	})
	if err != nil {
		return 0, err
	}

	return checkpoint, nil
}
