package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/boardkeeper/internal/server/storage"
)

// AppendDelta stores a delta payload and returns its assigned sequence.
// AUTOINCREMENT дает монотонный seq — он же checkpoint для resync.
func (s *Storage) AppendDelta(ctx context.Context, workspaceID, actorID string, payload []byte) (int64, error) {
	query := `
		INSERT INTO deltas (workspace_id, actor_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query, workspaceID, actorID, payload, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to append delta: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get delta sequence: %w", err)
	}

	return seq, nil
}

// GetDeltasSince retrieves all deltas of the workspace with seq > since
func (s *Storage) GetDeltasSince(ctx context.Context, workspaceID string, since int64) ([]*storage.StoredDelta, error) {
	query := `
		SELECT seq, workspace_id, actor_id, payload, created_at
		FROM deltas
		WHERE workspace_id = ? AND seq > ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query deltas: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = cerr
		}
	}()

	var deltas []*storage.StoredDelta
	for rows.Next() {
		d := &storage.StoredDelta{}
		var createdAt int64

		if err := rows.Scan(&d.Seq, &d.WorkspaceID, &d.ActorID, &d.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan delta: %w", err)
		}

		d.CreatedAt = time.Unix(createdAt, 0)
		deltas = append(deltas, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return deltas, nil
}

// LatestSeq returns the highest assigned sequence for the workspace
func (s *Storage) LatestSeq(ctx context.Context, workspaceID string) (int64, error) {
	query := `SELECT MAX(seq) FROM deltas WHERE workspace_id = ?`

	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, workspaceID).Scan(&seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get latest delta sequence: %w", err)
	}

	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
