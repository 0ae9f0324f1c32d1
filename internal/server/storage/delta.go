package storage

import (
	"context"
	"time"
)

// StoredDelta одна запись журнала дельт workspace. Seq — серверный
// монотонный номер, он же checkpoint для клиентского resync.
type StoredDelta struct {
	Seq         int64
	WorkspaceID string
	ActorID     string
	Payload     []byte
	CreatedAt   time.Time
}

// DeltaLog defines interface for the per-workspace delta journal.
// Журнал отвечает на resync-request: клиент после реконнекта просит
// всё с последнего учтенного seq, а не предполагает, что ничего
// не пропустил.
type DeltaLog interface {
	// AppendDelta stores a delta payload and returns its assigned sequence
	AppendDelta(ctx context.Context, workspaceID, actorID string, payload []byte) (int64, error)

	// GetDeltasSince retrieves all deltas of the workspace with seq > since,
	// ordered by seq ascending. Returns empty slice if nothing missed.
	GetDeltasSince(ctx context.Context, workspaceID string, since int64) ([]*StoredDelta, error)

	// LatestSeq returns the highest assigned sequence for the workspace,
	// 0 if the journal is empty
	LatestSeq(ctx context.Context, workspaceID string) (int64, error)
}
