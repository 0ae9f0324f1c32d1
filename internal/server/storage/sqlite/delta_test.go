package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_AppendDelta_MonotonicSeq(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		seq, err := s.AppendDelta(ctx, "ws-1", "actor-1", []byte(fmt.Sprintf(`{"op":%d}`, i)))
		require.NoError(t, err)
		assert.Greater(t, seq, prev)
		prev = seq
	}
}

func TestStorage_GetDeltasSince(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 4; i++ {
		seq, err := s.AppendDelta(ctx, "ws-1", "actor-1", []byte(fmt.Sprintf(`{"op":%d}`, i)))
		require.NoError(t, err)
		seqs = append(seqs, seq)
	}

	// Только дельты строго после checkpoint
	deltas, err := s.GetDeltasSince(ctx, "ws-1", seqs[1])
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, seqs[2], deltas[0].Seq)
	assert.Equal(t, seqs[3], deltas[1].Seq)
	assert.Equal(t, "actor-1", deltas[0].ActorID)
	assert.Equal(t, []byte(`{"op":2}`), deltas[0].Payload)

	// Checkpoint 0 — весь журнал
	deltas, err = s.GetDeltasSince(ctx, "ws-1", 0)
	require.NoError(t, err)
	assert.Len(t, deltas, 4)

	// Checkpoint на последней дельте — пусто
	deltas, err = s.GetDeltasSince(ctx, "ws-1", seqs[3])
	require.NoError(t, err)
	assert.Empty(t, deltas)
}

func TestStorage_GetDeltasSince_IsolatedPerWorkspace(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.AppendDelta(ctx, "ws-1", "actor-1", []byte(`{"a":1}`))
	require.NoError(t, err)
	_, err = s.AppendDelta(ctx, "ws-2", "actor-2", []byte(`{"b":2}`))
	require.NoError(t, err)

	deltas, err := s.GetDeltasSince(ctx, "ws-1", 0)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, "ws-1", deltas[0].WorkspaceID)
}

func TestStorage_LatestSeq(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	// Пустой журнал
	seq, err := s.LatestSeq(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	first, err := s.AppendDelta(ctx, "ws-1", "actor-1", []byte(`{}`))
	require.NoError(t, err)
	second, err := s.AppendDelta(ctx, "ws-1", "actor-1", []byte(`{}`))
	require.NoError(t, err)
	require.Greater(t, second, first)

	seq, err = s.LatestSeq(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, second, seq)

	// Чужой workspace не влияет
	seq, err = s.LatestSeq(ctx, "ws-other")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}
