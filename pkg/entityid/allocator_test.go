package entityid

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func int64Ptr(v int64) *int64 { return &v }

func TestGeneratePublicID_PerOrganizationSequences(t *testing.T) {
	db := setupTestDB(t)
	alloc := newTestAllocator(db)
	ctx := context.Background()

	a1, err := alloc.GeneratePublicID(ctx, 1, "item", 501)
	require.NoError(t, err)
	b1, err := alloc.GeneratePublicID(ctx, 2, "item", 502)
	require.NoError(t, err)
	a2, err := alloc.GeneratePublicID(ctx, 1, "item", 503)
	require.NoError(t, err)

	assert.Equal(t, "ITM-00000001", a1.PublicID())
	assert.Equal(t, "ITM-00000001", b1.PublicID())
	assert.Equal(t, "ITM-00000002", a2.PublicID())
	assert.Equal(t, int64(2), b1.OrganizationID)
	assert.Equal(t, "ITM", a1.Prefix)

	loc, err := alloc.GeneratePublicID(ctx, 1, "location", 501)
	require.NoError(t, err)
	assert.Equal(t, "LOC-00000001", loc.PublicID())
}

func TestGeneratePublicID_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	alloc := newTestAllocator(db)
	ctx := context.Background()

	first, err := alloc.GeneratePublicID(ctx, 1, "item", 501)
	require.NoError(t, err)
	second, err := alloc.GeneratePublicID(ctx, 1, "item", 501)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Sequence, second.Sequence)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM entity_ids").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGeneratePublicID_UnknownType(t *testing.T) {
	alloc := newTestAllocator(setupTestDB(t))

	_, err := alloc.GeneratePublicID(context.Background(), 1, "spaceship", 1)
	assert.True(t, errors.Is(err, ErrUnknownEntityType))
	assert.False(t, IsAllocationError(err))
}

func TestGeneratePublicID_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	alloc := newTestAllocator(db, WithBackoff(DefaultBackoff))
	ctx := context.Background()

	const n = 40
	sequences := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			id, err := alloc.GeneratePublicID(ctx, 1, "item", int64(1000+i))
			if err != nil {
				return err
			}
			sequences[i] = id.Sequence
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(sequences, func(i, j int) bool { return sequences[i] < sequences[j] })
	for i, seq := range sequences {
		assert.Equal(t, int64(i+1), seq, "sequences must be exactly 1..%d", n)
	}

	var count, maxSeq int64
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*), MAX(sequence) FROM entity_ids WHERE organization_id = 1 AND entity_type = 'item'",
	).Scan(&count, &maxSeq))
	assert.Equal(t, int64(n), count)
	assert.Equal(t, int64(n), maxSeq)
}

func TestGeneratePublicID_ConcurrentSameRow(t *testing.T) {
	db := setupTestDB(t)
	alloc := newTestAllocator(db, WithBackoff(DefaultBackoff))
	ctx := context.Background()

	const n = 10
	ids := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			id, err := alloc.GeneratePublicID(ctx, 4, "item", 77)
			if err != nil {
				return err
			}
			ids[i] = id.Sequence
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, seq := range ids {
		assert.Equal(t, int64(1), seq)
	}
}

func TestResolveInternalID(t *testing.T) {
	db := setupTestDB(t)
	alloc := newTestAllocator(db)
	ctx := context.Background()

	id, err := alloc.GeneratePublicID(ctx, 1, "item", 501)
	require.NoError(t, err)

	internal, err := alloc.ResolveInternalID(ctx, id.PublicID(), int64Ptr(1))
	require.NoError(t, err)
	assert.Equal(t, int64(501), internal)

	_, err = alloc.ResolveInternalID(ctx, id.PublicID(), int64Ptr(2))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = alloc.ResolveInternalID(ctx, "ZZZ-00000001", int64Ptr(1))
	assert.True(t, errors.Is(err, ErrUnknownEntityType))

	_, err = alloc.ResolveInternalID(ctx, "not-an-id", int64Ptr(1))
	assert.True(t, errors.Is(err, ErrInvalidPublicID))

	// Only the rendered form resolves.
	for _, alias := range []string{"ITM-1", "ITM-000000001"} {
		_, err = alloc.ResolveInternalID(ctx, alias, int64Ptr(1))
		assert.True(t, errors.Is(err, ErrInvalidPublicID), alias)
	}
}

func TestResolveInternalID_GlobalBucket(t *testing.T) {
	db := setupTestDB(t)
	alloc := newTestAllocator(db)
	ctx := context.Background()

	plan, err := alloc.GeneratePublicID(ctx, GlobalBucket, "plan", 3)
	require.NoError(t, err)
	assert.Equal(t, "PLN-00000001", plan.PublicID())

	internal, err := alloc.ResolveInternalID(ctx, "PLN-00000001", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), internal)

	publicID, err := alloc.GetPublicID(ctx, 3, "plan", nil)
	require.NoError(t, err)
	assert.Equal(t, "PLN-00000001", publicID)
}

func TestGetPublicIDAndDelete(t *testing.T) {
	db := setupTestDB(t)
	alloc := newTestAllocator(db)
	ctx := context.Background()

	_, err := alloc.GeneratePublicID(ctx, 1, "item", 501)
	require.NoError(t, err)
	_, err = alloc.GeneratePublicID(ctx, 1, "item", 502)
	require.NoError(t, err)

	publicID, err := alloc.GetPublicID(ctx, 502, "item", int64Ptr(1))
	require.NoError(t, err)
	assert.Equal(t, "ITM-00000002", publicID)

	_, err = alloc.GetPublicID(ctx, 502, "item", int64Ptr(2))
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, alloc.Delete(ctx, 1, "item", 502))
	require.NoError(t, alloc.Delete(ctx, 1, "item", 502))
	_, err = alloc.GetPublicID(ctx, 502, "item", int64Ptr(1))
	assert.True(t, errors.Is(err, ErrNotFound))

	// Sequences are gap tolerant: the next row continues after the highest live one.
	next, err := alloc.GeneratePublicID(ctx, 1, "item", 503)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Sequence)
}
