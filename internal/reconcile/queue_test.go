package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmon-data/harmon/internal/reconcile"
	"github.com/harmon-data/harmon/internal/remote"
)

// seedQueue pulls one product so the fixture holds a single pending
// new_product item, and returns its ID.
func seedQueue(t *testing.T, f *syncFixture) int64 {
	t.Helper()
	ctx := context.Background()

	f.adapter.products = []remote.Product{
		product("101", "Mouse", "https://tienda.example.com/products/mouse", "100", "5"),
	}
	_, err := f.engine.Pull(ctx, f.storeID, 1, 50)
	require.NoError(t, err)

	items, err := f.queue.List(ctx, f.storeID, reconcile.StatusPending)
	require.NoError(t, err)
	require.Len(t, items, 1)
	return items[0].ID
}

func TestQueue_ApproveIsTerminal(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	id := seedQueue(t, f)

	require.NoError(t, f.queue.Approve(ctx, id))

	item, err := f.queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusApproved, item.Status)
	assert.False(t, item.ResolvedAt.IsZero())

	// Second resolution of any kind is a conflict, not a silent overwrite.
	err = f.queue.Approve(ctx, id)
	require.True(t, reconcile.IsConflict(err))

	err = f.queue.Reject(ctx, id)
	require.True(t, reconcile.IsConflict(err))
	var ce *reconcile.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, reconcile.CodeAlreadyResolved, ce.Code)

	item, err = f.queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusApproved, item.Status)
}

func TestQueue_Reject(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	id := seedQueue(t, f)

	require.NoError(t, f.queue.Reject(ctx, id))

	item, err := f.queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StatusRejected, item.Status)
}

func TestQueue_GetNotFound(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.queue.Get(context.Background(), 404)
	assert.ErrorIs(t, err, reconcile.ErrNotFound)

	err = f.queue.Approve(context.Background(), 404)
	assert.ErrorIs(t, err, reconcile.ErrNotFound)
}

func TestQueue_ListFiltersByStatus(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	id := seedQueue(t, f)

	require.NoError(t, f.queue.Approve(ctx, id))

	pending, err := f.queue.List(ctx, f.storeID, reconcile.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	approved, err := f.queue.List(ctx, f.storeID, reconcile.StatusApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	all, err := f.queue.List(ctx, f.storeID, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestQueue_BulkResolve(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.adapter.products = []remote.Product{
		product("101", "Mouse", "https://tienda.example.com/products/mouse", "100", "5"),
		product("102", "Teclado", "https://tienda.example.com/products/teclado", "200", "3"),
	}
	_, err := f.engine.Pull(ctx, f.storeID, 1, 50)
	require.NoError(t, err)

	n, err := f.queue.BulkResolve(ctx, f.storeID, reconcile.StatusRejected)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	pending, err := f.queue.List(ctx, f.storeID, reconcile.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Nothing left to resolve.
	n, err = f.queue.BulkResolve(ctx, f.storeID, reconcile.StatusApproved)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_BulkResolveRejectsNonTerminalStatus(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.queue.BulkResolve(context.Background(), f.storeID, reconcile.StatusPending)
	assert.Error(t, err)
}
