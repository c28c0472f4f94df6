package lockmgr

import (
	"context"
	"testing"
	"time"

	"github.com/minidb-go/minidb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLocksAreShared(t *testing.T) {
	m := New(time.Second)
	ctx := context.Background()
	require.NoError(t, m.AcquireRead(ctx, 1, 100))
	require.NoError(t, m.AcquireRead(ctx, 2, 100))
	m.Release(1)
	m.Release(2)
}

func TestWriteLockExcludesReaders(t *testing.T) {
	m := New(50 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, m.AcquireWrite(ctx, 1, 100))

	err := m.AcquireRead(ctx, 2, 100)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LockTimeout))

	m.Release(1)
}

func TestReleaseUnblocksWaiter(t *testing.T) {
	m := New(2 * time.Second)
	ctx := context.Background()
	require.NoError(t, m.AcquireWrite(ctx, 1, 100))

	done := make(chan error, 1)
	go func() { done <- m.AcquireWrite(ctx, 2, 100) }()

	time.Sleep(20 * time.Millisecond)
	m.Release(1)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired lock after release")
	}
	m.Release(2)
}

func TestReleaseOnlyTouchesCallersLocks(t *testing.T) {
	m := New(time.Second)
	ctx := context.Background()
	require.NoError(t, m.AcquireWrite(ctx, 1, 100))
	require.NoError(t, m.AcquireWrite(ctx, 2, 200))

	m.Release(1)

	// resource 200, held by txn 2, must still be locked.
	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.AcquireWrite(shortCtx, 3, 200)
	require.Error(t, err)

	m.Release(2)
}
