package hermes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hermes "github.com/sbowman/hermes-reconnect"
)

func TestSessionLock(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	conn := hermes.New(driver)

	lock, err := conn.Lock(ctx, 1200)
	require.NoError(t, err)
	assert.IsType(t, &hermes.SessionAdvisoryLock{}, lock)
	assert.Equal(t, "SELECT pg_advisory_lock($1)", driver.lastSQL)
	assert.Equal(t, []any{int64(1200)}, driver.lastArgs)

	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "SELECT pg_advisory_unlock($1)", driver.lastSQL)

	// Releasing again does nothing
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, 2, driver.count("exec"))
}

func TestTransactionLock(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	conn := hermes.New(driver)

	require.NoError(t, conn.Begin(ctx))

	lock, err := conn.Lock(ctx, 1200)
	require.NoError(t, err)
	assert.IsType(t, &hermes.TxAdvisoryLock{}, lock)
	assert.Equal(t, "SELECT pg_advisory_xact_lock($1)", driver.lastSQL)

	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, 1, driver.count("exec"), "released by the transaction, not by Release")

	require.NoError(t, conn.Commit(ctx))
}

func TestTryLock(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	conn := hermes.New(driver)

	driver.row = []any{true}

	lock, err := conn.TryLock(ctx, 1200)
	require.NoError(t, err)
	assert.IsType(t, &hermes.SessionAdvisoryLock{}, lock)
	assert.Equal(t, "SELECT pg_try_advisory_lock($1)", driver.lastSQL)

	driver.row = []any{false}

	_, err = conn.TryLock(ctx, 1200)
	assert.ErrorIs(t, err, hermes.ErrLocked)
}

func TestTryLockInTransaction(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	conn := hermes.New(driver)

	require.NoError(t, conn.Begin(ctx))
	driver.row = []any{true}

	lock, err := conn.TryLock(ctx, 1200)
	require.NoError(t, err)
	assert.IsType(t, &hermes.TxAdvisoryLock{}, lock)
	assert.Equal(t, "SELECT pg_try_advisory_xact_lock($1)", driver.lastSQL)
}

func TestLockRetriedAfterReconnect(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	driver.fail("exec", lost("exec"))

	conn := hermes.New(driver)

	lock, err := conn.Lock(ctx, 1200)
	require.NoError(t, err)
	assert.IsType(t, &hermes.SessionAdvisoryLock{}, lock)
	assert.Equal(t, 2, driver.sessions, "the lock is held by the new session")
}

func TestLockFailsWhenTransactionLost(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	conn := hermes.New(driver)

	require.NoError(t, conn.Begin(ctx))
	driver.fail("exec", lost("exec"))

	lock, err := conn.Lock(ctx, 1200)
	assert.ErrorIs(t, err, hermes.ErrTransactionLost)
	assert.Nil(t, lock)

	assert.Equal(t, 1, driver.count("exec"), "no session lock taken on the new session")
	assert.Equal(t, 2, driver.sessions)
}

func TestTryLockFailsWhenTransactionLost(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()
	conn := hermes.New(driver)

	require.NoError(t, conn.Begin(ctx))
	driver.row = []any{true}
	driver.fail("query_row", lost("query_row"))

	lock, err := conn.TryLock(ctx, 1200)
	assert.ErrorIs(t, err, hermes.ErrTransactionLost)
	assert.Nil(t, lock)
	assert.Equal(t, 1, driver.count("query_row"))
}
