package hermes

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked returned if you try to acquire an advisory lock and it's already in use.
var ErrLocked = errors.New("advisory lock already acquired")

type AdvisoryLock interface {
	Release(ctx context.Context) error
}

// SessionAdvisoryLock is a session-wide advisory lock.  It's held until released or until the
// session ends, which includes the session being replaced by a reconnect.
type SessionAdvisoryLock struct {
	mutex sync.Mutex

	ID     int64
	driver Driver
}

// Release the session-wide advisory lock.  Not retried; if the connection was lost, so was the
// lock.
func (lock *SessionAdvisoryLock) Release(ctx context.Context) error {
	lock.mutex.Lock()
	defer lock.mutex.Unlock()

	// The lock was already released
	if lock.driver == nil {
		return nil
	}

	if _, err := lock.driver.Exec(ctx, "SELECT pg_advisory_unlock($1)", lock.ID); err != nil {
		return err
	}

	lock.driver = nil

	return nil
}

// TxAdvisoryLock is a placeholder so the Lock/Release functionality is the same inside and
// outside of a transaction.
type TxAdvisoryLock struct {
	ID int64
}

// Release does nothing on a transactional advisory lock.
func (lock *TxAdvisoryLock) Release(context.Context) error {
	return nil
}

// Lock creates an advisory lock in the database, blocking until the lock is available.  Inside
// a transaction it's a transactional lock, released on commit or rollback; otherwise it's a
// session-wide lock you must Release.
//
// If the connection is lost inside a transaction, the transaction is gone with it and Lock
// returns ErrTransactionLost rather than taking a session lock nobody would release.
func (c *Conn) Lock(ctx context.Context, id int64) (AdvisoryLock, error) {
	inTx := c.driver.InTransaction()

	return guard(ctx, c, "lock", func(ctx context.Context, cause error) (AdvisoryLock, error) {
		if err := c.sameTransaction(cause, inTx); err != nil {
			return nil, err
		}

		if inTx {
			if _, err := c.driver.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", id); err != nil {
				return nil, err
			}

			return &TxAdvisoryLock{ID: id}, nil
		}

		if _, err := c.driver.Exec(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
			return nil, err
		}

		return &SessionAdvisoryLock{ID: id, driver: c.driver}, nil
	})
}

// TryLock tries to create an advisory lock, transactional or session-wide as with Lock.  If the
// lock is in use, returns ErrLocked.  If you acquire a session lock, be sure to release it!
func (c *Conn) TryLock(ctx context.Context, id int64) (AdvisoryLock, error) {
	inTx := c.driver.InTransaction()

	return guard(ctx, c, "try_lock", func(ctx context.Context, cause error) (AdvisoryLock, error) {
		if err := c.sameTransaction(cause, inTx); err != nil {
			return nil, err
		}

		sql := "SELECT pg_try_advisory_lock($1)"
		if inTx {
			sql = "SELECT pg_try_advisory_xact_lock($1)"
		}

		var available bool
		if err := c.driver.QueryRow(ctx, sql, id).Scan(&available); err != nil {
			return nil, err
		}

		if !available {
			return nil, ErrLocked
		}

		if inTx {
			return &TxAdvisoryLock{ID: id}, nil
		}

		return &SessionAdvisoryLock{ID: id, driver: c.driver}, nil
	})
}

// sameTransaction fails the retry of a call that started inside a transaction the reconnect
// threw away.
func (c *Conn) sameTransaction(cause error, inTx bool) error {
	if cause == nil || !inTx || c.driver.InTransaction() {
		return nil
	}

	c.logger.Warn().Err(cause).Msg("transaction context lost on reconnect")

	return ErrTransactionLost
}
