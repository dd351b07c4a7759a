package hermes

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Conn stands in front of a single database connection.  When a call fails because the
// connection to the server was lost, Conn closes the connection, connects again and repeats the
// call once.  If the repeat fails, that failure is returned.  Every other failure is returned
// as is.
//
// Commit is the exception:  it's never repeated, since a commit that lost its connection may or
// may not have committed.
//
// Writes are repeated like everything else.  If the server applied a write but the
// acknowledgement was lost, the repeat applies it a second time.
//
// A reconnect starts a new session, so whatever the old session held is gone:  transactions,
// prepared statements, advisory locks, temporary tables, session settings.
//
// Conn isn't safe for concurrent use.  Give each goroutine its own Conn and Driver.
type Conn struct {
	driver   Driver
	classify Classifier
	logger   zerolog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// New puts a Conn in front of the driver.  The driver should already be connected.
func New(driver Driver, opts ...Option) *Conn {
	c := &Conn{
		driver:   driver,
		classify: DefaultClassifier,
		logger:   zerolog.Nop(),
		tracer:   defaultTracer(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Driver returns the driver behind the Conn.  Don't close or connect it yourself while the Conn
// is in use.
func (c *Conn) Driver() Driver {
	return c.driver
}

// Connect (re)opens the connection.  Not retried.
func (c *Conn) Connect(ctx context.Context) error {
	return c.driver.Connect(ctx)
}

// Close the connection.  Not retried.
func (c *Conn) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Query runs a query that returns rows.  Only failures sending the query are retried; failures
// reading the rows arrive through rows.Err after Query has returned.  Use Select or QueryRow to
// have those retried as well.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return guard(ctx, c, "query", func(ctx context.Context, _ error) (pgx.Rows, error) {
		return c.driver.Query(ctx, sql, args...)
	})
}

// Select runs a query and reads every row into a ResultSet.  Reading the rows is part of the
// retried call, so a connection lost partway through the rows is recovered too.
func (c *Conn) Select(ctx context.Context, sql string, args ...any) (*ResultSet, error) {
	return guard(ctx, c, "select", func(ctx context.Context, _ error) (*ResultSet, error) {
		rows, err := c.driver.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}

		return collect(rows)
	})
}

// QueryRow runs a query expected to return at most one row.  The query runs when you call Scan
// on the returned row, and the query and scan are retried together.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &row{ctx: ctx, conn: c, sql: sql, args: args}
}

// Exec runs a statement that doesn't return rows, typically an INSERT, UPDATE or DELETE.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return guard(ctx, c, "exec", func(ctx context.Context, _ error) (pgconn.CommandTag, error) {
		return c.driver.Exec(ctx, sql, args...)
	})
}

// Prepare a statement.  If a reconnect happens later on, the statement is gone with the old
// session and has to be prepared again.
func (c *Conn) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return guard(ctx, c, "prepare", func(ctx context.Context, _ error) (*pgconn.StatementDescription, error) {
		return c.driver.Prepare(ctx, name, sql)
	})
}

// Quote renders value as an SQL literal.
func (c *Conn) Quote(ctx context.Context, value any) (string, error) {
	return guard(ctx, c, "quote", func(context.Context, error) (string, error) {
		return c.driver.Quote(value)
	})
}

// LastInsertID returns the last value generated by the sequence, or by any sequence if sequence
// is blank.  After a reconnect the new session hasn't generated anything, so this fails until
// the next insert.
func (c *Conn) LastInsertID(ctx context.Context, sequence string) (string, error) {
	return guard(ctx, c, "last_insert_id", func(ctx context.Context, _ error) (string, error) {
		return c.driver.LastInsertID(ctx, sequence)
	})
}

// ErrorCode returns the SQLSTATE of the last operation on the connection.  After a reconnect it
// describes the new session, not the call that failed.
func (c *Conn) ErrorCode(ctx context.Context) (string, error) {
	return guard(ctx, c, "error_code", func(context.Context, error) (string, error) {
		return c.driver.ErrorCode()
	})
}

// ErrorInfo returns the details of the last error on the connection.  See ErrorCode.
func (c *Conn) ErrorInfo(ctx context.Context) (ErrorInfo, error) {
	return guard(ctx, c, "error_info", func(context.Context, error) (ErrorInfo, error) {
		return c.driver.ErrorInfo()
	})
}

// Begin a transaction, or a savepoint if a transaction is already open.
//
// If the connection was lost, Begin reconnects and starts a fresh transaction on the new
// session.  Any transaction you had open before is gone, rolled back by the server, and Begin
// doesn't report it.
func (c *Conn) Begin(ctx context.Context) error {
	inTx := c.driver.InTransaction()

	_, err := guard(ctx, c, "begin", func(ctx context.Context, cause error) (struct{}, error) {
		if cause != nil && inTx {
			c.logger.Warn().Err(cause).Str("op", "begin").Msg("transaction context lost on reconnect")
		}

		return struct{}{}, c.driver.Begin(ctx)
	})

	return err
}

// Rollback the transaction, or roll back to the savepoint.
//
// If the connection was lost, the server has already rolled back; Rollback reconnects and tries
// again on the new session, which has no transaction, so the retry fails with ErrNoTransaction.
func (c *Conn) Rollback(ctx context.Context) error {
	_, err := guard(ctx, c, "rollback", func(ctx context.Context, cause error) (struct{}, error) {
		if cause != nil {
			c.logger.Warn().Err(cause).Str("op", "rollback").Msg("transaction context lost on reconnect")
		}

		return struct{}{}, c.driver.Rollback(ctx)
	})

	return err
}

// Commit the transaction, or release the savepoint.  Never retried:  if the connection was lost
// the transaction may or may not have committed, so the failure is returned right away and the
// connection is left as it is.
func (c *Conn) Commit(ctx context.Context) error {
	err := c.driver.Commit(ctx)
	if err != nil && c.classify(err) {
		c.logger.Error().Err(err).Msg("commit outcome unknown, connection lost")
		c.metrics.ambiguous()
	}

	return err
}

// InTransaction returns true if a transaction is open.
func (c *Conn) InTransaction() bool {
	return c.driver.InTransaction()
}

// TxFunc runs inside WithTransaction.
type TxFunc func(ctx context.Context, conn *Conn) error

// WithTransaction begins a transaction, runs fn and commits.  If fn returns an error or panics,
// the transaction is rolled back.
//
// A call inside fn that reconnects loses the transaction; whatever fn does after that runs on
// the new session outside of any transaction, and the statements before it were rolled back by
// the server.  WithTransaction doesn't commit in that case, it returns ErrTransactionLost,
// together with fn's error if there was one.
func (c *Conn) WithTransaction(ctx context.Context, fn TxFunc) error {
	if err := c.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if c.driver.InTransaction() {
				_ = c.Rollback(ctx)
			}
			panic(p)
		}
	}()

	if err := fn(ctx, c); err != nil {
		if !c.driver.InTransaction() {
			return fmt.Errorf("%w (%w)", err, ErrTransactionLost)
		}

		if rbErr := c.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}

		return err
	}

	if !c.driver.InTransaction() {
		return ErrTransactionLost
	}

	return c.Commit(ctx)
}
