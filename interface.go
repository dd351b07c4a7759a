package hermes

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Driver is the single physical database connection a Conn stands in front of.  Conn owns the
// driver exclusively:  it's the only thing that may Close and Connect it while a call is in
// flight.
//
// PgxDriver is the pgx implementation.  Implementations should wrap their failures (see
// DriverError) so the driver-level error is available as the cause of the failure.
type Driver interface {
	// Connect establishes a new physical connection, i.e. a new session with no transaction
	// context.  If already connected, the old connection is closed first.
	Connect(ctx context.Context) error

	// Close the physical connection and discard any open transactions.  Closing a closed
	// driver does nothing.
	Close(ctx context.Context) error

	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)

	// Quote renders value as an SQL literal.
	Quote(value any) (string, error)

	// LastInsertID returns the last value generated by the sequence in this session, or by
	// any sequence if sequence is blank.
	LastInsertID(ctx context.Context, sequence string) (string, error)

	// ErrorCode returns the SQLSTATE of the last operation on the connection.
	ErrorCode() (string, error)

	// ErrorInfo returns the details of the last error on the connection.
	ErrorInfo() (ErrorInfo, error)

	// Begin starts a transaction.  If a transaction is already open, starts a pseudo nested
	// transaction, i.e. a savepoint.
	Begin(ctx context.Context) error

	// Commit the innermost transaction or release its savepoint.
	Commit(ctx context.Context) error

	// Rollback the innermost transaction or roll back to its savepoint.
	Rollback(ctx context.Context) error

	// InTransaction returns true if a transaction is open on the connection.
	InTransaction() bool
}

// ErrorInfo describes the last error seen on a connection.  SQLState is "00000" if the last
// operation succeeded.
type ErrorInfo struct {
	SQLState string
	Severity string
	Message  string
	Detail   string
}
