package hermes

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SuccessState is the SQLSTATE reported by ErrorCode when the last operation succeeded.
const SuccessState = "00000"

// PgxConn is the part of *pgx.Conn the PgxDriver relies on.
type PgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	Close(ctx context.Context) error
}

// Dialer opens a new physical connection to the database.
type Dialer func(ctx context.Context) (PgxConn, error)

// DialConfig returns a Dialer that connects with pgx using the configuration, then registers any
// custom data types (see Register) with the new connection.
func DialConfig(config *pgx.ConnConfig) Dialer {
	return func(ctx context.Context) (PgxConn, error) {
		conn, err := pgx.ConnectConfig(ctx, config)
		if err != nil {
			return nil, err
		}

		registerTypes(conn.TypeMap())

		return conn, nil
	}
}

// queryer is shared by PgxConn and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
}

// PgxDriver is a Driver over a single pgx connection.  Statements run inside the innermost open
// transaction, if there is one.  Not safe for concurrent use.
type PgxDriver struct {
	dial           Dialer
	defaultTimeout time.Duration

	conn    PgxConn
	txs     []pgx.Tx
	lastErr ErrorInfo
}

// NewPgxDriver creates a driver that opens connections with dial.  The driver isn't connected
// until you call Connect.
func NewPgxDriver(dial Dialer) *PgxDriver {
	return &PgxDriver{dial: dial}
}

// Connect dials a new connection, closing the current one first if there is one.  Any
// transactions on the old connection are forgotten.
func (d *PgxDriver) Connect(ctx context.Context) error {
	if d.conn != nil {
		// The old session is being replaced; there's nothing useful to do with its error.
		_ = d.Close(ctx)
	}

	ctx, cancel := d.WithTimeout(ctx)
	defer cancel()

	conn, err := d.dial(ctx)
	if err != nil {
		return wrap("connect", err)
	}

	d.conn = conn
	d.txs = nil
	d.lastErr = ErrorInfo{SQLState: SuccessState}

	return nil
}

// Close the connection.  Open transactions are abandoned; the server rolls them back when the
// session ends.
func (d *PgxDriver) Close(ctx context.Context) error {
	if d.conn == nil {
		return nil
	}

	conn := d.conn
	d.conn = nil
	d.txs = nil

	return wrap("close", conn.Close(ctx))
}

// Connected returns true if the driver has an open connection.
func (d *PgxDriver) Connected() bool {
	return d.conn != nil
}

// InTransaction returns true if a transaction or savepoint is open.
func (d *PgxDriver) InTransaction() bool {
	return len(d.txs) > 0
}

func (d *PgxDriver) target() (queryer, error) {
	if d.conn == nil {
		return nil, ErrNotConnected
	}

	if n := len(d.txs); n > 0 {
		return d.txs[n-1], nil
	}

	return d.conn, nil
}

// Query runs the query.  Errors reported later by the rows are wrapped in a DriverError too.
func (d *PgxDriver) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q, err := d.target()
	if err != nil {
		return nil, wrap("query", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	d.record(err)
	if err != nil {
		return nil, wrap("query", err)
	}

	return &driverRows{Rows: rows, driver: d}, nil
}

// QueryRow runs the query.  The error, if any, is deferred to Scan.
func (d *PgxDriver) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q, err := d.target()
	if err != nil {
		return errRow{wrap("query_row", err)}
	}

	return &driverRow{Row: q.QueryRow(ctx, sql, args...), driver: d}
}

// Exec runs a statement that doesn't return rows.
func (d *PgxDriver) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q, err := d.target()
	if err != nil {
		return pgconn.CommandTag{}, wrap("exec", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	d.record(err)

	return tag, wrap("exec", err)
}

// Prepare a statement on the connection.  Prepared statements belong to the session, so they're
// gone after a reconnect.
func (d *PgxDriver) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	q, err := d.target()
	if err != nil {
		return nil, wrap("prepare", err)
	}

	sd, err := q.Prepare(ctx, name, sql)
	d.record(err)
	if err != nil {
		return nil, wrap("prepare", err)
	}

	return sd, nil
}

// Quote renders value as an SQL literal.  See QuoteLiteral.
func (d *PgxDriver) Quote(value any) (string, error) {
	if d.conn == nil {
		return "", wrap("quote", ErrNotConnected)
	}

	quoted, err := QuoteLiteral(value)
	if err != nil {
		return "", wrap("quote", err)
	}

	return quoted, nil
}

// LastInsertID returns the current value of the sequence in this session, or the value most
// recently returned by nextval in this session if sequence is blank.
func (d *PgxDriver) LastInsertID(ctx context.Context, sequence string) (string, error) {
	q, err := d.target()
	if err != nil {
		return "", wrap("last_insert_id", err)
	}

	var row pgx.Row
	if sequence == "" {
		row = q.QueryRow(ctx, "SELECT lastval()")
	} else {
		row = q.QueryRow(ctx, "SELECT currval($1::regclass)", sequence)
	}

	var id int64
	err = row.Scan(&id)
	d.record(err)
	if err != nil {
		return "", wrap("last_insert_id", err)
	}

	return strconv.FormatInt(id, 10), nil
}

// ErrorCode returns the SQLSTATE of the last operation, SuccessState if it succeeded, or a blank
// string if it failed without a PostgreSQL error.
func (d *PgxDriver) ErrorCode() (string, error) {
	if d.conn == nil {
		return "", wrap("error_code", ErrNotConnected)
	}

	return d.lastErr.SQLState, nil
}

// ErrorInfo returns the details of the last error on the connection.
func (d *PgxDriver) ErrorInfo() (ErrorInfo, error) {
	if d.conn == nil {
		return ErrorInfo{}, wrap("error_info", ErrNotConnected)
	}

	return d.lastErr, nil
}

// Begin starts a transaction.  If a transaction is already open, pgx creates a savepoint
// instead.
func (d *PgxDriver) Begin(ctx context.Context) error {
	if d.conn == nil {
		return wrap("begin", ErrNotConnected)
	}

	var tx pgx.Tx
	var err error

	if n := len(d.txs); n > 0 {
		tx, err = d.txs[n-1].Begin(ctx)
	} else {
		tx, err = d.conn.Begin(ctx)
	}

	d.record(err)
	if err != nil {
		return wrap("begin", err)
	}

	d.txs = append(d.txs, tx)

	return nil
}

// Commit the innermost transaction.  If it's a pseudo nested transaction, releases the
// savepoint.  The transaction is finished whether or not the commit succeeds.
func (d *PgxDriver) Commit(ctx context.Context) error {
	tx, err := d.pop()
	if err != nil {
		return wrap("commit", err)
	}

	err = tx.Commit(ctx)
	d.record(err)

	return wrap("commit", err)
}

// Rollback the innermost transaction, or roll back to its savepoint if it's a pseudo nested
// transaction.
func (d *PgxDriver) Rollback(ctx context.Context) error {
	tx, err := d.pop()
	if err != nil {
		return wrap("rollback", err)
	}

	err = tx.Rollback(ctx)
	d.record(err)

	return wrap("rollback", err)
}

func (d *PgxDriver) pop() (pgx.Tx, error) {
	if d.conn == nil {
		return nil, ErrNotConnected
	}

	n := len(d.txs)
	if n == 0 {
		return nil, ErrNoTransaction
	}

	tx := d.txs[n-1]
	d.txs = d.txs[:n-1]

	return tx, nil
}

// record the outcome of the last operation for ErrorCode and ErrorInfo.
func (d *PgxDriver) record(err error) {
	if err == nil {
		d.lastErr = ErrorInfo{SQLState: SuccessState}
		return
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		d.lastErr = ErrorInfo{
			SQLState: pgErr.Code,
			Severity: pgErr.Severity,
			Message:  pgErr.Message,
			Detail:   pgErr.Detail,
		}
		return
	}

	d.lastErr = ErrorInfo{Message: err.Error()}
}

// driverRows wraps the deferred errors of pgx.Rows in a DriverError.
type driverRows struct {
	pgx.Rows
	driver *PgxDriver
}

func (r *driverRows) Scan(dest ...any) error {
	return wrap("scan", r.Rows.Scan(dest...))
}

func (r *driverRows) Values() ([]any, error) {
	values, err := r.Rows.Values()
	return values, wrap("values", err)
}

func (r *driverRows) Err() error {
	err := r.Rows.Err()
	if err != nil {
		r.driver.record(err)
	}

	return wrap("query", err)
}

// driverRow wraps the deferred error of pgx.Row in a DriverError.
type driverRow struct {
	pgx.Row
	driver *PgxDriver
}

func (r *driverRow) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	if !errors.Is(err, pgx.ErrNoRows) {
		r.driver.record(err)
	}

	return wrap("query_row", err)
}

// errRow is returned by QueryRow when the query couldn't be sent at all.
type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}
