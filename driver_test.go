package hermes_test

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	hermes "github.com/sbowman/hermes-reconnect"
)

// fakeDriver records every call made to it and fails calls on demand.
type fakeDriver struct {
	calls    []string
	failures map[string][]error

	connectErr error
	closeErr   error

	connected bool
	txDepth   int
	sessions  int

	// inserted counts INSERT statements that reached the "server", including ones whose
	// acknowledgement was then lost.
	inserted int

	lastSQL  string
	lastArgs []any

	columns []string
	rows    [][]any
	row     []any
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		failures:  make(map[string][]error),
		connected: true,
		sessions:  1,
	}
}

// fail queues errors for the operation; each call to it takes the next error.
func (d *fakeDriver) fail(op string, errs ...error) {
	d.failures[op] = append(d.failures[op], errs...)
}

func (d *fakeDriver) call(op string) error {
	d.calls = append(d.calls, op)

	if q := d.failures[op]; len(q) > 0 {
		d.failures[op] = q[1:]
		return q[0]
	}

	return nil
}

func (d *fakeDriver) count(op string) int {
	n := 0
	for _, c := range d.calls {
		if c == op {
			n++
		}
	}

	return n
}

func (d *fakeDriver) Connect(context.Context) error {
	d.calls = append(d.calls, "connect")
	if d.connectErr != nil {
		return d.connectErr
	}

	d.connected = true
	d.txDepth = 0
	d.sessions++

	return nil
}

func (d *fakeDriver) Close(context.Context) error {
	d.calls = append(d.calls, "close")
	d.connected = false
	d.txDepth = 0

	return d.closeErr
}

func (d *fakeDriver) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.lastSQL, d.lastArgs = sql, args
	if err := d.call("query"); err != nil {
		return nil, err
	}

	return &fakeRows{columns: d.columns, rows: d.rows, n: -1}, nil
}

func (d *fakeDriver) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.lastSQL, d.lastArgs = sql, args
	if err := d.call("query_row"); err != nil {
		return fakeRow{err: err}
	}

	return fakeRow{values: d.row}
}

func (d *fakeDriver) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.lastSQL, d.lastArgs = sql, args

	if strings.HasPrefix(sql, "INSERT") {
		d.inserted++
	}

	if err := d.call("exec"); err != nil {
		return pgconn.CommandTag{}, err
	}

	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (d *fakeDriver) Prepare(_ context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	if err := d.call("prepare"); err != nil {
		return nil, err
	}

	return &pgconn.StatementDescription{Name: name, SQL: sql}, nil
}

func (d *fakeDriver) Quote(value any) (string, error) {
	if err := d.call("quote"); err != nil {
		return "", err
	}

	return hermes.QuoteLiteral(value)
}

func (d *fakeDriver) LastInsertID(context.Context, string) (string, error) {
	if err := d.call("last_insert_id"); err != nil {
		return "", err
	}

	return "42", nil
}

func (d *fakeDriver) ErrorCode() (string, error) {
	if err := d.call("error_code"); err != nil {
		return "", err
	}

	return hermes.SuccessState, nil
}

func (d *fakeDriver) ErrorInfo() (hermes.ErrorInfo, error) {
	if err := d.call("error_info"); err != nil {
		return hermes.ErrorInfo{}, err
	}

	return hermes.ErrorInfo{SQLState: hermes.SuccessState}, nil
}

func (d *fakeDriver) Begin(context.Context) error {
	if err := d.call("begin"); err != nil {
		return err
	}

	d.txDepth++

	return nil
}

func (d *fakeDriver) Commit(context.Context) error {
	if d.txDepth == 0 {
		d.calls = append(d.calls, "commit")
		return hermes.ErrNoTransaction
	}

	d.txDepth--

	return d.call("commit")
}

func (d *fakeDriver) Rollback(context.Context) error {
	if d.txDepth == 0 {
		d.calls = append(d.calls, "rollback")
		return hermes.ErrNoTransaction
	}

	d.txDepth--

	return d.call("rollback")
}

func (d *fakeDriver) InTransaction() bool {
	return d.txDepth > 0
}

type fakeRows struct {
	columns []string
	rows    [][]any
	n       int
	err     error
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fields := make([]pgconn.FieldDescription, len(r.columns))
	for i, col := range r.columns {
		fields[i] = pgconn.FieldDescription{Name: col}
	}

	return fields
}

func (r *fakeRows) Next() bool {
	r.n++
	return r.n < len(r.rows)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.n], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.rows[r.n], dest)
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	if r.values == nil {
		return pgx.ErrNoRows
	}

	return scanInto(r.values, dest)
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("wrong number of scan destinations")
	}

	for i, v := range values {
		switch d := dest[i].(type) {
		case *bool:
			*d = v.(bool)
		case *int32:
			*d = v.(int32)
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *any:
			*d = v
		default:
			return errors.New("unsupported scan destination")
		}
	}

	return nil
}

// lost returns the error a driver produces when the server has gone away.
func lost(op string) error {
	return &hermes.DriverError{Op: op, Err: errors.New("SQLSTATE[HY000]: General error: 2006 MySQL server has gone away")}
}
