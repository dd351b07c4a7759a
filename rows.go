package hermes

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// NoRows returns true if the supplied error is one of the NoRows indicators
func NoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// ResultSet holds every row returned by a query.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Maps returns the rows as maps of column name to value.
func (rs *ResultSet) Maps() []map[string]any {
	maps := make([]map[string]any, len(rs.Rows))
	for i, values := range rs.Rows {
		m := make(map[string]any, len(rs.Columns))
		for j, col := range rs.Columns {
			if j < len(values) {
				m[col] = values[j]
			}
		}
		maps[i] = m
	}

	return maps
}

func collect(rows pgx.Rows) (*ResultSet, error) {
	defer rows.Close()

	rs := &ResultSet{}
	for rows.Next() {
		if rs.Columns == nil {
			rs.Columns = columnNames(rows.FieldDescriptions())
		}

		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		rs.Rows = append(rs.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if rs.Columns == nil {
		rs.Columns = columnNames(rows.FieldDescriptions())
	}

	return rs, nil
}

func columnNames(fields []pgconn.FieldDescription) []string {
	names := make([]string, len(fields))
	for i, fd := range fields {
		names[i] = fd.Name
	}

	return names
}

// row defers the query to Scan, so the query and the scan are retried together.
type row struct {
	ctx  context.Context
	conn *Conn
	sql  string
	args []any
}

// Scan runs the query and scans the first row into dest.  Returns pgx.ErrNoRows, wrapped, if
// the query returned nothing.
func (r *row) Scan(dest ...any) error {
	_, err := guard(r.ctx, r.conn, "query_row", func(ctx context.Context, _ error) (struct{}, error) {
		return struct{}{}, r.conn.driver.QueryRow(ctx, r.sql, r.args...).Scan(dest...)
	})

	return err
}
