package hermes

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Insert a row into the table, with values mapping column names to values.  The table may be
// schema-qualified, e.g. "public.users".  Returns the number of rows inserted.
//
// Like Exec, Insert is repeated after a reconnect, which inserts the row twice if the first
// attempt reached the server.
func (c *Conn) Insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	sql, args := buildInsert(table, values)

	tag, err := c.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// Update the rows of the table matching where, setting the columns in values.  Placeholders in
// where are numbered from $1, for the args, regardless of the values being set.  A blank where
// updates every row.  Returns the number of rows updated.
func (c *Conn) Update(ctx context.Context, table string, values map[string]any, where string, args ...any) (int64, error) {
	sql, all := buildUpdate(table, values, where, args)

	tag, err := c.Exec(ctx, sql, all...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

// Delete the rows of the table matching where.  A blank where deletes every row.  Returns the
// number of rows deleted.
func (c *Conn) Delete(ctx context.Context, table, where string, args ...any) (int64, error) {
	sql := "DELETE FROM " + tableName(table)
	if where != "" {
		sql += " WHERE " + where
	}

	tag, err := c.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func buildInsert(table string, values map[string]any) (string, []any) {
	columns := sortedColumns(values)

	names := make([]string, len(columns))
	params := make([]string, len(columns))
	args := make([]any, len(columns))

	for i, col := range columns {
		names[i] = QuoteIdentifier(col)
		params[i] = "$" + strconv.Itoa(i+1)
		args[i] = values[col]
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableName(table))

	if len(columns) == 0 {
		b.WriteString(" DEFAULT VALUES")
		return b.String(), nil
	}

	b.WriteString(" (")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(")")

	return b.String(), args
}

func buildUpdate(table string, values map[string]any, where string, whereArgs []any) (string, []any) {
	columns := sortedColumns(values)

	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+len(whereArgs))

	for i, col := range columns {
		sets[i] = QuoteIdentifier(col) + " = $" + strconv.Itoa(i+1)
		args = append(args, values[col])
	}

	sql := "UPDATE " + tableName(table) + " SET " + strings.Join(sets, ", ")
	if where != "" {
		sql += " WHERE " + renumber(where, len(columns))
	}

	return sql, append(args, whereArgs...)
}

// renumber shifts the $n placeholders in the clause by offset.
func renumber(clause string, offset int) string {
	if offset == 0 {
		return clause
	}

	return placeholder.ReplaceAllStringFunc(clause, func(p string) string {
		n, err := strconv.Atoi(p[1:])
		if err != nil {
			return p
		}

		return "$" + strconv.Itoa(n+offset)
	})
}

func sortedColumns(values map[string]any) []string {
	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}

	sort.Strings(columns)

	return columns
}

func tableName(table string) string {
	return QuoteIdentifier(strings.Split(table, ".")...)
}
