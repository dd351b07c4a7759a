package hermes

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// QuoteLiteral renders value as a PostgreSQL literal, assuming standard_conforming_strings is on
// (the default since PostgreSQL 9.1).  Supports nil, strings, byte slices, booleans, integers,
// floats, time.Time and fmt.Stringer.  Anything else returns ErrUnsupportedType.
//
// Prefer query parameters; this is for the rare SQL that can't take them.
func QuoteLiteral(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case string:
		return quoteString(v), nil
	case []byte:
		return `'\x` + hex.EncodeToString(v) + `'`, nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return quoteString(v.Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return quoteString(v.String()), nil
	}

	return "", fmt.Errorf("%w: %T", ErrUnsupportedType, value)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdentifier quotes a possibly schema-qualified identifier, e.g. QuoteIdentifier("public",
// "users") returns "public"."users".
func QuoteIdentifier(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}
