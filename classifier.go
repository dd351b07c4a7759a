package hermes

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// GoneAway is the marker text a MySQL-family server uses when the connection dropped.  It's the
// default marker for New.
const GoneAway = "server has gone away"

// PostgreSQL disconnect errors - https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	ConnectionException    = "08000"
	ConnectionDoesNotExist = "08003"
	ConnectionFailure      = "08006"
	OperatorIntervention   = "57000"
	AdminShutdown          = "57P01"
	CrashShutdown          = "57P02"
	CannotConnectNow       = "57P03"
	DatabaseDropped        = "57P04"
	IdleSessionTimeout     = "57P05"
)

var (
	// DisconnectCodes is the list of PostgreSQL error codes that indicate the connection failed.
	// QueryCanceled (57014) isn't here on purpose; a statement timeout is an ordinary failure.
	DisconnectCodes = []string{
		ConnectionException,
		ConnectionDoesNotExist,
		ConnectionFailure,
		OperatorIntervention,
		AdminShutdown,
		CrashShutdown,
		CannotConnectNow,
		DatabaseDropped,
		IdleSessionTimeout,
	}

	// LostTransport is the list of messages pgx reports when the socket under a connection died.
	LostTransport = []string{
		"unexpected EOF",
		"conn closed",
		"broken pipe",
		"connection reset by peer",
		"server closed the connection",
	}
)

// Classifier reports whether err means the connection to the database server was lost.  The
// guard only reconnects and retries when the classifier says so.
type Classifier func(err error) bool

// DefaultClassifier looks for GoneAway in the cause of the error.
var DefaultClassifier = MessageClassifier(GoneAway)

// PgxClassifier recognizes a lost connection as pgx reports it:  either a PostgreSQL disconnect
// code, or one of the LostTransport messages.
var PgxClassifier = AnyOf(
	IsDisconnected,
	MessageClassifier(append([]string{GoneAway}, LostTransport...)...),
)

// Cause returns the error underneath err, i.e. the driver-level error beneath the wrapping
// DriverError.  Returns nil if err doesn't wrap anything.
func Cause(err error) error {
	if err == nil {
		return nil
	}

	return errors.Unwrap(err)
}

// MessageClassifier returns a Classifier that matches when the message of the error's Cause
// contains any of the markers.  An error without a cause never matches.
//
// This depends on the exact wording of a driver's error text, which may change between driver
// and server versions and locales.
func MessageClassifier(markers ...string) Classifier {
	return func(err error) bool {
		cause := Cause(err)
		if cause == nil {
			return false
		}

		msg := cause.Error()
		for _, marker := range markers {
			if marker != "" && strings.Contains(msg, marker) {
				return true
			}
		}

		return false
	}
}

// CodeClassifier returns a Classifier that matches a *pgconn.PgError anywhere in the error chain
// with one of the SQLSTATE codes.
func CodeClassifier(codes ...string) Classifier {
	return func(err error) bool {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return false
		}

		for _, code := range codes {
			if pgErr.Code == code {
				return true
			}
		}

		return false
	}
}

// AnyOf matches if any of the classifiers match.
func AnyOf(classifiers ...Classifier) Classifier {
	return func(err error) bool {
		for _, classify := range classifiers {
			if classify != nil && classify(err) {
				return true
			}
		}

		return false
	}
}

// IsDisconnected returns true if the error is a PostgreSQL disconnect error (see DisconnectCodes).
func IsDisconnected(err error) bool {
	if err == nil {
		return false
	}

	return CodeClassifier(DisconnectCodes...)(err)
}
