package hermes

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected returned by the driver when there's no open connection to the database.
	ErrNotConnected = errors.New("not connected to the database")

	// ErrNoTransaction returned if you commit or roll back without beginning a transaction.
	ErrNoTransaction = errors.New("no transaction in progress")

	// ErrTransactionLost returned when a call made inside a transaction had to reconnect, so the
	// transaction is gone and the call would otherwise run outside of it.
	ErrTransactionLost = errors.New("transaction lost on reconnect")

	// ErrUnsupportedType returned by Quote for values it doesn't know how to render as SQL.
	ErrUnsupportedType = errors.New("unsupported type")
)

// DriverError wraps every failure coming out of the database driver, recording the driver
// operation that failed.  The driver's own error is the cause (see Cause), which is what the
// Classifier inspects.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("hermes: %s: %s", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// wrap returns nil for a nil err, or a DriverError.  Errors that are already DriverErrors aren't
// wrapped twice.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	var de *DriverError
	if errors.As(err, &de) {
		return err
	}

	return &DriverError{Op: op, Err: err}
}
