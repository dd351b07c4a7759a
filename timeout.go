package hermes

import (
	"context"
	"time"
)

// DefaultConnectTimeout is used by the PgxDriver to dial if no timeout is set.
const DefaultConnectTimeout = 5 * time.Second

// SetTimeout sets the timeout for establishing a connection.
func (d *PgxDriver) SetTimeout(dur time.Duration) {
	d.defaultTimeout = dur
}

// Used for WithTimeout calls that already have a deadline.
func fakeCancel() {}

// WithTimeout creates a context with a timeout, assigning ctx as the parent of the timeout context.
// Returns the new context and its cancel function.  The timeout is the driver's connect timeout
// (see `SetTimeout`).  If ctx already has a deadline, it's used as is.
//
// Defaults to DefaultConnectTimeout.
//
// Be sure to call the cancel function when you're done to clean up any resources in use!
func (d *PgxDriver) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, ok := ctx.Deadline(); ok {
		return ctx, fakeCancel
	}

	timeout := d.defaultTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	return context.WithTimeout(ctx, timeout)
}
