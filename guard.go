package hermes

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// attempt runs one driver call.  cause is nil on the first attempt; on the retry it's the
// failure that triggered the reconnect.
type attempt[T any] func(ctx context.Context, cause error) (T, error)

// guard runs fn.  If it fails and the Conn's classifier says the connection was lost, guard
// closes and reconnects the driver, then runs fn exactly once more.  The outcome of the second
// attempt is final.  Any other failure is returned untouched.
//
// ErrNotConnected is treated as a lost connection, so a driver left closed by an earlier failed
// reconnect is dialed again on the next call.
func guard[T any](ctx context.Context, c *Conn, op string, fn attempt[T]) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := c.tracer.Start(ctx, "hermes."+op, trace.WithAttributes(attribute.String("db.operation", op)))
	defer span.End()

	result, err := fn(ctx, nil)
	if err == nil {
		return result, nil
	}

	if !c.lost(err) {
		fail(span, err)
		return result, err
	}

	cause := err

	c.logger.Warn().Err(cause).Str("op", op).Msg("connection lost, reconnecting")
	c.metrics.reconnected(op)
	span.AddEvent("reconnect", trace.WithAttributes(attribute.String("cause", cause.Error())))

	if err := c.reconnect(ctx); err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("unable to reconnect")
		c.metrics.retried(op, err)
		fail(span, err)

		var zero T
		return zero, err
	}

	result, err = fn(ctx, cause)
	c.metrics.retried(op, err)
	if err != nil {
		fail(span, err)
	}

	return result, err
}

// lost returns true if err means the driver has no usable connection.
func (c *Conn) lost(err error) bool {
	return errors.Is(err, ErrNotConnected) || c.classify(err)
}

// reconnect closes the driver and connects it again.  The server end of the connection is
// already gone, so an error closing the client end doesn't matter.
func (c *Conn) reconnect(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("error closing lost connection")
	}

	return c.driver.Connect(ctx)
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
