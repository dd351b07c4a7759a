package hermes

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option configures a Conn.
type Option func(*Conn)

// WithClassifier sets the Classifier deciding which failures mean the connection was lost.
// Defaults to DefaultClassifier.
func WithClassifier(classifier Classifier) Option {
	return func(c *Conn) {
		if classifier != nil {
			c.classify = classifier
		}
	}
}

// WithMarker is shorthand for WithClassifier(MessageClassifier(markers...)).
func WithMarker(markers ...string) Option {
	return WithClassifier(MessageClassifier(markers...))
}

// WithLogger sets the logger for reconnects and ambiguous commits.  Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithMetrics records reconnects and retries in the Prometheus metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Conn) {
		c.metrics = metrics
	}
}

// WithTracer starts a span for every guarded call.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Conn) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func defaultTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("")
}
