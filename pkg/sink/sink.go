// Package sink defines the capability contract every storage engine adapter
// implements, the connection state they share, and the registry that builds
// them from configuration.
//
// A sink is never called concurrently with itself: batches are dispatched
// one at a time and each batch submits exactly one task per sink. Sinks
// therefore keep their connection state without locking.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/logger"
	"github.com/ajitpratap0/polyload/pkg/metrics"
	"github.com/ajitpratap0/polyload/pkg/models"
)

// Sink is one external store.
type Sink interface {
	// Name returns the configured sink name.
	Name() string
	// Connect establishes connectivity. It is idempotent and is called
	// implicitly by the first InsertBatch when needed.
	Connect(ctx context.Context) error
	// InsertBatch writes records to target as one unit. Failures are
	// returned as *errors.SinkError.
	InsertBatch(ctx context.Context, target string, records []*models.Record) error
	// TestConnection probes the store and reports health. It never fails;
	// the underlying error is logged.
	TestConnection(ctx context.Context) bool
	// Close releases the connection.
	Close(ctx context.Context) error
}

// TargetNamer is implemented by sinks that address data by something other
// than the table name, such as a graph label.
type TargetNamer interface {
	Target(table string) string
}

// Target resolves the name a sink writes table to.
func Target(s Sink, table string) string {
	if tn, ok := s.(TargetNamer); ok {
		return tn.Target(table)
	}
	return table
}

// State is the connection state of a sink.
type State int

const (
	// Disconnected is the initial state.
	Disconnected State = iota
	// Connected means the sink holds a live handle.
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Base carries what every sink variant shares: identity, logger and
// connection state. Variants embed it.
type Base struct {
	name   string
	kind   string
	state  State
	logger *zap.Logger
}

// NewBase creates the shared part of a sink.
func NewBase(name, kind string) *Base {
	return &Base{
		name:   name,
		kind:   kind,
		state:  Disconnected,
		logger: logger.Get().With(zap.String("component", "sink"), zap.String("sink", name), zap.String("kind", kind)),
	}
}

// Name returns the configured sink name.
func (b *Base) Name() string { return b.name }

// Kind returns the registered sink type.
func (b *Base) Kind() string { return b.kind }

// State returns the current connection state.
func (b *Base) State() State { return b.state }

// IsConnected reports whether Connect has succeeded and Close has not been called since.
func (b *Base) IsConnected() bool { return b.state == Connected }

// Logger returns the sink logger.
func (b *Base) Logger() *zap.Logger { return b.logger }

// MarkConnected performs the Disconnected -> Connected transition.
func (b *Base) MarkConnected() {
	b.state = Connected
	metrics.SetConnected(b.name, true)
	b.logger.Info("sink connected")
}

// MarkDisconnected resets the state after Close.
func (b *Base) MarkDisconnected() {
	b.state = Disconnected
	metrics.SetConnected(b.name, false)
}

// ConnectionError attributes a connectivity failure to this sink.
func (b *Base) ConnectionError(target string, cause error) *errors.SinkError {
	return errors.NewSinkError(b.name, target, errors.ErrorTypeConnection, cause)
}

// InsertError attributes a write failure to this sink.
func (b *Base) InsertError(target string, cause error) *errors.SinkError {
	return errors.NewSinkError(b.name, target, errors.ErrorTypeInsert, cause)
}

// Ensure calls connect unless the sink is already connected. A failure is
// re-attributed to target so insert errors always name what was being written.
func (b *Base) Ensure(ctx context.Context, target string, connect func(context.Context) error) error {
	if b.IsConnected() {
		return nil
	}
	err := connect(ctx)
	if err == nil {
		return nil
	}
	var se *errors.SinkError
	if errors.As(err, &se) {
		return errors.NewSinkError(b.name, target, se.Kind, se.Cause)
	}
	return b.ConnectionError(target, err)
}

// Probe runs check, connecting first when needed, and converts the outcome
// to a health flag.
func (b *Base) Probe(ctx context.Context, connect func(context.Context) error, check func(context.Context) error) bool {
	if err := b.Ensure(ctx, "", connect); err != nil {
		b.logger.Warn("connection test failed", zap.Error(err))
		return false
	}
	if err := check(ctx); err != nil {
		b.logger.Warn("connection test failed", zap.Error(err))
		return false
	}
	return true
}
