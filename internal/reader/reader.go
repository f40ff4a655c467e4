package reader

import (
	"context"
	"errors"

	"github.com/edmw/volumio-hid/internal/command"
	"github.com/edmw/volumio-hid/internal/hid"
)

// Device is the input device the pipeline reads from.
// Satisfied by *hid.Device.
type Device interface {
	ReadEvent(ctx context.Context) (hid.Event, error)
	Close() error
	Path() string
}

// Emitter sends resolved commands to the remote peer.
// Satisfied by *volumio.Session.
type Emitter interface {
	Emit(event string, payload any, ack command.AckFunc) error
}

// Recorder persists the outcome of each completed identifier.
// Satisfied by *history.Store; a nil Recorder disables recording.
type Recorder interface {
	Record(ctx context.Context, identifier string, outcome command.Outcome, commandName string)
}

// Logger defines the logging interface for the pipeline.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Reader runs the device → accumulator → resolver → emitter pipeline.
//
// It owns the device handle for the lifetime of Run and guarantees the
// handle is released exactly once on every exit path: normal completion,
// propagated error, and external cancellation.
type Reader struct {
	device   Device
	acc      *Accumulator
	table    *command.Table
	emitter  Emitter
	recorder Recorder
	logger   Logger
}

// New creates a read pipeline over the given device.
//
// Parameters:
//   - device: Exclusively grabbed input device (ownership transfers here)
//   - acc: Identifier accumulator
//   - table: Command resolver table
//   - emitter: Remote session to emit invocations on
func New(device Device, acc *Accumulator, table *command.Table, emitter Emitter) *Reader {
	return &Reader{
		device:  device,
		acc:     acc,
		table:   table,
		emitter: emitter,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the pipeline.
func (r *Reader) SetLogger(logger Logger) {
	r.logger = logger
}

// SetRecorder enables scan history recording.
func (r *Reader) SetRecorder(recorder Recorder) {
	r.recorder = recorder
}

// Run consumes device events until the context is cancelled or the device
// becomes unavailable. It never returns while events flow.
//
// The device is released before Run returns, on every path. Cancellation
// is reported as ctx.Err(); a vanished device as hid.ErrDeviceUnavailable.
//
// Parameters:
//   - ctx: Cancellation token, checked at the blocking device read
//
// Returns:
//   - error: ctx.Err() on cancellation, or the fatal device error
func (r *Reader) Run(ctx context.Context) error {
	defer func() {
		if err := r.device.Close(); err != nil {
			r.logger.Error("releasing device", "path", r.device.Path(), "error", err)
		} else {
			r.logger.Debug("device released", "path", r.device.Path())
		}
	}()

	r.logger.Info("reading events", "path", r.device.Path())

	for {
		ev, err := r.device.ReadEvent(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.logger.Info("read pipeline cancelled")
				return err
			}
			return err
		}

		identifier, ok := r.acc.Feed(ev)
		if !ok {
			continue
		}

		r.dispatch(ctx, identifier)
	}
}

// dispatch resolves one completed identifier and emits its invocations.
// Resolution failures and emit failures are diagnostics, never fatal: the
// pipeline keeps reading.
func (r *Reader) dispatch(ctx context.Context, identifier string) {
	invocations, outcome := r.table.Resolve(identifier)

	commandName := ""
	if len(invocations) > 0 {
		// The last invocation carries the intent (playlist fallback
		// prefixes a stop).
		commandName = invocations[len(invocations)-1].Event
	}

	if r.recorder != nil {
		r.recorder.Record(ctx, identifier, outcome, commandName)
	}

	for _, inv := range invocations {
		if err := r.emitter.Emit(inv.Event, inv.Payload, inv.Ack); err != nil {
			r.logger.Warn("emit failed",
				"event", inv.Event,
				"identifier", identifier,
				"error", err,
			)
		}
	}
}
