// Package webhook delivers application intake events to downstream
// automation. Delivery is fire-and-forget: failures are logged and never
// reach the caller.
package webhook

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/logging"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one delivery to one sink.
const DefaultTimeout = 5 * time.Second

// Event is the payload sent for every accepted application.
type Event struct {
	CVURL    string    `json:"cv_url"`
	JobID    uuid.UUID `json:"job_id"`
	JobName  string    `json:"job_name"`
	HRUserID uuid.UUID `json:"hr_user_id"`
}

// Sink delivers an event somewhere.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to its sinks in the background.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. With no sinks every Dispatch is a no-op.
func NewDispatcher(timeout time.Duration, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		logger:  logging.OrNop(logger).Named("webhook"),
	}
}

// Dispatch sends ev to every sink without blocking. The delivery keeps the
// values of ctx but not its cancellation, so it outlives the request that
// triggered it. Events dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("Webhook dropped after close", zap.String("job_id", ev.JobID.String()))
		return
	}

	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		d.wg.Add(1)
		go func(sink Sink) {
			defer d.wg.Done()
			sendCtx, cancel := context.WithTimeout(base, d.timeout)
			defer cancel()

			if err := sink.Send(sendCtx, ev); err != nil {
				d.logger.Warn("Webhook delivery failed",
					zap.String("sink", sink.Name()),
					zap.String("job_id", ev.JobID.String()),
					zap.Error(err))
				return
			}
			d.logger.Debug("Webhook delivered",
				zap.String("sink", sink.Name()),
				zap.String("job_id", ev.JobID.String()))
		}(sink)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Close stops accepting events, waits for in-flight deliveries, then closes
// sinks that hold resources. Only the first call closes the sinks.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	var errs []error
	for _, sink := range d.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
