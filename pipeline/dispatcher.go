package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Destination is one configured export target. The dispatcher treats all
// adapters polymorphically over Deliver; everything provider-specific lives
// behind it. Implementations must be safe for concurrent Deliver calls.
type Destination interface {
	// Name identifies the destination in reports and logs.
	Name() string

	// Enabled reports whether the destination should receive records.
	// The value is fixed at configuration time.
	Enabled() bool

	// Deliver exports one complete record. A non-nil error marks the
	// attempt failed for this destination only.
	Deliver(ctx context.Context, rec *Record) error
}

// DeliveryResult is the outcome of one delivery attempt.
type DeliveryResult struct {
	Destination string
	Elapsed     time.Duration
	Err         error
}

// DispatchReport summarizes one fan-out: how many destinations were
// attempted, how many succeeded, and why the rest failed. It exists for the
// telemetry system's own observability and is never surfaced to the unit of
// work that produced the record.
type DispatchReport struct {
	RecordID  string
	Attempted int
	Succeeded int
	Failed    int
	Results   []DeliveryResult
}

// Metrics receives per-attempt outcomes for self-observability counters.
type Metrics interface {
	RecordDelivery(ctx context.Context, destination string, success bool)
}

// Dispatcher fans a finalized record out to every enabled destination.
// Attempts run concurrently and independently: a slow or failing destination
// never blocks or corrupts delivery to the others. The destination set is
// fixed at construction and read without locking.
type Dispatcher struct {
	destinations  []Destination
	timeout       time.Duration
	fireAndForget bool
	logger        *logrus.Logger
	metrics       Metrics

	// inflight tracks async dispatches so Flush can wait for them.
	inflight sync.WaitGroup

	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDeliveryTimeout sets the per-destination delivery timeout.
func WithDeliveryTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithFireAndForget makes Submit return without waiting for deliveries to
// complete. Short-lived processes should call Flush before exiting.
func WithFireAndForget() DispatcherOption {
	return func(dp *Dispatcher) {
		dp.fireAndForget = true
	}
}

// WithDispatchLogger sets the logger used for dispatch reports.
func WithDispatchLogger(logger *logrus.Logger) DispatcherOption {
	return func(dp *Dispatcher) {
		if logger != nil {
			dp.logger = logger
		}
	}
}

// WithMetrics attaches self-observability counters.
func WithMetrics(m Metrics) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.metrics = m
	}
}

// NewDispatcher creates a dispatcher over a fixed destination set.
func NewDispatcher(destinations []Destination, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		destinations: destinations,
		timeout:      5 * time.Second,
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch attempts delivery of rec to every enabled destination
// concurrently and blocks until all attempts finish or time out. Each
// destination receives the complete record exactly once per call; there is
// no retry here (redelivery is an adapter concern, configured per
// destination).
func (d *Dispatcher) Dispatch(ctx context.Context, rec *Record) DispatchReport {
	report := DispatchReport{RecordID: rec.ID}

	enabled := make([]Destination, 0, len(d.destinations))
	for _, dest := range d.destinations {
		if dest.Enabled() {
			enabled = append(enabled, dest)
		}
	}
	if len(enabled) == 0 {
		return report
	}

	results := make(chan DeliveryResult, len(enabled))
	for _, dest := range enabled {
		go func(dest Destination) {
			results <- d.attempt(ctx, dest, rec)
		}(dest)
	}

	report.Attempted = len(enabled)
	for range enabled {
		res := <-results
		report.Results = append(report.Results, res)
		if res.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
		d.record(ctx, res)
	}

	d.logReport(report)
	return report
}

// Submit hands a finalized record to the dispatcher, honoring the configured
// mode: it blocks until the fan-out completes in synchronous mode, and
// returns immediately in fire-and-forget mode. After Submit the caller must
// not touch rec again.
func (d *Dispatcher) Submit(ctx context.Context, rec *Record) {
	if !d.fireAndForget {
		d.Dispatch(ctx, rec)
		return
	}

	// Detach from the caller's context so cancellation of the unit of work
	// (e.g. the HTTP response being written) does not abort delivery.
	bgCtx := context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.Dispatch(bgCtx, rec)
	}()
}

// attempt runs a single delivery with its own timeout. A timeout or panic
// counts as a failure for this destination only; on expiry the attempt is
// abandoned (the underlying I/O is left to its own cancellation, we just
// stop waiting).
func (d *Dispatcher) attempt(ctx context.Context, dest Destination, rec *Record) DeliveryResult {
	start := time.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("destination %s panicked: %v", dest.Name(), r)
			}
		}()
		done <- dest.Deliver(attemptCtx, rec)
	}()

	var err error
	select {
	case err = <-done:
	case <-attemptCtx.Done():
		err = fmt.Errorf("delivery to %s abandoned: %w", dest.Name(), attemptCtx.Err())
	}

	return DeliveryResult{Destination: dest.Name(), Elapsed: time.Since(start), Err: err}
}

func (d *Dispatcher) record(ctx context.Context, res DeliveryResult) {
	d.attempted.Add(1)
	if res.Err != nil {
		d.failed.Add(1)
	} else {
		d.succeeded.Add(1)
	}
	if d.metrics != nil {
		d.metrics.RecordDelivery(ctx, res.Destination, res.Err == nil)
	}
}

func (d *Dispatcher) logReport(report DispatchReport) {
	fields := logrus.Fields{
		"record_id": report.RecordID,
		"attempted": report.Attempted,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}
	if report.Failed == 0 {
		if d.logger.IsLevelEnabled(logrus.DebugLevel) {
			d.logger.WithFields(fields).Debug("Record dispatched")
		}
		return
	}
	for _, res := range report.Results {
		if res.Err != nil {
			fields["failed_"+res.Destination] = res.Err.Error()
		}
	}
	d.logger.WithFields(fields).Warn("Record dispatched with delivery failures")
}

// Totals returns the cumulative attempt counters since construction.
func (d *Dispatcher) Totals() (attempted, succeeded, failed int64) {
	return d.attempted.Load(), d.succeeded.Load(), d.failed.Load()
}

// Destinations returns the configured destination set (enabled or not).
func (d *Dispatcher) Destinations() []Destination {
	return d.destinations
}

// Flush waits for in-flight fire-and-forget dispatches to complete, or for
// ctx to expire. Synchronous-mode dispatchers return immediately.
func (d *Dispatcher) Flush(ctx context.Context) error {
	doneCh := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher flush interrupted: %w", ctx.Err())
	}
}
