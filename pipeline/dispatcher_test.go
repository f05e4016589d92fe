package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDestination counts deliveries per record and can be told to fail,
// hang, or panic.
type stubDestination struct {
	name    string
	enabled bool
	fail    bool
	panics  bool
	delay   time.Duration

	mu        sync.Mutex
	delivered map[string]int
}

func newStubDestination(name string) *stubDestination {
	return &stubDestination{name: name, enabled: true, delivered: make(map[string]int)}
}

func (s *stubDestination) Name() string  { return s.name }
func (s *stubDestination) Enabled() bool { return s.enabled }

func (s *stubDestination) Deliver(ctx context.Context, rec *Record) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.panics {
		panic("exporter blew up")
	}

	s.mu.Lock()
	s.delivered[rec.ID]++
	s.mu.Unlock()

	if s.fail {
		return errors.New("connection refused")
	}
	return nil
}

func (s *stubDestination) deliveries(recordID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered[recordID]
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func finalizedRecord(name string) *Record {
	rec := NewRecord(context.Background(), name)
	rec.Finalize(nil)
	return rec
}

func TestDispatchReportsPerDestinationOutcomes(t *testing.T) {
	good1 := newStubDestination("good1")
	good2 := newStubDestination("good2")
	bad := newStubDestination("bad")
	bad.fail = true

	d := NewDispatcher([]Destination{good1, bad, good2}, WithDispatchLogger(quietLogger()))

	var report DispatchReport
	require.NotPanics(t, func() {
		report = d.Dispatch(context.Background(), finalizedRecord("op"))
	})

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	for _, res := range report.Results {
		if res.Destination == "bad" {
			assert.ErrorContains(t, res.Err, "connection refused")
		} else {
			assert.NoError(t, res.Err)
		}
	}
}

func TestDispatchSkipsDisabledDestinations(t *testing.T) {
	enabled := newStubDestination("on")
	disabled := newStubDestination("off")
	disabled.enabled = false

	d := NewDispatcher([]Destination{enabled, disabled}, WithDispatchLogger(quietLogger()))
	rec := finalizedRecord("op")
	report := d.Dispatch(context.Background(), rec)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, enabled.deliveries(rec.ID))
	assert.Equal(t, 0, disabled.deliveries(rec.ID))
}

func TestDispatchTimeoutCountsAsFailure(t *testing.T) {
	slow := newStubDestination("slow")
	slow.delay = 500 * time.Millisecond
	fast := newStubDestination("fast")

	d := NewDispatcher([]Destination{slow, fast},
		WithDeliveryTimeout(20*time.Millisecond),
		WithDispatchLogger(quietLogger()),
	)

	start := time.Now()
	report := d.Dispatch(context.Background(), finalizedRecord("op"))

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	// The slow destination is abandoned at its own timeout, not waited out.
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestDispatchPanicInDestinationCountsAsFailure(t *testing.T) {
	panicky := newStubDestination("panicky")
	panicky.panics = true
	steady := newStubDestination("steady")

	d := NewDispatcher([]Destination{panicky, steady}, WithDispatchLogger(quietLogger()))

	var report DispatchReport
	require.NotPanics(t, func() {
		report = d.Dispatch(context.Background(), finalizedRecord("op"))
	})

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}

func TestDispatchWithNoEnabledDestinations(t *testing.T) {
	disabled := newStubDestination("off")
	disabled.enabled = false

	d := NewDispatcher([]Destination{disabled}, WithDispatchLogger(quietLogger()))
	report := d.Dispatch(context.Background(), finalizedRecord("op"))

	assert.Zero(t, report.Attempted)
	assert.Zero(t, report.Succeeded)
	assert.Zero(t, report.Failed)
}

func TestConcurrentDispatchDeliversEachRecordOncePerDestination(t *testing.T) {
	const records = 100
	destinations := make([]Destination, 5)
	stubs := make([]*stubDestination, 5)
	for i := range destinations {
		stubs[i] = newStubDestination(fmt.Sprintf("dest-%d", i))
		destinations[i] = stubs[i]
	}

	d := NewDispatcher(destinations, WithDispatchLogger(quietLogger()))

	recs := make([]*Record, records)
	var wg sync.WaitGroup
	for i := 0; i < records; i++ {
		recs[i] = finalizedRecord(fmt.Sprintf("op-%d", i))
		wg.Add(1)
		go func(rec *Record) {
			defer wg.Done()
			d.Dispatch(context.Background(), rec)
		}(recs[i])
	}
	wg.Wait()

	attempted, succeeded, failed := d.Totals()
	assert.Equal(t, int64(records*5), attempted)
	assert.Equal(t, int64(records*5), succeeded)
	assert.Zero(t, failed)

	// Exactly once per destination per record, never duplicated.
	for _, stub := range stubs {
		for _, rec := range recs {
			assert.Equal(t, 1, stub.deliveries(rec.ID))
		}
	}
}

func TestSubmitFireAndForgetCompletesAfterFlush(t *testing.T) {
	dest := newStubDestination("async")
	dest.delay = 10 * time.Millisecond

	d := NewDispatcher([]Destination{dest},
		WithFireAndForget(),
		WithDispatchLogger(quietLogger()),
	)

	rec := finalizedRecord("op")
	d.Submit(context.Background(), rec)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Flush(ctx))

	assert.Equal(t, 1, dest.deliveries(rec.ID))
}

func TestSubmitFireAndForgetSurvivesCallerCancellation(t *testing.T) {
	dest := newStubDestination("async")
	dest.delay = 20 * time.Millisecond

	d := NewDispatcher([]Destination{dest},
		WithFireAndForget(),
		WithDispatchLogger(quietLogger()),
	)

	// The unit of work's context is cancelled right after Submit, like a
	// request context once the response is written.
	ctx, cancel := context.WithCancel(context.Background())
	rec := finalizedRecord("op")
	d.Submit(ctx, rec)
	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), time.Second)
	defer flushCancel()
	require.NoError(t, d.Flush(flushCtx))

	assert.Equal(t, 1, dest.deliveries(rec.ID))
}

func TestFlushTimesOutOnStuckDispatch(t *testing.T) {
	dest := newStubDestination("stuck")
	dest.delay = 2 * time.Second

	d := NewDispatcher([]Destination{dest},
		WithFireAndForget(),
		WithDeliveryTimeout(3*time.Second),
		WithDispatchLogger(quietLogger()),
	)
	d.Submit(context.Background(), finalizedRecord("op"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.Error(t, d.Flush(ctx))
}
