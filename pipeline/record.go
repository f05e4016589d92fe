package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal outcome of a unit of work.
type Status string

const (
	StatusUnset Status = "unset"
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Record is one finalized observation of a unit of work. It is created when
// the unit of work starts, accepts attribute writes while in flight, and
// becomes immutable once Finalize is called. After finalization ownership
// passes to the dispatcher and the creator must not touch it again.
type Record struct {
	ID        string
	Name      string
	ParentID  string
	StartTime time.Time

	// Set by Finalize.
	Duration    time.Duration
	Status      Status
	ErrorDetail string

	mu         sync.Mutex
	attributes map[string]any
	finalized  bool
}

// NewRecord allocates a record for a unit of work that is starting now.
// If the context carries an active record, the new record links to it as its
// parent (span nesting via explicit context passing, no global state).
func NewRecord(ctx context.Context, name string) *Record {
	rec := &Record{
		ID:         uuid.NewString(),
		Name:       name,
		StartTime:  time.Now(),
		Status:     StatusUnset,
		attributes: make(map[string]any),
	}
	if parent, ok := RecordFromContext(ctx); ok {
		rec.ParentID = parent.ID
	}
	return rec
}

// SetAttribute attaches a key/value attribute to the in-flight record.
// Writes are applied in call order; the last write wins on duplicate keys.
// Writes after finalization are dropped: the record no longer belongs to
// the caller at that point.
func (r *Record) SetAttribute(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.attributes[key] = value
}

// Attribute returns the current value for key and whether it is set.
func (r *Record) Attribute(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.attributes[key]
	return v, ok
}

// Attributes returns a copy of the attribute map, so destinations can read it
// without racing a late writer.
func (r *Record) Attributes() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.attributes))
	for k, v := range r.attributes {
		out[k] = v
	}
	return out
}

// Finalize seals the record: it computes the duration and sets the status
// from err. The first call wins; later calls are no-ops, which guarantees a
// record is finalized exactly once even when a unit of work exits early.
func (r *Record) Finalize(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.finalized = true
	r.Duration = time.Since(r.StartTime)
	if err != nil {
		r.Status = StatusError
		r.ErrorDetail = err.Error()
	} else {
		r.Status = StatusOK
	}
}

// Finalized reports whether the record has been sealed.
func (r *Record) Finalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}

type recordContextKey struct{}

// ContextWithRecord returns a context carrying rec as the active record.
func ContextWithRecord(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, recordContextKey{}, rec)
}

// RecordFromContext returns the active record carried by ctx, if any.
func RecordFromContext(ctx context.Context) (*Record, bool) {
	rec, ok := ctx.Value(recordContextKey{}).(*Record)
	return rec, ok
}

// SetAttribute attaches an attribute to the active record in ctx. It is a
// no-op when no unit of work is being tracked, so instrumented code can call
// it unconditionally.
func SetAttribute(ctx context.Context, key string, value any) {
	if rec, ok := RecordFromContext(ctx); ok {
		rec.SetAttribute(key, value)
	}
}
