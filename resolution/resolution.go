// resolution/resolution.go

// Package resolution is a cooperative, single-pass resolution engine: each
// field carries a queue of middleware steps, a step may suspend the field
// while a batched lookup is pending, and the driver executes the union of
// pending batches across all suspended fields exactly once per pass before
// resuming them.
package resolution

import (
	"context"

	"github.com/prosapient/datacop/dataloader"
)

// State of one field's resolution.
type State int

const (
	// Unresolved is the initial state; no verdict has been attempted, or a
	// resumed field is ready for its next middleware step.
	Unresolved State = iota
	// Suspended means a deferred verdict is waiting for batch execution; the
	// continuation sits at the front of the middleware queue and the loader
	// is attached to the context.
	Suspended
	// Resolved is terminal: either a value or an error is set.
	Resolved
)

// LoaderKey is the context key the suspension protocol attaches the
// in-flight loader under, so the driver can discover pending batches across
// all suspended fields.
const LoaderKey = "loader"

// Middleware is one step in a field's resolution. Steps are invoked by the
// driver, front of the queue first; a step may prepend further steps.
type Middleware func(ctx context.Context, res *Resolution)

// Resolution is the mutable record for one field, owned by the driver and
// threaded through every middleware invocation.
type Resolution struct {
	State      State
	Context    map[string]interface{}
	Middleware []Middleware
	// Source is the field's own source value, e.g. the list item currently
	// being resolved. It doubles as the default authorization subject.
	Source interface{}
	Value  interface{}
	Err    error
}

// New builds an unresolved field with the given source value and middleware
// chain.
func New(source interface{}, mw ...Middleware) *Resolution {
	return &Resolution{
		State:      Unresolved,
		Context:    make(map[string]interface{}),
		Middleware: mw,
		Source:     source,
	}
}

// Resolve terminates the field with a value.
func (r *Resolution) Resolve(value interface{}) {
	r.State = Resolved
	r.Value = value
}

// Fail terminates the field with an error.
func (r *Resolution) Fail(err error) {
	r.State = Resolved
	r.Err = err
}

// Prepend pushes steps onto the front of the pending middleware queue, to be
// invoked before anything currently queued.
func (r *Resolution) Prepend(mw ...Middleware) {
	r.Middleware = append(mw, r.Middleware...)
}

// suspend parks the field until the driver has run its batches, attaching
// the loader so the driver can find it and scheduling the continuation as
// the next step.
func (r *Resolution) suspend(l *dataloader.Loader, cont Middleware) {
	r.Prepend(cont)
	r.Context[LoaderKey] = l
	r.State = Suspended
}

// ContextLoader returns the loader attached to the shared context, if any.
func (r *Resolution) ContextLoader() *dataloader.Loader {
	l, _ := r.Context[LoaderKey].(*dataloader.Loader)
	return l
}

// Batch is the generic batched-execution middleware: it suspends the field
// on the given loader and schedules cont to run once the driver has executed
// the pending batches. Authorize delegates to it on the custom-callback
// path; it is exported because other deferred middleware can sequence batch
// work through it the same way.
func Batch(l *dataloader.Loader, cont Middleware) Middleware {
	return func(ctx context.Context, res *Resolution) {
		if res.State != Unresolved {
			return
		}
		if !l.PendingBatches() {
			// Nothing to wait for; continue immediately.
			cont(ctx, res)
			return
		}
		res.suspend(l, cont)
	}
}
