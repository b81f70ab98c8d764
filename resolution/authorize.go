// resolution/authorize.go
package resolution

import (
	"context"

	"github.com/prosapient/datacop"
	"github.com/prosapient/datacop/dataloader"
	datacop_errors "github.com/prosapient/datacop/errors"
)

// ContextReader resolves an option value lazily from the shared resolution
// context, for values that only exist at call time.
type ContextReader func(resCtx map[string]interface{}) interface{}

// Callback transforms the authorization outcome into the field's terminal
// result. It receives nil when the check allowed and the denial error
// otherwise; its return value and error become the field's Value and Err.
type Callback func(authzErr error) (interface{}, error)

type authorizeOptions struct {
	actor       interface{}
	actorReader ContextReader

	subject    interface{}
	subjectSet bool

	loader       *dataloader.Loader
	loaderReader func(resCtx map[string]interface{}) *dataloader.Loader

	callback Callback
}

// AuthorizeOption configures one Authorize middleware.
type AuthorizeOption func(*authorizeOptions)

// Actor sets the requesting actor to a literal value.
func Actor(v interface{}) AuthorizeOption {
	return func(o *authorizeOptions) { o.actor = v }
}

// ActorFunc reads the actor from the shared context at call time.
func ActorFunc(f ContextReader) AuthorizeOption {
	return func(o *authorizeOptions) { o.actorReader = f }
}

// Subject overrides the authorization subject; by default the field's own
// source value is used.
func Subject(v interface{}) AuthorizeOption {
	return func(o *authorizeOptions) {
		o.subject = v
		o.subjectSet = true
	}
}

// Loader sets the loader deferred checks are submitted to.
func Loader(l *dataloader.Loader) AuthorizeOption {
	return func(o *authorizeOptions) { o.loader = l }
}

// LoaderFunc reads the loader from the shared context at call time.
func LoaderFunc(f func(resCtx map[string]interface{}) *dataloader.Loader) AuthorizeOption {
	return func(o *authorizeOptions) { o.loaderReader = f }
}

// WithCallback installs a custom result transform, invoked at the exact
// point the verdict is known (immediately for synchronous verdicts, after
// batch execution for deferred ones).
func WithCallback(f Callback) AuthorizeOption {
	return func(o *authorizeOptions) { o.callback = f }
}

// Authorize returns the middleware step gating one field behind an
// authorization check. Synchronous verdicts settle the field immediately; a
// deferred verdict suspends it with a continuation until the driver has
// executed the pending batches, then re-enters the unresolved state (allow)
// or fails the field (deny). Only the field itself is affected; sibling
// fields in the same pass keep resolving.
func Authorize(action datacop.Action, policy datacop.Policy, opts ...AuthorizeOption) Middleware {
	o := authorizeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, res *Resolution) {
		if res.State != Unresolved {
			// Re-entry with unrelated parameters; pass through.
			return
		}

		actor := o.actor
		if o.actorReader != nil {
			actor = o.actorReader(res.Context)
		}
		subject := res.Source
		if o.subjectSet {
			subject = o.subject
		}

		raw := policy.Authorize(ctx, action, actor, subject)
		verdict, err := datacop.Normalize(raw, action)
		if err != nil {
			res.Fail(err)
			return
		}

		switch verdict.Kind {
		case datacop.Allowed:
			if o.callback != nil {
				value, cbErr := o.callback(nil)
				settle(res, value, cbErr)
			}
			// No callback: leave the field untouched so it resolves
			// normally downstream.
			return
		case datacop.Denied:
			if o.callback != nil {
				value, cbErr := o.callback(verdict.Err)
				settle(res, value, cbErr)
				return
			}
			res.Fail(verdict.Err)
			return
		}

		// Deferred.
		request := verdict.Request
		loader, err := o.obtainLoader(policy, res, request.Source)
		if err != nil {
			res.Fail(err)
			return
		}
		if err := loader.Load(request.Source, request.BatchKey, request.Input); err != nil {
			res.Fail(err)
			return
		}

		cont := continuation(action, loader, request, o.callback)

		if o.callback != nil {
			// The generic batch middleware manages suspension when a custom
			// transform has to run at the point the batch resolves.
			res.Prepend(Batch(loader, cont))
			return
		}
		if !loader.PendingBatches() {
			// Degenerate: the result is already cached, nothing to wait for.
			cont(ctx, res)
			return
		}
		res.suspend(loader, cont)
	}
}

// continuation builds the middleware step that re-evaluates the field once
// its batch has been executed: fetch the value, normalize it and either
// signal resumption (back to Unresolved, so the engine retries the field's
// actual resolution) or settle the field.
func continuation(action datacop.Action, loader *dataloader.Loader, request datacop.BatchRequest, cb Callback) Middleware {
	return func(ctx context.Context, res *Resolution) {
		value, err := loader.Get(request.Source, request.BatchKey, request.Input)
		if err != nil {
			res.Fail(err)
			return
		}
		verdict, err := datacop.NormalizeValue(value, action)
		if err != nil {
			res.Fail(err)
			return
		}
		if verdict.Kind == datacop.Deferred {
			// A batch result may not defer again.
			res.Fail(&datacop_errors.InvalidPolicyResultError{Value: value, Action: string(action)})
			return
		}

		var authzErr error
		if verdict.Kind == datacop.Denied {
			authzErr = verdict.Err
		}
		if cb != nil {
			value, cbErr := cb(authzErr)
			settle(res, value, cbErr)
			return
		}
		if authzErr != nil {
			res.Fail(authzErr)
			return
		}
		res.State = Unresolved
	}
}

func (o *authorizeOptions) obtainLoader(policy datacop.Policy, res *Resolution, source string) (*dataloader.Loader, error) {
	if o.loader != nil {
		return o.loader, nil
	}
	if o.loaderReader != nil {
		if l := o.loaderReader(res.Context); l != nil {
			return l, nil
		}
	}
	if l := res.ContextLoader(); l != nil {
		return l, nil
	}
	return datacop.DefaultLoader(policy, source)
}

func settle(res *Resolution, value interface{}, err error) {
	if err != nil {
		res.Fail(err)
		return
	}
	res.Resolve(value)
}
