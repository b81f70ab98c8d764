// permit.go
package datacop

import (
	"context"

	"github.com/prosapient/datacop/dataloader"
	datacop_errors "github.com/prosapient/datacop/errors"
)

type permitOptions struct {
	subject interface{}
	loader  *dataloader.Loader
	auditor Auditor
}

// Option configures a single Permit call.
type Option func(*permitOptions)

// WithSubject sets the value being acted upon. Permit has no default subject.
func WithSubject(subject interface{}) Option {
	return func(o *permitOptions) { o.subject = subject }
}

// WithLoader supplies the loader deferred checks are submitted to. Reusing
// one loader across successive Permit calls coalesces all loads issued
// before its first run; without it every call that defers builds its own
// loader and pays its own batch round trip.
func WithLoader(l *dataloader.Loader) Option {
	return func(o *permitOptions) { o.loader = l }
}

// WithAudit attaches an auditor that is told the final decision of this call.
func WithAudit(a Auditor) Option {
	return func(o *permitOptions) { o.auditor = a }
}

// Permit runs one authorization check to completion. A synchronous verdict
// returns immediately; a deferred one is submitted to the loader, all
// pending batches on that loader are executed (blocking) and the fetched
// batch result decides. Returns nil when allowed, an UnauthorizedError when
// denied, and a programming error (InvalidPolicyResultError,
// MissingDataSourceError, loader failures) when evaluation itself is broken.
func Permit(ctx context.Context, policy Policy, action Action, actor interface{}, opts ...Option) error {
	o := permitOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	raw := policy.Authorize(ctx, action, actor, o.subject)
	// This entry point reports denials without an action tag; the
	// resolution middleware uses the richer variant.
	verdict, err := Normalize(raw, "")
	if err != nil {
		return err
	}

	switch verdict.Kind {
	case Allowed:
		o.audit(ctx, action, actor, true, "")
		return nil
	case Denied:
		o.audit(ctx, action, actor, false, verdict.Err.Message)
		return verdict.Err
	}

	request := verdict.Request
	loader := o.loader
	if loader == nil {
		loader, err = DefaultLoader(policy, request.Source)
		if err != nil {
			return err
		}
	}

	if err := loader.Load(request.Source, request.BatchKey, request.Input); err != nil {
		return err
	}
	if err := loader.Run(ctx); err != nil {
		return err
	}

	value, err := loader.Get(request.Source, request.BatchKey, request.Input)
	if err != nil {
		return err
	}

	final, err := NormalizeValue(value, "")
	if err != nil {
		return err
	}
	if final.Kind == Deferred {
		// A batch result may not defer again.
		return &datacop_errors.InvalidPolicyResultError{Value: value}
	}
	if final.Kind == Denied {
		o.audit(ctx, action, actor, false, final.Err.Message)
		return final.Err
	}
	o.audit(ctx, action, actor, true, "")
	return nil
}

// PermitOK is the boolean convenience variant: true only when the check is
// allowed, discarding all error detail.
func PermitOK(ctx context.Context, policy Policy, action Action, actor interface{}, opts ...Option) bool {
	return Permit(ctx, policy, action, actor, opts...) == nil
}

func (o *permitOptions) audit(ctx context.Context, action Action, actor interface{}, allowed bool, reason string) {
	if o.auditor == nil {
		return
	}
	o.auditor.Decision(ctx, action, actor, o.subject, allowed, reason)
}
