// resolution/driver.go
package resolution

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prosapient/datacop/dataloader"
	logger "github.com/prosapient/datacop/logging"
)

// Driver runs a set of fields to completion. Within one pass it advances
// every field's middleware queue until the field is resolved, suspended or
// out of steps, then executes the union of all suspended fields' pending
// batches exactly once and resumes the continuations. Passes repeat until no
// field is suspended.
//
// Everything except batch execution is single-threaded and cooperative: a
// middleware step never blocks, it suspends and returns control here.
type Driver struct{}

func NewDriver() *Driver {
	return &Driver{}
}

// Run drives all fields to a terminal or idle state. Field-level failures
// are recorded on the field itself (res.Err) and do not stop the pass; only
// a failed batch execution aborts the run.
func (d *Driver) Run(ctx context.Context, fields []*Resolution) error {
	for pass := 1; ; pass++ {
		for _, res := range fields {
			d.advance(ctx, res)
		}

		loaders := suspendedLoaders(fields)
		if len(loaders) == 0 {
			return nil
		}

		start := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		for _, l := range loaders {
			l := l
			g.Go(func() error { return l.Run(gctx) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
		logger.Debug("Resolution pass executed batches",
			zap.Int("pass", pass),
			zap.Int("loaders", len(loaders)),
			zap.Duration("took", time.Since(start)))

		for _, res := range fields {
			if res.State == Suspended {
				d.resume(ctx, res)
			}
		}
	}
}

// advance pops and invokes middleware until the field suspends, resolves or
// runs out of steps.
func (d *Driver) advance(ctx context.Context, res *Resolution) {
	for res.State == Unresolved && len(res.Middleware) > 0 {
		step := res.Middleware[0]
		res.Middleware = res.Middleware[1:]
		step(ctx, res)
	}
}

// resume invokes the continuation scheduled at suspension time, then keeps
// advancing if the field re-entered the unresolved state.
func (d *Driver) resume(ctx context.Context, res *Resolution) {
	if len(res.Middleware) == 0 {
		// A suspended field always carries its continuation; a missing one
		// means an outside mutation of the queue. Leave the field alone.
		logger.Warn("Suspended field has no continuation")
		return
	}
	cont := res.Middleware[0]
	res.Middleware = res.Middleware[1:]
	cont(ctx, res)
	d.advance(ctx, res)
}

// suspendedLoaders collects the distinct loaders attached by suspended
// fields, so shared loaders run once no matter how many fields wait on them.
func suspendedLoaders(fields []*Resolution) []*dataloader.Loader {
	seen := make(map[*dataloader.Loader]struct{})
	var out []*dataloader.Loader
	for _, res := range fields {
		if res.State != Suspended {
			continue
		}
		l := res.ContextLoader()
		if l == nil {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
