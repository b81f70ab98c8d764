// datacop.go

// Package datacop resolves authorization checks that may depend on batched
// lookups. A policy either answers synchronously (allow/deny) or defers its
// verdict to a batch keyed by an actor/subject pair; deferred checks from a
// whole resolution pass are coalesced into one batch execution per distinct
// batch key instead of one permission query per item.
package datacop

import (
	"context"
	"fmt"

	"github.com/prosapient/datacop/dataloader"
	datacop_errors "github.com/prosapient/datacop/errors"
)

// Action names the operation being authorized. Opaque: used only for
// equality and diagnostics.
type Action string

// Policy is the capability every authorization decision flows through.
// Authorize returns Allow(), Deny(reason) or Defer(request); actor and
// subject are opaque caller-supplied values, never interpreted here.
type Policy interface {
	Authorize(ctx context.Context, action Action, actor, subject interface{}) RawResult
}

// DataSourcer is the optional capability a policy implements to provide its
// own batch source, used when a deferred check runs without an explicit
// loader.
type DataSourcer interface {
	Data() dataloader.Source
}

// Auditor receives every final decision made by Permit when attached via
// WithAudit. Implementations must not block the caller.
type Auditor interface {
	Decision(ctx context.Context, action Action, actor, subject interface{}, allowed bool, reason string)
}

// DefaultLoader derives a loader from the policy itself: a fresh loader with
// the policy's data source registered under the given source name. Policies
// without a data source fail with MissingDataSourceError naming the concrete
// type. Each call builds a new loader, so defaulted loaders are never shared
// between separate Permit calls.
func DefaultLoader(policy Policy, source string) (*dataloader.Loader, error) {
	ds, ok := policy.(DataSourcer)
	if !ok {
		return nil, &datacop_errors.MissingDataSourceError{Policy: fmt.Sprintf("%T", policy)}
	}
	return dataloader.New().AddSource(source, ds.Data()), nil
}
