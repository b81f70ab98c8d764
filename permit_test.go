// permit_test.go
package datacop_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prosapient/datacop"
	"github.com/prosapient/datacop/dataloader"
	datacop_errors "github.com/prosapient/datacop/errors"
)

// pairKey is the batched lookup input used across the permit tests.
type pairKey struct {
	ActorID   int
	SubjectID int
}

// fakePolicy evaluates via a plain function; with a grants table it also
// acts as its own batch source.
type fakePolicy struct {
	authorize func(action datacop.Action, actor, subject interface{}) datacop.RawResult
	grants    map[pairKey]interface{}

	mu      sync.Mutex
	batches int
	inputs  [][]interface{}
}

func (p *fakePolicy) Authorize(ctx context.Context, action datacop.Action, actor, subject interface{}) datacop.RawResult {
	return p.authorize(action, actor, subject)
}

func (p *fakePolicy) Data() dataloader.Source {
	return dataloader.SourceFunc(func(ctx context.Context, batchKey interface{}, inputs []interface{}) (map[interface{}]interface{}, error) {
		p.mu.Lock()
		p.batches++
		p.inputs = append(p.inputs, inputs)
		p.mu.Unlock()

		out := make(map[interface{}]interface{}, len(inputs))
		for _, input := range inputs {
			value, ok := p.grants[input.(pairKey)]
			if !ok {
				value = false
			}
			out[input] = value
		}
		return out, nil
	})
}

// bareFakePolicy has no Data capability.
type bareFakePolicy struct{}

func (bareFakePolicy) Authorize(ctx context.Context, action datacop.Action, actor, subject interface{}) datacop.RawResult {
	return datacop.Defer(datacop.BatchRequest{Source: "acl", BatchKey: "id", Input: 1})
}

func deferringPolicy(grants map[pairKey]interface{}) *fakePolicy {
	p := &fakePolicy{grants: grants}
	p.authorize = func(action datacop.Action, actor, subject interface{}) datacop.RawResult {
		return datacop.Defer(datacop.BatchRequest{
			Source:   "acl",
			BatchKey: "id",
			Input:    pairKey{ActorID: actor.(int), SubjectID: subject.(int)},
		})
	}
	return p
}

func TestPermit(t *testing.T) {
	ctx := context.Background()

	t.Run("PolicyAllows", func(t *testing.T) {
		policy := &fakePolicy{authorize: func(datacop.Action, interface{}, interface{}) datacop.RawResult {
			return datacop.Allow()
		}}
		assert.NoError(t, datacop.Permit(ctx, policy, "view_true", 1))
		assert.True(t, datacop.PermitOK(ctx, policy, "view_true", 1))
	})

	t.Run("PolicyDenies_DefaultMessage", func(t *testing.T) {
		policy := &fakePolicy{authorize: func(datacop.Action, interface{}, interface{}) datacop.RawResult {
			return datacop.Deny("")
		}}
		err := datacop.Permit(ctx, policy, "view_false", 1)
		var denied *datacop_errors.UnauthorizedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, "Unauthorized", denied.Message)
		// This entry point reports denials without an action tag.
		assert.Empty(t, denied.Action)
		assert.False(t, datacop.PermitOK(ctx, policy, "view_false", 1))
	})

	t.Run("DeferredCheck_ResolvedThroughBatch", func(t *testing.T) {
		policy := deferringPolicy(map[pairKey]interface{}{
			{ActorID: 1, SubjectID: 1}: true,
			{ActorID: 1, SubjectID: 2}: false,
		})

		assert.NoError(t, datacop.Permit(ctx, policy, "view", 1, datacop.WithSubject(1)))

		err := datacop.Permit(ctx, policy, "view", 1, datacop.WithSubject(2))
		var denied *datacop_errors.UnauthorizedError
		require.ErrorAs(t, err, &denied)
	})

	t.Run("MissingDataSource", func(t *testing.T) {
		err := datacop.Permit(ctx, bareFakePolicy{}, "view", 1)
		var missing *datacop_errors.MissingDataSourceError
		require.ErrorAs(t, err, &missing)
		assert.Contains(t, missing.Policy, "bareFakePolicy")
	})

	t.Run("Idempotent_WithoutSharedLoader", func(t *testing.T) {
		policy := deferringPolicy(map[pairKey]interface{}{
			{ActorID: 1, SubjectID: 1}: true,
		})
		first := datacop.Permit(ctx, policy, "view", 1, datacop.WithSubject(1))
		second := datacop.Permit(ctx, policy, "view", 1, datacop.WithSubject(1))
		assert.Equal(t, first, second)
		assert.NoError(t, first)
		// Separate defaulted loaders: one batch execution each.
		assert.Equal(t, 2, policy.batches)
	})

	t.Run("SharedLoader_ReusesResolvedResults", func(t *testing.T) {
		policy := deferringPolicy(map[pairKey]interface{}{
			{ActorID: 1, SubjectID: 1}: true,
		})
		loader := dataloader.New().AddSource("acl", policy.Data())

		require.NoError(t, datacop.Permit(ctx, policy, "view", 1, datacop.WithSubject(1), datacop.WithLoader(loader)))
		require.NoError(t, datacop.Permit(ctx, policy, "view", 1, datacop.WithSubject(1), datacop.WithLoader(loader)))
		assert.Equal(t, 1, policy.batches)
	})

	t.Run("SecondLevelDefer_IsProgrammingError", func(t *testing.T) {
		policy := deferringPolicy(map[pairKey]interface{}{
			{ActorID: 1, SubjectID: 1}: datacop.Defer(datacop.BatchRequest{Source: "acl"}),
		})
		err := datacop.Permit(ctx, policy, "view", 1, datacop.WithSubject(1))
		var invalid *datacop_errors.InvalidPolicyResultError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("InvalidBatchResult_NotTreatedAsDenial", func(t *testing.T) {
		policy := deferringPolicy(map[pairKey]interface{}{
			{ActorID: 1, SubjectID: 1}: "granted",
		})
		err := datacop.Permit(ctx, policy, "view", 1, datacop.WithSubject(1))
		var invalid *datacop_errors.InvalidPolicyResultError
		require.ErrorAs(t, err, &invalid)
		assert.False(t, errors.Is(err, datacop_errors.ErrUnauthorized))
	})
}

type recordingAuditor struct {
	mu        sync.Mutex
	decisions []string
	allowed   []bool
}

func (r *recordingAuditor) Decision(ctx context.Context, action datacop.Action, actor, subject interface{}, allowed bool, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, string(action))
	r.allowed = append(r.allowed, allowed)
}

func TestPermit_Audit(t *testing.T) {
	ctx := context.Background()
	auditor := &recordingAuditor{}

	allow := &fakePolicy{authorize: func(datacop.Action, interface{}, interface{}) datacop.RawResult {
		return datacop.Allow()
	}}
	deny := &fakePolicy{authorize: func(datacop.Action, interface{}, interface{}) datacop.RawResult {
		return datacop.Deny("no")
	}}

	require.NoError(t, datacop.Permit(ctx, allow, "doc:view", 1, datacop.WithAudit(auditor)))
	require.Error(t, datacop.Permit(ctx, deny, "doc:edit", 1, datacop.WithAudit(auditor)))

	assert.Equal(t, []string{"doc:view", "doc:edit"}, auditor.decisions)
	assert.Equal(t, []bool{true, false}, auditor.allowed)
}
