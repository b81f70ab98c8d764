// audit/service_test.go
package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prosapient/datacop"
	"github.com/prosapient/datacop/audit"
	"github.com/prosapient/datacop/pdp"
	"github.com/prosapient/datacop/util"
)

// memoryRepository keeps decision logs in a slice, enough to observe what the
// dispatcher writes.
type memoryRepository struct {
	mu   sync.Mutex
	logs []audit.DecisionLog
}

func (r *memoryRepository) LogDecision(ctx context.Context, log audit.DecisionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *memoryRepository) QueryDecisions(ctx context.Context, from, to time.Time, actor, action string) ([]audit.DecisionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.DecisionLog
	for _, log := range r.logs {
		if actor != "" && log.Actor != actor {
			continue
		}
		if action != "" && log.Action != action {
			continue
		}
		if log.Timestamp.Before(from) || log.Timestamp.After(to) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (r *memoryRepository) snapshot() []audit.DecisionLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.DecisionLog(nil), r.logs...)
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("DecisionReachesRepositoryThroughBus", func(t *testing.T) {
		repo := &memoryRepository{}
		bus := util.NewEventBus()
		dispatcher := audit.NewDispatcher(bus, audit.NewService(repo))

		dispatcher.Decision(ctx, pdp.ActionDocumentView, pdp.User{ID: "alice", OrgID: "acme"}, pdp.Document{ID: "doc-1"}, true, "")
		dispatcher.Decision(ctx, pdp.ActionDocumentEdit, pdp.User{ID: "bob", OrgID: "acme"}, pdp.Document{ID: "doc-1"}, false, "only the owner may edit")
		bus.Drain()

		logs := repo.snapshot()
		require.Len(t, logs, 2)
		for _, log := range logs {
			assert.NotEmpty(t, log.ID)
			assert.False(t, log.Timestamp.IsZero())
		}

		byAction := make(map[string]audit.DecisionLog, len(logs))
		for _, log := range logs {
			byAction[log.Action] = log
		}
		view := byAction[string(pdp.ActionDocumentView)]
		assert.True(t, view.Allowed)
		edit := byAction[string(pdp.ActionDocumentEdit)]
		assert.False(t, edit.Allowed)
		assert.Equal(t, "only the owner may edit", edit.Reason)
	})

	t.Run("StringerActorsUseTheirStringForm", func(t *testing.T) {
		repo := &memoryRepository{}
		bus := util.NewEventBus()
		dispatcher := audit.NewDispatcher(bus, audit.NewService(repo))

		key := pdp.MemberKey{ActorID: "alice", OrgID: "acme"}
		dispatcher.Decision(ctx, pdp.ActionDocumentView, key, nil, true, "")
		bus.Drain()

		logs := repo.snapshot()
		require.Len(t, logs, 1)
		assert.Equal(t, "alice:acme", logs[0].Actor)
		assert.Equal(t, "", logs[0].Subject)
	})

	t.Run("QueryFiltersByActorAndAction", func(t *testing.T) {
		repo := &memoryRepository{}
		svc := audit.NewService(repo)
		bus := util.NewEventBus()
		dispatcher := audit.NewDispatcher(bus, svc)

		dispatcher.Decision(ctx, pdp.ActionDocumentView, pdp.User{ID: "alice"}, nil, true, "")
		dispatcher.Decision(ctx, pdp.ActionDocumentDelete, pdp.User{ID: "alice"}, nil, false, "only admins may delete documents")
		bus.Drain()

		from := time.Now().Add(-time.Minute)
		to := time.Now().Add(time.Minute)
		logs, err := svc.QueryDecisions(ctx, from, to, "", string(pdp.ActionDocumentDelete))
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.False(t, logs[0].Allowed)
	})
}

func TestDispatcherIsAnAuditor(t *testing.T) {
	var _ datacop.Auditor = (*audit.Dispatcher)(nil)
}
