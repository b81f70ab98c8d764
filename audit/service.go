// audit/service.go
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prosapient/datacop"
	"github.com/prosapient/datacop/util"
)

// DecisionEvent is the event type dispatched decisions are published under.
const DecisionEvent = "authz.decision"

type Service interface {
	LogDecision(ctx context.Context, log DecisionLog) error
	QueryDecisions(ctx context.Context, from, to time.Time, actor, action string) ([]DecisionLog, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) LogDecision(ctx context.Context, log DecisionLog) error {
	return s.repo.LogDecision(ctx, log)
}

func (s *service) QueryDecisions(ctx context.Context, from, to time.Time, actor, action string) ([]DecisionLog, error) {
	return s.repo.QueryDecisions(ctx, from, to, actor, action)
}

// Dispatcher records decisions asynchronously through the event bus so
// Permit callers never block on the audit sink. It satisfies
// datacop.Auditor.
type Dispatcher struct {
	bus *util.EventBus
}

func NewDispatcher(bus *util.EventBus, svc Service) *Dispatcher {
	bus.Subscribe(DecisionEvent, func(ctx context.Context, event util.Event) error {
		log, ok := event.Payload.(DecisionLog)
		if !ok {
			return fmt.Errorf("unexpected decision payload %T", event.Payload)
		}
		return svc.LogDecision(ctx, log)
	})
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) Decision(ctx context.Context, action datacop.Action, actor, subject interface{}, allowed bool, reason string) {
	log := DecisionLog{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Actor:     stringify(actor),
		Action:    string(action),
		Subject:   stringify(subject),
		Allowed:   allowed,
		Reason:    reason,
	}
	d.bus.Publish(ctx, DecisionEvent, log)
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
