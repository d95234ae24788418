package observer

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// Kind names a trace point in the wizard flow.
type Kind string

const (
	KindStepEntered         Kind = "step_entered"
	KindValidationFailed    Kind = "validation_failed"
	KindRemoteCallStarted   Kind = "remote_call_started"
	KindRemoteCallSucceeded Kind = "remote_call_succeeded"
	KindRemoteCallFailed    Kind = "remote_call_failed"
	KindStepAdvanced        Kind = "step_advanced"
	KindClientTypeChanged   Kind = "client_type_changed"
	KindCatalogFetchFailed  Kind = "catalog_fetch_failed"
)

// Event describes one trace point. Fields not relevant to Kind are zero.
type Event struct {
	Kind       Kind
	Step       domain.StepName
	From       domain.StepName
	ClientType domain.ClientType
	Ordinal    int
	Message    string
	Duration   time.Duration
}

// Observer receives wizard trace points. It is not part of the state machine's contract:
// implementations must not block and cannot influence the flow.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Observe(context.Context, Event) {}

// Multi fans an event out to every observer in order.
type Multi []Observer

func (m Multi) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(ctx, ev)
		}
	}
}
