package onboarding

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/observer"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/stepservice"
)

// Outcome classifies what a call to Next did.
type Outcome string

const (
	// OutcomeAdvanced: the step was accepted and the pointer moved forward one step.
	OutcomeAdvanced Outcome = "ADVANCED"
	// OutcomeSubmitted: the step was accepted but the pointer stayed put (terminal step,
	// or the user navigated while the call was in flight).
	OutcomeSubmitted Outcome = "SUBMITTED"
	// OutcomeInvalid: the local precondition failed; nothing was sent.
	OutcomeInvalid Outcome = "INVALID"
	// OutcomeFailed: the remote service rejected the step or could not be reached.
	OutcomeFailed Outcome = "FAILED"
	// OutcomeBusy: another Next was still in flight; this call was ignored.
	OutcomeBusy Outcome = "BUSY"
)

// Result reports the effect of Next. Message is the user-facing error for
// OutcomeInvalid and OutcomeFailed.
type Result struct {
	Outcome Outcome
	From    domain.StepName
	Step    domain.StepName
	Message string
}

// State is a snapshot of a controller, used to persist and restore a wizard.
type State struct {
	Record       domain.Record
	Step         domain.StepName
	ErrorMessage string
	Busy         bool
}

// ControllerOptions configures optional collaborators.
type ControllerOptions struct {
	// Normalizer turns step service failures into a user message.
	// Defaults to stepservice.NormalizeError.
	Normalizer stepservice.Normalizer
	// Observer receives trace points. Defaults to observer.Nop.
	Observer observer.Observer
}

// Controller drives one onboarding wizard: it owns the record and the step pointer,
// validates and submits steps, and merges the remote service's answers.
//
// All handlers are safe for concurrent use. Next releases the lock while the remote call
// is in flight; handlers may run meanwhile, and an overlapping Next is ignored.
type Controller struct {
	steps     stepservice.Service
	normalize stepservice.Normalizer
	obs       observer.Observer

	mu     sync.Mutex
	record domain.Record
	step   domain.StepName
	errMsg string
	busy   bool
	// epoch changes whenever the pointer moves outside Next; a completing Next only
	// advances when it is unchanged.
	epoch uint64
}

// NewController starts a wizard with a fresh record at the first step.
func NewController(steps stepservice.Service, opts ControllerOptions) *Controller {
	return RestoreController(steps, State{Record: domain.NewRecord()}, opts)
}

// RestoreController rebuilds a wizard from a snapshot. A step outside the record's flow
// is reset to the first step; the busy flag is never restored.
func RestoreController(steps stepservice.Service, st State, opts ControllerOptions) *Controller {
	c := &Controller{
		steps:     steps,
		normalize: opts.Normalizer,
		obs:       opts.Observer,
		record:    st.Record.Clone(),
		step:      st.Step,
		errMsg:    st.ErrorMessage,
	}
	if c.normalize == nil {
		c.normalize = stepservice.NormalizeError
	}
	if c.obs == nil {
		c.obs = observer.Nop{}
	}
	if c.step == "" || !InSequence(c.step, c.record.Type()) {
		c.step = FirstStep(c.record.Type())
	}
	return c
}

// State returns a snapshot that shares no mutable state with the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Record:       c.record.Clone(),
		Step:         c.step,
		ErrorMessage: c.errMsg,
		Busy:         c.busy,
	}
}

func (c *Controller) Record() domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record.Clone()
}

func (c *Controller) CurrentStep() domain.StepName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Sequence returns the step flow for the current client type.
func (c *Controller) Sequence() []domain.StepName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SequenceFor(c.record.Type())
}

func (c *Controller) IsFirstStep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return IsFirstStep(c.step, c.record.Type())
}

func (c *Controller) IsLastStep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return IsLastStep(c.step, c.record.Type())
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// ErrorMessage returns the pending user-facing error, or "".
func (c *Controller) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// ChangeClientType selects the flow and rewinds to its first step, clearing any error.
//
// Data already entered for other steps (driver, vehicle, ...) is kept in the record on
// purpose: switching back and forth must not lose the user's input.
func (c *Controller) ChangeClientType(ctx context.Context, ct domain.ClientType) error {
	if !ct.Valid() {
		return validationError("invalid clientType", map[string]any{
			"clientType": fmt.Sprintf("must be %s or %s", domain.ClientTypePerson, domain.ClientTypeBusiness),
		})
	}

	c.mu.Lock()
	rec := c.record.Clone()
	if ct == domain.ClientTypeUnset {
		rec.ClientType.SetNull()
	} else {
		rec.ClientType.Set(ct)
	}
	c.record = rec
	c.step = FirstStep(ct)
	c.errMsg = ""
	c.epoch++
	step := c.step
	c.mu.Unlock()

	c.obs.Observe(ctx, observer.Event{Kind: observer.KindClientTypeChanged, Step: step, ClientType: ct})
	c.obs.Observe(ctx, observer.Event{Kind: observer.KindStepEntered, Step: step, ClientType: ct})
	return nil
}

// ChangeField applies a generic field change. The record is replaced by a copy carrying
// the coerced value; on error the record is left untouched.
func (c *Controller) ChangeField(in Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, err := applyInput(c.record, in)
	if err != nil {
		return err
	}
	c.record = rec
	return nil
}

// ChangeCoverages replaces the coverage selection; nil selects nothing.
func (c *Controller) ChangeCoverages(ids []domain.CoverageID) {
	sel := slices.Clone(ids)
	if sel == nil {
		sel = []domain.CoverageID{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.record.Clone()
	rec.SelectedCoverageIDs.Set(sel)
	c.record = rec
}

// ChangeContractPeriod sets the contract duration (6, 12 or 24 months).
func (c *Controller) ChangeContractPeriod(p domain.ContractPeriod) error {
	return c.ChangeField(Input{Name: "contractPeriod", Value: string(p), Kind: InputText})
}

// Previous moves back one step. It never validates, calls out or touches the record.
// It reports whether the pointer moved.
func (c *Controller) Previous(ctx context.Context) bool {
	c.mu.Lock()
	ct := c.record.Type()
	prev, ok := StepBefore(c.step, ct)
	if ok {
		c.step = prev
		c.epoch++
	}
	c.mu.Unlock()

	if ok {
		c.obs.Observe(ctx, observer.Event{Kind: observer.KindStepEntered, Step: prev, ClientType: ct})
	}
	return ok
}

// Done acknowledges the end of the wizard: it clears any pending error and reports
// whether the pointer is on the terminal step.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
	return IsLastStep(c.step, c.record.Type())
}

// Next validates the current step, submits it, merges the response and advances.
//
// Next never returns an error: every failure leaves the controller at the same step with
// the same record, busy cleared and the message stored (see ErrorMessage). A call made
// while another is in flight returns OutcomeBusy without side effects.
func (c *Controller) Next(ctx context.Context) Result {
	c.mu.Lock()
	if c.busy {
		step := c.step
		c.mu.Unlock()
		return Result{Outcome: OutcomeBusy, From: step, Step: step}
	}
	c.busy = true
	c.errMsg = ""
	from := c.step
	epoch := c.epoch
	rec := c.record.Clone()
	c.mu.Unlock()
	defer c.release()

	ct := rec.Type()
	if v := Validate(from, rec); !v.OK {
		c.setError(v.Message)
		c.obs.Observe(ctx, observer.Event{Kind: observer.KindValidationFailed, Step: from, ClientType: ct, Message: v.Message})
		return Result{Outcome: OutcomeInvalid, From: from, Step: from, Message: v.Message}
	}

	ordinal, err := OrdinalFor(from, ct)
	if err != nil {
		return c.failed(ctx, from, ct, 0, 0, err)
	}
	body, err := BuildPayload(rec, ordinal).Encode()
	if err != nil {
		return c.failed(ctx, from, ct, ordinal, 0, err)
	}

	c.obs.Observe(ctx, observer.Event{Kind: observer.KindRemoteCallStarted, Step: from, ClientType: ct, Ordinal: ordinal})
	start := time.Now()
	// Once issued, a submission runs to completion: the service may already have
	// assigned ids that must be merged. Timeouts belong to the transport.
	frag, err := c.submit(context.WithoutCancel(ctx), body)
	dur := time.Since(start)
	if err != nil {
		return c.failed(ctx, from, ct, ordinal, dur, err)
	}
	c.obs.Observe(ctx, observer.Event{Kind: observer.KindRemoteCallSucceeded, Step: from, ClientType: ct, Ordinal: ordinal, Duration: dur})

	c.mu.Lock()
	c.record = Merge(c.record, frag)
	nct := c.record.Type()
	moved := false
	if c.epoch == epoch {
		switch next, ok := StepAfter(from, nct); {
		case ok:
			c.step = next
			moved = true
		case !InSequence(c.step, nct):
			// The service changed the client type under us; re-anchor on the new flow.
			c.step = FirstStep(nct)
			moved = true
		}
	}
	to := c.step
	c.mu.Unlock()

	if !moved {
		return Result{Outcome: OutcomeSubmitted, From: from, Step: to}
	}
	c.obs.Observe(ctx, observer.Event{Kind: observer.KindStepAdvanced, From: from, Step: to, ClientType: nct})
	c.obs.Observe(ctx, observer.Event{Kind: observer.KindStepEntered, Step: to, ClientType: nct})
	return Result{Outcome: OutcomeAdvanced, From: from, Step: to}
}

func (c *Controller) submit(ctx context.Context, body []byte) (frag domain.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step service panic: %v", r)
		}
	}()
	return c.steps.SaveStep(ctx, body)
}

func (c *Controller) failed(ctx context.Context, from domain.StepName, ct domain.ClientType, ordinal int, dur time.Duration, err error) Result {
	msg := c.normalize(err)
	c.setError(msg)
	c.obs.Observe(ctx, observer.Event{
		Kind:       observer.KindRemoteCallFailed,
		Step:       from,
		ClientType: ct,
		Ordinal:    ordinal,
		Message:    msg,
		Duration:   dur,
	})
	return Result{Outcome: OutcomeFailed, From: from, Step: from, Message: msg}
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = msg
}

func (c *Controller) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
}
