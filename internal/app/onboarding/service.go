package onboarding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/clock"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/sessionrepo"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/stepservice"
)

// Service hosts many wizard sessions. Each request restores a Controller from the stored
// snapshot, applies one handler and persists the result.
//
// Requests for the same session are serialized. A Next that finds another Next in flight
// fails fast with 409 STEP_IN_PROGRESS instead of queueing a duplicate submission; a Next
// that finds an ordinary change in progress waits for it.
//
// Serialization is per process. Across replicas sharing a backend, the repository's
// version check turns a lost update into 409 SESSION_CONFLICT.
type Service struct {
	sessions sessionrepo.Repository
	steps    stepservice.Service
	clock    clock.Clock
	opts     ControllerOptions

	locksMu sync.Mutex
	locks   map[domain.SessionID]*sessionLock

	newSessionID func() domain.SessionID
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
	// next is set while a Next holds or waits for mu; guarded by Service.locksMu.
	next bool
}

func NewService(sessions sessionrepo.Repository, steps stepservice.Service, clk clock.Clock, opts ControllerOptions) *Service {
	return &Service{
		sessions: sessions,
		steps:    steps,
		clock:    clk,
		opts:     opts,
		locks:    make(map[domain.SessionID]*sessionLock),
		newSessionID: func() domain.SessionID {
			return domain.SessionID(uuid.NewString())
		},
	}
}

// SetNewSessionIDForTest overrides session ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewSessionIDForTest(fn func() domain.SessionID) {
	if fn != nil {
		s.newSessionID = fn
	}
}

// Start creates a session holding a fresh record at the first step.
func (s *Service) Start(ctx context.Context) (View, error) {
	now := s.clock.Now()
	c := NewController(s.steps, s.opts)
	st := c.State()
	sess := sessionrepo.Session{
		ID:        s.newSessionID(),
		Record:    st.Record,
		Step:      st.Step,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, sessionrepo.ErrAlreadyExists) {
			// Extremely unlikely (UUID collision); treat as conflict.
			return View{}, &Error{Status: 409, Code: "SESSION_ID_CONFLICT", Message: "session id conflict"}
		}
		return View{}, err
	}
	return viewOf(sess), nil
}

func (s *Service) Get(ctx context.Context, id domain.SessionID) (View, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return viewOf(sess), nil
}

func (s *Service) ChangeClientType(ctx context.Context, id domain.SessionID, ct domain.ClientType) (View, error) {
	return s.mutate(ctx, id, func(c *Controller) error {
		return c.ChangeClientType(ctx, ct)
	})
}

func (s *Service) ChangeField(ctx context.Context, id domain.SessionID, in Input) (View, error) {
	return s.mutate(ctx, id, func(c *Controller) error {
		return c.ChangeField(in)
	})
}

func (s *Service) ChangeCoverages(ctx context.Context, id domain.SessionID, ids []domain.CoverageID) (View, error) {
	return s.mutate(ctx, id, func(c *Controller) error {
		c.ChangeCoverages(ids)
		return nil
	})
}

func (s *Service) ChangeContractPeriod(ctx context.Context, id domain.SessionID, p domain.ContractPeriod) (View, error) {
	return s.mutate(ctx, id, func(c *Controller) error {
		return c.ChangeContractPeriod(p)
	})
}

func (s *Service) Previous(ctx context.Context, id domain.SessionID) (View, error) {
	return s.mutate(ctx, id, func(c *Controller) error {
		c.Previous(ctx)
		return nil
	})
}

// Done marks the session completed. Only a session on its terminal step can complete;
// completing twice is a no-op.
func (s *Service) Done(ctx context.Context, id domain.SessionID) (View, error) {
	l := s.acquire(id)
	defer s.release(id, l)
	l.mu.Lock()
	defer l.mu.Unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	if sess.CompletedAt != nil {
		return viewOf(sess), nil
	}

	c := s.restore(sess)
	if !c.Done() {
		return View{}, &Error{Status: 409, Code: "WIZARD_NOT_FINISHED", Message: "session is not on its final step"}
	}
	now := s.clock.Now()
	sess = snapshot(sess, c, now)
	sess.CompletedAt = &now
	if err := s.save(ctx, sess); err != nil {
		return View{}, err
	}
	return viewOf(sess), nil
}

// Next submits the current step. Validation and remote failures are part of the result,
// not errors; errors are reserved for missing or busy sessions and storage failures.
func (s *Service) Next(ctx context.Context, id domain.SessionID) (NextResult, error) {
	l := s.acquire(id)
	defer s.release(id, l)
	if !s.claimNext(l) {
		return NextResult{}, &Error{Status: 409, Code: "STEP_IN_PROGRESS", Message: "a step submission is already in progress"}
	}
	defer s.releaseNext(l)
	l.mu.Lock()
	defer l.mu.Unlock()

	sess, err := s.loadOpen(ctx, id)
	if err != nil {
		return NextResult{}, err
	}

	// From here on the submission and its outcome are not abandoned with the request.
	ctx = context.WithoutCancel(ctx)
	c := s.restore(sess)
	res := c.Next(ctx)

	sess = snapshot(sess, c, s.clock.Now())
	if err := s.save(ctx, sess); err != nil {
		return NextResult{}, err
	}
	return NextResult{View: viewOf(sess), Result: res}, nil
}

func (s *Service) mutate(ctx context.Context, id domain.SessionID, fn func(c *Controller) error) (View, error) {
	l := s.acquire(id)
	defer s.release(id, l)
	l.mu.Lock()
	defer l.mu.Unlock()

	sess, err := s.loadOpen(ctx, id)
	if err != nil {
		return View{}, err
	}

	c := s.restore(sess)
	if err := fn(c); err != nil {
		return View{}, err
	}

	sess = snapshot(sess, c, s.clock.Now())
	if err := s.save(ctx, sess); err != nil {
		return View{}, err
	}
	return viewOf(sess), nil
}

func (s *Service) load(ctx context.Context, id domain.SessionID) (sessionrepo.Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sessionrepo.ErrNotFound) {
			return sessionrepo.Session{}, sessionNotFound()
		}
		return sessionrepo.Session{}, err
	}
	return sess, nil
}

// loadOpen loads a session that may still be changed.
func (s *Service) loadOpen(ctx context.Context, id domain.SessionID) (sessionrepo.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return sessionrepo.Session{}, err
	}
	if sess.CompletedAt != nil {
		return sessionrepo.Session{}, &Error{Status: 409, Code: "SESSION_COMPLETED", Message: "session is already completed"}
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess sessionrepo.Session) error {
	if err := s.sessions.Update(ctx, sess); err != nil {
		switch {
		case errors.Is(err, sessionrepo.ErrNotFound):
			return sessionNotFound()
		case errors.Is(err, sessionrepo.ErrVersionConflict):
			return &Error{Status: 409, Code: "SESSION_CONFLICT", Message: "session was changed by another request; reload and retry"}
		}
		return err
	}
	return nil
}

func (s *Service) restore(sess sessionrepo.Session) *Controller {
	return RestoreController(s.steps, State{
		Record:       sess.Record,
		Step:         sess.Step,
		ErrorMessage: sess.ErrorMessage,
	}, s.opts)
}

func (s *Service) acquire(id domain.SessionID) *sessionLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	return l
}

// claimNext marks a Next in flight on l and reports whether no other Next was.
func (s *Service) claimNext(l *sessionLock) bool {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if l.next {
		return false
	}
	l.next = true
	return true
}

func (s *Service) releaseNext(l *sessionLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.next = false
}

func (s *Service) release(id domain.SessionID, l *sessionLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

func snapshot(sess sessionrepo.Session, c *Controller, now time.Time) sessionrepo.Session {
	st := c.State()
	sess.Record = st.Record
	sess.Step = st.Step
	sess.ErrorMessage = st.ErrorMessage
	sess.UpdatedAt = now
	return sess
}

func viewOf(sess sessionrepo.Session) View {
	ct := sess.Record.Type()
	return View{
		ID:                  sess.ID,
		ClientType:          ct,
		Step:                sess.Step,
		Steps:               SequenceFor(ct),
		IsFirstStep:         IsFirstStep(sess.Step, ct),
		IsLastStep:          IsLastStep(sess.Step, ct),
		ErrorMessage:        sess.ErrorMessage,
		Record:              sess.Record.Clone(),
		CoveragePremiumRows: domain.CoveragePremiumRows(sess.Record),
		CompletedAt:         sess.CompletedAt,
	}
}

func sessionNotFound() *Error {
	return &Error{Status: 404, Code: "SESSION_NOT_FOUND", Message: "session not found"}
}
