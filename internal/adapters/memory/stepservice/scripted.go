package stepservice

import (
	"context"
	"slices"
	"sync"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// Response is one scripted answer: a fragment on success, or Err.
type Response struct {
	Fragment domain.Record
	Err      error
}

// Scripted replays a fixed list of responses in order and records every payload it
// receives. Once the script runs out it answers with an empty fragment.
// It is safe for concurrent use.
type Scripted struct {
	mu        sync.Mutex
	responses []Response
	payloads  [][]byte
}

func NewScripted(responses ...Response) *Scripted {
	return &Scripted{responses: responses}
}

func (s *Scripted) SaveStep(ctx context.Context, payload []byte) (domain.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, slices.Clone(payload))
	if len(s.responses) == 0 {
		return domain.Record{}, nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	if r.Err != nil {
		return domain.Record{}, r.Err
	}
	return r.Fragment.Clone(), nil
}

// Push appends responses to the script.
func (s *Scripted) Push(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Payloads returns copies of every payload received so far, oldest first.
func (s *Scripted) Payloads() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, 0, len(s.payloads))
	for _, p := range s.payloads {
		out = append(out, slices.Clone(p))
	}
	return out
}

func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

// Func adapts a function to the step service port.
type Func func(ctx context.Context, payload []byte) (domain.Record, error)

func (f Func) SaveStep(ctx context.Context, payload []byte) (domain.Record, error) {
	return f(ctx, payload)
}
