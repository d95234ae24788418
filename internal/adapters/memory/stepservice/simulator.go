package stepservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/clock"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/stepservice"
)

// Simulator is a local stand-in for the remote step service, used for development
// when no STEP_SERVICE_URL is configured. It assigns identifiers, echoes coverage names
// and stamps contract dates. It never prices anything.
type Simulator struct {
	clock clock.Clock
	names map[domain.CoverageID]string
	newID func() string
}

// NewSimulator builds a simulator that names selected coverages from coverages.
func NewSimulator(clk clock.Clock, coverages []domain.Coverage) *Simulator {
	names := make(map[domain.CoverageID]string, len(coverages))
	for _, c := range coverages {
		names[c.ID] = c.Name
	}
	return &Simulator{clock: clk, names: names, newID: uuid.NewString}
}

// SetNewIDForTest overrides identifier generation for deterministic tests.
// It should not be used in production code.
func (s *Simulator) SetNewIDForTest(fn func() string) {
	if fn != nil {
		s.newID = fn
	}
}

type simRequest struct {
	CurrentStep         int                 `json:"currentStep"`
	ClientType          *string             `json:"clientType"`
	AccID               *string             `json:"accId"`
	PolicyID            *string             `json:"policyId"`
	ContractID          *string             `json:"contractId"`
	ContractPeriod      *string             `json:"contractPeriod"`
	SelectedCoverageIDs []domain.CoverageID `json:"selectedCoverageIds"`
}

func (s *Simulator) SaveStep(ctx context.Context, payload []byte) (domain.Record, error) {
	_ = ctx
	var req simRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return domain.Record{}, &stepservice.RemoteError{Status: 400, Message: fmt.Sprintf("malformed step payload: %v", err)}
	}
	if req.CurrentStep < 1 {
		return domain.Record{}, &stepservice.RemoteError{
			Status:      400,
			FieldErrors: json.RawMessage(`{"currentStep":"must be a positive step number"}`),
		}
	}

	var frag domain.Record
	if req.AccID == nil || *req.AccID == "" {
		frag.AccID.Set(domain.AccountID(s.newID()))
	}
	// Step 2 is the first step after the account in both flows.
	if req.CurrentStep >= 2 {
		if req.PolicyID == nil || *req.PolicyID == "" {
			frag.PolicyID.Set(domain.PolicyID(s.newID()))
		}
		if req.ContractID == nil || *req.ContractID == "" {
			frag.ContractID.Set(domain.ContractID(s.newID()))
		}
	}

	if len(req.SelectedCoverageIDs) > 0 {
		names := make(map[domain.CoverageID]string, len(req.SelectedCoverageIDs))
		for _, id := range req.SelectedCoverageIDs {
			if n, ok := s.names[id]; ok {
				names[id] = n
			}
		}
		frag.CoverageNames.Set(names)
	}

	if req.ContractPeriod != nil {
		months, err := strconv.Atoi(*req.ContractPeriod)
		if err != nil || months <= 0 {
			return domain.Record{}, &stepservice.RemoteError{
				Status:     400,
				PageErrors: []stepservice.PageError{{Message: "Invalid contract period."}},
			}
		}
		start := s.clock.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
		frag.ContractStartDate.Set(start)
		frag.ContractEndDate.Set(start.AddDate(0, months, 0))
	}
	return frag, nil
}
