package onboarding

import (
	"time"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// View is what a client needs to render one wizard session.
type View struct {
	ID           domain.SessionID
	ClientType   domain.ClientType
	Step         domain.StepName
	Steps        []domain.StepName
	IsFirstStep  bool
	IsLastStep   bool
	ErrorMessage string
	Record       domain.Record

	CoveragePremiumRows []domain.CoveragePremiumRow

	CompletedAt *time.Time
}

// NextResult pairs the controller outcome with the session after the step was handled.
type NextResult struct {
	View   View
	Result Result
}
