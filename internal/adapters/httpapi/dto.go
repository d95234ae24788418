package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/app/onboarding"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// ErrorResponse is the envelope for every protocol error.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

// Session is the rendered state of one wizard.
type Session struct {
	SessionId           string                      `json:"sessionId"`
	ClientType          nullable.Nullable[string]   `json:"clientType"`
	CurrentStep         string                      `json:"currentStep"`
	Steps               []string                    `json:"steps"`
	IsFirstStep         bool                        `json:"isFirstStep"`
	IsLastStep          bool                        `json:"isLastStep"`
	ErrorMessage        nullable.Nullable[string]   `json:"errorMessage"`
	Record              domain.Record               `json:"record"`
	CoveragePremiumRows []domain.CoveragePremiumRow `json:"coveragePremiumRows"`
	CompletedAt         *time.Time                  `json:"completedAt,omitempty"`
}

type SessionResponse struct {
	Session Session `json:"session"`
}

// NextResponse adds the outcome of the submission to the session.
type NextResponse struct {
	Outcome string  `json:"outcome"`
	Session Session `json:"session"`
}

type ClientTypeRequest struct {
	ClientType *string `json:"clientType"`
}

// FieldRequest is a generic field change: wire name, raw control value and control kind
// (text, checkbox, number or date).
type FieldRequest struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Kind  string `json:"kind"`
}

type CoveragesRequest struct {
	SelectedCoverageIds []string `json:"selectedCoverageIds"`
}

type ContractPeriodRequest struct {
	ContractPeriod string `json:"contractPeriod"`
}

type CoveragesResponse struct {
	Coverages []domain.Coverage `json:"coverages"`
}

func sessionFromView(v onboarding.View) Session {
	steps := make([]string, 0, len(v.Steps))
	for _, s := range v.Steps {
		steps = append(steps, string(s))
	}
	out := Session{
		SessionId:           string(v.ID),
		CurrentStep:         string(v.Step),
		Steps:               steps,
		IsFirstStep:         v.IsFirstStep,
		IsLastStep:          v.IsLastStep,
		Record:              v.Record,
		CoveragePremiumRows: v.CoveragePremiumRows,
		CompletedAt:         v.CompletedAt,
	}
	if v.ClientType == domain.ClientTypeUnset {
		out.ClientType = nullable.NewNullNullable[string]()
	} else {
		out.ClientType = nullable.NewNullableWithValue(string(v.ClientType))
	}
	if v.ErrorMessage == "" {
		out.ErrorMessage = nullable.NewNullNullable[string]()
	} else {
		out.ErrorMessage = nullable.NewNullableWithValue(v.ErrorMessage)
	}
	if out.CoveragePremiumRows == nil {
		out.CoveragePremiumRows = []domain.CoveragePremiumRow{}
	}
	return out
}
