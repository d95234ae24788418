package stepservice

import (
	"context"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// Service is the remote step-processing service.
//
// SaveStep receives the JSON-serialized step payload (including "currentStep") and returns
// the fields the service computed or validated. Only the keys the service sent are
// specified in the returned fragment; everything else is left unspecified.
//
// Failures should be returned as *RemoteError when the service produced a structured
// error body, so NormalizeError can extract the most specific message.
type Service interface {
	SaveStep(ctx context.Context, payload []byte) (domain.Record, error)
}

// Normalizer turns a SaveStep failure into a single user-facing message.
type Normalizer func(err error) string
