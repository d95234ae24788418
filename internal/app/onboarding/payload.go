package onboarding

import (
	"encoding/json"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// CurrentStepKey carries the resolved step ordinal in every payload.
const CurrentStepKey = "currentStep"

// Payload is the minimal wire body sent to the remote step service.
type Payload map[string]any

// BuildPayload maps r to the remote service's partial-update contract:
//   - numbers, booleans and dates are omitted when absent (never sent as null)
//   - strings and identifiers are always sent; absent means null ("clear this field")
//   - the coverage selection is sent whenever present, even if empty
//   - server-assigned fields are never sent
//
// CurrentStepKey is always set to ordinal.
func BuildPayload(r domain.Record, ordinal int) Payload {
	p := Payload{CurrentStepKey: ordinal}
	for _, f := range recordFields {
		f.put(&r, p)
	}
	return p
}

// Encode serializes the payload for the step service.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(map[string]any(p))
}
