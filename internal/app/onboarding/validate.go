package onboarding

import (
	"github.com/oapi-codegen/nullable"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// Validation messages shown to the user when a step's local precondition fails.
const (
	MsgSelectClientType     = "Select a Client Type to proceed."
	MsgPersonNameRequired   = "First Name and Last Name are required for Person accounts."
	MsgBusinessNameRequired = "Business Name is required for Business accounts."
	MsgDriverNameRequired   = "Driver First Name and Last Name are required."
)

// Validation is the outcome of checking one step's local precondition.
type Validation struct {
	OK      bool
	Message string
}

func valid() Validation { return Validation{OK: true} }

func invalid(msg string) Validation { return Validation{Message: msg} }

// Validate checks the precondition for leaving step with record r.
//
// Only ACCOUNT and DRIVER have local rules; the remote service validates everything else
// and reports failures through the step submission error channel.
func Validate(step domain.StepName, r domain.Record) Validation {
	switch step {
	case domain.StepAccount:
		switch r.Type() {
		case domain.ClientTypeUnset:
			return invalid(MsgSelectClientType)
		case domain.ClientTypePerson:
			if blank(r.FirstName) || blank(r.LastName) {
				return invalid(MsgPersonNameRequired)
			}
		case domain.ClientTypeBusiness:
			if blank(r.BusinessName) {
				return invalid(MsgBusinessNameRequired)
			}
		}
	case domain.StepDriver:
		if blank(r.DriverFirstName) || blank(r.DriverLastName) {
			return invalid(MsgDriverNameRequired)
		}
	}
	return valid()
}

func blank(n nullable.Nullable[string]) bool {
	return domain.NormalizeHumanName(domain.StringValue(n)) == ""
}
