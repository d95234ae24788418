package onboarding_test

import (
	"testing"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/app/onboarding"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	person := func(first, last string) domain.Record {
		r := domain.NewRecord()
		r.ClientType.Set(domain.ClientTypePerson)
		r.FirstName.Set(first)
		r.LastName.Set(last)
		return r
	}
	business := func(name string) domain.Record {
		r := domain.NewRecord()
		r.ClientType.Set(domain.ClientTypeBusiness)
		r.BusinessName.Set(name)
		return r
	}
	driver := func(first, last string) domain.Record {
		r := business("Acme")
		r.DriverFirstName.Set(first)
		r.DriverLastName.Set(last)
		return r
	}

	unknownType := person("", "")
	unknownType.ClientType.Set("FOO")

	cases := []struct {
		name string
		step domain.StepName
		rec  domain.Record
		want string
	}{
		{"no client type", domain.StepAccount, domain.NewRecord(), onboarding.MsgSelectClientType},
		{"unknown client type", domain.StepAccount, unknownType, onboarding.MsgSelectClientType},
		{"person ok", domain.StepAccount, person("Ana", "Pop"), ""},
		{"person missing last", domain.StepAccount, person("Ana", ""), onboarding.MsgPersonNameRequired},
		{"person whitespace first", domain.StepAccount, person("   ", "Pop"), onboarding.MsgPersonNameRequired},
		{"business ok", domain.StepAccount, business("Acme"), ""},
		{"business missing name", domain.StepAccount, business(" "), onboarding.MsgBusinessNameRequired},
		{"driver ok", domain.StepDriver, driver("Ion", "Pop"), ""},
		{"driver missing", domain.StepDriver, driver("", "Pop"), onboarding.MsgDriverNameRequired},
		{"vehicle has no local rules", domain.StepVehicle, domain.NewRecord(), ""},
		{"coverages has no local rules", domain.StepCoverages, domain.NewRecord(), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := onboarding.Validate(tc.step, tc.rec)
			if got.OK != (tc.want == "") || got.Message != tc.want {
				t.Fatalf("Validate=%+v want message %q", got, tc.want)
			}
			// Validation is idempotent on an unchanged record.
			if again := onboarding.Validate(tc.step, tc.rec); again != got {
				t.Fatalf("second Validate=%+v, first=%+v", again, got)
			}
		})
	}
}
