package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ClientType selects which step flow the wizard follows.
// The empty value means "not chosen yet".
type ClientType string

const (
	ClientTypeUnset    ClientType = ""
	ClientTypePerson   ClientType = "PERSON"
	ClientTypeBusiness ClientType = "BUSINESS"
)

func (c ClientType) Valid() bool {
	switch c {
	case ClientTypeUnset, ClientTypePerson, ClientTypeBusiness:
		return true
	default:
		return false
	}
}

// StepName is one named stage of the wizard.
type StepName string

const (
	StepAccount   StepName = "ACCOUNT"
	StepDriver    StepName = "DRIVER"
	StepVehicle   StepName = "VEHICLE"
	StepReview    StepName = "REVIEW"
	StepCoverages StepName = "COVERAGES"
	StepFinalize  StepName = "FINALIZE"
	StepDownload  StepName = "DOWNLOAD"
)

// ContractPeriod is the policy duration in months, carried as a string on the wire.
type ContractPeriod string

const (
	ContractPeriod6  ContractPeriod = "6"
	ContractPeriod12 ContractPeriod = "12"
	ContractPeriod24 ContractPeriod = "24"

	DefaultContractPeriod = ContractPeriod12
)

func (p ContractPeriod) Valid() bool {
	switch p {
	case ContractPeriod6, ContractPeriod12, ContractPeriod24:
		return true
	default:
		return false
	}
}

// Months returns the period length; 0 for an invalid period.
func (p ContractPeriod) Months() int {
	switch p {
	case ContractPeriod6:
		return 6
	case ContractPeriod12:
		return 12
	case ContractPeriod24:
		return 24
	default:
		return 0
	}
}

// Coverage is one selectable entry from the coverage catalog.
type Coverage struct {
	ID   CoverageID `json:"id" yaml:"id"`
	Name string     `json:"name" yaml:"name"`
}

// Record is the accumulating onboarding data aggregate.
//
// Every field is tri-state (unspecified / null / value). The same type doubles as the
// partial fragment returned by the remote step service: keys absent from a response
// stay unspecified and are not merged.
//
// Nullable values are maps under the hood; treat them as immutable and replace them
// (Set/SetNull) rather than mutating in place. Clone deep-copies the collection fields.
type Record struct {
	ClientType nullable.Nullable[ClientType] `json:"clientType,omitempty"`
	AccID      nullable.Nullable[AccountID]  `json:"accId,omitempty"`

	// Account / driver.
	FirstName           nullable.Nullable[string]             `json:"firstName,omitempty"`
	LastName            nullable.Nullable[string]             `json:"lastName,omitempty"`
	BirthDate           nullable.Nullable[openapi_types.Date] `json:"birthDate,omitempty"`
	PhoneNumber         nullable.Nullable[string]             `json:"phoneNumber,omitempty"`
	Email               nullable.Nullable[string]             `json:"email,omitempty"`
	City                nullable.Nullable[string]             `json:"city,omitempty"`
	NationalID          nullable.Nullable[string]             `json:"nationalId,omitempty"`
	DriverLicense       nullable.Nullable[string]             `json:"driverLicense,omitempty"`
	BusinessName        nullable.Nullable[string]             `json:"businessName,omitempty"`
	RegisterOfCommerce  nullable.Nullable[string]             `json:"registerOfCommerce,omitempty"`
	BrokerAccountID     nullable.Nullable[BrokerAccountID]    `json:"brokerAccountId,omitempty"`
	ContactID           nullable.Nullable[ContactID]          `json:"contactId,omitempty"`
	DriverFirstName     nullable.Nullable[string]             `json:"driverFirstName,omitempty"`
	DriverLastName      nullable.Nullable[string]             `json:"driverLastName,omitempty"`
	CategoryLicense     nullable.Nullable[string]             `json:"categoryLicense,omitempty"`
	LicenseIssuanceDate nullable.Nullable[openapi_types.Date] `json:"licenseIssuanceDate,omitempty"`

	// Vehicle.
	VehicleID                     nullable.Nullable[VehicleID]          `json:"vehicleId,omitempty"`
	VehiclePlate                  nullable.Nullable[string]             `json:"vehiclePlate,omitempty"`
	VehicleIsNew                  nullable.Nullable[bool]               `json:"vehicleIsNew,omitempty"`
	VehicleStartDateOfCirculation nullable.Nullable[openapi_types.Date] `json:"vehicleStartDateOfCirculation,omitempty"`
	VehicleBodyType               nullable.Nullable[string]             `json:"vehicleBodyType,omitempty"`
	VehicleNumberOfPassengers     nullable.Nullable[int]                `json:"vehicleNumberOfPassengers,omitempty"`
	VehicleBrand                  nullable.Nullable[string]             `json:"vehicleBrand,omitempty"`
	VehicleCylinder               nullable.Nullable[int]                `json:"vehicleCylinder,omitempty"`
	VehicleFiscalHorsepower       nullable.Nullable[int]                `json:"vehicleFiscalHorsepower,omitempty"`
	VehicleUsage                  nullable.Nullable[string]             `json:"vehicleUsage,omitempty"`
	VehicleMake                   nullable.Nullable[string]             `json:"vehicleMake,omitempty"`
	VehicleModel                  nullable.Nullable[string]             `json:"vehicleModel,omitempty"`
	VehicleFuelType               nullable.Nullable[string]             `json:"vehicleFuelType,omitempty"`
	VehicleTrailer                nullable.Nullable[bool]               `json:"vehicleTrailer,omitempty"`
	VehicleValue                  nullable.Nullable[float64]            `json:"vehicleValue,omitempty"`

	// Policy / contract.
	PolicyID          nullable.Nullable[PolicyID]       `json:"policyId,omitempty"`
	ContractID        nullable.Nullable[ContractID]     `json:"contractId,omitempty"`
	Premium           nullable.Nullable[float64]        `json:"premium,omitempty"`
	ContractPeriod    nullable.Nullable[ContractPeriod] `json:"contractPeriod,omitempty"`
	ContractStartDate nullable.Nullable[time.Time]      `json:"contractStartDate,omitempty"`
	ContractEndDate   nullable.Nullable[time.Time]      `json:"contractEndDate,omitempty"`

	// Coverages. Premiums and names are server-assigned.
	SelectedCoverageIDs nullable.Nullable[[]CoverageID]           `json:"selectedCoverageIds,omitempty"`
	CoveragePremiums    nullable.Nullable[map[CoverageID]float64] `json:"coveragePremiums,omitempty"`
	CoverageNames       nullable.Nullable[map[CoverageID]string]  `json:"coverageNames,omitempty"`
}

// NewRecord returns a fresh record: no client type, booleans false, a 12 month
// contract period and an empty coverage selection. Everything else is unspecified.
func NewRecord() Record {
	var r Record
	r.VehicleIsNew.Set(false)
	r.VehicleTrailer.Set(false)
	r.ContractPeriod.Set(DefaultContractPeriod)
	r.SelectedCoverageIDs.Set([]CoverageID{})
	return r
}

// Type returns the selected client type, or ClientTypeUnset when unspecified, null or
// not a known type.
func (r Record) Type() ClientType {
	if ct := valueOr(r.ClientType, ClientTypeUnset); ct.Valid() {
		return ct
	}
	return ClientTypeUnset
}

// Coverages returns the selected coverage ids in selection order (never nil).
func (r Record) Coverages() []CoverageID {
	ids := valueOr(r.SelectedCoverageIDs, nil)
	if ids == nil {
		return []CoverageID{}
	}
	return slices.Clone(ids)
}

// Clone returns a copy that shares no mutable state with r.
func (r Record) Clone() Record {
	out := r
	out.ClientType = cloneNullable(r.ClientType)
	if ids, ok := get(r.SelectedCoverageIDs); ok {
		out.SelectedCoverageIDs = nullable.NewNullableWithValue(slices.Clone(ids))
	} else {
		out.SelectedCoverageIDs = cloneNullable(r.SelectedCoverageIDs)
	}
	if m, ok := get(r.CoveragePremiums); ok {
		out.CoveragePremiums = nullable.NewNullableWithValue(maps.Clone(m))
	} else {
		out.CoveragePremiums = cloneNullable(r.CoveragePremiums)
	}
	if m, ok := get(r.CoverageNames); ok {
		out.CoverageNames = nullable.NewNullableWithValue(maps.Clone(m))
	} else {
		out.CoverageNames = cloneNullable(r.CoverageNames)
	}
	return out
}

// StringValue returns the value of a string-kind field, or "" when unspecified or null.
func StringValue[T ~string](n nullable.Nullable[T]) string {
	return string(valueOr(n, ""))
}

func get[T any](n nullable.Nullable[T]) (T, bool) {
	v, err := n.Get()
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

func valueOr[T any](n nullable.Nullable[T], def T) T {
	if v, ok := get(n); ok {
		return v
	}
	return def
}

func cloneNullable[T any](n nullable.Nullable[T]) nullable.Nullable[T] {
	switch {
	case !n.IsSpecified():
		return nil
	case n.IsNull():
		return nullable.NewNullNullable[T]()
	default:
		return nullable.NewNullableWithValue(n.MustGet())
	}
}
