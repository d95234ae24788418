package onboarding

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// dateLayout is the wire format for date-only fields.
const dateLayout = "2006-01-02"

// FieldKind decides how a record field is coerced and whether it is sent to the
// remote service when absent.
type FieldKind int

const (
	// KindString fields (including identifiers) are always sent; absent means null.
	KindString FieldKind = iota
	// KindNumber fields are sent only when they hold a value.
	KindNumber
	// KindBoolean fields are sent only when they hold true or false.
	KindBoolean
	// KindDate fields are sent only when non-empty.
	KindDate
	// KindList is the coverage selection; sent whenever present, even if empty.
	KindList
	// KindServer fields are assigned by the remote service and never sent.
	KindServer
)

// InputKind tags the UI control a field change came from.
type InputKind string

const (
	InputText     InputKind = "text"
	InputCheckbox InputKind = "checkbox"
	InputNumber   InputKind = "number"
	InputDate     InputKind = "date"
)

// Input is a generic field change event: the field's wire name, the raw control value
// and the kind of control that produced it.
type Input struct {
	Name  string
	Value any
	Kind  InputKind
}

type field struct {
	name string
	kind FieldKind
	// input reports whether ChangeField may set it. Client type and coverages have
	// dedicated handlers; server-assigned fields are never set by the client.
	input bool

	put    func(r *domain.Record, p Payload)
	assign func(r *domain.Record, v any) error
	merge  func(dst, src *domain.Record)
}

// recordFields declares every record field once, in wire order.
var recordFields = []field{
	clientTypeField(),
	serverOwned(stringField("accId", func(r *domain.Record) *nullable.Nullable[domain.AccountID] { return &r.AccID })),
	stringField("firstName", func(r *domain.Record) *nullable.Nullable[string] { return &r.FirstName }),
	stringField("lastName", func(r *domain.Record) *nullable.Nullable[string] { return &r.LastName }),
	dateField("birthDate", func(r *domain.Record) *nullable.Nullable[openapi_types.Date] { return &r.BirthDate }),
	stringField("phoneNumber", func(r *domain.Record) *nullable.Nullable[string] { return &r.PhoneNumber }),
	stringField("city", func(r *domain.Record) *nullable.Nullable[string] { return &r.City }),
	stringField("nationalId", func(r *domain.Record) *nullable.Nullable[string] { return &r.NationalID }),
	stringField("driverLicense", func(r *domain.Record) *nullable.Nullable[string] { return &r.DriverLicense }),
	dateField("licenseIssuanceDate", func(r *domain.Record) *nullable.Nullable[openapi_types.Date] { return &r.LicenseIssuanceDate }),
	stringField("email", func(r *domain.Record) *nullable.Nullable[string] { return &r.Email }),
	stringField("businessName", func(r *domain.Record) *nullable.Nullable[string] { return &r.BusinessName }),
	stringField("registerOfCommerce", func(r *domain.Record) *nullable.Nullable[string] { return &r.RegisterOfCommerce }),
	stringField("brokerAccountId", func(r *domain.Record) *nullable.Nullable[domain.BrokerAccountID] { return &r.BrokerAccountID }),
	stringField("contactId", func(r *domain.Record) *nullable.Nullable[domain.ContactID] { return &r.ContactID }),
	stringField("driverFirstName", func(r *domain.Record) *nullable.Nullable[string] { return &r.DriverFirstName }),
	stringField("driverLastName", func(r *domain.Record) *nullable.Nullable[string] { return &r.DriverLastName }),
	stringField("categoryLicense", func(r *domain.Record) *nullable.Nullable[string] { return &r.CategoryLicense }),

	stringField("vehicleId", func(r *domain.Record) *nullable.Nullable[domain.VehicleID] { return &r.VehicleID }),
	stringField("vehiclePlate", func(r *domain.Record) *nullable.Nullable[string] { return &r.VehiclePlate }),
	boolField("vehicleIsNew", func(r *domain.Record) *nullable.Nullable[bool] { return &r.VehicleIsNew }),
	dateField("vehicleStartDateOfCirculation", func(r *domain.Record) *nullable.Nullable[openapi_types.Date] { return &r.VehicleStartDateOfCirculation }),
	stringField("vehicleBodyType", func(r *domain.Record) *nullable.Nullable[string] { return &r.VehicleBodyType }),
	numberField("vehicleNumberOfPassengers", func(r *domain.Record) *nullable.Nullable[int] { return &r.VehicleNumberOfPassengers }),
	stringField("vehicleBrand", func(r *domain.Record) *nullable.Nullable[string] { return &r.VehicleBrand }),
	numberField("vehicleCylinder", func(r *domain.Record) *nullable.Nullable[int] { return &r.VehicleCylinder }),
	numberField("vehicleFiscalHorsepower", func(r *domain.Record) *nullable.Nullable[int] { return &r.VehicleFiscalHorsepower }),
	stringField("vehicleUsage", func(r *domain.Record) *nullable.Nullable[string] { return &r.VehicleUsage }),
	stringField("vehicleMake", func(r *domain.Record) *nullable.Nullable[string] { return &r.VehicleMake }),
	stringField("vehicleModel", func(r *domain.Record) *nullable.Nullable[string] { return &r.VehicleModel }),
	stringField("vehicleFuelType", func(r *domain.Record) *nullable.Nullable[string] { return &r.VehicleFuelType }),
	boolField("vehicleTrailer", func(r *domain.Record) *nullable.Nullable[bool] { return &r.VehicleTrailer }),
	numberField("vehicleValue", func(r *domain.Record) *nullable.Nullable[float64] { return &r.VehicleValue }),

	serverOwned(stringField("policyId", func(r *domain.Record) *nullable.Nullable[domain.PolicyID] { return &r.PolicyID })),
	serverOwned(stringField("contractId", func(r *domain.Record) *nullable.Nullable[domain.ContractID] { return &r.ContractID })),
	serverOwned(numberField("premium", func(r *domain.Record) *nullable.Nullable[float64] { return &r.Premium })),
	periodField("contractPeriod", func(r *domain.Record) *nullable.Nullable[domain.ContractPeriod] { return &r.ContractPeriod }),
	listField("selectedCoverageIds", func(r *domain.Record) *nullable.Nullable[[]domain.CoverageID] { return &r.SelectedCoverageIDs }),

	serverField("contractStartDate", func(r *domain.Record) *nullable.Nullable[time.Time] { return &r.ContractStartDate }),
	serverField("contractEndDate", func(r *domain.Record) *nullable.Nullable[time.Time] { return &r.ContractEndDate }),
	serverField("coveragePremiums", func(r *domain.Record) *nullable.Nullable[map[domain.CoverageID]float64] { return &r.CoveragePremiums }),
	serverField("coverageNames", func(r *domain.Record) *nullable.Nullable[map[domain.CoverageID]string] { return &r.CoverageNames }),
}

var fieldsByName = indexFields(recordFields)

func indexFields(fs []field) map[string]field {
	out := make(map[string]field, len(fs))
	for _, f := range fs {
		out[f.name] = f
	}
	return out
}

// FieldKindOf reports the declared kind of a record field by wire name.
func FieldKindOf(name string) (FieldKind, bool) {
	f, ok := fieldsByName[name]
	return f.kind, ok
}

// Merge overlays every field the remote service returned onto current.
// Server values win, including explicit nulls; unspecified fragment fields are ignored.
func Merge(current, fragment domain.Record) domain.Record {
	out := current.Clone()
	src := fragment.Clone()
	for _, f := range recordFields {
		f.merge(&out, &src)
	}
	return out
}

// applyInput returns a copy of r carrying the coerced input value.
func applyInput(r domain.Record, in Input) (domain.Record, error) {
	f, ok := fieldsByName[in.Name]
	if !ok {
		return r, &Error{
			Status:  422,
			Code:    "UNKNOWN_FIELD",
			Message: "unknown field",
			Details: map[string]any{"name": in.Name},
		}
	}
	if !f.input {
		return r, &Error{
			Status:  422,
			Code:    "FIELD_NOT_WRITABLE",
			Message: "field cannot be changed directly",
			Details: map[string]any{"name": in.Name},
		}
	}
	v, err := coerceInput(in)
	if err != nil {
		return r, validationError("invalid "+in.Name, map[string]any{in.Name: err.Error()})
	}
	out := r.Clone()
	if err := f.assign(&out, v); err != nil {
		return r, validationError("invalid "+in.Name, map[string]any{in.Name: err.Error()})
	}
	return out, nil
}

// coerceInput normalizes a raw control value by control kind: checkboxes yield booleans,
// empty number and date inputs become null, everything else passes through.
func coerceInput(in Input) (any, error) {
	switch in.Kind {
	case InputCheckbox:
		switch v := in.Value.(type) {
		case nil:
			return false, nil
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, errors.New("must be true or false")
			}
			return b, nil
		default:
			return nil, errors.New("must be true or false")
		}
	case InputNumber, InputDate:
		if in.Value == nil {
			return nil, nil
		}
		if s, ok := in.Value.(string); ok && s == "" {
			return nil, nil
		}
		return in.Value, nil
	default:
		return in.Value, nil
	}
}

func serverOwned(f field) field {
	f.input = false
	return f
}

func mergeFrom[T any](ref func(*domain.Record) *nullable.Nullable[T]) func(dst, src *domain.Record) {
	return func(dst, src *domain.Record) {
		if n := *ref(src); n.IsSpecified() {
			*ref(dst) = n
		}
	}
}

func stringField[T ~string](name string, ref func(*domain.Record) *nullable.Nullable[T]) field {
	return field{
		name:  name,
		kind:  KindString,
		input: true,
		put: func(r *domain.Record, p Payload) {
			if v, err := ref(r).Get(); err == nil {
				p[name] = string(v)
				return
			}
			p[name] = nil
		},
		assign: func(r *domain.Record, v any) error {
			switch x := v.(type) {
			case nil:
				ref(r).SetNull()
			case string:
				ref(r).Set(T(x))
			default:
				return errors.New("must be a string")
			}
			return nil
		},
		merge: mergeFrom(ref),
	}
}

// clientTypeField is set through ChangeClientType only. A server value outside the
// known types is not merged, so the flow and the payload never disagree.
func clientTypeField() field {
	ref := func(r *domain.Record) *nullable.Nullable[domain.ClientType] { return &r.ClientType }
	f := serverOwned(stringField("clientType", ref))
	f.put = func(r *domain.Record, p Payload) {
		if ct := r.Type(); ct != domain.ClientTypeUnset {
			p["clientType"] = string(ct)
			return
		}
		p["clientType"] = nil
	}
	f.merge = func(dst, src *domain.Record) {
		n := *ref(src)
		if !n.IsSpecified() {
			return
		}
		if v, err := n.Get(); err == nil && !v.Valid() {
			return
		}
		*ref(dst) = n
	}
	return f
}

func periodField(name string, ref func(*domain.Record) *nullable.Nullable[domain.ContractPeriod]) field {
	f := stringField(name, ref)
	assign := f.assign
	f.assign = func(r *domain.Record, v any) error {
		s, _ := v.(string)
		if !domain.ContractPeriod(s).Valid() {
			return errors.New("must be one of 6, 12, 24")
		}
		return assign(r, s)
	}
	return f
}

func numberField[T int | float64](name string, ref func(*domain.Record) *nullable.Nullable[T]) field {
	return field{
		name:  name,
		kind:  KindNumber,
		input: true,
		put: func(r *domain.Record, p Payload) {
			if v, err := ref(r).Get(); err == nil {
				p[name] = v
			}
		},
		assign: func(r *domain.Record, v any) error {
			n, isNull, err := parseNumber[T](v)
			if err != nil {
				return err
			}
			if isNull {
				ref(r).SetNull()
				return nil
			}
			ref(r).Set(n)
			return nil
		},
		merge: mergeFrom(ref),
	}
}

func parseNumber[T int | float64](v any) (T, bool, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, errors.New("must be a number")
		}
		f = parsed
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false, errors.New("must be a number")
		}
		f = parsed
	case float64:
		f = x
	case int:
		f = float64(x)
	default:
		return 0, false, errors.New("must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, errors.New("must be a finite number")
	}
	var zero T
	if _, isInt := any(zero).(int); isInt {
		if f != math.Trunc(f) {
			return 0, false, errors.New("must be a whole number")
		}
		if f < math.MinInt || f >= math.MaxInt {
			return 0, false, errors.New("must be a whole number in range")
		}
	}
	return T(f), false, nil
}

func boolField(name string, ref func(*domain.Record) *nullable.Nullable[bool]) field {
	return field{
		name:  name,
		kind:  KindBoolean,
		input: true,
		put: func(r *domain.Record, p Payload) {
			if v, err := ref(r).Get(); err == nil {
				p[name] = v
			}
		},
		assign: func(r *domain.Record, v any) error {
			switch x := v.(type) {
			case nil:
				ref(r).SetNull()
			case bool:
				ref(r).Set(x)
			case string:
				if strings.TrimSpace(x) == "" {
					ref(r).SetNull()
					return nil
				}
				b, err := strconv.ParseBool(strings.TrimSpace(x))
				if err != nil {
					return errors.New("must be true or false")
				}
				ref(r).Set(b)
			default:
				return errors.New("must be true or false")
			}
			return nil
		},
		merge: mergeFrom(ref),
	}
}

func dateField(name string, ref func(*domain.Record) *nullable.Nullable[openapi_types.Date]) field {
	return field{
		name:  name,
		kind:  KindDate,
		input: true,
		put: func(r *domain.Record, p Payload) {
			if v, err := ref(r).Get(); err == nil && !v.Time.IsZero() {
				p[name] = v.Time.Format(dateLayout)
			}
		},
		assign: func(r *domain.Record, v any) error {
			switch x := v.(type) {
			case nil:
				ref(r).SetNull()
			case string:
				s := strings.TrimSpace(x)
				if s == "" {
					ref(r).SetNull()
					return nil
				}
				t, err := time.Parse(dateLayout, s)
				if err != nil {
					return fmt.Errorf("must be a date formatted %s", dateLayout)
				}
				ref(r).Set(openapi_types.Date{Time: t})
			case time.Time:
				ref(r).Set(openapi_types.Date{Time: x.UTC().Truncate(24 * time.Hour)})
			default:
				return fmt.Errorf("must be a date formatted %s", dateLayout)
			}
			return nil
		},
		merge: mergeFrom(ref),
	}
}

func listField(name string, ref func(*domain.Record) *nullable.Nullable[[]domain.CoverageID]) field {
	return field{
		name: name,
		kind: KindList,
		put: func(r *domain.Record, p Payload) {
			n := *ref(r)
			switch {
			case !n.IsSpecified():
			case n.IsNull():
				p[name] = nil
			default:
				ids := slices.Clone(n.MustGet())
				if ids == nil {
					ids = []domain.CoverageID{}
				}
				p[name] = ids
			}
		},
		assign: func(*domain.Record, any) error { return errors.New("use the coverage selection") },
		merge:  mergeFrom(ref),
	}
}

func serverField[T any](name string, ref func(*domain.Record) *nullable.Nullable[T]) field {
	return field{
		name:   name,
		kind:   KindServer,
		put:    func(*domain.Record, Payload) {},
		assign: func(*domain.Record, any) error { return errors.New("assigned by the step service") },
		merge:  mergeFrom(ref),
	}
}
