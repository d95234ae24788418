package onboarding

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
)

// ErrNoOrdinal indicates a step has no remote ordinal for a client type.
// It is a configuration error: the tables below drifted from the remote service.
var ErrNoOrdinal = errors.New("no remote step ordinal")

// flows is the ordered step sequence per client type. BUSINESS inserts DRIVER.
var flows = map[domain.ClientType][]domain.StepName{
	domain.ClientTypePerson: {
		domain.StepAccount,
		domain.StepVehicle,
		domain.StepReview,
		domain.StepCoverages,
		domain.StepFinalize,
		domain.StepDownload,
	},
	domain.ClientTypeBusiness: {
		domain.StepAccount,
		domain.StepDriver,
		domain.StepVehicle,
		domain.StepReview,
		domain.StepCoverages,
		domain.StepFinalize,
		domain.StepDownload,
	},
}

// ordinals maps (client type, step) to the step number the remote service understands.
// It must match the remote service's own numbering; it is not derived from flows.
var ordinals = map[domain.ClientType]map[domain.StepName]int{
	domain.ClientTypePerson: {
		domain.StepAccount:   1,
		domain.StepVehicle:   2,
		domain.StepReview:    3,
		domain.StepCoverages: 4,
		domain.StepFinalize:  5,
		domain.StepDownload:  6,
	},
	domain.ClientTypeBusiness: {
		domain.StepAccount:   1,
		domain.StepDriver:    2,
		domain.StepVehicle:   3,
		domain.StepReview:    4,
		domain.StepCoverages: 5,
		domain.StepFinalize:  6,
		domain.StepDownload:  7,
	},
}

// flowType resolves the table key for ct; an unset type follows the PERSON flow.
func flowType(ct domain.ClientType) domain.ClientType {
	if ct == domain.ClientTypeBusiness {
		return domain.ClientTypeBusiness
	}
	return domain.ClientTypePerson
}

// SequenceFor returns the ordered steps for ct. The caller owns the returned slice.
func SequenceFor(ct domain.ClientType) []domain.StepName {
	return slices.Clone(flows[flowType(ct)])
}

// FirstStep is the initial state of every flow.
func FirstStep(ct domain.ClientType) domain.StepName {
	return flows[flowType(ct)][0]
}

// OrdinalFor returns the remote step number for step under ct.
func OrdinalFor(step domain.StepName, ct domain.ClientType) (int, error) {
	n, ok := ordinals[flowType(ct)][step]
	if !ok {
		return 0, fmt.Errorf("%w: step %s for client type %s", ErrNoOrdinal, step, flowType(ct))
	}
	return n, nil
}

// IndexOf returns the position of step in seq, or -1.
func IndexOf(step domain.StepName, seq []domain.StepName) int {
	return slices.Index(seq, step)
}

// InSequence reports whether step belongs to the flow for ct.
func InSequence(step domain.StepName, ct domain.ClientType) bool {
	return IndexOf(step, flows[flowType(ct)]) >= 0
}

func IsFirstStep(step domain.StepName, ct domain.ClientType) bool {
	return IndexOf(step, flows[flowType(ct)]) == 0
}

func IsLastStep(step domain.StepName, ct domain.ClientType) bool {
	seq := flows[flowType(ct)]
	return IndexOf(step, seq) == len(seq)-1
}

// StepAfter returns the step following step, or false at the terminal step
// (or when step is not in the flow).
func StepAfter(step domain.StepName, ct domain.ClientType) (domain.StepName, bool) {
	seq := flows[flowType(ct)]
	i := IndexOf(step, seq)
	if i < 0 || i == len(seq)-1 {
		return "", false
	}
	return seq[i+1], true
}

// StepBefore returns the step preceding step, or false at the first step.
func StepBefore(step domain.StepName, ct domain.ClientType) (domain.StepName, bool) {
	seq := flows[flowType(ct)]
	i := IndexOf(step, seq)
	if i <= 0 {
		return "", false
	}
	return seq[i-1], true
}

// CheckFlowTables verifies the sequence and ordinal tables agree: every sequenced step
// has an ordinal, and ordinals strictly increase along each sequence.
func CheckFlowTables() error {
	for ct, seq := range flows {
		if len(seq) == 0 {
			return fmt.Errorf("flow %s is empty", ct)
		}
		if seq[0] != domain.StepAccount || seq[len(seq)-1] != domain.StepDownload {
			return fmt.Errorf("flow %s must run from %s to %s", ct, domain.StepAccount, domain.StepDownload)
		}
		prev := 0
		for _, step := range seq {
			n, err := OrdinalFor(step, ct)
			if err != nil {
				return err
			}
			if n <= prev {
				return fmt.Errorf("flow %s: ordinal %d for %s does not follow %d", ct, n, step, prev)
			}
			prev = n
		}
		if len(ordinals[ct]) != len(seq) {
			return fmt.Errorf("flow %s: %d ordinals for %d steps", ct, len(ordinals[ct]), len(seq))
		}
	}
	return nil
}
