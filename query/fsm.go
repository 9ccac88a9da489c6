package query

import (
	"fmt"

	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

// Phase is the lifecycle position of a query handle.
type Phase string

const (
	// PhaseIdle means no fetch has been started.
	PhaseIdle Phase = "idle"

	// PhaseLoading is the first fetch, before any data exists.
	PhaseLoading Phase = "loading"

	// PhaseSuccess means the last fetch produced data.
	PhaseSuccess Phase = "success"

	// PhaseError means the last fetch failed.
	PhaseError Phase = "error"

	// PhaseRefetching is any fetch after the first one has settled.
	PhaseRefetching Phase = "refetching"
)

// legalTransitions lists, for each phase, the phases it may move to.
// Every phase may return to idle when a handle is reset.
var legalTransitions = map[Phase]map[Phase]bool{
	PhaseIdle: {
		PhaseLoading: true,
	},
	PhaseLoading: {
		PhaseSuccess: true,
		PhaseError:   true,
		PhaseIdle:    true,
	},
	PhaseSuccess: {
		PhaseRefetching: true,
		PhaseIdle:       true,
	},
	PhaseError: {
		PhaseRefetching: true,
		PhaseLoading:    true,
		PhaseIdle:       true,
	},
	PhaseRefetching: {
		PhaseSuccess: true,
		PhaseError:   true,
		PhaseIdle:    true,
	},
}

// ValidateTransition checks that moving from "from" to "to" is legal.
// It returns an error with code TRANSITION_INVALID otherwise.
func ValidateTransition(from, to Phase) error {
	validToStates, exists := legalTransitions[from]
	if !exists {
		return errors.NewClientError(
			errors.TRANSITION_INVALID,
			fmt.Sprintf("unknown source phase: %s", from),
			nil,
		)
	}

	if !validToStates[to] {
		return errors.NewClientError(
			errors.TRANSITION_INVALID,
			fmt.Sprintf("illegal transition from %s to %s", from, to),
			nil,
		)
	}

	return nil
}

// Flags reports the raw loading/fetching flags for p.
func (p Phase) Flags() (isLoading, isFetching bool) {
	switch p {
	case PhaseLoading:
		return true, true
	case PhaseRefetching:
		return false, true
	default:
		return false, false
	}
}
