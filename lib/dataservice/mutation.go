package dataservice

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dShop/lib/model"
)

// ErrInvalidTransition is returned when a mutation leaves a final state.
var ErrInvalidTransition = errors.New("invalid mutation state transition")

// --------------------------------------------------------------------------
// Mutation state machine
// --------------------------------------------------------------------------

type MutationState uint8

const (
	MutationPending MutationState = iota
	MutationConfirmed
	MutationRolledBack
)

func (s MutationState) String() string {
	switch s {
	case MutationPending:
		return "Pending"
	case MutationConfirmed:
		return "Confirmed"
	case MutationRolledBack:
		return "RolledBack"
	default:
		return "Unknown"
	}
}

type MutationKind uint8

const (
	MutationAdd MutationKind = iota
	MutationUpdate
	MutationRemove
	MutationClear
)

func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "Add"
	case MutationUpdate:
		return "Update"
	case MutationRemove:
		return "Remove"
	case MutationClear:
		return "Clear"
	default:
		return "Unknown"
	}
}

// Mutation describes one optimistic cart change.
type Mutation struct {
	ID    uint64
	Kind  MutationKind
	Line  model.LineID // affected line, zero for MutationClear
	State MutationState
	Err   error // cause of a rollback
}

func (m Mutation) String() string {
	return fmt.Sprintf("Mutation{ID: %d, Kind: %s, Line: %s, State: %s}", m.ID, m.Kind, m.Line, m.State)
}

// transition moves a pending mutation into a final state
func (m *Mutation) transition(to MutationState, cause error) error {
	if m.State != MutationPending || to == MutationPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.State, to)
	}
	m.State = to
	m.Err = cause
	return nil
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

type EventType uint8

const (
	// EventSnapshot signals that the snapshot changed.
	EventSnapshot EventType = iota
	// EventMutation signals a mutation state change. Mutation is set.
	EventMutation
)

// Event is delivered to subscribers.
type Event struct {
	Type     EventType
	Mutation *Mutation
}
