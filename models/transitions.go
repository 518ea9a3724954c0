package models

import (
	"strings"

	"github.com/photoproos/studio_backend/utils"
)

// Transition is one row of a status table: Action moves an entity from any of From to To.
type Transition[S ~string, A ~string] struct {
	Action A
	From   []S
	To     S
}

// TransitionTable is the single source of truth for which actions a status allows.
type TransitionTable[S ~string, A ~string] struct {
	entity      string
	stateErrors bool
	transitions []Transition[S, A]
}

func newTransitionTable[S ~string, A ~string](entity string, transitions []Transition[S, A]) TransitionTable[S, A] {
	return TransitionTable[S, A]{entity: entity, transitions: transitions}
}

// reportingInvalidState makes rejected actions surface as InvalidStateError instead of InvalidTransitionError.
func (t TransitionTable[S, A]) reportingInvalidState() TransitionTable[S, A] {
	t.stateErrors = true
	return t
}

// Next returns the status reached by applying action in from, or an error naming the illegal move.
func (t TransitionTable[S, A]) Next(from S, action A) (S, error) {
	for _, tr := range t.transitions {
		if tr.Action != action {
			continue
		}
		for _, s := range tr.From {
			if s == from {
				return tr.To, nil
			}
		}
	}
	verb := strings.ReplaceAll(string(action), "_", " ")
	if t.stateErrors {
		return from, utils.NewInvalidStateError("cannot %s %s in status %s", verb, t.entity, from)
	}
	return from, utils.NewInvalidTransitionError(t.entity, verb, string(from))
}

// Actions lists the actions legal in from, in table order.
func (t TransitionTable[S, A]) Actions(from S) []A {
	actions := make([]A, 0)
	for _, tr := range t.transitions {
		for _, s := range tr.From {
			if s == from {
				actions = append(actions, tr.Action)
				break
			}
		}
	}
	return actions
}

// IsTerminal reports whether no action leaves from.
func (t TransitionTable[S, A]) IsTerminal(from S) bool {
	return len(t.Actions(from)) == 0
}
