package view

import (
	"errors"
	"fmt"
	"sync"
)

// State is a named view.
type State string

const (
	StateLogin     State = "login"
	StateCatalog   State = "catalog"
	StateMyRentals State = "my-rentals"
	StateMyPage    State = "mypage"
	StateAdmin     State = "admin"
	StateClassroom State = "classroom"
)

// Event drives a transition.
type Event string

const (
	EventUserSignedIn   Event = "user-signed-in"
	EventAdminSignedIn  Event = "admin-signed-in"
	EventSignedOut      Event = "signed-out"
	EventShowCatalog    Event = "show-catalog"
	EventShowMyRentals  Event = "show-my-rentals"
	EventShowMyPage     Event = "show-mypage"
	EventShowAdmin      Event = "show-admin"
	EventEnterClassroom Event = "enter-classroom"
	EventExitClassroom  Event = "exit-classroom"
)

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid view transition")

var navigation = map[Event]State{
	EventShowCatalog:   StateCatalog,
	EventShowMyRentals: StateMyRentals,
	EventShowMyPage:    StateMyPage,
	EventShowAdmin:     StateAdmin,
	EventSignedOut:     StateLogin,
}

// transitions lists every accepted (state, event) pair.
var transitions = map[State]map[Event]State{
	StateLogin: {
		EventUserSignedIn:  StateCatalog,
		EventAdminSignedIn: StateAdmin,
		EventSignedOut:     StateLogin,
	},
	StateCatalog:   navigation,
	StateMyPage:    navigation,
	StateAdmin:     navigation,
	StateMyRentals: withEvent(navigation, EventEnterClassroom, StateClassroom),
	StateClassroom: {
		EventExitClassroom: StateMyRentals,
		EventSignedOut:     StateLogin,
	},
}

func withEvent(base map[Event]State, e Event, to State) map[Event]State {
	out := make(map[Event]State, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[e] = to
	return out
}

// Machine holds the current view.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// NewMachine starts at the login view.
func NewMachine() *Machine {
	return &Machine{state: StateLogin}
}

// State returns the current view.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Can reports whether e is accepted in the current state.
func (m *Machine) Can(e Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := transitions[m.state][e]
	return ok
}

// Fire applies e and returns the new state.
func (m *Machine) Fire(e Event) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[m.state][e]
	if !ok {
		return m.state, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, m.state)
	}
	m.state = next
	return next, nil
}

// ShowEvent returns the navigation event that leads to s.
func ShowEvent(s State) (Event, bool) {
	for e, to := range navigation {
		if to == s && e != EventSignedOut {
			return e, true
		}
	}
	return "", false
}
