package view

import (
	"errors"
	"testing"
)

func TestMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		events  []Event
		want    State
		wantErr bool
	}{
		{name: "user sign in", events: []Event{EventUserSignedIn}, want: StateCatalog},
		{name: "admin sign in", events: []Event{EventAdminSignedIn}, want: StateAdmin},
		{name: "navigate then classroom", events: []Event{EventUserSignedIn, EventShowMyRentals, EventEnterClassroom}, want: StateClassroom},
		{name: "exit classroom", events: []Event{EventUserSignedIn, EventShowMyRentals, EventEnterClassroom, EventExitClassroom}, want: StateMyRentals},
		{name: "sign out from classroom", events: []Event{EventUserSignedIn, EventShowMyRentals, EventEnterClassroom, EventSignedOut}, want: StateLogin},
		{name: "sign out from login", events: []Event{EventSignedOut}, want: StateLogin},
		{name: "navigate while signed out", events: []Event{EventShowCatalog}, want: StateLogin, wantErr: true},
		{name: "classroom from catalog", events: []Event{EventUserSignedIn, EventEnterClassroom}, want: StateCatalog, wantErr: true},
		{name: "navigate from classroom", events: []Event{EventUserSignedIn, EventShowMyRentals, EventEnterClassroom, EventShowCatalog}, want: StateClassroom, wantErr: true},
		{name: "sign in twice", events: []Event{EventUserSignedIn, EventAdminSignedIn}, want: StateCatalog, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			var err error
			for _, e := range tt.events {
				if _, err = m.Fire(e); err != nil {
					break
				}
			}
			if tt.wantErr != (err != nil) {
				t.Fatalf("Fire() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
			}
			if got := m.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShowEvent(t *testing.T) {
	tests := []struct {
		state State
		want  Event
		ok    bool
	}{
		{StateCatalog, EventShowCatalog, true},
		{StateMyRentals, EventShowMyRentals, true},
		{StateMyPage, EventShowMyPage, true},
		{StateAdmin, EventShowAdmin, true},
		{StateClassroom, "", false},
		{StateLogin, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got, ok := ShowEvent(tt.state)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ShowEvent(%v) = %v, %v, want %v, %v", tt.state, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMachine_EveryStateHasExit(t *testing.T) {
	for state := range transitions {
		if _, ok := transitions[state][EventSignedOut]; !ok {
			t.Errorf("state %v does not accept %v", state, EventSignedOut)
		}
	}
}
