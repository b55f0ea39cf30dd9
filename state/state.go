// Package state is a small transition-checked state machine.
package state

import (
	"errors"
)

// State is one phase of a machine. OnUpdate runs on every Machine.Update while
// the state is current.
type State interface {
	ID() string
	OnEnter()
	OnExit()
	OnUpdate()
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine only moves along registered transitions. It is not safe for
// concurrent use: the owner drives it from a single goroutine.
type Machine struct {
	current     State
	transitions map[string]map[string]func() bool // fromState -> toState -> condition
}

// NewMachine enters initial immediately.
func NewMachine(initial State) *Machine {
	m := &Machine{
		current:     initial,
		transitions: make(map[string]map[string]func() bool),
	}
	initial.OnEnter()
	return m
}

// AddTransition allows from -> to. A nil condition always passes.
func (m *Machine) AddTransition(from, to State, condition func() bool) {
	fromID := from.ID()
	if _, exists := m.transitions[fromID]; !exists {
		m.transitions[fromID] = make(map[string]func() bool)
	}
	m.transitions[fromID][to.ID()] = condition
}

func (m *Machine) ChangeState(next State) error {
	conditions, exists := m.transitions[m.current.ID()]
	if !exists {
		return ErrTransitionNotAllowed
	}
	condition, exists := conditions[next.ID()]
	if !exists || (condition != nil && !condition()) {
		return ErrTransitionNotAllowed
	}

	m.current.OnExit()
	m.current = next
	m.current.OnEnter()
	return nil
}

func (m *Machine) Current() State {
	return m.current
}

// Update forwards to the current state's OnUpdate.
func (m *Machine) Update() {
	m.current.OnUpdate()
}

// Base gives states no-op hooks to embed.
type Base struct {
	Name string
}

func (s *Base) ID() string { return s.Name }

func (s *Base) OnEnter() {}

func (s *Base) OnExit() {}

func (s *Base) OnUpdate() {}
