package fsm

import (
	"fmt"
	"sync"
)

type State string
type Event string

// Handler is executed after a transition has been committed.
type Handler func(event Event, args ...interface{}) error

// Observer is told about every committed transition.
type Observer func(from, to State, event Event)

type edge struct {
	to       State
	callback Handler
}

type StateMachine struct {
	mu        sync.RWMutex
	current   State
	edges     map[State]map[Event]edge
	observers []Observer
}

func New(initial State) *StateMachine {
	return &StateMachine{
		current: initial,
		edges:   make(map[State]map[Event]edge),
	}
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *StateMachine) AddTransition(from, to State, event Event, callback Handler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.edges[from]; !ok {
		sm.edges[from] = make(map[Event]edge)
	}
	sm.edges[from][event] = edge{to: to, callback: callback}
}

// Observe registers fn for every later transition.
func (sm *StateMachine) Observe(fn Observer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.observers = append(sm.observers, fn)
}

// Can reports whether event is valid in the current state.
func (sm *StateMachine) Can(event Event) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.edges[sm.current][event]
	return ok
}

// Fire triggers a state transition. It is thread-safe.
// The new state is committed before the callback runs, so callbacks may read
// Current or fire follow-up events. A callback error is returned but does not
// roll the state back.
func (sm *StateMachine) Fire(event Event, args ...interface{}) error {
	sm.mu.Lock()
	from := sm.current
	e, ok := sm.edges[from][event]
	if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s via %s", from, event)
	}
	sm.current = e.to
	observers := append([]Observer(nil), sm.observers...)
	sm.mu.Unlock()

	for _, fn := range observers {
		fn(from, e.to, event)
	}
	if e.callback != nil {
		return e.callback(event, args...)
	}
	return nil
}

// Personal.AI order the ending
