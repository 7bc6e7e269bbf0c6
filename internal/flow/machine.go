package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Trigger names an outgoing transition. Button triggers carry the button
// label verbatim (the callback data). Text states get one automatic trigger
// prefixed with "@" so it can never collide with a button label.
type Trigger string

const autoPrefix = "@"

func autoTrigger(source string) Trigger {
	return Trigger(autoPrefix + source)
}

// Auto reports whether the trigger fires on free-text input rather than a
// button press.
func (t Trigger) Auto() bool {
	return strings.HasPrefix(string(t), autoPrefix)
}

// ErrNoTransition is returned by Fire when the trigger is not valid from the
// given state. Callers treat it as a silent no-op, not a failure.
var ErrNoTransition = errors.New("flow: no transition for trigger")

// Prompt is the message a transition delivers for its destination state.
type Prompt struct {
	State   string
	Text    string
	Buttons [][]Button
}

// Sink receives the side effects of a firing transition. One sink is bound
// per inbound event; all durable state lives behind it.
type Sink interface {
	// Prompt delivers the destination state's message and buttons.
	Prompt(ctx context.Context, p Prompt) error
	// StoreInput persists the event's input attributed to the source state.
	StoreInput(ctx context.Context, sourceState string) error
	// RecordDestination persists the routing leaf reached by the transition.
	RecordDestination(ctx context.Context, destState string, dest Destination) error
	// Submit hands the completed conversation off to the question router.
	Submit(ctx context.Context) error
	// PersistState stores the new state name. Always the last hook, so a
	// failure in any earlier hook leaves the committed state untouched.
	PersistState(ctx context.Context, newState string) error
	// LookupInput returns the input captured earlier in the given state.
	LookupInput(ctx context.Context, state string) (string, bool, error)
}

// Hook is one step of a transition's ordered side-effect sequence.
type Hook func(ctx context.Context, m *Machine, sink Sink) error

// Transition joins a source state and trigger to a destination, carrying the
// explicit ordered hooks that run when it fires.
type Transition struct {
	Source  string
	Trigger Trigger
	Dest    string
	Hooks   []Hook
}

// Machine is the executable form of a Definition: immutable, built once at
// startup and shared read-only by every conversation. Each conversation
// supplies its own current-state value when firing.
type Machine struct {
	def         *Definition
	transitions map[string][]*Transition
}

// NewMachine validates the definition and derives the transition table.
func NewMachine(def *Definition) (*Machine, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		def:         def,
		transitions: make(map[string][]*Transition, len(def.Order)),
	}

	terminal := make(map[string]bool, len(def.Order))
	for _, state := range def.Order {
		edges, err := def.edgesOf(state)
		if err != nil {
			return nil, err
		}
		terminal[state] = len(edges) == 0
	}

	for _, state := range def.Order {
		edges, _ := def.edgesOf(state)
		for _, e := range edges {
			tr := &Transition{Source: state, Trigger: e.trigger, Dest: e.dest}
			tr.Hooks = m.buildHooks(tr, terminal[e.dest])
			m.transitions[state] = append(m.transitions[state], tr)
		}
	}
	return m, nil
}

// buildHooks assembles the ordered side effects of a transition: capture the
// source state's input, prompt for the destination, record a routing leaf,
// submit on entering a terminal state, and persist the new state last.
func (m *Machine) buildHooks(tr *Transition, destTerminal bool) []Hook {
	hooks := []Hook{
		storeInputHook(tr.Source),
		promptHook(tr.Dest),
	}
	if step := m.def.Steps[tr.Dest]; step.Destination != nil {
		hooks = append(hooks, recordDestinationHook(tr.Dest, *step.Destination))
	}
	if destTerminal {
		hooks = append(hooks, submitHook())
	}
	return append(hooks, persistStateHook(tr.Dest))
}

func storeInputHook(source string) Hook {
	return func(ctx context.Context, m *Machine, sink Sink) error {
		return sink.StoreInput(ctx, source)
	}
}

func promptHook(dest string) Hook {
	return func(ctx context.Context, m *Machine, sink Sink) error {
		p, err := m.PromptFor(ctx, sink, dest)
		if err != nil {
			return err
		}
		return sink.Prompt(ctx, p)
	}
}

func recordDestinationHook(destState string, dest Destination) Hook {
	return func(ctx context.Context, m *Machine, sink Sink) error {
		return sink.RecordDestination(ctx, destState, dest)
	}
}

func submitHook() Hook {
	return func(ctx context.Context, m *Machine, sink Sink) error {
		return sink.Submit(ctx)
	}
}

func persistStateHook(dest string) Hook {
	return func(ctx context.Context, m *Machine, sink Sink) error {
		return sink.PersistState(ctx, dest)
	}
}

// Initial returns the flow's entry state.
func (m *Machine) Initial() string {
	return m.def.Initial
}

// Definition returns the underlying flow definition.
func (m *Machine) Definition() *Definition {
	return m.def
}

// Find returns the transition for the trigger out of state, or nil.
func (m *Machine) Find(state string, trigger Trigger) *Transition {
	for _, tr := range m.transitions[state] {
		if tr.Trigger == trigger {
			return tr
		}
	}
	return nil
}

// AutoTransitions returns the free-text transitions valid from state.
func (m *Machine) AutoTransitions(state string) []*Transition {
	var auto []*Transition
	for _, tr := range m.transitions[state] {
		if tr.Trigger.Auto() {
			auto = append(auto, tr)
		}
	}
	return auto
}

// Fire runs the transition for trigger out of state, invoking its hooks in
// order against the sink, and returns the new state name. The sink's
// PersistState runs last, so an earlier hook failure leaves the previously
// committed state intact and the whole event safe to retry.
func (m *Machine) Fire(ctx context.Context, state string, trigger Trigger, sink Sink) (string, error) {
	tr := m.Find(state, trigger)
	if tr == nil {
		return state, ErrNoTransition
	}
	for _, hook := range tr.Hooks {
		if err := hook(ctx, m, sink); err != nil {
			return state, fmt.Errorf("transition %s -> %s: %w", tr.Source, tr.Dest, err)
		}
	}
	return tr.Dest, nil
}

// PromptFor resolves the prompt and button layout for a state, consulting
// the sink for the prior input when the layout is conditional.
func (m *Machine) PromptFor(ctx context.Context, sink Sink, state string) (Prompt, error) {
	step := m.def.Steps[state]
	p := Prompt{State: state, Text: step.Prompt}
	if step.Input != InputButton {
		return p, nil
	}

	if step.ConditionState != "" {
		value, ok, err := sink.LookupInput(ctx, step.ConditionState)
		if err != nil {
			return Prompt{}, fmt.Errorf("resolve buttons for %s: %w", state, err)
		}
		if ok {
			if layout, found := step.ConditionalButtons[value]; found {
				p.Buttons = layout
				return p, nil
			}
		}
	}
	p.Buttons = step.Buttons
	return p, nil
}
