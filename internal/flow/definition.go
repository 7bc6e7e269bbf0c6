package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidDefinition marks configuration errors found while loading a flow
// definition. These are fatal at startup, never a runtime fault.
var ErrInvalidDefinition = errors.New("flow: invalid definition")

type InputKind string

const (
	InputButton InputKind = "button"
	InputText   InputKind = "text"
)

// Destination is the staff chat/topic a completed question is forwarded to.
type Destination struct {
	ChatID  int64 `json:"chat_id"`
	TopicID int   `json:"topic_id"`
}

// Button is one inline button. Its label doubles as the callback data and as
// the transition trigger. Next overrides the default destination, which is
// the following state in declaration order.
type Button struct {
	Label string `json:"label"`
	Next  string `json:"next,omitempty"`
}

// Step describes one state of the flow. This is pure data; the machine
// derives the transition table from it at load time.
type Step struct {
	Prompt  string     `json:"prompt"`
	Input   InputKind  `json:"input"`
	Buttons [][]Button `json:"buttons,omitempty"`

	// ConditionalButtons replaces Buttons with the layout selected by the
	// input captured earlier in ConditionState.
	ConditionState     string                `json:"condition_state,omitempty"`
	ConditionalButtons map[string][][]Button `json:"conditional_buttons,omitempty"`

	// Next is the explicit destination for text states and the default for
	// buttons without one. Empty means the following state in Order, or a
	// terminal state when there is no following state.
	Next string `json:"next,omitempty"`

	// Destination marks this state as a routing leaf: entering it records
	// where the collected question will be forwarded.
	Destination *Destination `json:"destination,omitempty"`
}

// Definition is the full declarative flow: declaration order, the initial
// state, the steps, and the per-field labels used when rendering a submitted
// question for staff.
type Definition struct {
	Initial string            `json:"initial"`
	Order   []string          `json:"order"`
	Steps   map[string]Step   `json:"steps"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// LoadFile reads and validates a JSON flow definition.
func LoadFile(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow definition: %w", err)
	}
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse flow definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// nextOf resolves the default destination of a state: the explicit Next if
// set, otherwise the following state in Order. Empty means terminal.
func (d *Definition) nextOf(state string) string {
	step := d.Steps[state]
	if step.Next != "" {
		return step.Next
	}
	for i, name := range d.Order {
		if name == state && i+1 < len(d.Order) {
			return d.Order[i+1]
		}
	}
	return ""
}

// edge is one raw transition before hooks are attached.
type edge struct {
	trigger Trigger
	dest    string
}

// edgesOf derives the outgoing edges of a state. Button states get one edge
// per distinct button label across every layout variant; text states get a
// single automatic edge unless they are terminal.
func (d *Definition) edgesOf(state string) ([]edge, error) {
	step := d.Steps[state]
	if step.Input == InputText {
		next := d.nextOf(state)
		if next == "" {
			return nil, nil
		}
		return []edge{{trigger: autoTrigger(state), dest: next}}, nil
	}

	layouts := make([][][]Button, 0, 1+len(step.ConditionalButtons))
	if len(step.Buttons) > 0 {
		layouts = append(layouts, step.Buttons)
	}
	for _, layout := range step.ConditionalButtons {
		layouts = append(layouts, layout)
	}

	seen := make(map[Trigger]string)
	var edges []edge
	for _, layout := range layouts {
		for _, row := range layout {
			for _, button := range row {
				dest := button.Next
				if dest == "" {
					dest = d.nextOf(state)
				}
				trigger := Trigger(button.Label)
				if prev, ok := seen[trigger]; ok {
					if prev != dest {
						return nil, fmt.Errorf("%w: state %q: button %q maps to both %q and %q",
							ErrInvalidDefinition, state, button.Label, prev, dest)
					}
					continue
				}
				if dest == "" {
					return nil, fmt.Errorf("%w: state %q: button %q has no destination",
						ErrInvalidDefinition, state, button.Label)
				}
				seen[trigger] = dest
				edges = append(edges, edge{trigger: trigger, dest: dest})
			}
		}
	}
	return edges, nil
}

// Validate checks the definition for structural errors: unknown states,
// missing prompts, dead ends, and terminal paths that never pass a state
// carrying a destination. Any violation is fatal configuration.
func (d *Definition) Validate() error {
	if len(d.Order) == 0 {
		return fmt.Errorf("%w: no states declared", ErrInvalidDefinition)
	}
	if len(d.Order) != len(d.Steps) {
		return fmt.Errorf("%w: order lists %d states, steps define %d",
			ErrInvalidDefinition, len(d.Order), len(d.Steps))
	}
	for _, name := range d.Order {
		if _, ok := d.Steps[name]; !ok {
			return fmt.Errorf("%w: state %q in order but not defined", ErrInvalidDefinition, name)
		}
	}
	if _, ok := d.Steps[d.Initial]; !ok {
		return fmt.Errorf("%w: initial state %q not defined", ErrInvalidDefinition, d.Initial)
	}

	for _, name := range d.Order {
		step := d.Steps[name]
		if step.Prompt == "" {
			return fmt.Errorf("%w: state %q has no prompt", ErrInvalidDefinition, name)
		}
		switch step.Input {
		case InputButton:
			if len(step.Buttons) == 0 && len(step.ConditionalButtons) == 0 {
				return fmt.Errorf("%w: button state %q has no buttons", ErrInvalidDefinition, name)
			}
		case InputText:
			if len(step.Buttons) > 0 || len(step.ConditionalButtons) > 0 {
				return fmt.Errorf("%w: text state %q declares buttons", ErrInvalidDefinition, name)
			}
		default:
			return fmt.Errorf("%w: state %q has unknown input kind %q", ErrInvalidDefinition, name, step.Input)
		}
		if step.Next != "" {
			if _, ok := d.Steps[step.Next]; !ok {
				return fmt.Errorf("%w: state %q: next state %q not defined", ErrInvalidDefinition, name, step.Next)
			}
		}
		if step.ConditionState != "" {
			if _, ok := d.Steps[step.ConditionState]; !ok {
				return fmt.Errorf("%w: state %q: condition state %q not defined",
					ErrInvalidDefinition, name, step.ConditionState)
			}
		}
		if len(step.ConditionalButtons) > 0 && step.ConditionState == "" {
			return fmt.Errorf("%w: state %q: conditional buttons without condition state",
				ErrInvalidDefinition, name)
		}
		if step.Destination != nil && step.Destination.ChatID == 0 {
			return fmt.Errorf("%w: state %q: destination without chat id", ErrInvalidDefinition, name)
		}
	}

	edges := make(map[string][]edge, len(d.Order))
	for _, name := range d.Order {
		stateEdges, err := d.edgesOf(name)
		if err != nil {
			return err
		}
		for _, e := range stateEdges {
			if _, ok := d.Steps[e.dest]; !ok {
				return fmt.Errorf("%w: state %q: transition to undefined state %q",
					ErrInvalidDefinition, name, e.dest)
			}
		}
		edges[name] = stateEdges
	}

	return d.validateReachability(edges)
}

// validateReachability walks every path from the initial state, confirming
// each reachable state can still reach a terminal, and that no terminal is
// reached without a destination-carrying state earlier on the path.
func (d *Definition) validateReachability(edges map[string][]edge) error {
	type visit struct {
		state   string
		hasDest bool
	}

	terminalSeen := false
	visited := make(map[visit]bool)
	stack := []visit{{state: d.Initial, hasDest: d.Steps[d.Initial].Destination != nil}}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[v] {
			continue
		}
		visited[v] = true

		out := edges[v.state]
		if len(out) == 0 {
			terminalSeen = true
			if !v.hasDest {
				return fmt.Errorf("%w: terminal state %q reachable without a destination on the path",
					ErrInvalidDefinition, v.state)
			}
			continue
		}
		for _, e := range out {
			next := visit{state: e.dest, hasDest: v.hasDest || d.Steps[e.dest].Destination != nil}
			stack = append(stack, next)
		}
	}

	if !terminalSeen {
		return fmt.Errorf("%w: no terminal state reachable from %q", ErrInvalidDefinition, d.Initial)
	}

	// Dead-end check: every reachable state must still lead somewhere.
	reachable := make(map[string]bool)
	for v := range visited {
		reachable[v.state] = true
	}
	for state := range reachable {
		if len(edges[state]) == 0 {
			continue
		}
		if !canReachTerminal(state, edges, make(map[string]bool)) {
			return fmt.Errorf("%w: state %q cannot reach a terminal state", ErrInvalidDefinition, state)
		}
	}
	return nil
}

func canReachTerminal(state string, edges map[string][]edge, seen map[string]bool) bool {
	if seen[state] {
		return false
	}
	seen[state] = true
	out := edges[state]
	if len(out) == 0 {
		return true
	}
	for _, e := range out {
		if canReachTerminal(e.dest, edges, seen) {
			return true
		}
	}
	return false
}
