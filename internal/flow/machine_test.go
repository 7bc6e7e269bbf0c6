package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSink captures hook invocations in order.
type recordSink struct {
	calls  []string
	inputs map[string]string
	fail   string
}

func newRecordSink() *recordSink {
	return &recordSink{inputs: make(map[string]string)}
}

func (s *recordSink) record(call string) error {
	s.calls = append(s.calls, call)
	if s.fail == call {
		return fmt.Errorf("forced failure at %s", call)
	}
	return nil
}

func (s *recordSink) Prompt(ctx context.Context, p Prompt) error {
	return s.record("prompt:" + p.State)
}

func (s *recordSink) StoreInput(ctx context.Context, sourceState string) error {
	return s.record("store:" + sourceState)
}

func (s *recordSink) RecordDestination(ctx context.Context, destState string, dest Destination) error {
	return s.record(fmt.Sprintf("dest:%s:%d:%d", destState, dest.ChatID, dest.TopicID))
}

func (s *recordSink) Submit(ctx context.Context) error {
	return s.record("submit")
}

func (s *recordSink) PersistState(ctx context.Context, newState string) error {
	return s.record("persist:" + newState)
}

func (s *recordSink) LookupInput(ctx context.Context, state string) (string, bool, error) {
	v, ok := s.inputs[state]
	return v, ok, nil
}

func testMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := NewMachine(minimalDefinition())
	require.NoError(t, err)
	return m
}

func TestTriggerAuto(t *testing.T) {
	assert.True(t, autoTrigger("WRITE").Auto())
	assert.False(t, Trigger("Go").Auto())
}

func TestFireButtonTransitionHookOrder(t *testing.T) {
	m := testMachine(t)
	sink := newRecordSink()

	next, err := m.Fire(context.Background(), "PICK", Trigger("Go"), sink)
	require.NoError(t, err)
	assert.Equal(t, "WRITE", next)
	assert.Equal(t, []string{
		"store:PICK",
		"prompt:WRITE",
		"dest:WRITE:-100:7",
		"persist:WRITE",
	}, sink.calls)
}

func TestFireIntoTerminalSubmits(t *testing.T) {
	m := testMachine(t)
	sink := newRecordSink()

	next, err := m.Fire(context.Background(), "WRITE", autoTrigger("WRITE"), sink)
	require.NoError(t, err)
	assert.Equal(t, "DONE", next)
	assert.Equal(t, []string{
		"store:WRITE",
		"prompt:DONE",
		"submit",
		"persist:DONE",
	}, sink.calls)
}

func TestFireUnknownTriggerIsNoTransition(t *testing.T) {
	m := testMachine(t)
	sink := newRecordSink()

	next, err := m.Fire(context.Background(), "PICK", Trigger("Nope"), sink)
	assert.ErrorIs(t, err, ErrNoTransition)
	assert.Equal(t, "PICK", next)
	assert.Empty(t, sink.calls)
}

func TestFireHookFailureKeepsState(t *testing.T) {
	m := testMachine(t)
	sink := newRecordSink()
	sink.fail = "prompt:WRITE"

	next, err := m.Fire(context.Background(), "PICK", Trigger("Go"), sink)
	require.Error(t, err)
	assert.Equal(t, "PICK", next)
	assert.NotContains(t, sink.calls, "persist:WRITE")
}

func TestAutoTransitions(t *testing.T) {
	m := testMachine(t)

	auto := m.AutoTransitions("WRITE")
	require.Len(t, auto, 1)
	assert.Equal(t, "DONE", auto[0].Dest)

	assert.Empty(t, m.AutoTransitions("PICK"))
	// Terminal states have no outgoing transitions at all.
	assert.Empty(t, m.AutoTransitions("DONE"))
}

func TestPromptForConditionalButtons(t *testing.T) {
	def := Default(DefaultDestinations{ChatID: -1001, ReligiousTopic: 2, CulturalTopic: 3})
	m, err := NewMachine(def)
	require.NoError(t, err)

	sink := newRecordSink()
	sink.inputs[StateChooseSection] = "Religious studies"

	p, err := m.PromptFor(context.Background(), sink, StateChooseSubject)
	require.NoError(t, err)
	require.NotEmpty(t, p.Buttons)
	assert.Equal(t, "Creed", p.Buttons[0][0].Label)
}

func TestPromptForFallsBackWithoutConditionInput(t *testing.T) {
	def := Default(DefaultDestinations{ChatID: -1001, ReligiousTopic: 2, CulturalTopic: 3})
	m, err := NewMachine(def)
	require.NoError(t, err)

	p, err := m.PromptFor(context.Background(), newRecordSink(), StateChooseSubject)
	require.NoError(t, err)
	// No captured section means no conditional layout and no static one.
	assert.Empty(t, p.Buttons)
}

func TestDefaultFlowReligiousPathTransitions(t *testing.T) {
	def := Default(DefaultDestinations{ChatID: -1001, ReligiousTopic: 2, CulturalTopic: 3})
	m, err := NewMachine(def)
	require.NoError(t, err)

	tr := m.Find(StateChooseSection, Trigger("Religious studies"))
	require.NotNil(t, tr)
	assert.Equal(t, StateChooseSubject, tr.Dest)

	// Every subject jumps straight to the question.
	tr = m.Find(StateChooseSubject, Trigger("Jurisprudence"))
	require.NotNil(t, tr)
	assert.Equal(t, StateQuestion, tr.Dest)
}

func TestDefaultFlowCulturalPathTransitions(t *testing.T) {
	def := Default(DefaultDestinations{ChatID: -1001, ReligiousTopic: 2, CulturalTopic: 3})
	m, err := NewMachine(def)
	require.NoError(t, err)

	tr := m.Find(StateChooseMaterialType, Trigger("Book"))
	require.NotNil(t, tr)
	assert.Equal(t, StateBookName, tr.Dest)

	// SERIES_NAME has no explicit next, so it falls through to the
	// following state in declaration order.
	auto := m.AutoTransitions(StateSeriesName)
	require.Len(t, auto, 1)
	assert.Equal(t, StateLecture, auto[0].Dest)
}
