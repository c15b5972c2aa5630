package state_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"pipelined.dev/pipeline/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type changeFuncMock struct {
	sync.Mutex
	changes []state.Change
	failOn  state.Change
	err     error
}

func (m *changeFuncMock) fn() state.ChangeFunc {
	return func(c state.Change) error {
		m.Lock()
		defer m.Unlock()
		if c == m.failOn {
			return m.err
		}
		m.changes = append(m.changes, c)
		return nil
	}
}

func TestSteps(t *testing.T) {
	assert.Equal(t, []state.Change{
		{From: state.Null, To: state.Ready},
		{From: state.Ready, To: state.Paused},
		{From: state.Paused, To: state.Playing},
	}, state.Steps(state.Null, state.Playing))
	assert.Equal(t, []state.Change{
		{From: state.Playing, To: state.Paused},
		{From: state.Paused, To: state.Ready},
	}, state.Steps(state.Playing, state.Ready))
	assert.Empty(t, state.Steps(state.Paused, state.Paused))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "Null", state.Null.String())
	assert.Equal(t, "Playing", state.Playing.String())
	assert.Equal(t, "Ready->Paused", state.Change{From: state.Ready, To: state.Paused}.String())
	assert.Equal(t, "State(42)", state.State(42).String())
}

func TestLoop(t *testing.T) {
	m := &changeFuncMock{}
	h := state.NewHandle(m.fn())
	go state.Loop(h)
	assert.Equal(t, state.Null, h.Current())

	set := func(s state.State) error {
		f := state.NewFeedback()
		h.Eventc <- state.Set{State: s, Feedback: f}
		return state.Wait(f)
	}
	assert.Nil(t, set(state.Playing))
	assert.Equal(t, state.Playing, h.Current())
	assert.Equal(t, state.VoidPending, h.Pending())

	assert.True(t, errors.Is(set(state.VoidPending), state.ErrInvalidState))
	assert.Equal(t, state.Playing, h.Current())

	f := state.NewFeedback()
	h.Eventc <- state.Close{Feedback: f}
	assert.Nil(t, state.Wait(f))
	assert.Equal(t, state.Null, h.Current())

	assert.Equal(t, []state.Change{
		{From: state.Null, To: state.Ready},
		{From: state.Ready, To: state.Paused},
		{From: state.Paused, To: state.Playing},
		{From: state.Playing, To: state.Paused},
		{From: state.Paused, To: state.Ready},
		{From: state.Ready, To: state.Null},
	}, m.changes)
}

func TestLoopFailedChange(t *testing.T) {
	errChange := errors.New("change failed")
	m := &changeFuncMock{
		failOn: state.Change{From: state.Ready, To: state.Paused},
		err:    errChange,
	}
	h := state.NewHandle(m.fn())
	go state.Loop(h)

	f := state.NewFeedback()
	h.Eventc <- state.Set{State: state.Playing, Feedback: f}
	assert.Equal(t, errChange, state.Wait(f))
	assert.Equal(t, state.Ready, h.Current())

	f = state.NewFeedback()
	h.Eventc <- state.Close{Feedback: f}
	assert.Nil(t, state.Wait(f))
	assert.Equal(t, state.Null, h.Current())
}
