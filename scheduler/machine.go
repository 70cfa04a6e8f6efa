package scheduler

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/hupe1980/agentcore/logging"
)

// States of a turn.
const (
	StateAwaitingReasoning = "awaiting_reasoning"
	StateExecutingTools    = "executing_tools"
	StateCompressing       = "compressing"
	StateFinalizing        = "finalizing"
	StateTerminated        = "terminated"
)

// Events driving the machine.
const (
	EventReason    = "reason"
	EventAct       = "act"
	EventCompress  = "compress"
	EventFinalize  = "finalize"
	EventToolsDone = "tools_done"
	EventCompacted = "compacted"
	EventFinish    = "finish"
	EventFail      = "fail"
)

func turnEvents() fsm.Events {
	return fsm.Events{
		// Reasoning keeps the machine in AwaitingReasoning.
		{Name: EventReason, Src: []string{StateAwaitingReasoning}, Dst: StateAwaitingReasoning},
		{Name: EventAct, Src: []string{StateAwaitingReasoning}, Dst: StateExecutingTools},
		{Name: EventCompress, Src: []string{StateAwaitingReasoning}, Dst: StateCompressing},
		{Name: EventFinalize, Src: []string{StateAwaitingReasoning}, Dst: StateFinalizing},
		{Name: EventToolsDone, Src: []string{StateExecutingTools}, Dst: StateAwaitingReasoning},
		{Name: EventCompacted, Src: []string{StateCompressing}, Dst: StateAwaitingReasoning},
		{Name: EventFinish, Src: []string{StateFinalizing}, Dst: StateTerminated},
		{
			Name: EventFail,
			Src: []string{
				StateAwaitingReasoning,
				StateExecutingTools,
				StateCompressing,
				StateFinalizing,
			},
			Dst: StateTerminated,
		},
	}
}

// machine wraps the fsm with transition logging and a trace of visited states.
type machine struct {
	fsm   *fsm.FSM
	trace []string
}

func newMachine(logger logging.Logger) *machine {
	m := &machine{trace: []string{StateAwaitingReasoning}}
	m.fsm = fsm.NewFSM(
		StateAwaitingReasoning,
		turnEvents(),
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				logger.Debug("scheduler.transition",
					"event", e.Event,
					"from", e.Src,
					"to", e.Dst,
				)
			},
		},
	)
	return m
}

func (m *machine) current() string { return m.fsm.Current() }

// fire triggers event. A self transition is not an error.
func (m *machine) fire(ctx context.Context, event string) error {
	err := m.fsm.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return err
	}
	m.trace = append(m.trace, m.fsm.Current())
	return nil
}
