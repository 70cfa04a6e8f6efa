package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentcore/core"
)

// ErrScriptExhausted is returned when a ScriptedReasoner has no steps left.
var ErrScriptExhausted = errors.New("scripted reasoner: no steps left")

// Step produces one scripted reply. It sees the request so tests can assert
// on what the scheduler sent.
type Step func(req Request) (Reply, error)

// ScriptedReasoner replays a fixed sequence of steps. It is safe for
// concurrent use and records every request it receives.
type ScriptedReasoner struct {
	mu       sync.Mutex
	steps    []Step
	requests []Request
	info     Info
}

var _ Reasoner = (*ScriptedReasoner)(nil)

// NewScriptedReasoner creates a reasoner that replays steps in order.
func NewScriptedReasoner(steps ...Step) *ScriptedReasoner {
	return &ScriptedReasoner{
		steps: steps,
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
	}
}

// Then appends further steps (chainable).
func (s *ScriptedReasoner) Then(steps ...Step) *ScriptedReasoner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
	return s
}

// Invoke implements Reasoner.
func (s *ScriptedReasoner) Invoke(ctx context.Context, req Request) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, Classify("scripted.invoke", err)
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return Reply{}, core.NewError(core.KindModelInvocationFailed, "scripted.invoke", ErrScriptExhausted)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	reply, err := step(req)
	if err != nil {
		return Reply{}, err
	}
	if reply.Message.Author == "" {
		reply.Message.Author = req.Agent
	}
	return reply, nil
}

// Info implements Reasoner.
func (s *ScriptedReasoner) Info() Info { return s.info }

// Requests returns a copy of the requests received so far.
func (s *ScriptedReasoner) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Remaining returns the number of unused steps.
func (s *ScriptedReasoner) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// Answer is a Step replying with plain text.
func Answer(text string) Step {
	return AnswerWithUsage(text, 0)
}

// AnswerWithUsage is a Step replying with plain text and the given prompt usage.
func AnswerWithUsage(text string, promptTokens int) Step {
	return func(req Request) (Reply, error) {
		return Reply{
			Message: core.NewAssistantMessage(req.Agent, text),
			Usage:   &TokenUsage{PromptTokens: promptTokens, CompletionTokens: 1, TotalTokens: promptTokens + 1},
		}, nil
	}
}

// Call is a Step requesting the given actions.
func Call(reqs ...core.ActionRequest) Step {
	return CallWithUsage(0, reqs...)
}

// CallWithUsage is like Call and reports promptTokens of usage.
func CallWithUsage(promptTokens int, reqs ...core.ActionRequest) Step {
	return func(req Request) (Reply, error) {
		return Reply{
			Message: core.NewAssistantMessage(req.Agent, "", reqs...),
			Usage:   &TokenUsage{PromptTokens: promptTokens, CompletionTokens: 1, TotalTokens: promptTokens + 1},
		}, nil
	}
}

// Fail is a Step returning err.
func Fail(err error) Step {
	return func(Request) (Reply, error) { return Reply{}, err }
}
