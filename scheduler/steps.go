package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/budget"
	"github.com/hupe1980/agentcore/compaction"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/delegation"
	"github.com/hupe1980/agentcore/history"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/tool"
)

// limitFallback is used when the final tool-less call returns no text.
const limitFallback = "I reached the step limit for this request before finishing. Please narrow the request or try again."

// extraDelegation answers delegation requests beyond the first of a batch.
const extraDelegation = "Only one delegation per step is allowed; this request was ignored."

// resolve returns the descriptor of the active agent. The root agent always
// resolves, with defaults when the registry does not describe it.
func (s *Scheduler) resolve(id string) (core.AgentDescriptor, error) {
	desc, err := s.opts.Registry.Resolve(id)
	if err == nil {
		return desc, nil
	}
	if id == core.RootAgent && errors.Is(err, core.ErrAgentNotFound) {
		return core.AgentDescriptor{ID: core.RootAgent, Name: core.RootAgent}, nil
	}
	return core.AgentDescriptor{}, core.NewError(core.KindUnexpected, "scheduler.resolve", err)
}

// request assembles the reasoning request for the active agent. Messages are
// sanitized so the model never sees an unanswered request.
func (s *Scheduler) request(state core.ConversationState, withTools bool) (model.Request, error) {
	desc, err := s.resolve(state.ActiveAgent)
	if err != nil {
		return model.Request{}, err
	}
	delegates := agent.Delegates(s.opts.Registry, desc.ID)
	prompt, err := agent.RenderInstruction(desc, delegates, state)
	if err != nil {
		return model.Request{}, core.NewError(core.KindUnexpected, "scheduler.instruction", err)
	}
	req := model.Request{
		ModelID:      state.ModelID,
		Agent:        desc.ID,
		SystemPrompt: prompt,
		Messages:     history.Sanitize(state.Messages),
	}
	if withTools {
		req.Tools = s.opts.Catalog.Definitions(desc.Tools...)
		if len(delegates) > 0 {
			req.Tools = append(req.Tools, tool.Definition(tool.NewDelegateTool(delegates)))
		}
	}
	return req, nil
}

// reason performs one reasoning call, folds its usage into the budget
// counters and appends the reply.
func (s *Scheduler) reason(ctx context.Context, log logging.Logger, state core.ConversationState, withTools bool) (core.ConversationState, error) {
	req, err := s.request(state, withTools)
	if err != nil {
		return state, err
	}
	start := time.Now()
	reply, err := s.invoke(ctx, req)
	if err != nil {
		logging.LogReasoningCall(log, req.ModelID, 0, 0, time.Since(start), err)
		return state, err
	}

	prompt, completion := s.usage(req, reply)
	logging.LogReasoningCall(log, req.ModelID, prompt, completion, time.Since(start), nil)
	obs := s.opts.Budget.Observe(state, prompt, completion)
	next := budget.Apply(state, obs)

	msg := reply.Message
	msg.Role = core.RoleAssistant
	msg.Author = req.Agent
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if !withTools {
		msg.Requests = nil
	}
	for i := range msg.Requests {
		if msg.Requests[i].ID == "" {
			msg.Requests[i].ID = core.NewID()
		}
	}
	return next.AppendMessages(msg), nil
}

func (s *Scheduler) invoke(ctx context.Context, req model.Request) (model.Reply, error) {
	if s.opts.ReasoningTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ReasoningTimeout)
		defer cancel()
	}
	reply, err := s.reasoner.Invoke(ctx, req)
	if err != nil {
		return model.Reply{}, model.Classify("reasoning.invoke", err)
	}
	return reply, nil
}

// usage returns the reply's token usage, estimating it with the counter when
// the reasoner reported none.
func (s *Scheduler) usage(req model.Request, reply model.Reply) (prompt, completion int) {
	if reply.Usage != nil {
		return reply.Usage.PromptTokens, reply.Usage.CompletionTokens
	}
	if n, err := budget.CountMessages(s.opts.Counter, req.ModelID, req.Messages); err == nil {
		prompt = n
	}
	if n, err := s.opts.Counter.CountTokens(req.ModelID, req.SystemPrompt); err == nil {
		prompt += n
	}
	if n, err := budget.CountMessages(s.opts.Counter, req.ModelID, []core.Message{reply.Message}); err == nil {
		completion = n
	}
	return prompt, completion
}

// executeTools answers every pending request of the last assistant message.
// Ordinary requests go to the executor; the first delegation request runs a
// nested turn; further delegation requests are answered with an error.
func (s *Scheduler) executeTools(ctx context.Context, t *turn) error {
	pending := history.PendingRequests(t.state.Messages)
	if len(pending) == 0 {
		return nil
	}
	desc, err := s.resolve(t.state.ActiveAgent)
	if err != nil {
		return err
	}

	var (
		actions    []core.ActionRequest
		delegateTo *core.ActionRequest
		results    = make(map[string]core.Message, len(pending))
	)
	for i, req := range pending {
		switch {
		case !tool.IsDelegation(req):
			actions = append(actions, req)
		case delegateTo == nil:
			delegateTo = &pending[i]
		default:
			t.logger.Warn("scheduler.delegation.extra", "call_id", req.ID)
			results[req.ID] = core.NewToolResult(desc.ID, req, "Error: "+extraDelegation, true)
		}
	}

	if len(actions) > 0 {
		inv := tool.Invocation{
			Agent:     desc.ID,
			ContextID: t.state.ContextID,
			Catalog:   s.opts.Catalog.Subset(desc.Tools...),
		}
		msgs, err := s.opts.Executor.Execute(ctx, inv, actions)
		if err != nil {
			if core.KindOf(err) == core.KindUnexpected {
				err = core.NewError(core.KindActionExecutionFailed, "tool.execute", err)
			}
			return err
		}
		for _, m := range s.opts.Results.Apply(ctx, msgs) {
			results[m.RespondsTo] = m
		}
	}

	if delegateTo != nil {
		msg, err := s.delegate(ctx, t, *delegateTo)
		if err != nil {
			return err
		}
		results[delegateTo.ID] = msg
	}

	ordered := make([]core.Message, 0, len(pending))
	for _, req := range pending {
		m, ok := results[req.ID]
		if !ok {
			m = core.NewToolResult(desc.ID, req, "Error: no result was produced for this action", true)
		}
		ordered = append(ordered, m)
	}
	t.state = t.state.AppendMessages(ordered...)
	return nil
}

// delegate handles one delegation request. Rejections become error results
// and leave the stack untouched. An accepted delegate runs a nested turn on
// an isolated child state; the call stack is popped on every exit path.
func (s *Scheduler) delegate(ctx context.Context, t *turn, req core.ActionRequest) (core.Message, error) {
	caller := t.state.ActiveAgent
	args, err := tool.ParseDelegateArgs(req)
	if err != nil {
		return core.NewToolResult(caller, req, "Error: "+err.Error(), true), nil
	}

	switch v := s.opts.Delegation.RequestTransfer(t.state, args.Agent, args.Task).(type) {
	case delegation.Rejected:
		t.logger.Warn("scheduler.delegation.rejected",
			"from", caller,
			"to", args.Agent,
			"error", v.Err().Error(),
		)
		return core.NewToolResult(caller, req, v.Reason, true), nil
	case delegation.Accepted:
		return s.runDelegate(ctx, t, req, v.Delta)
	default:
		return core.Message{}, core.NewError(core.KindUnexpected, "scheduler.delegate", fmt.Errorf("unknown verdict %T", v))
	}
}

func (s *Scheduler) runDelegate(ctx context.Context, t *turn, req core.ActionRequest, d delegation.Delta) (msg core.Message, err error) {
	t.state = delegation.Apply(t.state, d)
	defer func() {
		t.state = delegation.Complete(t.state, d.Target)
	}()

	t.logger.Info("scheduler.delegation.start",
		"to", d.Target,
		"depth", len(d.CallStack),
	)
	child := delegation.ChildState(t.state, d)
	out := s.Run(ctx, child)

	if n := len(out.State.CallHistory); n > len(t.state.CallHistory) {
		t.state.CallHistory = append([]string(nil), out.State.CallHistory...)
	}
	t.logger.Info("scheduler.delegation.complete",
		"child_context_id", child.ContextID,
		"to", d.Target,
		"reason", out.Reason,
		"error", out.Err != nil,
	)

	if out.Err != nil {
		if ctx.Err() != nil {
			return core.Message{}, out.Err
		}
		res := d.Answer(req, "The agent could not complete the task: "+out.Answer)
		res.IsError = true
		return res, nil
	}
	return d.Answer(req, out.Answer), nil
}

// compress replaces the history through the compaction executor, falling
// back to emergency truncation on any failure or invalid result. Counters are
// reset and the turn is marked compacted either way. A trailing batch of
// pending requests is held out of compaction and re-appended, so the tools
// the model just asked for still run.
func (s *Scheduler) compress(ctx context.Context, t *turn) {
	settled, inflight := history.SplitInFlight(t.state.Messages)
	msgs := history.Sanitize(settled)
	in := compaction.Input{
		ModelID:       t.state.ModelID,
		Messages:      msgs,
		Invoke:        s.summaryInvoke(t.state),
		ContextWindow: s.opts.Budget.ContextWindow(t.state.ModelID),
	}

	r, err := s.safeCompact(ctx, t.logger, in)
	if err == nil {
		err = compaction.Validate(r, in)
	}
	if err != nil {
		t.logger.Warn("scheduler.compaction.fallback",
			"error", err.Error(),
		)
		r = compaction.EmergencyTruncate(msgs, s.opts.FallbackKeep, s.opts.Counter, t.state.ModelID)
	}

	t.logger.Info("scheduler.compaction",
		"strategy", r.Strategy,
		"before_count", r.BeforeCount,
		"after_count", r.AfterCount,
		"before_tokens", r.BeforeTokens,
		"after_tokens", r.AfterTokens,
		"inflight", len(inflight),
	)
	compacted := append(core.CloneMessages(r.Messages), inflight...)
	next := t.state.ReplaceMessages(compacted).WithTokens(0, 0)
	next.CompactedThisTurn = true
	t.state = next
}

func (s *Scheduler) safeCompact(ctx context.Context, log logging.Logger, in compaction.Input) (r compaction.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = core.NewError(core.KindUnexpected, "compaction.compact", fmt.Errorf("panic: %v", rec))
			logging.ErrorWithStack(log, err, "scheduler.compaction.panic")
		}
	}()
	if s.opts.CompactionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CompactionTimeout)
		defer cancel()
	}
	return s.opts.Compactor.Compact(ctx, in)
}

// summaryInvoke adapts the reasoner to the compaction callback: one tool-less
// call under the compaction prompt.
func (s *Scheduler) summaryInvoke(state core.ConversationState) compaction.InvokeFunc {
	return func(ctx context.Context, systemPrompt string, msgs []core.Message) (string, error) {
		reply, err := s.invoke(ctx, model.Request{
			ModelID:      state.ModelID,
			Agent:        state.ActiveAgent,
			SystemPrompt: systemPrompt,
			Messages:     msgs,
		})
		if err != nil {
			return "", err
		}
		return reply.Message.Content, nil
	}
}

// finalize produces the user-visible answer. A turn that hit the loop limit
// gets one more reasoning call without tools. An answered turn deliberately
// skips that call and reuses the last assistant message, which already is a
// tool-less answer.
func (s *Scheduler) finalize(ctx context.Context, t *turn) error {
	if t.reason == FinishAnswered {
		if last, ok := core.LastAssistant(t.state.Messages); ok {
			t.answer = last.Content
			return nil
		}
	}

	t.logger.Info("scheduler.limit_reached",
		"loops", t.state.LoopCount,
		"pending", len(history.PendingRequests(t.state.Messages)),
	)
	state, err := s.reason(ctx, t.logger, t.state, false)
	if err != nil {
		return err
	}
	last, _ := core.LastAssistant(state.Messages)
	if strings.TrimSpace(last.Content) == "" {
		last.Content = limitFallback
		state.Messages[len(state.Messages)-1] = last
	}
	t.state = state
	t.answer = last.Content
	return nil
}
