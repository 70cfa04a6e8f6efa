// Package openai provides a model.Reasoner backed by the OpenAI Chat
// Completions API with function/tool calling.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
)

// Options configure the OpenAI reasoner.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	Logger              logging.Logger
}

// Reasoner wraps the OpenAI Chat Completions API behind model.Reasoner.
type Reasoner struct {
	client *openai.Client
	opts   Options
}

var _ model.Reasoner = (*Reasoner)(nil)

// NewReasoner creates a reasoner using the official client configured from
// the environment (OPENAI_API_KEY, OPENAI_BASE_URL).
func NewReasoner(optFns ...func(o *Options)) *Reasoner {
	client := openai.NewClient()
	return NewReasonerFromClient(&client, optFns...)
}

// NewReasonerFromClient creates a reasoner from an existing client.
func NewReasonerFromClient(client *openai.Client, optFns ...func(o *Options)) *Reasoner {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 4096,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Reasoner{client: client, opts: opts}
}

// Invoke implements model.Reasoner.
func (r *Reasoner) Invoke(ctx context.Context, req model.Request) (model.Reply, error) {
	params := r.buildParams(req)

	start := time.Now()
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		r.opts.Logger.Error("reasoning.call.failed", "provider", "openai", "model", params.Model, "duration", time.Since(start), "error", err.Error())
		return model.Reply{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return model.Reply{}, core.NewError(core.KindModelInvocationFailed, "openai.invoke", errors.New("no choices returned"))
	}

	ch0 := resp.Choices[0]
	var reqs []core.ActionRequest
	for _, tc := range ch0.Message.ToolCalls {
		reqs = append(reqs, core.ActionRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	usage := &model.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	r.opts.Logger.Debug("reasoning.call.completed",
		"provider", "openai",
		"model", params.Model,
		"prompt_tokens", usage.PromptTokens,
		"duration", time.Since(start),
	)

	return model.Reply{
		Message:      core.NewAssistantMessage(req.Agent, ch0.Message.Content, reqs...),
		Usage:        usage,
		FinishReason: ch0.FinishReason,
	}, nil
}

func (r *Reasoner) buildParams(req model.Request) openai.ChatCompletionNewParams {
	modelID := r.opts.Model
	if req.ModelID != "" {
		modelID = req.ModelID
	}
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               modelID,
		Temperature:         openai.Float(r.opts.Temperature),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// buildMessages converts the conversation into chat messages. Tool results
// follow their assistant message as "tool" role messages.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.RespondsTo))
		case core.RoleAssistant:
			if !m.HasRequests() {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls(m.Requests),
			}
			if m.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.Content)}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		}
	}
	return messages
}

func toolCalls(reqs []core.ActionRequest) []openai.ChatCompletionMessageToolCallParam {
	calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(reqs))
	for _, r := range reqs {
		args := r.Arguments
		if args == "" {
			args = "{}"
		}
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   r.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      r.Name,
				Arguments: args,
			},
		})
	}
	return calls
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return model.ClassifyStatus("openai.invoke", apiErr.StatusCode, fmt.Errorf("openai api error: %w", err))
	}
	return model.Classify("openai.invoke", fmt.Errorf("openai api error: %w", err))
}

// Info implements model.Reasoner.
func (r *Reasoner) Info() model.Info {
	return model.Info{Name: r.opts.Model, Provider: "openai", SupportsTools: true}
}
