// Package anthropic provides a model.Reasoner backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
)

// Options configures the Anthropic reasoner.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Logger      logging.Logger
}

// Reasoner wraps the Anthropic Messages API behind model.Reasoner.
type Reasoner struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Reasoner = (*Reasoner)(nil)

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
		Logger:      logging.NoOpLogger{},
	}
}

// NewReasoner creates a reasoner using the official client.
func NewReasoner(optFns ...func(o *Options)) *Reasoner {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Reasoner{client: &client, opts: opts}
}

// NewReasonerFromClient creates a reasoner from an existing client.
func NewReasonerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Reasoner {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Reasoner{client: client, opts: opts}
}

// Invoke implements model.Reasoner.
func (r *Reasoner) Invoke(ctx context.Context, req model.Request) (model.Reply, error) {
	modelID := r.opts.Model
	if req.ModelID != "" {
		modelID = anthropic.Model(req.ModelID)
	}
	params := anthropic.MessageNewParams{
		Model:       modelID,
		Messages:    buildMessages(req.Messages, len(req.Tools) > 0),
		MaxTokens:   r.opts.MaxTokens,
		Temperature: anthropic.Float(r.opts.Temperature),
	}
	if system := systemBlocks(req); len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		r.opts.Logger.Error("reasoning.call.failed", "provider", "anthropic", "model", string(modelID), "error", err.Error())
		return model.Reply{}, classify(err)
	}

	var text strings.Builder
	var reqs []core.ActionRequest
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args := "{}"
			if len(tu.Input) > 0 {
				args = string(tu.Input)
			}
			reqs = append(reqs, core.ActionRequest{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}
	return model.Reply{
		Message: core.NewAssistantMessage(req.Agent, text.String(), reqs...),
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		FinishReason: finishReason,
	}, nil
}

// systemBlocks collects the request system prompt and every system message
// of the history; the Messages API takes them out of band.
func systemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.SystemPrompt != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		if m.IsSystem() && m.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	return blocks
}

// continuation opens the transcript when compaction left an assistant
// message first; the Messages API requires a leading user turn.
const continuation = "(continuing the conversation)"

// buildMessages converts the history into alternating user/assistant turns.
// Tool results become tool_result blocks of the following user turn and
// adjacent messages of the same role are merged. Without tools the API rejects
// tool blocks, so earlier calls and results are rendered as text instead.
func buildMessages(msgs []core.Message, withTools bool) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	appendBlocks := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, m := range msgs {
		switch m.Role {
		case core.RoleSystem:
			continue
		case core.RoleUser:
			if m.Content != "" {
				appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(m.Content))
			}
		case core.RoleTool:
			if !withTools {
				appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(fmt.Sprintf("[result of %s]\n%s", m.Name, m.Content)))
				continue
			}
			appendBlocks(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(m.RespondsTo, m.Content, m.IsError))
		case core.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, r := range m.Requests {
				if !withTools {
					blocks = append(blocks, anthropic.NewTextBlock(fmt.Sprintf("[called %s with %s]", r.Name, r.Arguments)))
					continue
				}
				var input any = map[string]any{}
				if r.Arguments != "" {
					if err := json.Unmarshal([]byte(r.Arguments), &input); err != nil {
						input = map[string]any{"raw": r.Arguments}
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(r.ID, input, r.Name))
			}
			appendBlocks(anthropic.MessageParamRoleAssistant, blocks...)
		}
	}
	if len(out) > 0 && out[0].Role == anthropic.MessageParamRoleAssistant {
		lead := anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(continuation)},
		}
		out = append([]anthropic.MessageParam{lead}, out...)
	}
	return out
}

func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if params := tool.Function.Parameters; params != nil {
			if properties, ok := params["properties"]; ok {
				schema.Properties = properties
			}
			schema.Required = requiredList(params["required"])
		}
		out[i] = anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
		if tool.Function.Description != "" && out[i].OfTool != nil {
			out[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}
	return out
}

func requiredList(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return model.ClassifyStatus("anthropic.invoke", apiErr.StatusCode, fmt.Errorf("anthropic api error: %w", err))
	}
	return model.Classify("anthropic.invoke", fmt.Errorf("anthropic api error: %w", err))
}

// Info implements model.Reasoner.
func (r *Reasoner) Info() model.Info {
	return model.Info{Name: string(r.opts.Model), Provider: "anthropic", SupportsTools: true}
}
