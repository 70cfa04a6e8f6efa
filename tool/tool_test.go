package tool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
)

func newTestContext() *Context {
	return &Context{Context: context.Background(), CallID: "call-1", Agent: "main"}
}

func echoTool(name string) *FunctionTool {
	return NewFunctionTool(name, "echo", map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []string{"text"},
	}, func(_ *Context, args map[string]any) (any, error) {
		return args["text"], nil
	})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	res, err := echoTool("echo").Call(newTestContext(), map[string]any{"text": "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "hi", res)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := echoTool("echo").Call(newTestContext(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)

	var vErr *ValidationError
	require.True(t, errors.As(toolErr.Details.(error), &vErr))
	assert.Equal(t, "text", vErr.Field)
}

func TestFunctionTool_ExecutionErrorWrapped(t *testing.T) {
	ft := NewFunctionTool("boom", "", nil, func(*Context, map[string]any) (any, error) {
		return nil, errors.New("kaput")
	})
	_, err := ft.Call(newTestContext(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "tool error [EXECUTION_ERROR] in boom: kaput", toolErr.Error())
}

func TestFunctionTool_ToolErrorForwarded(t *testing.T) {
	orig := NewToolError("custom", "nope", "CUSTOM")
	ft := NewFunctionTool("custom", "", nil, func(*Context, map[string]any) (any, error) { return nil, orig })
	_, err := ft.Call(newTestContext(), nil)
	assert.Same(t, orig, err)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"search terms"`
		Limit int    `json:"limit,omitempty"`
	}
	ft := NewFunctionToolFromStruct("search", "Search", args{}, func(*Context, map[string]any) (any, error) { return "ok", nil })
	props := ft.Parameters()["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
	assert.Equal(t, []string{"query"}, ft.Parameters()["required"])
}

// -------------------- Catalog Tests --------------------

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(echoTool("a"), echoTool("b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Names())

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("zzz")
	assert.False(t, ok)

	defs := c.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "a", defs[0].Function.Name)

	defs = c.Definitions("b", "missing")
	require.Len(t, defs, 1)
	assert.Equal(t, "b", defs[0].Function.Name)
}

func TestCatalog_Subset(t *testing.T) {
	c := MustCatalog(echoTool("a"), echoTool("b"), echoTool("c"))
	sub := c.Subset("c", "a", "missing", "a")
	assert.Equal(t, []string{"c", "a"}, sub.Names())
	_, ok := sub.Get("b")
	assert.False(t, ok)
	assert.Same(t, c, c.Subset())
}

func TestCatalog_Duplicate(t *testing.T) {
	_, err := NewCatalog(echoTool("a"), echoTool("a"))
	assert.ErrorIs(t, err, ErrDuplicateTool)
	assert.Panics(t, func() { MustCatalog(echoTool("a"), echoTool("a")) })
}

func TestCatalog_Nil(t *testing.T) {
	var c *Catalog
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Nil(t, c.Names())
	assert.Nil(t, c.Definitions())
}

// -------------------- Executor Tests --------------------

func TestParallelExecutor_OneResultPerRequestInOrder(t *testing.T) {
	slow := NewFunctionTool("slow", "", nil, func(tc *Context, _ map[string]any) (any, error) {
		time.Sleep(30 * time.Millisecond)
		return map[string]any{"id": tc.CallID}, nil
	})
	fast := NewFunctionTool("fast", "", nil, func(*Context, map[string]any) (any, error) { return "fast", nil })
	inv := Invocation{Agent: "main", ContextID: "ctx", Catalog: MustCatalog(slow, fast)}

	reqs := []core.ActionRequest{
		{ID: "r1", Name: "slow"},
		{ID: "r2", Name: "fast"},
		{ID: "r3", Name: "missing"},
		{ID: "r4", Name: "fast", Arguments: "{not json"},
	}
	out, err := NewParallelExecutor().Execute(context.Background(), inv, reqs)
	require.NoError(t, err)
	require.Len(t, out, len(reqs))

	for i, m := range out {
		assert.Equal(t, core.RoleTool, m.Role)
		assert.Equal(t, reqs[i].ID, m.RespondsTo)
		assert.Equal(t, reqs[i].Name, m.Name)
		assert.Equal(t, "main", m.Author)
	}
	assert.JSONEq(t, `{"id":"r1"}`, out[0].Content)
	assert.Equal(t, "fast", out[1].Content)
	assert.False(t, out[1].IsError)
	assert.True(t, out[2].IsError)
	assert.Contains(t, out[2].Content, "not found")
	assert.True(t, out[3].IsError)
	assert.Contains(t, out[3].Content, "unmarshal")
}

func TestParallelExecutor_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	tl := NewFunctionTool("t", "", nil, func(*Context, map[string]any) (any, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	})
	reqs := make([]core.ActionRequest, 10)
	for i := range reqs {
		reqs[i] = core.ActionRequest{ID: core.NewID(), Name: "t"}
	}
	ex := NewParallelExecutor(func(o *ExecutorOptions) { o.MaxParallel = 2 })
	out, err := ex.Execute(context.Background(), Invocation{Catalog: MustCatalog(tl)}, reqs)
	require.NoError(t, err)
	assert.Len(t, out, 10)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestParallelExecutor_PanicBecomesErrorResult(t *testing.T) {
	p := NewFunctionTool("p", "", nil, func(*Context, map[string]any) (any, error) { panic("boom") })
	out, err := NewParallelExecutor().Execute(context.Background(),
		Invocation{Catalog: MustCatalog(p)}, []core.ActionRequest{{ID: "r1", Name: "p"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsError)
	assert.Contains(t, out[0].Content, "panicked")
}

func TestParallelExecutor_PerActionTimeout(t *testing.T) {
	block := NewFunctionTool("block", "", nil, func(*Context, map[string]any) (any, error) {
		time.Sleep(time.Second)
		return "late", nil
	})
	ex := NewParallelExecutor(func(o *ExecutorOptions) { o.Timeout = 20 * time.Millisecond })
	out, err := ex.Execute(context.Background(),
		Invocation{Catalog: MustCatalog(block)}, []core.ActionRequest{{ID: "r1", Name: "block"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsError)
	assert.Contains(t, out[0].Content, "timed out")
}

func TestParallelExecutor_CancelledContextFailsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParallelExecutor().Execute(ctx,
		Invocation{Catalog: MustCatalog(echoTool("echo"))}, []core.ActionRequest{{ID: "r1", Name: "echo"}})
	require.Error(t, err)
	assert.Equal(t, core.KindActionExecutionFailed, core.KindOf(err))
}

func TestParallelExecutor_Empty(t *testing.T) {
	out, err := NewParallelExecutor().Execute(context.Background(), Invocation{}, nil)
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"bytes", []byte("y"), "y"},
		{"number", 42, "42"},
		{"map", map[string]int{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stringify(tt.in))
		})
	}
}

// -------------------- Delegate Tool Tests --------------------

func TestDelegateTool(t *testing.T) {
	dt := NewDelegateTool([]core.AgentDescriptor{
		{ID: "simple", Name: "Simple", Description: "answers quickly", Invocable: true},
		{ID: "research", Skills: []string{"web"}, Invocable: true},
	})
	assert.Equal(t, DelegateToolName, dt.Name())
	assert.Contains(t, dt.Description(), "- simple (Simple): answers quickly")
	assert.Contains(t, dt.Description(), "- research [skills: web]")

	agentProp := dt.Parameters()["properties"].(map[string]any)["agent"].(map[string]any)
	assert.Equal(t, []string{"simple", "research"}, agentProp["enum"])

	_, err := dt.Call(newTestContext(), map[string]any{"agent": "simple", "task": "x"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
}

func TestParseDelegateArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    DelegateArgs
		wantErr bool
	}{
		{"valid", `{"agent":" simple ","task":"do it"}`, DelegateArgs{Agent: "simple", Task: "do it"}, false},
		{"missing agent", `{"task":"do it"}`, DelegateArgs{}, true},
		{"missing task", `{"agent":"simple"}`, DelegateArgs{}, true},
		{"bad json", `{`, DelegateArgs{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := core.ActionRequest{ID: "r", Name: DelegateToolName, Arguments: tt.args}
			assert.True(t, IsDelegation(req))
			got, err := ParseDelegateArgs(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
