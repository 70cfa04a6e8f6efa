package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/budget"
	"github.com/hupe1980/agentcore/compaction"
	"github.com/hupe1980/agentcore/config"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/delegation"
	"github.com/hupe1980/agentcore/fanout"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
	anthropicmodel "github.com/hupe1980/agentcore/model/anthropic"
	openaimodel "github.com/hupe1980/agentcore/model/openai"
	"github.com/hupe1980/agentcore/runner"
	"github.com/hupe1980/agentcore/scheduler"
	"github.com/hupe1980/agentcore/session"
	"github.com/hupe1980/agentcore/tool"
)

const tokenCacheSize = 4096

func build(cfg *config.Config, logger *logging.CoreLogger) (*runner.Runner, error) {
	reasoner, err := newReasoner(cfg, logger.WithComponent("model"))
	if err != nil {
		return nil, err
	}

	registry, err := agent.NewRegistry(
		core.AgentDescriptor{
			ID:          core.RootAgent,
			Name:        "Assistant",
			Instruction: "You are a helpful assistant. Use tools when they help and delegate focused sub-tasks.",
		},
		core.AgentDescriptor{
			ID:          "math",
			Name:        "Math specialist",
			Description: "Solves arithmetic step by step.",
			Skills:      []string{"arithmetic", "unit conversion"},
			Invocable:   true,
			Instruction: "You solve math problems. Use the calculator for every computation.",
			Tools:       []string{"calculator"},
		},
	)
	if err != nil {
		return nil, err
	}

	catalog, err := tool.NewCatalog(newCalculator(), newClock())
	if err != nil {
		return nil, err
	}

	counter, err := budget.NewCachedCounter(budget.NewTiktokenCounter(), tokenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("token counter: %w", err)
	}

	sched := scheduler.New(reasoner,
		scheduler.WithRegistry(registry),
		scheduler.WithCatalog(catalog),
		scheduler.WithCounter(counter),
		scheduler.WithExecutor(tool.NewParallelExecutor(func(o *tool.ExecutorOptions) {
			o.MaxParallel = cfg.MaxParallelTools
			o.Timeout = cfg.ActionTimeout
			o.Logger = logger.WithComponent("tool")
		})),
		scheduler.WithDelegation(delegation.NewController(
			delegation.WithRegistry(registry),
			delegation.WithMaxDepth(cfg.MaxDepth),
			delegation.WithLogger(logger.WithComponent("delegation")),
		)),
		scheduler.WithBudget(budget.NewController(
			budget.WithCriticalFraction(cfg.CriticalFraction),
			budget.WithWindows(budget.NewStaticWindows(cfg.DefaultContextWindow, cfg.ContextWindows)),
			budget.WithLogger(logger.WithComponent("budget")),
		)),
		scheduler.WithCompactor(compaction.NewSummarizer(func(o *compaction.SummarizerOptions) {
			o.KeepRecent = cfg.KeepRecent
			o.Timeout = cfg.CompactionTimeout
			o.Counter = counter
			o.Logger = logger.WithComponent("compaction")
		})),
		scheduler.WithResultProcessor(fanout.NewResultProcessor(func(p *fanout.ResultProcessor) {
			p.MaxResultChars = cfg.MaxResultChars
			p.Limit = cfg.FanoutLimit
		})),
		scheduler.WithLogger(logger.WithComponent("scheduler")),
		func(o *scheduler.Options) {
			o.FallbackKeep = cfg.FallbackKeep
			o.CompactionTimeout = cfg.CompactionTimeout
		},
	)

	return runner.New(sched, func(o *runner.Options) {
		o.ModelID = cfg.Model
		o.LoopLimit = cfg.LoopLimit
		o.Store = session.NewInMemoryStore()
		o.Logger = logger.WithComponent("runner")
	}), nil
}

func newReasoner(cfg *config.Config, logger logging.Logger) (model.Reasoner, error) {
	var base model.Reasoner
	switch cfg.Provider {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		base = openaimodel.NewReasoner(func(o *openaimodel.Options) {
			o.Model = cfg.Model
			o.Logger = logger
		})
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		base = anthropicmodel.NewReasoner(func(o *anthropicmodel.Options) {
			o.Model = anthropic.Model(cfg.Model)
			o.APIKey = key
			o.Logger = logger
		})
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	return model.NewRetrying(base,
		model.WithTimeout(cfg.ReasoningTimeout),
		model.WithRetries(cfg.RetryAttempts, cfg.RetryBackoff, cfg.RetryMaxBackoff),
		model.WithRetryLogger(logger),
	), nil
}

type calculatorArgs struct {
	Operation string  `json:"operation" description:"operation to apply" enum:"add,subtract,multiply,divide,power,sqrt"`
	A         float64 `json:"a" description:"first operand"`
	B         float64 `json:"b,omitempty" description:"second operand, unused for sqrt"`
}

func newCalculator() tool.Tool {
	return tool.NewFunctionToolFromStruct("calculator", "Perform basic math operations", calculatorArgs{},
		func(_ *tool.Context, args map[string]any) (any, error) {
			op, _ := args["operation"].(string)
			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)
			switch op {
			case "add":
				return a + b, nil
			case "subtract":
				return a - b, nil
			case "multiply":
				return a * b, nil
			case "divide":
				if b == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				return a / b, nil
			case "power":
				return math.Pow(a, b), nil
			case "sqrt":
				if a < 0 {
					return nil, fmt.Errorf("sqrt of negative number")
				}
				return math.Sqrt(a), nil
			}
			return nil, fmt.Errorf("unsupported operation %q", op)
		})
}

func newClock() tool.Tool {
	return tool.NewFunctionTool("current_time", "Return the current time in RFC 3339",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *tool.Context, _ map[string]any) (any, error) {
			return time.Now().Format(time.RFC3339), nil
		})
}
