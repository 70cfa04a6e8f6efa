// Command agentcore is an interactive shell around the turn runner. It wires
// an OpenAI or Anthropic reasoner, a small tool catalog and a delegate agent.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/hupe1980/agentcore/config"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/runner"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("agentcore", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	provider := flags.StringP("provider", "p", "", "model provider (openai or anthropic)")
	modelID := flags.StringP("model", "m", "", "model identifier")
	logLevel := flags.String("log-level", "", "log level (debug, info, warn, error)")
	contextID := flags.String("context", "", "resume a conversation id")
	prompt := flags.String("prompt", "", "run a single turn and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	cfg.Merge(&config.Config{Provider: *provider, Model: *modelID, LogLevel: *logLevel})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Output:    os.Stderr,
		Component: "agentcore",
	})

	r, err := build(&cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *prompt != "" {
		_, err := turn(ctx, r, *contextID, *prompt)
		return err
	}
	return repl(ctx, r, *contextID)
}

func repl(ctx context.Context, r *runner.Runner, contextID string) error {
	fmt.Println("agentcore - type /reset to start over, /quit to exit")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if contextID != "" {
				if err := r.Reset(ctx, contextID); err != nil {
					fmt.Fprintln(os.Stderr, "reset:", err)
				}
			}
			contextID = ""
			continue
		}

		id, err := turn(ctx, r, contextID, line)
		if err != nil {
			return err
		}
		contextID = id
		if ctx.Err() != nil {
			return nil
		}
	}
}

func turn(ctx context.Context, r *runner.Runner, contextID, text string) (string, error) {
	res, err := r.Run(ctx, contextID, text)
	if err != nil {
		return contextID, err
	}
	fmt.Printf("\n%s\n\n", res.Answer)
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "[%s] %v\n", res.Kind, res.Err)
	}
	return res.ContextID, nil
}
