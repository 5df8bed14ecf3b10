package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/petasbytes/go-chat/internal/config"
	"github.com/petasbytes/go-chat/internal/provider"
	"github.com/petasbytes/go-chat/internal/render"
	"github.com/petasbytes/go-chat/internal/reply"
	"github.com/petasbytes/go-chat/internal/runner"
	"github.com/petasbytes/go-chat/internal/safety"
	"github.com/petasbytes/go-chat/internal/telemetry"
	"github.com/petasbytes/go-chat/memory"
)

const examples = `
Examples:
  chat "What's the weather in Paris?"
  chat "Tell me more about that" --no-web-search
  chat --model gpt-4.1 "Summarise our conversation"
  chat --clear
`

func main() {
	// Ctrl-C / SIGTERM cancel the in-flight request.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	prompt      string
	clear       bool
	noWebSearch bool
	raw         bool
	model       string
	configPath  string
}

func newFlagSet(stderr io.Writer, opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.clear, "clear", false, "clear conversation history and start fresh")
	fs.BoolVar(&opts.noWebSearch, "no-web-search", false, "disable the web search tool")
	fs.StringVar(&opts.model, "model", "", "model to use (default "+provider.DefaultModel+")")
	fs.BoolVar(&opts.raw, "raw", false, "print the reply verbatim instead of rendering Markdown")
	fs.StringVar(&opts.configPath, "config", "", "TOML config file (default "+config.DefaultFile+" if present)")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage: chat [flags] [prompt]")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Chat with OpenAI using the Responses API with conversation memory.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Flags:")
		fs.PrintDefaults()
		fmt.Fprint(out, examples)
	}
	return fs
}

// parseArgs accepts flags before and after the prompt. Everything after "--"
// is positional.
func parseArgs(fs *flag.FlagSet, args []string, opts *options) error {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			positional = append(positional, rest...)
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
	if len(positional) > 1 {
		err := fmt.Errorf("expected a single prompt argument, got %d (quote the prompt)", len(positional))
		fmt.Fprintln(fs.Output(), err)
		fs.Usage()
		return err
	}
	if len(positional) == 1 {
		opts.prompt = positional[0]
	}
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	var opts options
	fs := newFlagSet(stderr, &opts)
	if err := parseArgs(fs, args, &opts); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if !opts.clear {
			render.New(stdout, stderr, render.Options{}).Error(err)
			return 1
		}
		// Clearing needs nothing but the state file location.
		render.New(stdout, stderr, render.Options{}).Warning("ignoring configuration: %v", err)
		cfg = config.Default()
		cfg.StateFile = config.StatePath(opts.configPath)
	}

	ropts := render.Options{}
	if f, ok := stdout.(*os.File); ok && cfg.Markdown && !opts.raw {
		ropts.Markdown, ropts.Width = render.Terminal(f)
	}
	printer := render.New(stdout, stderr, ropts)

	root, err := safety.Root("")
	if err != nil {
		printer.Error(err)
		return 1
	}
	store, err := memory.OpenStore(root, cfg.StateFile, stderr)
	if err != nil {
		printer.Error(err)
		return 1
	}

	ctx = telemetry.WithTurnID(ctx, telemetry.NewTurnID())
	turnID, _ := telemetry.TurnIDFromContext(ctx)

	if opts.clear {
		removed, err := store.Clear()
		if err != nil {
			printer.Error(err)
			return 1
		}
		telemetry.Emit("state_cleared", map[string]any{"turn_id": turnID, "removed": removed})
		printer.Cleared(removed)
		return 0
	}

	if strings.TrimSpace(opts.prompt) == "" {
		fs.Usage()
		fmt.Fprintln(stderr)
		printer.Error(errors.New("please provide a prompt"), `Example: chat "What is the capital of France?"`)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		printer.Error(err, "Set it in your .env file or as an environment variable.")
		return 1
	}
	client, err := provider.NewOpenAIClient(cfg.APIKey, cfg.BaseURL)
	if err != nil {
		printer.Error(err)
		return 1
	}

	req := runner.Request{
		Prompt:    opts.prompt,
		Model:     cfg.Model,
		WebSearch: cfg.WebSearch && !opts.noWebSearch,
		State:     store.Load(),
	}
	if opts.model != "" {
		req.Model = opts.model
	}

	printer.Prompt(opts.prompt)
	res, err := runner.New(client).Run(ctx, req)
	if err != nil {
		printer.Error(err)
		return 1
	}

	// The answer is already paid for; a failed save only costs continuity.
	if err := store.Save(res.State); err != nil {
		telemetry.Emit("state_save_failed", map[string]any{"turn_id": turnID, "error": err.Error()})
		printer.Warning("could not save conversation ID: %v", err)
	} else {
		telemetry.Emit("state_saved", map[string]any{"turn_id": turnID, "response_id": res.State.Handle})
	}

	if text, ok := reply.Extract(res.Reply); ok {
		printer.Answer(text)
	} else {
		printer.NoText(res.Reply)
	}
	return 0
}
