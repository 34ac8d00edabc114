package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"slidecoffee/internal/adapter/genclient"
	"slidecoffee/internal/adapter/tui/progress"
	"slidecoffee/internal/adapter/tui/theme"
	"slidecoffee/internal/adapter/tui/uxerror"
	"slidecoffee/internal/domain"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/infra/logger"
	"slidecoffee/internal/usecase/stream"
)

// errReported marks a failure that was already shown to the user.
var errReported = errors.New("generation failed")

type generateOptions struct {
	Topic      string
	PlanFile   string
	ProjectID  string
	BrandID    string
	NoResearch bool
	Plain      bool
	JSON       bool
}

// parseGenerateArgs reads generate flags. Words that are not flags form
// the topic. --config is handled by configPath.
func parseGenerateArgs(args []string) (generateOptions, error) {
	var opts generateOptions
	var words []string

	value := func(i *int, name string) (string, error) {
		arg := args[*i]
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			return v, nil
		}
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, _, _ := strings.Cut(arg, "=")
		var err error
		switch name {
		case "--topic":
			opts.Topic, err = value(&i, name)
		case "--plan":
			opts.PlanFile, err = value(&i, name)
		case "--project":
			opts.ProjectID, err = value(&i, name)
		case "--brand":
			opts.BrandID, err = value(&i, name)
		case "--config":
			_, err = value(&i, name)
		case "--no-research":
			opts.NoResearch = true
		case "--plain":
			opts.Plain = true
		case "--json":
			opts.JSON = true
		default:
			if strings.HasPrefix(arg, "-") {
				return opts, fmt.Errorf("unknown flag: %s", arg)
			}
			words = append(words, arg)
		}
		if err != nil {
			return opts, err
		}
	}

	if opts.Topic == "" {
		opts.Topic = strings.Join(words, " ")
	} else if len(words) > 0 {
		return opts, fmt.Errorf("topic given twice")
	}
	if strings.TrimSpace(opts.Topic) == "" && opts.PlanFile == "" {
		return opts, fmt.Errorf("a topic or --plan is required")
	}
	return opts, nil
}

// request builds the generation request, reading the plan file if set.
func (o generateOptions) request() (domain.GenerationRequest, error) {
	req := domain.GenerationRequest{
		Topic:     strings.TrimSpace(o.Topic),
		ProjectID: o.ProjectID,
		BrandID:   o.BrandID,
	}
	if o.NoResearch {
		off := false
		req.EnableResearch = &off
	}
	if o.PlanFile != "" {
		data, err := os.ReadFile(o.PlanFile)
		if err != nil {
			return req, fmt.Errorf("read plan: %w", err)
		}
		if !json.Valid(data) {
			return req, fmt.Errorf("plan %s is not valid JSON", o.PlanFile)
		}
		req.PresentationPlan = data
	}
	return req, nil
}

func runGenerate(args []string) error {
	opts, err := parseGenerateArgs(args)
	if err != nil {
		return err
	}
	req, err := opts.request()
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	live := !opts.Plain && !opts.JSON && term.IsTerminal(int(os.Stdout.Fd()))

	// Log lines would tear the live view.
	log := logger.NewWithWriter(cfg.Logger, io.Discard)
	if !live {
		var logCloser func() error
		log, logCloser, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer logCloser()
	}

	client := stream.NewClient(
		genclient.NewTransport(cfg.Client, logger.Component(log, "genclient")),
		genclient.NewCredentialProvider(cfg.Client),
		logger.Component(log, "stream"),
		stream.WithChunkSize(cfg.Client.ChunkSize),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if live {
		res, err := progress.Run(ctx, client, req)
		if err != nil {
			return errReported
		}
		width := theme.MaxContentWidth
		if w, _, werr := term.GetSize(int(os.Stdout.Fd())); werr == nil {
			width = theme.Clamp(w, 40, theme.MaxContentWidth)
		}
		out, rerr := progress.Render(res, width)
		if rerr != nil {
			out = progress.Markdown(res)
		}
		fmt.Print(out)
		return nil
	}

	printTo := os.Stdout
	if opts.JSON {
		printTo = os.Stderr
	}
	res, err := client.Generate(ctx, req, progress.NewPrinter(printTo))
	if err != nil {
		fmt.Fprintln(os.Stderr, uxerror.Humanize(err).Render())
		return errReported
	}

	if opts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Printf("%s %s (%d slides) id=%s\n", theme.SymbolSuccess, res.Title, res.SlideCount, res.PresentationID)
	return nil
}
