package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/events"
	"github.com/phrazzld/longform/internal/pipeline"
	"github.com/phrazzld/longform/internal/session"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Topic        string `short:"t" required:"" help:"What the document is about"`
	Audience     string `short:"a" required:"" help:"Who the document is written for"`
	Style        string `short:"s" help:"Image style (Natural, Vivid, ...)" default:"Natural"`
	MainHeadings int    `short:"m" help:"Number of main headings (defaults to pipeline.main_headings)"`
	SubHeadings  int    `short:"n" help:"Sub-headings per main heading (defaults to pipeline.sub_headings)"`
	Provider     string `help:"Override the configured provider (openai, gemini, mock)"`
	APIKey       string `help:"OpenAI API key for this run" env:"OPENAI_API_KEY"`
	JSON         bool   `help:"Print the full result as JSON"`
}

func (g *GenerateCmd) Run(root *CLI) error {
	cfg, log, err := root.load(root.stderr)
	if err != nil {
		return err
	}
	if g.Provider != "" {
		cfg.LLM.Provider = g.Provider
	}
	mainCount, subCount := g.MainHeadings, g.SubHeadings
	if mainCount == 0 {
		mainCount = cfg.Pipeline.MainHeadings
	}
	if subCount == 0 {
		subCount = cfg.Pipeline.SubHeadings
	}

	brief, err := domain.NewBrief(g.Topic, g.Audience, g.Style)
	if err != nil {
		return err
	}

	sessions, err := session.NewStore(cfg.Session.RootDir, log)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	runner, err := pipeline.NewRunner(cfg, sessions, pipeline.NewServiceFactory(cfg.LLM, log), nil, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emitter := events.NewInMemoryEventEmitter(log, progressPrinter(root.stderr))
	res, err := runner.Run(ctx, pipeline.Request{
		Brief:     brief,
		MainCount: mainCount,
		SubCount:  subCount,
		APIKey:    g.APIKey,
	}, emitter)
	if err != nil {
		return err
	}

	if g.JSON {
		enc := json.NewEncoder(root.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printArtifacts(root.stdout, res)
}

// progressPrinter writes stage changes and log events as plain lines.
func progressPrinter(w io.Writer) events.EventHandler {
	return events.HandlerFunc(func(_ context.Context, e *events.Event) error {
		switch e.Type {
		case events.TypeStage:
			_, err := fmt.Fprintf(w, "==> %s: %s\n", e.Stage, e.Message)
			return err
		case events.TypeLog:
			_, err := fmt.Fprintf(w, "[%s] %s\n", e.Level, e.Message)
			return err
		}
		return nil
	})
}

func printArtifacts(w io.Writer, res *pipeline.Result) error {
	lines := []struct{ label, value string }{
		{"session", res.SessionID},
		{"outline", res.OutlinePath},
		{"combined", res.CombinedPath},
		{"document", res.DocumentPath},
		{"html", res.HTMLPath},
		{"archive", res.ArchivePath},
	}
	for _, l := range lines {
		if l.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-9s %s\n", l.label+":", l.value); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "outcome:  %s (%d degraded sections, %d missing images)\n",
		res.Outcome(), res.DegradedSections, res.MissingImages)
	return err
}
