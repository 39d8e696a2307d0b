// Command longform generates long illustrated documents from a short brief.
// It runs either as an HTTP service that queues runs in the background or as
// a one-shot generator.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/phrazzld/longform/internal/config"
	"github.com/phrazzld/longform/internal/platform/logger"
)

// CLI definition & global flags
type CLI struct {
	Config   string `short:"c" help:"Configuration file path (defaults to ./config.yaml when present)" type:"path"`
	LogLevel string `help:"Override the configured log level (debug, info, warn, error)"`

	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API and background run workers"`
	Generate GenerateCmd `cmd:"" help:"Generate one document and print the artifact paths"`
	Sweep    SweepCmd    `cmd:"" help:"Remove expired session directories once"`
	Token    TokenCmd    `cmd:"" help:"Mint an API bearer token"`

	stdout io.Writer `kong:"-"`
	stderr io.Writer `kong:"-"`
}

func main() {
	cli := CLI{stdout: os.Stdout, stderr: os.Stderr}
	ctx := kong.Parse(&cli,
		kong.Name("longform"),
		kong.Description("Long-form document generation pipeline"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// load reads the configuration and sets up the logger. Logs go to out.
func (c *CLI) load(out io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(c.Config)
	if err != nil {
		return nil, nil, err
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	log, err := logger.SetupWithWriter(cfg.Server, out)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
