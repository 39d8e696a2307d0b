package main

import (
	"context"
	"fmt"

	"github.com/phrazzld/longform/internal/session"
)

// SweepCmd implements the 'sweep' command.
type SweepCmd struct{}

func (s *SweepCmd) Run(root *CLI) error {
	cfg, log, err := root.load(root.stderr)
	if err != nil {
		return err
	}
	sessions, err := session.NewStore(cfg.Session.RootDir, log)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	removed, err := sessions.SweepExpired(context.Background(), cfg.Session.TTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(root.stdout, "removed %d expired session(s) from %s\n", removed, sessions.Root())
	return err
}
