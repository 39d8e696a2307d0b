package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/longform/internal/service/auth"
)

// TokenCmd implements the 'token' command.
type TokenCmd struct {
	Subject  string        `arg:"" help:"Client name recorded in the token"`
	Lifetime time.Duration `help:"Token lifetime (defaults to auth.token_lifetime)"`
}

func (t *TokenCmd) Run(root *CLI) error {
	cfg, _, err := root.load(root.stderr)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must be set to mint tokens")
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	lifetime := t.Lifetime
	if lifetime == 0 {
		lifetime = cfg.Auth.TokenLifetime
	}
	token, err := tokens.GenerateToken(context.Background(), t.Subject, lifetime)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(root.stdout, token)
	return err
}
