package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/longform/internal/metrics"
	"gopkg.in/yaml.v3"
)

// Layout of a session directory.
const (
	ArticlesDir = "articles"
	ImagesDir   = "images"
	CleanupFile = "cleanup_info.yaml"

	idPrefix = "session_"
	idLayout = "20060102_150405"
)

// maxIDAttempts bounds the suffixes tried when two sessions start in the
// same second.
const maxIDAttempts = 100

// ErrSessionExists is returned when no free session ID could be found.
var ErrSessionExists = errors.New("session directory already exists")

// Session is the working area of one run.
type Session struct {
	ID          string    `json:"id"`
	Dir         string    `json:"dir"`
	ArticlesDir string    `json:"articles_dir"`
	ImagesDir   string    `json:"images_dir"`
	CreatedAt   time.Time `json:"created_at"`
	// ExpiresAt is zero until ScheduleExpiry has run.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Path joins name onto the session directory.
func (s *Session) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// cleanupInfo is the sidecar written by ScheduleExpiry.
type cleanupInfo struct {
	CreatedAt  time.Time `yaml:"created_at"`
	CleanupAt  time.Time `yaml:"cleanup_at"`
	SessionDir string    `yaml:"session_dir"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMetrics records swept sessions on rec.
func WithMetrics(rec metrics.Recorder) Option {
	return func(s *Store) {
		s.metrics = metrics.OrNoop(rec)
	}
}

// Store creates, packages and expires sessions under a root directory.
type Store struct {
	root    string
	now     func() time.Time
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewStore creates a Store rooted at root, creating the directory if needed.
func NewStore(root string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("session root cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}

	s := &Store{
		root:    root,
		now:     time.Now,
		metrics: metrics.NoopRecorder{},
		logger:  logger.With("component", "session_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the directory that holds all sessions.
func (s *Store) Root() string {
	return s.root
}

// Create allocates a session named after the current time and creates its
// directory tree. A suffix is added when the name is taken.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	now := s.now().UTC()
	base := idPrefix + now.Format(idLayout)

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := base
		if attempt > 1 {
			id = fmt.Sprintf("%s_%d", base, attempt)
		}
		dir := filepath.Join(s.root, id)

		err := os.Mkdir(dir, 0o755)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}

		sess := &Session{
			ID:          id,
			Dir:         dir,
			ArticlesDir: filepath.Join(dir, ArticlesDir),
			ImagesDir:   filepath.Join(dir, ImagesDir),
			CreatedAt:   now,
		}
		for _, sub := range []string{sess.ArticlesDir, sess.ImagesDir} {
			if err := os.MkdirAll(sub, 0o755); err != nil {
				return nil, fmt.Errorf("create session subdirectory: %w", err)
			}
		}

		s.logger.InfoContext(ctx, "created session directory",
			"session_id", id,
			"session_dir", dir)
		return sess, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionExists, base)
}

// ScheduleExpiry records that sess may be deleted once ttl has passed since
// it was created. Nothing is deleted here.
func (s *Store) ScheduleExpiry(ctx context.Context, sess *Session, ttl time.Duration) error {
	info := cleanupInfo{
		CreatedAt:  sess.CreatedAt,
		CleanupAt:  sess.CreatedAt.Add(ttl),
		SessionDir: sess.Dir,
	}
	data, err := yaml.Marshal(&info)
	if err != nil {
		return fmt.Errorf("encode cleanup info: %w", err)
	}
	if err := os.WriteFile(sess.Path(CleanupFile), data, 0o644); err != nil {
		return fmt.Errorf("write cleanup info: %w", err)
	}
	sess.ExpiresAt = info.CleanupAt

	s.logger.InfoContext(ctx, "scheduled session expiry",
		"session_id", sess.ID,
		"cleanup_at", info.CleanupAt)
	return nil
}

func readCleanupInfo(dir string) (cleanupInfo, error) {
	var info cleanupInfo
	data, err := os.ReadFile(filepath.Join(dir, CleanupFile))
	if err != nil {
		return info, err
	}
	if err := yaml.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decode cleanup info: %w", err)
	}
	if info.CreatedAt.IsZero() {
		return info, errors.New("cleanup info has no created_at")
	}
	return info, nil
}

// createdAt determines when a session directory was created: from its
// cleanup sidecar, else from the timestamp in its name, else from its
// modification time.
func (s *Store) createdAt(dir, name string, info os.FileInfo) time.Time {
	if ci, err := readCleanupInfo(dir); err == nil {
		return ci.CreatedAt
	}
	if ts, ok := parseID(name); ok {
		return ts
	}
	return info.ModTime()
}

func parseID(name string) (time.Time, bool) {
	rest, found := strings.CutPrefix(name, idPrefix)
	if !found || len(rest) < len(idLayout) {
		return time.Time{}, false
	}
	ts, err := time.Parse(idLayout, rest[:len(idLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// SweepExpired removes every directory under the root created strictly
// before now minus ttl and returns how many were removed. A directory that
// cannot be removed is logged and skipped.
func (s *Store) SweepExpired(ctx context.Context, ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	cutoff := s.now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		dir := filepath.Join(s.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to inspect session directory",
				"session_dir", dir,
				"error", err)
			continue
		}

		created := s.createdAt(dir, entry.Name(), info)
		if !created.Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			s.logger.ErrorContext(ctx, "failed to remove expired session",
				"session_dir", dir,
				"error", err)
			continue
		}
		removed++
		s.logger.InfoContext(ctx, "removed expired session",
			"session_dir", dir,
			"created_at", created)
	}

	s.metrics.AddSessionsSwept(removed)
	return removed, nil
}
