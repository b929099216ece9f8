package store

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/kiln/internal/lockfile"
	"github.com/mmr-tortoise/kiln/internal/model"
	"github.com/mmr-tortoise/kiln/internal/platform"
)

// defaultTimeout bounds a single cache request. Tool archives run to tens
// of megabytes, so this is deliberately generous.
const defaultTimeout = 5 * time.Minute

// Config configures a Store.
type Config struct {
	// Dir is the store root. Defaults to DefaultDir().
	Dir string

	// CacheURL is the binary cache base URL, used to resolve relative
	// lock pin URLs.
	CacheURL string

	// Timeout bounds each cache request. Defaults to defaultTimeout.
	Timeout time.Duration

	// Logger receives fetch progress at debug level. Defaults to a nop
	// logger.
	Logger *zap.Logger
}

// Store is the local content-addressed tool store.
type Store struct {
	dir      string
	cacheURL string
	client   *http.Client
	logger   *zap.Logger
}

// DefaultDir returns the store root: $KILN_STORE if set, otherwise
// ~/.kiln/store.
func DefaultDir() string {
	if dir := os.Getenv("KILN_STORE"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// No home directory — fall back to a world-writable location
		// rather than failing; the store directory is created lazily.
		return filepath.Join(os.TempDir(), "kiln-store")
	}
	return filepath.Join(home, ".kiln", "store")
}

// New creates a Store. The store root is created on first fetch, not here,
// so read-only commands never touch the filesystem.
func New(cfg Config) *Store {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		dir:      dir,
		cacheURL: cfg.CacheURL,
		logger:   logger,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// PathFor returns the store path a pinned tool materializes at. This is a
// pure derivation of the pin hash and tool ref — the same formula the
// resolver uses when expanding env templates.
func (s *Store) PathFor(tool model.Tool, pin lockfile.Pin) string {
	return filepath.Join(s.dir, pin.Hash+"-"+tool.Ref())
}

// Present reports whether a pinned tool is already materialized.
func (s *Store) Present(tool model.Tool, pin lockfile.Pin) bool {
	info, err := os.Stat(s.PathFor(tool, pin))
	return err == nil && info.IsDir()
}

// Ensure materializes one pinned tool, fetching it from the binary cache
// if absent, and returns its store path. Present paths are returned
// immediately — content addressing makes re-validation unnecessary.
func (s *Store) Ensure(ctx context.Context, tool model.Tool, pin lockfile.Pin) (string, error) {
	target := s.PathFor(tool, pin)
	if s.Present(tool, pin) {
		s.logger.Debug("store path present, skipping fetch",
			zap.String("tool", tool.Ref()),
			zap.String("path", target))
		return target, nil
	}
	if err := s.fetch(ctx, tool, pin, target); err != nil {
		return "", err
	}
	return target, nil
}

// EnsureAll materializes every tool in the resolved set for one platform.
// The first failure aborts: environment construction either fully succeeds
// or produces nothing.
func (s *Store) EnsureAll(ctx context.Context, tools []model.Tool, lf *lockfile.Lockfile, p platform.Platform) error {
	for _, tool := range tools {
		pin, err := lf.Pin(tool, p)
		if err != nil {
			return model.WrapCLIError(
				model.ExitLockfileError,
				fmt.Sprintf("unresolvable tool reference on platform %s", p),
				err,
			)
		}
		if _, err := s.Ensure(ctx, tool, pin); err != nil {
			return err
		}
	}
	return nil
}
