// Package config owns the Claude Desktop configuration file: locating it,
// bootstrapping it, and reading and rewriting it as a whole document.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/mcphub/mcphub/pkg/protocol"
)

// Store reads and writes a single config file.
//
// Every mutating call rewrites the whole document. Concurrent writers from
// separate processes are not coordinated; the last write wins.
type Store struct {
	path    string
	logger  *slog.Logger
	backups bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithBackups toggles timestamped backups before each write. Enabled by default.
func WithBackups(enabled bool) StoreOption {
	return func(s *Store) {
		s.backups = enabled
	}
}

// NewStore creates a store for path.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:    path,
		logger:  slog.New(slog.DiscardHandler),
		backups: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureExists creates the parent directory and a default
// {"mcpServers": {}} document if the file is missing. Existing files are left
// untouched, so repeated calls are no-ops.
func (s *Store) EnsureExists() error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config file: %w", err)
	}

	data, err := marshalConfig(protocol.NewConfig())
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	s.logger.Info("created config file", "path", s.path)
	return nil
}

// Read parses the config file. JSONC comments and trailing commas are
// accepted; a document without mcpServers reads as having none.
func (s *Store) Read() (*protocol.Config, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, hasComments, err := parseConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", s.path, err)
	}
	if hasComments {
		s.logger.Warn("config contains comments that will be lost on the next write", "path", s.path)
	}
	return cfg, nil
}

// Load ensures the file exists and reads it.
func (s *Store) Load() (*protocol.Config, error) {
	if err := s.EnsureExists(); err != nil {
		return nil, err
	}
	return s.Read()
}

// Write replaces the file contents with cfg.
func (s *Store) Write(cfg *protocol.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}

	if s.backups {
		backupPath, err := createBackup(s.path)
		if err != nil {
			return err
		}
		if backupPath != "" {
			s.logger.Debug("backed up config", "backup", backupPath)
		}
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	s.logger.Info("wrote config", "path", s.path, "servers", len(cfg.MCPServers))
	return nil
}

// Update applies fn to the current document and writes the result.
func (s *Store) Update(fn func(*protocol.Config) error) (*protocol.Config, error) {
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(cfg); err != nil {
		return nil, err
	}
	if err := s.Write(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Backups lists backup files for this store, oldest first.
func (s *Store) Backups() ([]string, error) {
	return listBackups(s.path)
}
