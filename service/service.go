// Package service provides the reusable business logic behind the wget2
// commands.
//
// The service layer sits between the CLI (cmd/) and the library packages
// (download, bar, historydb, stats). It owns the shared resources of one
// invocation, the file logger and the history database, and coordinates
// them for a fetch run. All output goes through log.LibraryLogger so the
// layer can be driven from tests without a terminal.
package service

import (
	"fmt"
	"io"
	"os"

	"github.com/baack/wget2/config"
	"github.com/baack/wget2/historydb"
	"github.com/baack/wget2/log"
)

// Service coordinates wget2 operations.
//
// Usage:
//
//	cfg, _ := config.LoadConfig("", "default")
//	svc, err := service.NewService(cfg)
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	result, err := svc.Fetch(ctx, service.FetchOptions{
//	    URLs: []string{"https://example.com/file.iso"},
//	})
type Service struct {
	cfg     *config.Config
	logger  *log.Logger
	console *log.ConsoleLogger
	db      *historydb.DB
	out     io.Writer
}

// NewService creates the log files and opens the history database in
// shared mode, so `wget2 monitor` can read it while a fetch runs.
// The caller must call Close.
func NewService(cfg *config.Config) (*Service, error) {
	logger, err := log.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := historydb.OpenShared(cfg.Database.Path)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	return &Service{
		cfg:     cfg,
		logger:  logger,
		console: log.NewConsoleLogger(cfg.Debug),
		db:      db,
		out:     os.Stdout,
	}, nil
}

// NewQueryService opens only the history database. The log files of the
// last fetch are left as they are, which suits read-only commands such as
// `wget2 status`. Logger returns nil for such a service.
func NewQueryService(cfg *config.Config) (*Service, error) {
	db, err := historydb.OpenShared(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	return &Service{
		cfg:     cfg,
		console: log.NewConsoleLogger(cfg.Debug),
		db:      db,
		out:     os.Stdout,
	}, nil
}

// Close releases the database and the log files.
func (s *Service) Close() error {
	var errs []error

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}

	if s.logger != nil {
		s.logger.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("service close errors: %v", errs)
	}
	return nil
}

// Config returns the service's configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Logger returns the file logger.
func (s *Service) Logger() *log.Logger {
	return s.logger
}

// fileLog returns the file logger, or a no-op logger for a query service.
func (s *Service) fileLog() log.LibraryLogger {
	if s.logger == nil {
		return log.NoOpLogger{}
	}
	return s.logger
}

// Console returns the terminal logger. Its sinks point at the progress
// bar while a fetch draws one.
func (s *Service) Console() *log.ConsoleLogger {
	return s.console
}

// Database returns the history database.
func (s *Service) Database() *historydb.DB {
	return s.db
}

// SetOutput changes where progress is drawn. Default: os.Stdout
func (s *Service) SetOutput(w io.Writer) {
	s.out = w
}
