// Package storage persists bug reports between preview and filing.
package storage

import (
	"context"
	"time"

	"github.com/mudlet/bugbot/internal/storage/sqlite"
	"github.com/mudlet/bugbot/internal/types"
)

// ErrReportNotFound is returned when no report has the requested ID
var ErrReportNotFound = sqlite.ErrReportNotFound

// ReportStore defines the interface for report storage backends
type ReportStore interface {
	// SaveReport inserts a new report; CreatedAt and UpdatedAt are set if zero
	SaveReport(ctx context.Context, report *types.BugReport) error
	GetReport(ctx context.Context, id string) (*types.BugReport, error)
	// UpdateReport overwrites a stored report and bumps UpdatedAt
	UpdateReport(ctx context.Context, report *types.BugReport) error
	// ListReports returns reports newest first; an empty status lists all
	ListReports(ctx context.Context, status types.ReportStatus) ([]*types.BugReport, error)
	// ExpirePending marks pending reports created before olderThan as expired
	ExpirePending(ctx context.Context, olderThan time.Time) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config holds storage configuration
type Config struct {
	Path string // Path to the SQLite database file
}

// DefaultConfig returns the default storage configuration
func DefaultConfig() *Config {
	return &Config{Path: ".bugbot/bugbot.db"}
}

// NewStore opens the report store described by cfg
func NewStore(ctx context.Context, cfg *Config) (ReportStore, error) {
	if cfg == nil || cfg.Path == "" {
		cfg = DefaultConfig()
	}
	return sqlite.New(ctx, cfg.Path)
}
