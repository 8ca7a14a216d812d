// Package sqlite implements report storage on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mudlet/bugbot/internal/types"
)

// ErrReportNotFound is returned when no report has the requested ID
var ErrReportNotFound = errors.New("report not found")

// Store implements report storage using SQLite
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and applies the schema
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL lets the health check read while a report is being written
	dsn := "file:" + filepath.ToSlash(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := schema.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const reportColumns = `id, summary, steps, error_output, extra_info, labels,
	source_channel_id, source_user_id, discord_link, confidence, missing_info,
	status, needs_confirm, issue_number, issue_url, created_at, updated_at`

// SaveReport inserts a new report
func (s *Store) SaveReport(ctx context.Context, report *types.BugReport) error {
	if report.ID == "" {
		return fmt.Errorf("report id is required")
	}
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}

	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = report.CreatedAt
	}

	steps, labels, err := encodeLists(report)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Summary, steps, report.ErrorOutput, report.ExtraInfo, labels,
		report.SourceChannelID, report.SourceUserID, report.DiscordLink,
		string(report.Confidence), report.MissingInfo, string(report.Status),
		report.NeedsConfirm, report.IssueNumber, report.IssueURL,
		report.CreatedAt.UnixNano(), report.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", report.ID, err)
	}
	return nil
}

// GetReport retrieves a report by ID
func (s *Store) GetReport(ctx context.Context, id string) (*types.BugReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return report, nil
}

// UpdateReport overwrites the mutable fields of a stored report
func (s *Store) UpdateReport(ctx context.Context, report *types.BugReport) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}
	steps, labels, err := encodeLists(report)
	if err != nil {
		return err
	}
	report.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `UPDATE reports SET
			summary = ?, steps = ?, error_output = ?, extra_info = ?, labels = ?,
			confidence = ?, missing_info = ?, status = ?, needs_confirm = ?,
			issue_number = ?, issue_url = ?, updated_at = ?
		WHERE id = ?`,
		report.Summary, steps, report.ErrorOutput, report.ExtraInfo, labels,
		string(report.Confidence), report.MissingInfo, string(report.Status), report.NeedsConfirm,
		report.IssueNumber, report.IssueURL, report.UpdatedAt.UnixNano(),
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", report.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", report.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrReportNotFound, report.ID)
	}
	return nil
}

// ListReports returns reports newest first, optionally filtered by status
func (s *Store) ListReports(ctx context.Context, status types.ReportStatus) ([]*types.BugReport, error) {
	query := `SELECT ` + reportColumns + ` FROM reports`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []*types.BugReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// ExpirePending marks pending reports created before olderThan as expired
func (s *Store) ExpirePending(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, updated_at = ? WHERE status = ? AND created_at < ?`,
		string(types.ReportExpired), time.Now().UTC().UnixNano(),
		string(types.ReportPending), olderThan.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire reports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to expire reports: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*types.BugReport, error) {
	var (
		r                  types.BugReport
		steps, labels      string
		confidence, status string
		created, updated   int64
	)
	err := row.Scan(&r.ID, &r.Summary, &steps, &r.ErrorOutput, &r.ExtraInfo, &labels,
		&r.SourceChannelID, &r.SourceUserID, &r.DiscordLink, &confidence, &r.MissingInfo,
		&status, &r.NeedsConfirm, &r.IssueNumber, &r.IssueURL, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(steps), &r.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(labels), &r.Labels); err != nil {
		return nil, fmt.Errorf("failed to decode labels for %s: %w", r.ID, err)
	}
	r.Confidence = types.Confidence(confidence)
	r.Status = types.ReportStatus(status)
	r.CreatedAt = time.Unix(0, created).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	return &r, nil
}

// encodeLists serializes steps and labels as JSON arrays, never null
func encodeLists(report *types.BugReport) (steps, labels string, err error) {
	stepList, labelList := report.Steps, report.Labels
	if stepList == nil {
		stepList = []string{}
	}
	if labelList == nil {
		labelList = []string{}
	}
	s, err := json.Marshal(stepList)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode steps: %w", err)
	}
	l, err := json.Marshal(labelList)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode labels: %w", err)
	}
	return string(s), string(l), nil
}
