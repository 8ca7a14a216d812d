// Package reporter implements the bug reporting flow independent of any chat
// transport: a conversation is turned into a pending report preview, which the
// requesting user then files as an issue or cancels.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	gh "github.com/mudlet/bugbot/internal/github"
	"github.com/mudlet/bugbot/internal/labels"
	"github.com/mudlet/bugbot/internal/logging"
	"github.com/mudlet/bugbot/internal/storage"
	"github.com/mudlet/bugbot/internal/types"
)

const (
	// PreviewTimeout is how long a preview can be filed, leaving room inside
	// Discord's 15 minute interaction window
	PreviewTimeout = 13 * time.Minute
	// DefaultMessageCount is used when a request does not ask for a count
	DefaultMessageCount = 20
	// MaxMessageCount caps the conversation window
	MaxMessageCount = 100
)

var (
	ErrPermissionDenied     = errors.New("you don't have permission to use this command")
	ErrNoMessages           = errors.New("no text content found in messages to analyze")
	ErrNotRequester         = errors.New("only the user who ran the command can interact with this")
	ErrPreviewExpired       = errors.New("this preview has expired, run /bug again to file a report")
	ErrConfirmationRequired = errors.New("a high-confidence duplicate was found, confirm to file")
	ErrReportClosed         = errors.New("report is no longer pending")
)

// Extractor turns a conversation into a structured extraction
type Extractor interface {
	Extract(ctx context.Context, messages []types.Message) (*types.Extraction, error)
}

// IssueTracker exposes the repository operations the flow needs
type IssueTracker interface {
	Labels(ctx context.Context) ([]string, error)
	CreateIssue(ctx context.Context, report *types.BugReport) (*gh.Issue, error)
}

// DuplicateFinder tiers existing issues against a new report
type DuplicateFinder interface {
	FindDuplicates(ctx context.Context, title string, steps []string, maxResults int) ([]types.DuplicateResult, error)
}

// Options configures a Service
type Options struct {
	AllowedRoles   []string           // Empty allows everyone
	Classifier     *labels.Classifier // Defaults to labels.Default()
	Duplicates     DuplicateFinder    // nil disables duplicate detection
	PreviewTimeout time.Duration      // Defaults to PreviewTimeout
	Now            func() time.Time   // Defaults to time.Now
	Logger         *slog.Logger
}

// Request asks for a report from a conversation window
type Request struct {
	Source       types.Source
	Roles        []string
	Messages     []types.Message // Oldest first
	MessageCount int             // Clamped to [1, MaxMessageCount]; 0 means DefaultMessageCount
}

// Preview is a pending report awaiting the requester's decision
type Preview struct {
	Report            *types.BugReport
	Duplicates        []types.DuplicateResult
	DroppedLabels     []string
	NeedsConfirmation bool
	ExpiresAt         time.Time
}

// Service runs the report flow against its collaborators
type Service struct {
	extractor  Extractor
	tracker    IssueTracker
	store      storage.ReportStore
	duplicates DuplicateFinder
	classifier *labels.Classifier
	roles      map[string]struct{}
	timeout    time.Duration
	now        func() time.Time
	log        *slog.Logger

	// Serializes state transitions so a report is filed at most once
	mu sync.Mutex
}

// NewService creates a reporter service
func NewService(extractor Extractor, tracker IssueTracker, store storage.ReportStore, opts Options) (*Service, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("issue tracker is required")
	}
	if store == nil {
		return nil, fmt.Errorf("report store is required")
	}

	s := &Service{
		extractor:  extractor,
		tracker:    tracker,
		store:      store,
		duplicates: opts.Duplicates,
		classifier: opts.Classifier,
		roles:      make(map[string]struct{}, len(opts.AllowedRoles)),
		timeout:    opts.PreviewTimeout,
		now:        opts.Now,
		log:        opts.Logger,
	}
	for _, r := range opts.AllowedRoles {
		s.roles[r] = struct{}{}
	}
	if s.classifier == nil {
		s.classifier = labels.Default()
	}
	if s.timeout <= 0 {
		s.timeout = PreviewTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logging.New("reporter")
	}
	return s, nil
}

// Allowed reports whether a user holding roles may request reports
func (s *Service) Allowed(roles []string) bool {
	if len(s.roles) == 0 {
		return true
	}
	for _, r := range roles {
		if _, ok := s.roles[r]; ok {
			return true
		}
	}
	return false
}

// ClampMessageCount bounds a requested conversation window
func ClampMessageCount(n int) int {
	if n == 0 {
		return DefaultMessageCount
	}
	return max(1, min(MaxMessageCount, n))
}

// Prepare extracts a report from the conversation and stores it as a pending preview
func (s *Service) Prepare(ctx context.Context, req Request) (*Preview, error) {
	if !s.Allowed(req.Roles) {
		return nil, ErrPermissionDenied
	}

	window := req.Messages
	if count := ClampMessageCount(req.MessageCount); len(window) > count {
		window = window[len(window)-count:]
	}
	messages := make([]types.Message, 0, len(window))
	for _, m := range window {
		if m.Content != "" {
			messages = append(messages, m)
		}
	}
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	s.log.Info("extracting bug report", "messages", len(messages), "channel", req.Source.ChannelID)
	ext, err := s.extractor.Extract(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract bug report: %w", err)
	}

	var (
		validated, dropped []string
		duplicates         = []types.DuplicateResult{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contents := make([]string, len(messages))
		for i, m := range messages {
			contents[i] = m.Content
		}
		detected := s.classifier.Detect(strings.Join(contents, " "))
		inventory, err := s.tracker.Labels(gctx)
		if err != nil {
			return err
		}
		validated = labels.ValidateLabels(detected, inventory)
		dropped = labels.Dropped(detected, inventory)
		return nil
	})
	if s.duplicates != nil {
		g.Go(func() error {
			found, err := s.duplicates.FindDuplicates(gctx, ext.Summary, ext.Steps, 0)
			if err != nil {
				return err
			}
			duplicates = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := types.NewBugReport(ext, req.Source, validated)
	report.ID = uuid.NewString()
	report.NeedsConfirm = types.AnyHighConfidence(duplicates)
	report.CreatedAt = s.now().UTC()
	report.UpdatedAt = report.CreatedAt
	if err := s.store.SaveReport(ctx, report); err != nil {
		return nil, err
	}

	s.log.Info("bug report preview ready",
		"report", report.ID,
		"user", req.Source.UserID,
		"labels", len(validated),
		"duplicates", len(duplicates),
		"needs_confirm", report.NeedsConfirm)

	return &Preview{
		Report:            report,
		Duplicates:        duplicates,
		DroppedLabels:     dropped,
		NeedsConfirmation: report.NeedsConfirm,
		ExpiresAt:         report.CreatedAt.Add(s.timeout),
	}, nil
}

// File creates the issue for a pending report. Reports with a high-confidence
// duplicate need confirmed set; the first unconfirmed attempt returns
// ErrConfirmationRequired.
func (s *Service) File(ctx context.Context, reportID, userID string, confirmed bool) (*types.BugReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.pendingFor(ctx, reportID, userID)
	if err != nil {
		return nil, err
	}
	if report.NeedsConfirm && !confirmed {
		return nil, ErrConfirmationRequired
	}

	issue, err := s.tracker.CreateIssue(ctx, report)
	if err != nil {
		s.log.Error("failed to create issue", "report", report.ID, "error", err)
		return nil, fmt.Errorf("failed to create GitHub issue: %w", err)
	}

	report.Status = types.ReportFiled
	report.IssueNumber = issue.Number
	report.IssueURL = issue.URL
	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("issue #%d created but report not updated: %w", issue.Number, err)
	}
	s.log.Info("issue created", "number", issue.Number, "report", report.ID, "user", userID)
	return report, nil
}

// Cancel discards a pending report
func (s *Service) Cancel(ctx context.Context, reportID, userID string) (*types.BugReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.pendingFor(ctx, reportID, userID)
	if err != nil {
		return nil, err
	}
	report.Status = types.ReportCancelled
	if err := s.store.UpdateReport(ctx, report); err != nil {
		return nil, err
	}
	s.log.Info("bug report cancelled", "report", report.ID, "user", userID)
	return report, nil
}

// ExpireStale marks previews older than the preview timeout as expired
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.ExpirePending(ctx, s.now().Add(-s.timeout))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired stale previews", "count", n)
	}
	return n, nil
}

// Pending lists reports still awaiting a decision, newest first
func (s *Service) Pending(ctx context.Context) ([]*types.BugReport, error) {
	return s.store.ListReports(ctx, types.ReportPending)
}

// Get returns a stored report
func (s *Service) Get(ctx context.Context, reportID string) (*types.BugReport, error) {
	return s.store.GetReport(ctx, reportID)
}

// pendingFor loads a report the user may act on. Must be called with mu held.
func (s *Service) pendingFor(ctx context.Context, reportID, userID string) (*types.BugReport, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.SourceUserID != userID {
		return nil, ErrNotRequester
	}

	switch report.Status {
	case types.ReportPending:
	case types.ReportExpired:
		return nil, ErrPreviewExpired
	default:
		return nil, fmt.Errorf("%w: report %s is %s", ErrReportClosed, report.ID, report.Status)
	}

	if s.now().Sub(report.CreatedAt) > s.timeout {
		report.Status = types.ReportExpired
		if err := s.store.UpdateReport(ctx, report); err != nil {
			s.log.Warn("failed to mark report expired", "report", report.ID, "error", err)
		}
		return nil, ErrPreviewExpired
	}
	return report, nil
}
