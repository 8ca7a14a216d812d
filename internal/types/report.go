package types

import (
	"fmt"
	"strings"
	"time"
)

// MaxTitleLength is the longest issue title filed to the tracker
const MaxTitleLength = 80

// Extraction is the JSON object returned by the LLM for a conversation.
// All six keys are required; missing_info may be null.
type Extraction struct {
	Summary     string     `json:"summary"`
	Steps       []string   `json:"steps"`
	ErrorOutput string     `json:"error_output"`
	ExtraInfo   string     `json:"extra_info"`
	Confidence  Confidence `json:"confidence"`
	MissingInfo *string    `json:"missing_info"`
}

// ReportStatus tracks a report from preview to filing
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportFiled     ReportStatus = "filed"
	ReportCancelled ReportStatus = "cancelled"
	ReportExpired   ReportStatus = "expired"
)

// IsValid checks if the report status value is valid
func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportPending, ReportFiled, ReportCancelled, ReportExpired:
		return true
	}
	return false
}

// Source identifies where a conversation came from
type Source struct {
	ChannelID   string
	UserID      string
	DiscordLink string
}

// BugReport is a structured report extracted from a conversation
type BugReport struct {
	ID              string       `json:"id"`
	Summary         string       `json:"summary"`
	Steps           []string     `json:"steps"`
	ErrorOutput     string       `json:"error_output"`
	ExtraInfo       string       `json:"extra_info"`
	Labels          []string     `json:"labels"`
	SourceChannelID string       `json:"source_channel_id"`
	SourceUserID    string       `json:"source_user_id"`
	DiscordLink     string       `json:"discord_link"`
	Confidence      Confidence   `json:"confidence"`
	MissingInfo     string       `json:"missing_info,omitempty"`
	Status          ReportStatus `json:"status"`
	NeedsConfirm    bool         `json:"needs_confirm"`
	IssueNumber     int          `json:"issue_number,omitempty"`
	IssueURL        string       `json:"issue_url,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// NewBugReport builds a pending report from an LLM extraction.
// An empty or unknown confidence defaults to high, as the extractor does.
func NewBugReport(ext *Extraction, src Source, labels []string) *BugReport {
	confidence := ext.Confidence
	if !confidence.IsValid() {
		confidence = ConfidenceHigh
	}
	var missing string
	if ext.MissingInfo != nil {
		missing = *ext.MissingInfo
	}
	if labels == nil {
		labels = []string{}
	}
	steps := ext.Steps
	if steps == nil {
		steps = []string{}
	}
	return &BugReport{
		Summary:         ext.Summary,
		Steps:           steps,
		ErrorOutput:     ext.ErrorOutput,
		ExtraInfo:       ext.ExtraInfo,
		Labels:          labels,
		SourceChannelID: src.ChannelID,
		SourceUserID:    src.UserID,
		DiscordLink:     src.DiscordLink,
		Confidence:      confidence,
		MissingInfo:     missing,
		Status:          ReportPending,
	}
}

// Title returns the issue title, truncated to MaxTitleLength characters
func (r *BugReport) Title() string {
	runes := []rune(r.Summary)
	if len(runes) <= MaxTitleLength {
		return r.Summary
	}
	return string(runes[:MaxTitleLength-3]) + "..."
}

// GitHubBody renders the report using the tracker's issue template
func (r *BugReport) GitHubBody() string {
	steps := "N/A"
	if len(r.Steps) > 0 {
		lines := make([]string, len(r.Steps))
		for i, step := range r.Steps {
			lines[i] = fmt.Sprintf("%d. %s", i+1, step)
		}
		steps = strings.Join(lines, "\n")
	}

	var b strings.Builder
	b.WriteString("#### Brief summary of issue:\n")
	b.WriteString(r.Summary)
	b.WriteString("\n\n#### Steps to reproduce the issue:\n")
	b.WriteString(steps)
	b.WriteString("\n\n#### Error output\n")
	b.WriteString(orNA(strings.TrimSpace(r.ErrorOutput)))
	b.WriteString("\n\n#### Extra information, such as the Mudlet version, operating system and ideas for how to solve:\n")
	b.WriteString(orNA(r.ExtraInfo))
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "*Auto-generated from Discord by mudlet-bug-bot • [Original conversation](%s)*", r.DiscordLink)
	return b.String()
}

// Validate checks if the report has valid field values
func (r *BugReport) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	if !r.Confidence.IsValid() {
		return fmt.Errorf("invalid confidence: %s", r.Confidence)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	if r.Status == ReportFiled && r.IssueNumber <= 0 {
		return fmt.Errorf("issue_number must be set when status is filed")
	}
	return nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
