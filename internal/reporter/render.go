package reporter

import (
	"fmt"
	"strings"

	"github.com/mudlet/bugbot/internal/types"
)

const (
	// MaxFieldLength is the longest value shown for one preview field
	MaxFieldLength = 1024
	// MaxPreviewDuplicates caps the duplicates listed in a preview
	MaxPreviewDuplicates = 3
	// DuplicateTitleLength caps duplicate titles in a preview
	DuplicateTitleLength = 50

	confirmFooter = "A high-confidence duplicate was found. You'll need to confirm to file."
)

var confidenceTags = map[types.Confidence]string{
	types.ConfidenceHigh:   "[HIGH]",
	types.ConfidenceMedium: "[MEDIUM]",
	types.ConfidenceLow:    "[LOW]",
}

// RenderPreview formats a preview for display to the requester
func RenderPreview(p *Preview) string {
	r := p.Report
	var b strings.Builder

	b.WriteString("Bug Report Preview\n")
	b.WriteString("Review the extracted bug report before filing.\n")
	fmt.Fprintf(&b, "Report: %s\n", r.ID)

	field(&b, "Summary", orNA(r.Summary))

	steps := "N/A"
	if len(r.Steps) > 0 {
		lines := make([]string, len(r.Steps))
		for i, step := range r.Steps {
			lines[i] = fmt.Sprintf("%d. %s", i+1, step)
		}
		steps = strings.Join(lines, "\n")
	}
	field(&b, "Steps to Reproduce", clip(steps, MaxFieldLength))
	field(&b, "Error Output", clip(orNA(strings.TrimSpace(r.ErrorOutput)), MaxFieldLength))
	field(&b, "Extra Info", clip(orNA(strings.TrimSpace(r.ExtraInfo)), MaxFieldLength))

	if len(r.Labels) > 0 {
		quoted := make([]string, len(r.Labels))
		for i, l := range r.Labels {
			quoted[i] = "`" + l + "`"
		}
		field(&b, "Labels", strings.Join(quoted, ", "))
	}

	if len(p.Duplicates) > 0 {
		shown := p.Duplicates[:min(len(p.Duplicates), MaxPreviewDuplicates)]
		lines := make([]string, len(shown))
		for i, d := range shown {
			lines[i] = fmt.Sprintf("%s [#%d](%s) - %s", confidenceTags[d.Confidence], d.Number, d.URL, cut(d.Title, DuplicateTitleLength))
		}
		field(&b, "Potential Duplicates", strings.Join(lines, "\n"))
		if types.AnyHighConfidence(p.Duplicates) {
			b.WriteString("\n" + confirmFooter + "\n")
		}
	}
	return b.String()
}

// RenderFiled formats the confirmation shown after an issue is created
func RenderFiled(r *types.BugReport) string {
	return fmt.Sprintf("Issue Filed Successfully\n**Issue #%d** has been created.\n\nTitle: %s\nLink: %s\n",
		r.IssueNumber, r.Title(), r.IssueURL)
}

func field(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "\n**%s**\n%s\n", name, value)
}

// clip shortens s to limit characters, marking the cut with "..."
func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// cut shortens s to limit characters without a marker
func cut(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
