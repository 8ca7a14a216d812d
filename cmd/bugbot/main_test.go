package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudlet/bugbot/internal/ai"
	"github.com/mudlet/bugbot/internal/cost"
	gh "github.com/mudlet/bugbot/internal/github"
	"github.com/mudlet/bugbot/internal/health"
	"github.com/mudlet/bugbot/internal/reporter"
	"github.com/mudlet/bugbot/internal/storage"
	"github.com/mudlet/bugbot/internal/types"
)

// executeCommand runs the root command with args and returns its output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func clearCredentials(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GITHUB_TOKEN", "GITHUB_APP_ID", "DISCORD_BOT_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestKeywordsCommand(t *testing.T) {
	out, err := executeCommand(t, "keywords", "The mapper crashes when adding rooms")
	require.NoError(t, err)
	assert.Contains(t, out, "mapper")
	assert.NotContains(t, out, "when")

	out, err = executeCommand(t, "keywords", "the and or")
	require.NoError(t, err)
	assert.Contains(t, out, "(no keywords)")
}

func TestSimilarityCommand(t *testing.T) {
	out, err := executeCommand(t, "similarity", "Mapper crashes", "Mapper crashes")
	require.NoError(t, err)
	assert.Equal(t, "1.000 open=high closed=medium\n", out)

	_, err = executeCommand(t, "similarity", "only one")
	assert.Error(t, err)
}

func TestLabelsCommand(t *testing.T) {
	out, err := executeCommand(t, "labels", "--valid", "mapper bug", "the mapper crashes on windows")
	require.NoError(t, err)
	assert.Contains(t, out, "dropping label not in repository: OS:Windows")
	assert.Contains(t, out, "dropping label not in repository: high")
	assert.Contains(t, out, "\nmapper bug\n")
}

func TestPendingCommand(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "reports.db")
	ctx := context.Background()

	store, err := storage.NewStore(ctx, &storage.Config{Path: dbFile})
	require.NoError(t, err)
	require.NoError(t, store.SaveReport(ctx, &types.BugReport{
		ID:         "report-1",
		Summary:    "Mapper crashes when adding a room",
		Confidence: types.ConfidenceHigh,
		Status:     types.ReportPending,
	}))
	require.NoError(t, store.SaveReport(ctx, &types.BugReport{
		ID:          "report-2",
		Summary:     "Old filed report",
		Confidence:  types.ConfidenceHigh,
		Status:      types.ReportFiled,
		IssueNumber: 3,
		IssueURL:    "https://github.com/Mudlet/Mudlet/issues/3",
	}))
	require.NoError(t, store.Close())

	out, err := executeCommand(t, "pending", "--db", dbFile)
	require.NoError(t, err)
	assert.Contains(t, out, "report-1")
	assert.Contains(t, out, "Mapper crashes when adding a room")
	assert.NotContains(t, out, "report-2")
}

func TestCommandsRequireConfiguration(t *testing.T) {
	clearCredentials(t)
	dbFile := filepath.Join(t.TempDir(), "reports.db")

	_, err := executeCommand(t, "file", "report-1", "--db", dbFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	_, err = executeCommand(t, "extract", "--db", dbFile)
	assert.ErrorContains(t, err, "--conversation is required")
}

func TestReadConversation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, writeFile(path, `[{"id":"11","author":"alice","content":"mapper crash"},{"author":"","content":"same"}]`))

	messages, err := readConversation(path)
	require.NoError(t, err)
	assert.Equal(t, []types.Message{{ID: "11", Author: "alice", Content: "mapper crash"}, {Content: "same"}}, messages)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, writeFile(bad, `{"author":"alice"}`))
	_, err = readConversation(bad)
	assert.ErrorContains(t, err, "failed to parse conversation")

	_, err = readConversation(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read conversation")
}

func TestRegisterChecks(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewStore(ctx, &storage.Config{Path: filepath.Join(t.TempDir(), "reports.db")})
	require.NoError(t, err)
	defer store.Close()

	budgetCfg := cost.DefaultConfig()
	budgetCfg.PersistStatePath = ""
	budgetCfg.MaxTokensPerHour = 10
	budget, err := cost.NewTracker(budgetCfg, quietLogger())
	require.NoError(t, err)

	registry := health.NewRegistry(time.Second)
	require.NoError(t, registerChecks(registry, store, ai.NewExtractorWithProviders(nil, ai.RetryConfig{}, nil), budget))
	assert.Equal(t, []string{"budget", "llm", "store"}, registry.Names())

	report := registry.Check(ctx)
	assert.Equal(t, health.StatusDegraded, report.Status)
	assert.Equal(t, health.StatusOK, report.Components["store"])
	assert.Equal(t, health.StatusOK, report.Components["budget"])
	assert.Contains(t, report.Components["llm"], ai.ErrNoProviders.Error())

	budget.RecordUsage(ai.ProviderOpenAI, 10, 0)
	report = registry.Check(ctx)
	assert.Contains(t, report.Components["budget"], cost.ErrBudgetExceeded.Error())
}

type nopExtractor struct{}

func (nopExtractor) Extract(context.Context, []types.Message) (*types.Extraction, error) {
	return &types.Extraction{Summary: "unused"}, nil
}

type nopTracker struct{}

func (nopTracker) Labels(context.Context) ([]string, error) { return nil, nil }

func (nopTracker) CreateIssue(context.Context, *types.BugReport) (*gh.Issue, error) {
	return &gh.Issue{Number: 1}, nil
}

func TestRunExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(ctx, &storage.Config{Path: filepath.Join(t.TempDir(), "reports.db")})
	require.NoError(t, err)
	defer store.Close()

	old := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, store.SaveReport(ctx, &types.BugReport{
		ID:         "stale",
		Summary:    "Stale preview",
		Confidence: types.ConfidenceHigh,
		Status:     types.ReportPending,
		CreatedAt:  old,
		UpdatedAt:  old,
	}))
	require.NoError(t, store.SaveReport(ctx, &types.BugReport{
		ID:         "fresh",
		Summary:    "Fresh preview",
		Confidence: types.ConfidenceHigh,
		Status:     types.ReportPending,
	}))

	svc, err := reporter.NewService(nopExtractor{}, nopTracker{}, store, reporter.Options{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		runExpiry(ctx, svc, time.Hour, quietLogger())
	}()

	assert.Eventually(t, func() bool {
		r, err := store.GetReport(context.Background(), "stale")
		return err == nil && r.Status == types.ReportExpired
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	fresh, err := store.GetReport(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, types.ReportPending, fresh.Status)
}

func TestUsageCommand(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "cost_state.json")
	t.Setenv("BUGBOT_COST_STATE_PATH", statePath)

	out, err := executeCommand(t, "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "No LLM usage recorded")

	budgetCfg := cost.DefaultConfig()
	budgetCfg.PersistStatePath = statePath
	tracker, err := cost.NewTracker(budgetCfg, quietLogger())
	require.NoError(t, err)
	tracker.RecordUsage(ai.ProviderAnthropic, 900, 100)

	out, err = executeCommand(t, "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "1000 / 200000 tokens")
	assert.Contains(t, out, "over 1 calls")
	assert.Contains(t, out, "anthropic:")
}
