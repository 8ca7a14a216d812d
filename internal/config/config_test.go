package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DISCORD_BOT_TOKEN", "DISCORD_TEST_GUILD_ID", "LLM_PROVIDER", "OPENAI_API_KEY",
	"ANTHROPIC_API_KEY", "GITHUB_TOKEN", "GITHUB_APP_ID", "GITHUB_PRIVATE_KEY_PATH",
	"GITHUB_INSTALLATION_ID", "GITHUB_REPO", "BUG_COMMAND_ROLES", "ENABLE_DUPLICATE_DETECTION",
	"ENABLE_IMAGE_ANALYSIS", "HEALTH_PORT", "LOG_LEVEL", "LOG_FORMAT", "BUGBOT_DB",
	"BUGBOT_LABEL_PATTERNS", "BUGBOT_DEDUP_HIGH_THRESHOLD", "BUGBOT_DEDUP_MEDIUM_THRESHOLD",
	"BUGBOT_DEDUP_MAX_RESULTS", "BUGBOT_DEDUP_QUERY_KEYWORDS", "BUGBOT_COST_ENABLED",
	"BUGBOT_COST_MAX_TOKENS_PER_HOUR", "BUGBOT_COST_MAX_COST_PER_HOUR", "BUGBOT_COST_STATE_PATH",
}

// clearEnv blanks every variable the loader reads; t.Setenv restores them afterwards
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "Mudlet/Mudlet", cfg.GitHubRepo)
	assert.Equal(t, "Mudlet", cfg.Owner())
	assert.Equal(t, "Mudlet", cfg.Name())
	assert.Equal(t, 8080, cfg.HealthPort)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, ".bugbot/bugbot.db", cfg.DBPath)
	assert.Empty(t, cfg.AllowedRoles)
	assert.NotNil(t, cfg.AllowedRoles)
	assert.True(t, cfg.Dedup.Enabled)
	assert.True(t, cfg.EnableImageAnalysis)
	assert.InDelta(t, 0.7, cfg.Dedup.HighThreshold, 1e-9)
	require.NotNil(t, cfg.Cost)
	assert.True(t, cfg.Cost.Enabled)
	assert.Equal(t, ".bugbot/cost_state.json", cfg.Cost.PersistStatePath)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("GITHUB_REPO", "someone/fork")
	t.Setenv("BUG_COMMAND_ROLES", " Moderator, ,Helper ")
	t.Setenv("ENABLE_DUPLICATE_DETECTION", "false")
	t.Setenv("ENABLE_IMAGE_ANALYSIS", "yes")
	t.Setenv("HEALTH_PORT", "9090")
	t.Setenv("BUGBOT_DB", "/tmp/bugs.db")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, "someone", cfg.Owner())
	assert.Equal(t, "fork", cfg.Name())
	assert.Equal(t, []string{"Moderator", "Helper"}, cfg.AllowedRoles)
	assert.False(t, cfg.Dedup.Enabled)
	assert.False(t, cfg.EnableImageAnalysis, "only \"true\" enables a feature flag")
	assert.Equal(t, 9090, cfg.HealthPort)
	assert.Equal(t, "/tmp/bugs.db", cfg.DBPath)

	ac := cfg.AIConfig()
	assert.Equal(t, "anthropic", ac.Primary)
	assert.Equal(t, "someone/fork", cfg.GitHubConfig().Repo)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name, key, value, message string
	}{
		{"bad port", "HEALTH_PORT", "http", "invalid HEALTH_PORT"},
		{"port out of range", "HEALTH_PORT", "70000", "invalid HEALTH_PORT"},
		{"bad dedup flag", "ENABLE_DUPLICATE_DETECTION", "maybe", "ENABLE_DUPLICATE_DETECTION"},
		{"bad threshold", "BUGBOT_DEDUP_HIGH_THRESHOLD", "high", "BUGBOT_DEDUP_HIGH_THRESHOLD"},
		{"bad token budget", "BUGBOT_COST_MAX_TOKENS_PER_HOUR", "-5", "max_tokens_per_hour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	problems := cfg.Validate(true)
	assert.Equal(t, []string{
		"DISCORD_BOT_TOKEN is required",
		"At least one of OPENAI_API_KEY or ANTHROPIC_API_KEY is required",
		"Either GITHUB_TOKEN or GITHUB_APP_ID is required",
	}, problems)

	cfg.OpenAIKey = "sk"
	cfg.GitHubAppID = "123"
	assert.Empty(t, cfg.Validate(false))

	cfg.LLMProvider = "gemini"
	cfg.GitHubRepo = "nope"
	problems = cfg.Validate(false)
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "LLM_PROVIDER")
	assert.Contains(t, problems[1], "GITHUB_REPO")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GITHUB_TOKEN=from-file\nGITHUB_REPO=file/repo\n"), 0o600))
	t.Setenv("GITHUB_REPO", "env/repo")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.GitHubToken)
	assert.Equal(t, "env/repo", cfg.GitHubRepo, "environment wins over .env")

	// godotenv set the variable for the process; drop it so other tests see a clean env
	require.NoError(t, os.Unsetenv("GITHUB_TOKEN"))

	_, err = Load(filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}
