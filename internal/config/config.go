// Package config loads bot configuration from the environment and an
// optional .env file. Only cmd/bugbot should call Load; other packages
// receive the values they need.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mudlet/bugbot/internal/ai"
	"github.com/mudlet/bugbot/internal/cost"
	"github.com/mudlet/bugbot/internal/deduplication"
	gh "github.com/mudlet/bugbot/internal/github"
)

// Defaults for optional settings
const (
	DefaultLLMProvider = ai.ProviderOpenAI
	DefaultGitHubRepo  = "Mudlet/Mudlet"
	DefaultHealthPort  = 8080
	DefaultLogLevel    = "INFO"
	DefaultLogFormat   = "text"
	DefaultDBPath      = ".bugbot/bugbot.db"
)

// Config holds every runtime option the bot needs
type Config struct {
	// Discord
	DiscordToken string
	TestGuildID  string

	// LLM
	LLMProvider  string
	OpenAIKey    string
	AnthropicKey string

	// GitHub
	GitHubToken          string
	GitHubAppID          string
	GitHubPrivateKeyPath string
	GitHubInstallationID string
	GitHubRepo           string

	// Permissions; empty allows everyone
	AllowedRoles []string

	// Features
	EnableImageAnalysis bool
	Dedup               deduplication.Config
	Cost                *cost.Config

	// Runtime
	HealthPort        int
	LogLevel          string
	LogFormat         string
	DBPath            string
	LabelPatternsPath string
}

// Load reads .env files (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables
func FromEnv() (*Config, error) {
	cfg := &Config{
		DiscordToken:         os.Getenv("DISCORD_BOT_TOKEN"),
		TestGuildID:          os.Getenv("DISCORD_TEST_GUILD_ID"),
		LLMProvider:          strings.ToLower(getEnv("LLM_PROVIDER", DefaultLLMProvider)),
		OpenAIKey:            os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:         os.Getenv("ANTHROPIC_API_KEY"),
		GitHubToken:          os.Getenv("GITHUB_TOKEN"),
		GitHubAppID:          os.Getenv("GITHUB_APP_ID"),
		GitHubPrivateKeyPath: os.Getenv("GITHUB_PRIVATE_KEY_PATH"),
		GitHubInstallationID: os.Getenv("GITHUB_INSTALLATION_ID"),
		GitHubRepo:           getEnv("GITHUB_REPO", DefaultGitHubRepo),
		AllowedRoles:         splitList(os.Getenv("BUG_COMMAND_ROLES")),
		EnableImageAnalysis:  getBool("ENABLE_IMAGE_ANALYSIS", true),
		HealthPort:           DefaultHealthPort,
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:            getEnv("LOG_FORMAT", DefaultLogFormat),
		DBPath:               getEnv("BUGBOT_DB", DefaultDBPath),
		LabelPatternsPath:    os.Getenv("BUGBOT_LABEL_PATTERNS"),
	}

	if v := os.Getenv("HEALTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			return nil, fmt.Errorf("invalid HEALTH_PORT %q: must be a port number", v)
		}
		cfg.HealthPort = port
	}

	dedup, err := deduplication.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Dedup = dedup

	budget, err := cost.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Cost = budget

	return cfg, nil
}

// Validate returns one message per missing required setting.
// A Discord token is only required when requireDiscord is set.
func (c *Config) Validate(requireDiscord bool) []string {
	var problems []string
	if requireDiscord && c.DiscordToken == "" {
		problems = append(problems, "DISCORD_BOT_TOKEN is required")
	}
	if c.OpenAIKey == "" && c.AnthropicKey == "" {
		problems = append(problems, "At least one of OPENAI_API_KEY or ANTHROPIC_API_KEY is required")
	}
	if c.GitHubToken == "" && c.GitHubAppID == "" {
		problems = append(problems, "Either GITHUB_TOKEN or GITHUB_APP_ID is required")
	}
	if c.LLMProvider != ai.ProviderOpenAI && c.LLMProvider != ai.ProviderAnthropic {
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER must be %q or %q (got %q)",
			ai.ProviderOpenAI, ai.ProviderAnthropic, c.LLMProvider))
	}
	if _, _, err := gh.SplitRepo(c.GitHubRepo); err != nil {
		problems = append(problems, fmt.Sprintf("GITHUB_REPO: %v", err))
	}
	return problems
}

// Owner returns the repository owner
func (c *Config) Owner() string {
	owner, _, _ := gh.SplitRepo(c.GitHubRepo)
	return owner
}

// Name returns the repository name
func (c *Config) Name() string {
	_, name, _ := gh.SplitRepo(c.GitHubRepo)
	return name
}

// AIConfig returns the extractor settings
func (c *Config) AIConfig() *ai.Config {
	return &ai.Config{
		Primary:      c.LLMProvider,
		OpenAIKey:    c.OpenAIKey,
		AnthropicKey: c.AnthropicKey,
	}
}

// GitHubConfig returns the GitHub client settings
func (c *Config) GitHubConfig() gh.Config {
	return gh.Config{
		Token:          c.GitHubToken,
		AppID:          c.GitHubAppID,
		PrivateKeyPath: c.GitHubPrivateKeyPath,
		InstallationID: c.GitHubInstallationID,
		Repo:           c.GitHubRepo,
	}
}

// getEnv returns env[key] if set, otherwise defaultVal
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getBool treats only a case-insensitive "true" as true once the variable is set
func getBool(key string, defaultVal bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	return strings.EqualFold(strings.TrimSpace(val), "true")
}

// splitList parses a comma-separated list, dropping blanks
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
