package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mudlet/bugbot/internal/ai"
	"github.com/mudlet/bugbot/internal/cost"
	"github.com/mudlet/bugbot/internal/deduplication"
	gh "github.com/mudlet/bugbot/internal/github"
	"github.com/mudlet/bugbot/internal/labels"
	"github.com/mudlet/bugbot/internal/logging"
	"github.com/mudlet/bugbot/internal/reporter"
	"github.com/mudlet/bugbot/internal/storage"
)

// app bundles the collaborators built from configuration
type app struct {
	store     storage.ReportStore
	extractor *ai.Extractor
	budget    *cost.Tracker
	github    *gh.Client
	service   *reporter.Service
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func openStore(ctx context.Context) (storage.ReportStore, error) {
	store, err := storage.NewStore(ctx, &storage.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}
	return store, nil
}

func newGitHubClient() (*gh.Client, error) {
	ghCfg := cfg.GitHubConfig()
	ghCfg.Logger = logging.New("github")
	return gh.NewClient(ghCfg)
}

// newApp builds the full reporting pipeline; requireDiscord is passed to
// configuration validation
func newApp(ctx context.Context, requireDiscord bool) (*app, error) {
	if problems := cfg.Validate(requireDiscord); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}

	budget, err := cost.NewTracker(cfg.Cost, logging.New("cost"))
	if err != nil {
		return nil, err
	}

	aiCfg := cfg.AIConfig()
	aiCfg.Logger = logging.New("ai")
	aiCfg.Budget = budget
	extractor, err := ai.NewExtractor(aiCfg)
	if err != nil {
		return nil, err
	}

	client, err := newGitHubClient()
	if err != nil {
		return nil, err
	}

	classifier, err := labels.LoadClassifier(cfg.LabelPatternsPath)
	if err != nil {
		return nil, err
	}

	opts := reporter.Options{
		AllowedRoles: cfg.AllowedRoles,
		Classifier:   classifier,
		Logger:       logging.New("reporter"),
	}
	if cfg.Dedup.Enabled {
		detector, err := deduplication.NewDetector(client, cfg.Dedup)
		if err != nil {
			return nil, err
		}
		opts.Duplicates = detector
	}

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	service, err := reporter.NewService(extractor, client, store, opts)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{store: store, extractor: extractor, budget: budget, github: client, service: service}, nil
}
