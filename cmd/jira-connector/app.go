package main

import (
	"context"
	"fmt"

	"github.com/providentiaww/jira-connector/internal/config"
	"github.com/providentiaww/jira-connector/internal/jira"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app bundles the pieces every subcommand needs: configuration, logger
// and an authenticated Jira client.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	client *jira.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if projectKey != "" {
		cfg.ProjectKey = projectKey
	}
	if cfg.ProjectKey == "" {
		return nil, fmt.Errorf("a project key is required (--project flag, config.yaml or JIRA_PROJECT_KEY)")
	}

	log, err := initLogger(cfg)
	if err != nil {
		return nil, err
	}

	client := jira.NewClient(jira.Credentials{
		Site:  cfg.JiraURL,
		Email: cfg.JiraUser,
		Token: cfg.JiraAPIKey,
	}, cfg.Timeout, log)

	return &app{cfg: cfg, log: log, client: client}, nil
}

// retriever builds a Retriever, which snapshots boards and projects up
// front.
func (a *app) retriever(ctx context.Context) (*jira.Retriever, error) {
	return jira.NewRetriever(ctx, a.client, jira.RetrieverOptions{
		BaseURL:       a.cfg.JiraURL,
		ProjectKey:    a.cfg.ProjectKey,
		PageSize:      a.cfg.PageSize,
		Flavor:        jira.Flavor(a.cfg.Flavor),
		EstimateField: a.cfg.EstimateField,
	}, a.log)
}

func (a *app) close() {
	_ = a.log.Sync()
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.LogFormat == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
