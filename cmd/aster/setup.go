package main

import (
	"context"
	"fmt"

	"aster/internal/blobstore"
	"aster/internal/catalogue"
	"aster/internal/config"
	"aster/internal/engine"
	"aster/internal/logging"
	"aster/internal/metrics"
	"aster/internal/modelhttp"
	"aster/internal/observability"
	"aster/internal/store/file"
	"aster/internal/tools/builtin"
)

// app holds the wired runtime for one CLI invocation.
type app struct {
	config   *config.Config
	engine   *engine.Engine
	shutdown func(context.Context) error
}

// buildApp wires the engine over the file-backed store so tasks survive
// between invocations.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel == "" && cfg.LogLevel != "" {
		logging.SetDefaultLevel(logging.ParseLevel(cfg.LogLevel))
	}
	logger := logging.NewComponentLogger("aster")

	store, err := file.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	blobs, err := blobstore.NewFilesystemStore(cfg.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	registry := catalogue.NewRegistry()
	var manifest *catalogue.Manifest
	if cfg.Tools.ManifestPath != "" {
		manifest, err = catalogue.LoadManifest(cfg.Tools.ManifestPath)
		if err != nil {
			return nil, err
		}
	}
	ws := builtin.Workspace{Root: cfg.Workspace}
	if err := builtin.Register(registry, ws, manifest.CacheConfig()); err != nil {
		return nil, err
	}

	shutdown := func(context.Context) error { return nil }
	if cfg.Telemetry.Enabled {
		shutdown, err = observability.Init(ctx, observability.Config{
			ServiceName:    "aster",
			ServiceVersion: version,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
		})
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	model := modelhttp.New(modelhttp.Config{
		BaseURL:     cfg.Model.BaseURL,
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	}, logger)

	eng := engine.New(engine.Config{
		Store:        store,
		HITL:         store,
		Blobs:        blobs,
		Model:        model,
		Tools:        manifest.Apply(registry),
		Events:       store,
		Logger:       logger,
		Metrics:      metrics.Default(),
		SystemPrompt: cfg.Engine.SystemPrompt,
		MaxSteps:     cfg.Engine.MaxSteps,
		WallClock:    cfg.Engine.WallClock,
		ToolTimeout:  cfg.Engine.ToolTimeout,
		HITLTimeout:  cfg.Engine.HITLTimeout,
	})

	return &app{config: cfg, engine: eng, shutdown: shutdown}, nil
}

// close flushes telemetry and stops background timers.
func (a *app) close(ctx context.Context) {
	a.engine.Close()
	_ = a.shutdown(ctx)
}
