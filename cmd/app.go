package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/ai"
	"github.com/spigell/profile-fusion/internal/ai/gemini"
	"github.com/spigell/profile-fusion/internal/filtering"
	"github.com/spigell/profile-fusion/internal/logger"
	"github.com/spigell/profile-fusion/internal/pipeline"
	"github.com/spigell/profile-fusion/internal/profile"
	"github.com/spigell/profile-fusion/internal/secrets"
	"github.com/spigell/profile-fusion/internal/sources"
	"github.com/spigell/profile-fusion/internal/store"
)

// runtime holds everything a command needs. Close releases it.
type runtime struct {
	config  *Config
	logger  *zap.Logger
	service *pipeline.Service

	closers []func() error
}

func newRuntime(ctx context.Context) (*runtime, error) {
	logger, err := logger.New(logger.Options{
		JSON:    viper.GetBool("json"),
		Debug:   viper.GetBool("debug"),
		Version: version,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, err
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	rt := &runtime{config: config, logger: logger}
	if err := rt.build(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	return rt, nil
}

func (rt *runtime) build(ctx context.Context) error {
	cfg := rt.config

	st, err := newStore(cfg.Storage)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, st.Close)

	locker, err := rt.newLocker(ctx)
	if err != nil {
		return err
	}

	generator, err := newGenerator(ctx, cfg.AI, rt.logger)
	if err != nil {
		return fmt.Errorf("building ai generator: %w", err)
	}

	registry, err := newRegistry(cfg, generator, rt.logger)
	if err != nil {
		return err
	}

	var enhancer ai.Enhancer
	if generator != nil {
		enhancer = ai.NewEnhancer(generator, rt.logger, ai.EnhancerOptions{
			Skills: filtering.Config{
				ExcludeFile: cfg.Skills.ExcludeFile,
				MaxLength:   cfg.Skills.MaxLength,
				Sort:        cfg.Skills.Sort,
				Disabled:    cfg.Skills.Disable,
			},
			Instructions: cfg.AI.Instructions,
			MaxLogLength: cfg.AI.MaxLogLength,
			Provider:     cfg.AI.Provider,
		})
	} else {
		rt.logger.Info("ai is disabled", zap.String("hint", "set ai.enabled to use cv extraction and enhancement"))
	}

	rt.service = pipeline.New(st, locker, registry, enhancer, rt.logger, pipeline.Options{
		EnhanceTimeout: cfg.AI.Timeout,
	})

	return nil
}

// Close waits for background jobs and releases storage and lock clients.
func (rt *runtime) Close() {
	if rt.service != nil {
		rt.service.Wait()
	}

	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("closing resource", zap.Error(err))
		}
	}
	rt.logger.Sync()
}

func newStore(cfg StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		st, err := store.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func (rt *runtime) newLocker(ctx context.Context) (store.Locker, error) {
	cfg := rt.config.Lock

	if cfg.Driver != "redis" {
		return store.NewLocalLocker(cfg.Wait), nil
	}

	locker, client, err := store.NewRedisLocker(ctx, store.RedisOptions{
		URL:  cfg.RedisURL,
		TTL:  cfg.TTL,
		Wait: cfg.Wait,
	}, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	rt.closers = append(rt.closers, client.Close)

	return locker, nil
}

// newGenerator returns nil when ai is disabled.
func newGenerator(ctx context.Context, cfg AIConfig, logger *zap.Logger) (ai.Generator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, gemini.Options{
		APIKey:     apiKey,
		Model:      cfg.Gemini.Model,
		MaxRetries: cfg.Gemini.MaxRetries,
	}, genLogger)
	if err != nil {
		return nil, err
	}

	return generator, nil
}

func newRegistry(cfg *Config, generator ai.Generator, logger *zap.Logger) (*sources.Registry, error) {
	var extractor ai.Extractor
	if generator != nil {
		extractor = ai.NewExtractor(generator, logger, cfg.AI.MaxLogLength)
	}

	token, err := secrets.Load(secrets.Source{
		Name:     "github token",
		Value:    cfg.GitHub.Token,
		File:     cfg.GitHub.TokenFile,
		Env:      "GITHUB_TOKEN",
		Optional: true,
	})
	if err != nil {
		return nil, err
	}
	if token == "" {
		logger.Debug("github token is not set, using anonymous rate limits")
	}

	registry := sources.NewRegistry(logger, cfg.Sources.Timeout,
		sources.NewCVAdapter(extractor, cfg.CV.MaxBytes, logger),
		sources.NewLinkedInAdapter(sources.LinkedInOptions{UserAgent: cfg.LinkedIn.UserAgent}, logger),
		sources.NewGitHubAdapter(sources.GitHubOptions{
			APIURL:            cfg.GitHub.APIURL,
			Token:             token,
			RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
			ParseReadme:       cfg.GitHub.ParseReadme,
		}, extractor, logger),
	)

	platforms := make([]string, 0, len(profile.Platforms))
	for _, p := range registry.Platforms() {
		platforms = append(platforms, p.String())
	}
	logger.Debug("source adapters ready", zap.Strings("platforms", platforms))

	return registry, nil
}
