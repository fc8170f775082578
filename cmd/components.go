// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/booking"
	"github.com/xkilldash9x/flight-agent-cli/internal/cache"
	"github.com/xkilldash9x/flight-agent-cli/internal/config"
	"github.com/xkilldash9x/flight-agent-cli/internal/llmclient"
	"github.com/xkilldash9x/flight-agent-cli/internal/store"
)

// Seams replaced in tests.
var (
	newLLMClient = func(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (schemas.LLMClient, error) {
		return llmclient.NewRouterFromConfig(ctx, cfg, logger)
	}
	newCache = cache.New
)

// components holds everything a command opened and must release.
type components struct {
	LLM       schemas.LLMClient
	Cache     cache.Cache
	Pool      *pgxpool.Pool
	Extractor *booking.Extractor
	Options   booking.Options
	logger    *zap.Logger
}

// initializeComponents opens the model client and cache and builds the extractor.
func initializeComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*components, error) {
	c := &components{logger: logger}

	llm, err := newLLMClient(ctx, cfg.Agent(), logger)
	if err != nil {
		return c, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	c.LLM = llm

	extractionCache, err := newCache(ctx, cfg.Cache(), logger)
	if err != nil {
		return c, fmt.Errorf("failed to initialize extraction cache: %w", err)
	}
	c.Cache = extractionCache

	c.Options = booking.Options{MaxRetries: cfg.Agent().MaxRetries}
	if rps := cfg.Agent().RequestsPerSecond; rps > 0 {
		c.Options.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	c.Extractor, err = booking.NewExtractor(c.LLM, c.Cache, logger, c.Options)
	if err != nil {
		return c, err
	}
	return c, nil
}

// purchaser returns the log purchaser, wrapped in the PostgreSQL store when a database
// is configured.
func (c *components) purchaser(ctx context.Context, cfg config.Interface, base booking.Purchaser) (booking.Purchaser, error) {
	url := cfg.Purchase().DatabaseURL
	if url == "" {
		return base, nil
	}
	pool, err := store.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	c.Pool = pool

	s, err := store.New(ctx, pool, base, c.logger)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Shutdown releases whatever was opened.
func (c *components) Shutdown() {
	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			c.logger.Warn("Failed to close LLM client", zap.Error(err))
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.logger.Warn("Failed to close extraction cache", zap.Error(err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
