package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
)

// LLMRouter implements the LLMClient interface and routes requests by model tier.
type LLMRouter struct {
	logger  *zap.Logger
	clients map[schemas.ModelTier]schemas.LLMClient
}

// NewLLMRouter creates a new router with the specified clients for each tier. The same
// client may serve both tiers.
func NewLLMRouter(logger *zap.Logger, fastClient, powerfulClient schemas.LLMClient) (*LLMRouter, error) {
	if fastClient == nil || powerfulClient == nil {
		return nil, fmt.Errorf("both fast and powerful tier clients must be provided")
	}

	return &LLMRouter{
		logger: logger.Named("llm_router"),
		clients: map[schemas.ModelTier]schemas.LLMClient{
			schemas.TierFast:     fastClient,
			schemas.TierPowerful: powerfulClient,
		},
	}, nil
}

// Complete selects the client for the request's tier. An empty tier means powerful.
func (r *LLMRouter) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
	tier := req.Tier
	if tier == "" {
		tier = schemas.TierPowerful
	}

	client, ok := r.clients[tier]
	if !ok {
		return nil, fmt.Errorf("no LLM client configured for tier: %s", tier)
	}

	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)), zap.Int("messages", len(req.Messages)))
	return client.Complete(ctx, req)
}

// Close closes every distinct underlying client.
func (r *LLMRouter) Close() error {
	fast, powerful := r.clients[schemas.TierFast], r.clients[schemas.TierPowerful]
	err := fast.Close()
	if powerful != fast {
		err = errors.Join(err, powerful.Close())
	}
	return err
}
