package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/agent"
	"github.com/xkilldash9x/flight-agent-cli/internal/usage"
)

const (
	// SearchSystemPrompt instructs the search agent.
	SearchSystemPrompt = "Your job is to find the cheapest flight for the user on the given date."
	// DefaultSearchRetries is how many rejected answers one search tolerates.
	DefaultSearchRetries = 4

	// ExtractFlightsTool is the tool the search agent calls to read the listing.
	ExtractFlightsTool = "extract_flights"
)

type searchDeps struct {
	criteria  schemas.SearchCriteria
	extractor *Extractor
}

// Searcher runs the search loop: the model reads the listing through the extraction tool
// and answers with a flight or with NoFlightFound.
type Searcher struct {
	agent     *agent.Agent[searchDeps, schemas.SearchResult]
	extractor *Extractor
	logger    *zap.Logger
}

// NewSearcher builds the search agent on the powerful model tier.
func NewSearcher(client schemas.LLMClient, extractor *Extractor, logger *zap.Logger, opts Options) (*Searcher, error) {
	if extractor == nil {
		return nil, fmt.Errorf("searcher requires an extractor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := opts.MaxRetries
	if retries == 0 {
		retries = DefaultSearchRetries
	}

	a, err := agent.New(client, logger, agent.Config[searchDeps, schemas.SearchResult]{
		Name:         "search",
		SystemPrompt: SearchSystemPrompt,
		Tier:         schemas.TierPowerful,
		Tools:        []agent.Tool[searchDeps]{agent.NewTool(ExtractFlightsTool, "Get details of all flights.", extractFlights)},
		Outputs: []agent.Output[schemas.SearchResult]{
			agent.NewOutput("FlightRecord", "The cheapest flight matching the request.",
				func(p flightParams) (schemas.SearchResult, error) { return p.record() }),
			agent.NewOutput("NoFlightFound", "When there is no flight found.",
				func(struct{}) (schemas.SearchResult, error) { return schemas.NoFlightFound{}, nil }),
		},
		Validators:  []agent.OutputValidator[searchDeps, schemas.SearchResult]{validateAgainstCriteria},
		MaxRetries:  retries,
		Temperature: opts.Temperature,
		Limiter:     opts.Limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search agent: %w", err)
	}
	return &Searcher{agent: a, extractor: extractor, logger: logger.Named("searcher")}, nil
}

// SearchPrompt is the user turn that starts every search.
func SearchPrompt(c schemas.SearchCriteria) string {
	return fmt.Sprintf("Find me a flight from %s to %s on %s", c.Origin, c.Destination, c.Date)
}

// Search runs one search on top of history. The returned result's messages can seed a
// follow-up search.
func (s *Searcher) Search(ctx context.Context, criteria schemas.SearchCriteria, history []schemas.Message, budget *usage.Budget) (*agent.RunResult[schemas.SearchResult], error) {
	s.logger.Debug("Searching.",
		zap.String("agent", s.agent.Name()),
		zap.String("origin", criteria.Origin),
		zap.String("destination", criteria.Destination),
		zap.Stringer("date", criteria.Date),
		zap.Int("history_len", len(history)))

	deps := searchDeps{criteria: criteria, extractor: s.extractor}
	res, err := s.agent.Run(ctx, SearchPrompt(criteria), deps, history, budget)
	if err != nil {
		return nil, fmt.Errorf("flight search failed: %w", err)
	}
	return res, nil
}

func extractFlights(ctx context.Context, rc *searchRunContext, _ struct{}) (any, error) {
	return rc.Deps.extractor.Extract(ctx, rc.Deps.criteria.SourceText, rc.Budget)
}

func validateAgainstCriteria(_ context.Context, rc *searchRunContext, out schemas.SearchResult) (schemas.SearchResult, error) {
	return ValidateSearchResult(out, rc.Deps.criteria)
}

type searchRunContext = agent.RunContext[searchDeps]
