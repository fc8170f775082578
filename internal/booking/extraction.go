// Package booking implements the flight search and seat selection flows on top of the
// agent runtime.
package booking

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/agent"
	"github.com/xkilldash9x/flight-agent-cli/internal/usage"
)

// ExtractionSystemPrompt instructs the extraction agent.
const ExtractionSystemPrompt = "Extract all the flight details from the given text."

// Options tunes the agents built by this package.
type Options struct {
	// MaxRetries applies to the search agent.
	MaxRetries  int
	Temperature float64
	Limiter     *rate.Limiter
}

// ExtractionCache remembers extraction results by source text.
type ExtractionCache interface {
	Get(ctx context.Context, text string) ([]schemas.FlightRecord, bool, error)
	Put(ctx context.Context, text string, flights []schemas.FlightRecord) error
}

// flightParams is the shape the model fills in for one flight.
type flightParams struct {
	FlightNumber string `json:"flight_number"`
	Price        int    `json:"price"`
	Origin       string `json:"origin" jsonschema:"description=Three-letter airport code"`
	Destination  string `json:"destination" jsonschema:"description=Three-letter airport code"`
	Date         string `json:"date" jsonschema:"format=date"`
}

func (p flightParams) record() (schemas.FlightRecord, error) {
	date, err := schemas.ParseDate(p.Date)
	if err != nil {
		return schemas.FlightRecord{}, err
	}
	return schemas.NewFlightRecord(p.FlightNumber, p.Price, p.Origin, p.Destination, date)
}

type flightListParams struct {
	Flights []flightParams `json:"flights"`
}

// Extractor turns free text into flight records.
type Extractor struct {
	agent  *agent.Agent[struct{}, []schemas.FlightRecord]
	cache  ExtractionCache
	logger *zap.Logger
}

// NewExtractor builds the extraction agent on the fast model tier. cache may be nil.
func NewExtractor(client schemas.LLMClient, cache ExtractionCache, logger *zap.Logger, opts Options) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a, err := agent.New(client, logger, agent.Config[struct{}, []schemas.FlightRecord]{
		Name:         "extraction",
		SystemPrompt: ExtractionSystemPrompt,
		Tier:         schemas.TierFast,
		Outputs: []agent.Output[[]schemas.FlightRecord]{
			agent.NewOutput("flights", "Every flight found in the text, in the order it appears.", buildFlightList),
		},
		Temperature: opts.Temperature,
		Limiter:     opts.Limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction agent: %w", err)
	}
	return &Extractor{agent: a, cache: cache, logger: logger.Named("extractor")}, nil
}

// Extract returns every flight in text in source order. Zero flights is not an error.
func (e *Extractor) Extract(ctx context.Context, text string, budget *usage.Budget) ([]schemas.FlightRecord, error) {
	if e.cache != nil {
		flights, ok, err := e.cache.Get(ctx, text)
		switch {
		case err != nil:
			e.logger.Warn("Extraction cache lookup failed.", zap.Error(err))
		case ok:
			e.logger.Debug("Extraction cache hit.", zap.Int("flight_count", len(flights)))
			return flights, nil
		}
	}

	res, err := e.agent.Run(ctx, text, struct{}{}, nil, budget)
	if err != nil {
		return nil, fmt.Errorf("flight extraction failed: %w", err)
	}
	flights := res.Output
	e.logger.Info("Found flights.", zap.Int("flight_count", len(flights)))

	if e.cache != nil {
		if err := e.cache.Put(ctx, text, flights); err != nil {
			e.logger.Warn("Extraction cache store failed.", zap.Error(err))
		}
	}
	return flights, nil
}

func buildFlightList(p flightListParams) ([]schemas.FlightRecord, error) {
	flights := make([]schemas.FlightRecord, 0, len(p.Flights))
	for i, f := range p.Flights {
		rec, err := f.record()
		if err != nil {
			return nil, fmt.Errorf("flight %d: %w", i, err)
		}
		flights = append(flights, rec)
	}
	return flights, nil
}
