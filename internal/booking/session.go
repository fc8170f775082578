package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/agent"
	"github.com/xkilldash9x/flight-agent-cli/internal/usage"
)

const (
	// BuyQuestion follows every flight the search returns.
	BuyQuestion = "Do you want to buy this flight, or keep searching? (buy/*search)"

	// AnotherFlightReturn replaces the accepted result in the history of a follow-up search.
	AnotherFlightReturn = "Please suggest another flight"

	noFlightFound = "No flight found"
)

var buyChoices = []string{"buy", "search", ""}

// OutcomeStatus says how a session ended.
type OutcomeStatus string

const (
	OutcomePurchased OutcomeStatus = "purchased"
	OutcomeNotFound  OutcomeStatus = "not_found"
)

// Outcome is a finished session.
type Outcome struct {
	Status       OutcomeStatus
	Flight       schemas.FlightRecord
	Seat         schemas.SeatPreference
	Confirmation schemas.Confirmation
	// Searches counts the search runs performed.
	Searches int
	Usage    usage.Usage
}

// SessionConfig wires a Session.
type SessionConfig struct {
	Searcher  *Searcher
	Seats     *SeatSelector
	Purchaser Purchaser
	Prompter  Prompter
	Limits    usage.Limits
	Logger    *zap.Logger
}

// Session drives one interactive booking from search to purchase.
type Session struct {
	searcher  *Searcher
	seats     *SeatSelector
	purchaser Purchaser
	prompter  Prompter
	limits    usage.Limits
	logger    *zap.Logger
}

// NewSession checks cfg and builds a Session.
func NewSession(cfg SessionConfig) (*Session, error) {
	switch {
	case cfg.Searcher == nil:
		return nil, errors.New("session requires a searcher")
	case cfg.Seats == nil:
		return nil, errors.New("session requires a seat selector")
	case cfg.Purchaser == nil:
		return nil, errors.New("session requires a purchaser")
	case cfg.Prompter == nil:
		return nil, errors.New("session requires a prompter")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		searcher:  cfg.Searcher,
		seats:     cfg.Seats,
		purchaser: cfg.Purchaser,
		prompter:  cfg.Prompter,
		limits:    cfg.Limits,
		logger:    logger.Named("session"),
	}, nil
}

// Run searches until the user buys a flight or the model finds none. Every model call of
// the session, nested extraction included, draws from one budget.
func (s *Session) Run(ctx context.Context, criteria schemas.SearchCriteria) (*Outcome, error) {
	budget := usage.NewBudget(s.limits)
	logger := s.logger.With(zap.String("session_id", uuid.NewString()))
	logger.Info("Session started.", zap.String("prompt", SearchPrompt(criteria)))

	history := agent.NewHistory()
	for searches := 1; ; searches++ {
		res, err := s.searcher.Search(ctx, criteria, history.Messages(), budget)
		if err != nil {
			logger.Error("Session aborted.", zap.Error(err), zap.Any("usage", budget.Snapshot()))
			return nil, err
		}

		switch result := res.Output.(type) {
		case schemas.NoFlightFound:
			s.prompter.Say(noFlightFound)
			logger.Info("Session finished without a flight.", zap.Any("usage", budget.Snapshot()))
			return &Outcome{Status: OutcomeNotFound, Searches: searches, Usage: budget.Snapshot()}, nil

		case schemas.FlightRecord:
			s.prompter.Say(fmt.Sprintf("Flight found: %s", result))
			answer, err := s.prompter.Choose(ctx, BuyQuestion, buyChoices)
			if err != nil {
				return nil, err
			}
			if answer != "buy" {
				history.Append(res.NewMessagesWithFinalReturn(AnotherFlightReturn)...)
				logger.Debug("User asked for another flight.", zap.String("rejected", result.FlightNumber), zap.Int("history_len", history.Len()))
				continue
			}

			seat, err := s.seats.Select(ctx, budget)
			if err != nil {
				logger.Error("Seat selection aborted.", zap.Error(err), zap.Any("usage", budget.Snapshot()))
				return nil, err
			}
			conf, err := s.purchaser.Purchase(ctx, result, seat)
			if err != nil {
				return nil, fmt.Errorf("purchase failed: %w", err)
			}
			logger.Info("Session finished with a purchase.", zap.String("confirmation_id", conf.ID), zap.Any("usage", budget.Snapshot()))
			return &Outcome{
				Status:       OutcomePurchased,
				Flight:       result,
				Seat:         seat,
				Confirmation: conf,
				Searches:     searches,
				Usage:        budget.Snapshot(),
			}, nil

		default:
			return nil, fmt.Errorf("unexpected search result %T", result)
		}
	}
}
