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
	// SeatSystemPrompt instructs the seat preference agent.
	SeatSystemPrompt = "Extract the user's seat preference. " +
		"Seats A and F are window seats. " +
		"Row 1 is the front row and has extra leg room. " +
		"Rows 10 and 30 also have extra leg room."

	// SeatQuestion is asked before every seat parsing attempt.
	SeatQuestion = "What seat would you like?"

	seatNotUnderstood = "Could not understand seat preference. Please try again."
)

// Prompter is the interactive console used by the booking flow.
type Prompter interface {
	Ask(ctx context.Context, question string) (string, error)
	Choose(ctx context.Context, question string, choices []string) (string, error)
	Say(msg string)
}

type seatParams struct {
	Row  int    `json:"row" jsonschema:"minimum=1,maximum=30"`
	Seat string `json:"seat" jsonschema:"enum=A,enum=B,enum=C,enum=D,enum=E,enum=F"`
}

// SeatSelector runs the seat selection loop.
type SeatSelector struct {
	agent    *agent.Agent[struct{}, schemas.SeatResult]
	prompter Prompter
	logger   *zap.Logger
}

// NewSeatSelector builds the seat agent on the powerful model tier.
func NewSeatSelector(client schemas.LLMClient, prompter Prompter, logger *zap.Logger, opts Options) (*SeatSelector, error) {
	if prompter == nil {
		return nil, fmt.Errorf("seat selector requires a prompter")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a, err := agent.New(client, logger, agent.Config[struct{}, schemas.SeatResult]{
		Name:         "seat",
		SystemPrompt: SeatSystemPrompt,
		Tier:         schemas.TierPowerful,
		Outputs: []agent.Output[schemas.SeatResult]{
			agent.NewOutput("SeatPreference", "The seat the user asked for.",
				func(p seatParams) (schemas.SeatResult, error) { return schemas.NewSeatPreference(p.Row, p.Seat) }),
			agent.NewOutput("SeatParseFailed", "Unable to extract a seat selection.",
				func(struct{}) (schemas.SeatResult, error) { return schemas.SeatParseFailed{}, nil }),
		},
		Temperature: opts.Temperature,
		Limiter:     opts.Limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create seat agent: %w", err)
	}
	return &SeatSelector{agent: a, prompter: prompter, logger: logger.Named("seat")}, nil
}

// Parse runs a single parsing attempt of text on top of history.
func (s *SeatSelector) Parse(ctx context.Context, text string, history []schemas.Message, budget *usage.Budget) (*agent.RunResult[schemas.SeatResult], error) {
	res, err := s.agent.Run(ctx, text, struct{}{}, history, budget)
	if err != nil {
		return nil, fmt.Errorf("seat parsing failed: %w", err)
	}
	return res, nil
}

// Select asks the user until a seat preference is understood. Only the budget bounds the
// number of attempts; each failed exchange is carried into the next attempt.
func (s *SeatSelector) Select(ctx context.Context, budget *usage.Budget) (schemas.SeatPreference, error) {
	history := agent.NewHistory()
	for attempt := 1; ; attempt++ {
		answer, err := s.prompter.Ask(ctx, SeatQuestion)
		if err != nil {
			return schemas.SeatPreference{}, err
		}

		res, err := s.Parse(ctx, answer, history.Messages(), budget)
		if err != nil {
			return schemas.SeatPreference{}, err
		}
		if seat, ok := res.Output.(schemas.SeatPreference); ok {
			s.logger.Info("Seat selected.", zap.Stringer("seat", seat), zap.Int("attempts", attempt))
			return seat, nil
		}

		s.logger.Debug("Seat preference not understood.", zap.String("agent", s.agent.Name()), zap.Int("attempt", attempt))
		s.prompter.Say(seatNotUnderstood)
		history.Append(res.NewMessages()...)
	}
}
