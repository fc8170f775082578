package booking

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
)

// uuidNewString is a package-level variable to allow mocking in tests.
var uuidNewString = uuid.NewString

// Purchaser completes a booking.
type Purchaser interface {
	Purchase(ctx context.Context, flight schemas.FlightRecord, seat schemas.SeatPreference) (schemas.Confirmation, error)
}

// NewConfirmation stamps a new confirmation for flight and seat.
func NewConfirmation(flight schemas.FlightRecord, seat schemas.SeatPreference, now time.Time) schemas.Confirmation {
	return schemas.Confirmation{
		ID:          uuidNewString(),
		Flight:      flight,
		Seat:        seat,
		PurchasedAt: now.UTC(),
	}
}

// LogPurchaser only announces the purchase. It is used when no store is configured.
type LogPurchaser struct {
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time
}

// NewLogPurchaser writes purchase notices to out.
func NewLogPurchaser(out io.Writer, logger *zap.Logger) *LogPurchaser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPurchaser{out: out, logger: logger.Named("purchase"), now: time.Now}
}

// Purchase announces the flight and seat and returns a fresh confirmation.
func (p *LogPurchaser) Purchase(ctx context.Context, flight schemas.FlightRecord, seat schemas.SeatPreference) (schemas.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Confirmation{}, err
	}
	conf := NewConfirmation(flight, seat, p.now())
	fmt.Fprintf(p.out, "Purchasing flight %s, seat %s...\n", flight, seat)
	p.logger.Info("Flight purchased.",
		zap.String("confirmation_id", conf.ID),
		zap.String("flight_number", flight.FlightNumber),
		zap.Stringer("seat", seat))
	return conf, nil
}
