package booking_test

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/booking"
	"github.com/xkilldash9x/flight-agent-cli/internal/mocks"
)

// -- Fixtures --

const bostonListing = `Flight BOS-YYZ303, $120, BOS→YYZ, Jan 10 2025
Flight BOS-YYZ404, $250, BOS→YYZ, Jan 10 2025`

const alaskaListing = `Flight SFO-AK123, $350, SFO→ANC, Jan 21 2025
Flight NYC-LA101, $250, SFO→ANC, Jan 19 2025`

func date(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := schemas.ParseDate(s)
	require.NoError(t, err)
	return d
}

func flight(t *testing.T, number string, price int, origin, destination, day string) schemas.FlightRecord {
	t.Helper()
	rec, err := schemas.NewFlightRecord(number, price, origin, destination, date(t, day))
	require.NoError(t, err)
	return rec
}

func criteria(t *testing.T, origin, destination, day, listing string) schemas.SearchCriteria {
	t.Helper()
	c, err := schemas.NewSearchCriteria(origin, destination, date(t, day), listing)
	require.NoError(t, err)
	return c
}

func flightArgs(f schemas.FlightRecord) map[string]any {
	return map[string]any{
		"flight_number": f.FlightNumber,
		"price":         f.Price,
		"origin":        f.Origin,
		"destination":   f.Destination,
		"date":          f.Date.String(),
	}
}

// extracted scripts the extraction agent's answer.
func extracted(flights ...schemas.FlightRecord) mocks.Step {
	args := make([]map[string]any, 0, len(flights))
	for _, f := range flights {
		args = append(args, flightArgs(f))
	}
	return mocks.CallTool("final_result", map[string]any{"flights": args})
}

func callExtractFlights() mocks.Step {
	return mocks.CallTool(booking.ExtractFlightsTool, struct{}{})
}

func answerFlight(f schemas.FlightRecord) mocks.Step {
	return mocks.CallTool("final_result_FlightRecord", flightArgs(f))
}

func answerNotFound() mocks.Step {
	return mocks.CallTool("final_result_NoFlightFound", struct{}{})
}

// cheapestOracle reads the extract_flights result of the previous turn and answers with
// the cheapest flight matching c, or NoFlightFound.
func cheapestOracle(t *testing.T, c schemas.SearchCriteria) mocks.Step {
	return func(req schemas.CompletionRequest) (*schemas.CompletionResponse, error) {
		results := mocks.LastToolResults(req)
		require.Len(t, results, 1)
		require.Equal(t, booking.ExtractFlightsTool, results[0].Name)

		var flights []schemas.FlightRecord
		require.NoError(t, json.Unmarshal([]byte(results[0].Content), &flights))

		var best *schemas.FlightRecord
		for i, f := range flights {
			if f.Origin != c.Origin || f.Destination != c.Destination || f.Date != c.Date {
				continue
			}
			if best == nil || f.Price < best.Price {
				best = &flights[i]
			}
		}
		if best == nil {
			return answerNotFound()(req)
		}
		return answerFlight(*best)(req)
	}
}

func seatAnswer(row int, seat string) mocks.Step {
	return mocks.CallTool("final_result_SeatPreference", map[string]any{"row": row, "seat": seat})
}

func seatNotUnderstood() mocks.Step {
	return mocks.CallTool("final_result_SeatParseFailed", struct{}{})
}

func newSearcher(t *testing.T, llm schemas.LLMClient, cache booking.ExtractionCache) *booking.Searcher {
	t.Helper()
	logger := zaptest.NewLogger(t)
	extractor, err := booking.NewExtractor(llm, cache, logger, booking.Options{})
	require.NoError(t, err)
	searcher, err := booking.NewSearcher(llm, extractor, logger, booking.Options{MaxRetries: booking.DefaultSearchRetries})
	require.NoError(t, err)
	return searcher
}
