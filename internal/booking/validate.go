package booking

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/flight-agent-cli/api/schemas"
	"github.com/xkilldash9x/flight-agent-cli/internal/agent"
)

// ValidateSearchResult checks a found flight against what the user asked for. NoFlightFound
// passes unchanged. A mismatch returns a RetryError listing every failed check, one per line.
//
// Only origin, destination and date are checked; whether the model picked the cheapest
// matching flight is not verified here.
func ValidateSearchResult(result schemas.SearchResult, criteria schemas.SearchCriteria) (schemas.SearchResult, error) {
	flight, ok := result.(schemas.FlightRecord)
	if !ok {
		return result, nil
	}

	if msgs := mismatches(flight, criteria); len(msgs) > 0 {
		return nil, agent.Retry(strings.Join(msgs, "\n"))
	}
	return flight, nil
}

func mismatches(flight schemas.FlightRecord, criteria schemas.SearchCriteria) []string {
	var msgs []string
	if flight.Origin != criteria.Origin {
		msgs = append(msgs, fmt.Sprintf("Flight should have origin %s, not %s", criteria.Origin, flight.Origin))
	}
	if flight.Destination != criteria.Destination {
		msgs = append(msgs, fmt.Sprintf("Flight should have destination %s, not %s", criteria.Destination, flight.Destination))
	}
	if flight.Date != criteria.Date {
		msgs = append(msgs, fmt.Sprintf("Flight should be on %s, not %s", criteria.Date, flight.Date))
	}
	return msgs
}
