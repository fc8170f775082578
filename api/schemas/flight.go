package schemas

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ErrConstruction is wrapped by every constructor in this package when a field
// constraint is violated.
var ErrConstruction = errors.New("invalid value")

// FlightRecord is a single flight extracted from a listing. Build it with NewFlightRecord.
type FlightRecord struct {
	FlightNumber string     `json:"flight_number"`
	Price        int        `json:"price"`
	Origin       string     `json:"origin"`
	Destination  string     `json:"destination"`
	Date         civil.Date `json:"date"`
}

// NewFlightRecord validates every field and returns the record.
func NewFlightRecord(flightNumber string, price int, origin, destination string, date civil.Date) (FlightRecord, error) {
	if strings.TrimSpace(flightNumber) == "" {
		return FlightRecord{}, fmt.Errorf("%w: flight_number is required", ErrConstruction)
	}
	if price < 0 {
		return FlightRecord{}, fmt.Errorf("%w: price must not be negative, got %d", ErrConstruction, price)
	}
	if err := checkAirportCode("origin", origin); err != nil {
		return FlightRecord{}, err
	}
	if err := checkAirportCode("destination", destination); err != nil {
		return FlightRecord{}, err
	}
	if !date.IsValid() {
		return FlightRecord{}, fmt.Errorf("%w: date %q is not a calendar date", ErrConstruction, date.String())
	}
	return FlightRecord{
		FlightNumber: flightNumber,
		Price:        price,
		Origin:       origin,
		Destination:  destination,
		Date:         date,
	}, nil
}

func (f FlightRecord) String() string {
	return fmt.Sprintf("%s %s->%s on %s for $%d", f.FlightNumber, f.Origin, f.Destination, f.Date, f.Price)
}

// NoFlightFound reports that the listing holds no flight matching the request.
type NoFlightFound struct{}

func (NoFlightFound) String() string { return "no flight found" }

// SearchResult is either a FlightRecord or NoFlightFound.
type SearchResult interface {
	isSearchResult()
}

func (FlightRecord) isSearchResult()  {}
func (NoFlightFound) isSearchResult() {}

// SearchCriteria is what the user asked for plus the listing text to search.
type SearchCriteria struct {
	Origin      string
	Destination string
	Date        civil.Date
	SourceText  string
}

// NewSearchCriteria validates the requested route and date.
func NewSearchCriteria(origin, destination string, date civil.Date, sourceText string) (SearchCriteria, error) {
	if err := checkAirportCode("origin", origin); err != nil {
		return SearchCriteria{}, err
	}
	if err := checkAirportCode("destination", destination); err != nil {
		return SearchCriteria{}, err
	}
	if !date.IsValid() {
		return SearchCriteria{}, fmt.Errorf("%w: date %q is not a calendar date", ErrConstruction, date.String())
	}
	return SearchCriteria{
		Origin:      origin,
		Destination: destination,
		Date:        date,
		SourceText:  sourceText,
	}, nil
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: date %q must use the YYYY-MM-DD format", ErrConstruction, s)
	}
	return d, nil
}

// Confirmation is what a purchase sink hands back once a ticket is bought.
type Confirmation struct {
	ID          string         `json:"id"`
	Flight      FlightRecord   `json:"flight"`
	Seat        SeatPreference `json:"seat"`
	PurchasedAt time.Time      `json:"purchased_at"`
}

func checkAirportCode(field, code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: %s must be a three-letter airport code, got %q", ErrConstruction, field, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %s must be a three-letter airport code, got %q", ErrConstruction, field, code)
		}
	}
	return nil
}
