package schemas

import (
	"fmt"
	"strings"
)

const (
	MinSeatRow = 1
	MaxSeatRow = 30
)

// SeatLetters lists the valid seat letters in cabin order. A and F are window seats.
var SeatLetters = []string{"A", "B", "C", "D", "E", "F"}

// SeatPreference is a parsed seat choice. Build it with NewSeatPreference.
type SeatPreference struct {
	Row  int    `json:"row"`
	Seat string `json:"seat"`
}

// NewSeatPreference rejects rows outside [MinSeatRow, MaxSeatRow] and unknown seat letters.
func NewSeatPreference(row int, seat string) (SeatPreference, error) {
	if row < MinSeatRow || row > MaxSeatRow {
		return SeatPreference{}, fmt.Errorf("%w: row must be between %d and %d, got %d", ErrConstruction, MinSeatRow, MaxSeatRow, row)
	}
	if !isSeatLetter(seat) {
		return SeatPreference{}, fmt.Errorf("%w: seat must be one of %s, got %q", ErrConstruction, strings.Join(SeatLetters, ","), seat)
	}
	return SeatPreference{Row: row, Seat: seat}, nil
}

func (s SeatPreference) String() string { return fmt.Sprintf("%d%s", s.Row, s.Seat) }

// SeatParseFailed reports that no seat preference could be read from the user's text.
type SeatParseFailed struct{}

func (SeatParseFailed) String() string { return "could not parse seat preference" }

// SeatResult is either a SeatPreference or SeatParseFailed.
type SeatResult interface {
	isSeatResult()
}

func (SeatPreference) isSeatResult()  {}
func (SeatParseFailed) isSeatResult() {}

func isSeatLetter(seat string) bool {
	for _, l := range SeatLetters {
		if seat == l {
			return true
		}
	}
	return false
}
