package protocol

import "math"

// Bounds shared by every score field, inclusive.
const (
	ScoreMin = 0.0
	ScoreMax = 5.0
)

// Score holds the five rating dimensions submitted with a review and
// aggregated on a hotel. Values are rounded to two decimal places when set
// through the setters; raw values arriving from clients are validated with
// Validate before use.
type Score struct {
	Global   float64 `json:"global"`
	Position float64 `json:"position"`
	Cleaning float64 `json:"cleaning"`
	Service  float64 `json:"service"`
	Price    float64 `json:"price"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func inRange(v float64) bool {
	return v >= ScoreMin && v <= ScoreMax
}

// Validate checks each field against the shared bounds and returns the
// error code of the first out-of-range field, or ErrNone when all five are
// valid. The check order (cleaning, global, position, price, service) is
// part of the observable protocol behavior.
func (s Score) Validate() ErrCode {
	switch {
	case !inRange(s.Cleaning):
		return ErrScoreCleaning
	case !inRange(s.Global):
		return ErrScoreGlobal
	case !inRange(s.Position):
		return ErrScorePosition
	case !inRange(s.Price):
		return ErrScorePrice
	case !inRange(s.Service):
		return ErrScoreService
	}
	return ErrNone
}

// SetGlobal stores v rounded to two decimals.
func (s *Score) SetGlobal(v float64) { s.Global = round2(v) }

// SetPosition stores v rounded to two decimals.
func (s *Score) SetPosition(v float64) { s.Position = round2(v) }

// SetCleaning stores v rounded to two decimals.
func (s *Score) SetCleaning(v float64) { s.Cleaning = round2(v) }

// SetService stores v rounded to two decimals.
func (s *Score) SetService(v float64) { s.Service = round2(v) }

// SetPrice stores v rounded to two decimals.
func (s *Score) SetPrice(v float64) { s.Price = round2(v) }

// Mean averages the five fields.
func (s Score) Mean() float64 {
	return (s.Global + s.Position + s.Cleaning + s.Service + s.Price) / 5
}
