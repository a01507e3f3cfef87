package candidates

// Band is the presentational bucket of a rating.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Rating bounds.
const (
	MinRating = 0
	MaxRating = 10
)

// BandFor buckets a rating: 8 and up is high, 5 to 7 medium, below 5 low.
func BandFor(rating int) Band {
	switch {
	case rating >= 8:
		return BandHigh
	case rating >= 5:
		return BandMedium
	default:
		return BandLow
	}
}
