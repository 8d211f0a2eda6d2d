package matching

// Config holds the matching tunables. Decay and penalty values are
// configuration, not derivations from data; tests cover the boundary values.
type Config struct {
	// BufferDays extends the requested window on both sides so payouts that
	// arrive a few days after their charges still enter the pool.
	BufferDays int
	// DateWindowDays is the tolerance for amount_date passes.
	DateWindowDays int
	// DateEdgeConfidence is the confidence at the window edge; same-day
	// matches score 1.0 and decay linearly down to this floor.
	DateEdgeConfidence float64
	// AggregatePenalty is subtracted from the single-record confidence when
	// several entries are summed to cover one payout.
	AggregatePenalty float64
	// MinAggregateConfidence floors the penalized aggregate score.
	MinAggregateConfidence float64
	// MinConfidence discards pass results below it; the record is left for
	// the exception generator instead.
	MinConfidence float64
	// MaxAggregateCandidates caps the candidate pool for the aggregate pass;
	// larger pools are treated as "no aggregate match found".
	MaxAggregateCandidates int
	// MaxAggregateSize caps the number of entries summed per aggregate.
	MaxAggregateSize int
}

func DefaultConfig() Config {
	return Config{
		BufferDays:             5,
		DateWindowDays:         3,
		DateEdgeConfidence:     0.7,
		AggregatePenalty:       0.15,
		MinAggregateConfidence: 0.5,
		MinConfidence:          0.6,
		MaxAggregateCandidates: 16,
		MaxAggregateSize:       6,
	}
}

// DateConfidence returns the linearly decayed confidence for a match
// daysApart days from the record's date. 1.0 at same day, DateEdgeConfidence
// at the window edge.
func (c Config) DateConfidence(daysApart float64) float64 {
	if daysApart < 0 {
		daysApart = -daysApart
	}
	window := float64(c.DateWindowDays)
	if window == 0 || daysApart > window {
		return 0
	}
	return 1.0 - (1.0-c.DateEdgeConfidence)*(daysApart/window)
}
