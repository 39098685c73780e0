package repository

// Frequency is the lookback window used to compute an observation range.
type Frequency string

const (
	Freq1d Frequency = "1d"
	Freq1w Frequency = "1w"
	Freq1m Frequency = "1m"
	Freq1y Frequency = "1y"
)

// IsValidFrequency returns true if f is a supported frequency.
func IsValidFrequency(f Frequency) bool {
	switch f {
	case Freq1d, Freq1w, Freq1m, Freq1y:
		return true
	default:
		return false
	}
}

// DefaultFrequency returns the frequency used when a card has none.
func DefaultFrequency() Frequency { return Freq1m }

// NormalizeFrequency converts raw string to a valid frequency (or default).
func NormalizeFrequency(s string) Frequency {
	if s == "" {
		return DefaultFrequency()
	}
	f := Frequency(s)
	if IsValidFrequency(f) {
		return f
	}
	return DefaultFrequency()
}
