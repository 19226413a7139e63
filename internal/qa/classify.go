package qa

// Class is the quality regime of a whole series.
type Class int

const (
	Standard Class = iota
	PermanentSnow
	InsufficientClear
	FillLight
)

func (c Class) String() string {
	switch c {
	case Standard:
		return "standard"
	case PermanentSnow:
		return "permanent-snow"
	case InsufficientClear:
		return "insufficient-clear"
	case FillLight:
		return "fill-light"
	}
	return "unknown"
}

// Thresholds parameterize Classify.
type Thresholds struct {
	// MinObservations is the smallest usable observation count.
	MinObservations int
	// ClearPct is the minimum clear-equivalent share of non-fill observations.
	ClearPct float64
	// SnowPct is the snow share above which a series is treated as permanent snow.
	SnowPct float64
}

// Classify assigns the series to a quality regime.
//
// A series with no real acquisitions is FillLight. One lacking clear
// observations (by count or share) is PermanentSnow when snow dominates its
// clear/water/snow subset and InsufficientClear otherwise.
func Classify(flags []int, th Thresholds) (Class, error) {
	c, err := Count(flags)
	if err != nil {
		return 0, err
	}

	if c.NonFill() == 0 {
		return FillLight, nil
	}

	if c.ClearEquivalent() < th.MinObservations || c.ClearFraction() < th.ClearPct {
		if c.SnowFraction() > th.SnowPct {
			return PermanentSnow, nil
		}
		return InsufficientClear, nil
	}

	return Standard, nil
}
