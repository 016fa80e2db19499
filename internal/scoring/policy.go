package scoring

import (
	"errors"
	"fmt"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// ErrInconsistentThreshold rejects a decision policy whose thresholds
// cannot be satisfied together, such as a category threshold below the
// global floor.
var ErrInconsistentThreshold = errors.New("inconsistent threshold")

// Policy is the decision policy: the global confidence floor, per-category
// thresholds, the tie-break epsilon and the confidence saturation constant.
type Policy struct {
	GlobalFloor float64
	Thresholds  map[core.Category]float64
	Epsilon     float64
	SaturationK float64
}

// DefaultPolicy returns the documented default thresholds.
func DefaultPolicy() Policy {
	return Policy{
		GlobalFloor: 0.30,
		Thresholds: map[core.Category]float64{
			core.CategoryCotizacion: 0.40,
			core.CategoryRenovacion: 0.40,
			core.CategoryEndoso:     0.30,
		},
		Epsilon:     0.05,
		SaturationK: 45,
	}
}

// Validate rejects unusable policies. Configuration errors are fatal at
// startup, never discovered mid-batch.
func (p Policy) Validate() error {
	if p.GlobalFloor < 0 || p.GlobalFloor > 1 {
		return fmt.Errorf("%w: global floor %.2f outside [0,1]", ErrInconsistentThreshold, p.GlobalFloor)
	}
	if p.Epsilon < 0 || p.Epsilon >= 1 {
		return fmt.Errorf("%w: epsilon %.2f outside [0,1)", ErrInconsistentThreshold, p.Epsilon)
	}
	if p.SaturationK <= 0 {
		return fmt.Errorf("%w: saturation constant must be positive, got %.2f", ErrInconsistentThreshold, p.SaturationK)
	}
	for _, cat := range core.Categories() {
		th, ok := p.Thresholds[cat]
		if !ok {
			return fmt.Errorf("%w: no threshold configured for %s", ErrInconsistentThreshold, cat)
		}
		if th < p.GlobalFloor {
			return fmt.Errorf("%w: %s threshold %.2f below global floor %.2f", ErrInconsistentThreshold, cat, th, p.GlobalFloor)
		}
		if th > 1 {
			return fmt.Errorf("%w: %s threshold %.2f above 1", ErrInconsistentThreshold, cat, th)
		}
	}
	return nil
}

// ThresholdFor returns the decision threshold of a category.
func (p Policy) ThresholdFor(c core.Category) float64 {
	return p.Thresholds[c]
}

// Confidence maps a raw weighted score to [0,1). The curve raw/(raw+k) is
// monotonic and saturates toward 1, so marginal evidence still moves the
// confidence instead of clipping.
func (p Policy) Confidence(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (raw + p.SaturationK)
}
