package aggregation

import (
	"errors"

	"Briefcaster/internal/domain"
)

// ErrNoItems is returned when asked to classify an empty run.
var ErrNoItems = errors.New("no items to classify")

// VolumeThresholds are the inclusive lower bounds of the two richer tiers.
type VolumeThresholds struct {
	Comprehensive int
	Detailed      int
}

// DefaultVolumeThresholds: 15+ comprehensive, 8-14 detailed, below 8 deep analysis.
var DefaultVolumeThresholds = VolumeThresholds{Comprehensive: 15, Detailed: 8}

// VolumeClassifier maps a routed item count to a strategy tier.
type VolumeClassifier struct {
	thresholds VolumeThresholds
}

// NewVolumeClassifier falls back to defaults for unset thresholds.
func NewVolumeClassifier(t VolumeThresholds) *VolumeClassifier {
	if t.Comprehensive <= 0 {
		t.Comprehensive = DefaultVolumeThresholds.Comprehensive
	}
	if t.Detailed <= 0 {
		t.Detailed = DefaultVolumeThresholds.Detailed
	}
	if t.Detailed > t.Comprehensive {
		t.Detailed = t.Comprehensive
	}
	return &VolumeClassifier{thresholds: t}
}

// Classify picks the tier for n items.
func (c *VolumeClassifier) Classify(n int) (domain.Tier, error) {
	switch {
	case n <= 0:
		return "", ErrNoItems
	case n >= c.thresholds.Comprehensive:
		return domain.TierComprehensive, nil
	case n >= c.thresholds.Detailed:
		return domain.TierDetailed, nil
	default:
		return domain.TierDeepAnalysis, nil
	}
}
