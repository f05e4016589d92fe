package pipeline

import (
	"math/rand"
	"strings"

	"github.com/narender/telemetry-pipeline/common/config"
)

// Decision is the outcome of one sampling check, together with the rule that
// produced it. Computed fresh per record, never persisted.
type Decision struct {
	Sampled bool
	// Rule names what decided: "excluded:<pattern>" for an exclusion hit,
	// "ratio" for the Bernoulli draw.
	Rule  string
	Ratio float64
}

// Sampler decides per record whether telemetry is retained or discarded.
// Exclusion rules are deterministic; everything else is naive Bernoulli
// sampling with an independent uniform draw per decision.
type Sampler struct {
	ratio        float64
	excludeNames []string

	// randFloat is swappable for tests; defaults to the shared math/rand
	// source, which is safe for concurrent use.
	randFloat func() float64
}

// NewSampler builds a sampler from the sampling config. A ratio outside [0,1]
// is clamped to the nearest bound rather than treated as an error.
func NewSampler(cfg config.SamplingConfig) *Sampler {
	ratio := cfg.Ratio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &Sampler{
		ratio:        ratio,
		excludeNames: cfg.ExcludeNames,
		randFloat:    rand.Float64,
	}
}

// Decide returns the sampling decision for a record name. Names matching an
// exclusion pattern (substring match) are always rejected; all other names
// are admitted with probability equal to the configured ratio.
func (s *Sampler) Decide(name string) Decision {
	for _, pattern := range s.excludeNames {
		if pattern != "" && strings.Contains(name, pattern) {
			return Decision{Sampled: false, Rule: "excluded:" + pattern, Ratio: s.ratio}
		}
	}
	return Decision{Sampled: s.randFloat() < s.ratio, Rule: "ratio", Ratio: s.ratio}
}

// ShouldSample reports whether rec should be retained.
func (s *Sampler) ShouldSample(rec *Record) bool {
	return s.Decide(rec.Name).Sampled
}

// Ratio returns the effective (clamped) sampling ratio.
func (s *Sampler) Ratio() float64 {
	return s.ratio
}
