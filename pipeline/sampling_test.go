package pipeline

import (
	"context"
	"testing"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/stretchr/testify/assert"
)

func TestSamplerRatioZeroNeverAdmits(t *testing.T) {
	s := NewSampler(config.SamplingConfig{Ratio: 0})

	for i := 0; i < 100; i++ {
		assert.False(t, s.Decide("GET /orders").Sampled)
	}
}

func TestSamplerRatioOneAlwaysAdmitsNonExcluded(t *testing.T) {
	s := NewSampler(config.SamplingConfig{Ratio: 1, ExcludeNames: []string{"/health"}})

	for i := 0; i < 100; i++ {
		assert.True(t, s.Decide("GET /orders").Sampled)
	}
}

func TestSamplerExclusionWinsRegardlessOfRatio(t *testing.T) {
	s := NewSampler(config.SamplingConfig{Ratio: 1, ExcludeNames: []string{"/health", "/metrics"}})

	decision := s.Decide("GET /health")
	assert.False(t, decision.Sampled)
	assert.Equal(t, "excluded:/health", decision.Rule)

	decision = s.Decide("GET /metrics/self")
	assert.False(t, decision.Sampled)
	assert.Equal(t, "excluded:/metrics", decision.Rule)
}

func TestSamplerExclusionIsSubstringMatch(t *testing.T) {
	s := NewSampler(config.SamplingConfig{Ratio: 1, ExcludeNames: []string{"health"}})

	assert.False(t, s.Decide("GET /api/healthcheck").Sampled)
	assert.True(t, s.Decide("GET /api/orders").Sampled)
}

func TestSamplerClampsMalformedRatio(t *testing.T) {
	assert.Equal(t, 0.0, NewSampler(config.SamplingConfig{Ratio: -0.5}).Ratio())
	assert.Equal(t, 1.0, NewSampler(config.SamplingConfig{Ratio: 7}).Ratio())
}

func TestSamplerRatioDrawUsesInjectedSource(t *testing.T) {
	s := NewSampler(config.SamplingConfig{Ratio: 0.5})

	s.randFloat = func() float64 { return 0.49 }
	assert.True(t, s.Decide("op").Sampled)

	s.randFloat = func() float64 { return 0.5 }
	assert.False(t, s.Decide("op").Sampled)
}

func TestSamplerDecisionCarriesRatio(t *testing.T) {
	s := NewSampler(config.SamplingConfig{Ratio: 0.25})
	decision := s.Decide("op")

	assert.Equal(t, 0.25, decision.Ratio)
	assert.Equal(t, "ratio", decision.Rule)
}

func TestShouldSampleUsesRecordName(t *testing.T) {
	s := NewSampler(config.SamplingConfig{Ratio: 1, ExcludeNames: []string{"/health"}})

	excluded := NewRecord(context.Background(), "GET /health")
	admitted := NewRecord(context.Background(), "GET /orders")

	assert.False(t, s.ShouldSample(excluded))
	assert.True(t, s.ShouldSample(admitted))
}
