package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_Deterministic(t *testing.T) {
	a := map[string]any{"b": 1, "a": "x"}
	b := map[string]any{"a": "x", "b": 1}

	d1, err := Digest(DomainVarianceReport, a)
	require.NoError(t, err)
	d2, err := Digest(DomainVarianceReport, b)
	require.NoError(t, err)

	assert.Equal(t, d1, d2, "key order must not change the digest")
	assert.Len(t, d1, 64)
}

func TestDigest_DomainSeparation(t *testing.T) {
	v := map[string]any{"a": 1}
	assert.NotEqual(t,
		MustDigest(DomainVarianceReport, v),
		MustDigest(DomainScenarioTrace, v),
	)
}

func TestDigest_ContentSensitive(t *testing.T) {
	assert.NotEqual(t,
		MustDigest(DomainVarianceReport, map[string]any{"variance": -500}),
		MustDigest(DomainVarianceReport, map[string]any{"variance": -499}),
	)
}

func TestDigest_Error(t *testing.T) {
	_, err := Digest(DomainVarianceReport, map[string]any{"x": 0.5})
	assert.Error(t, err)
	assert.Panics(t, func() { MustDigest(DomainVarianceReport, 0.5) })
}
