package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicSequence(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 10; i++ {
		av, bv := a.Float64(), b.Float64()
		assert.Equal(t, av, bv)
		assert.GreaterOrEqual(t, av, 0.0)
		assert.Less(t, av, 1.0)
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	assert.NotEqual(t, a.Float64(), b.Float64())
}

func TestGaussianIsDeterministicAndVaries(t *testing.T) {
	a := New(42)
	b := New(42)
	var sawNegative, sawPositive bool
	for i := 0; i < 50; i++ {
		av, bv := a.Gaussian(), b.Gaussian()
		assert.Equal(t, av, bv)
		if av < 0 {
			sawNegative = true
		}
		if av > 0 {
			sawPositive = true
		}
	}
	assert.True(t, sawNegative)
	assert.True(t, sawPositive)
}
