package engines

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlackCallKnownValue(t *testing.T) {
	// F = K = 100, sigma*sqrt(T) = 0.2: ATM value is F*(2*Phi(0.1)-1).
	want := 100 * (2*stdNormal.CDF(0.1) - 1)
	assert.InDelta(t, want, BlackCall(100, 100, 0.2), 1e-12)
}

func TestBlackPutCallParity(t *testing.T) {
	f, k, sd := 95.0, 105.0, 0.31
	c := BlackCall(f, k, sd)
	p := BlackPut(f, k, sd)
	assert.InDelta(t, f-k, c-p, 1e-12)
	assert.Greater(t, c, 0.0)
	assert.Greater(t, p, 0.0)
}

func TestBlackZeroStdDev(t *testing.T) {
	assert.Equal(t, 5.0, BlackCall(105, 100, 0))
	assert.Equal(t, 0.0, BlackCall(95, 100, 0))
	assert.Equal(t, 5.0, BlackPut(95, 100, 0))
}

func TestBlackMonotoneInVol(t *testing.T) {
	prev := BlackCall(100, 110, 0.01)
	for _, sd := range []float64{0.05, 0.1, 0.5, 1, 2} {
		v := BlackCall(100, 110, sd)
		assert.Greater(t, v, prev)
		prev = v
	}
	// Large vol call tends to the forward.
	assert.InDelta(t, 100, BlackCall(100, 110, 40), 1e-6)
}

func TestBlackInvalidInputsPanic(t *testing.T) {
	assert.Panics(t, func() { BlackCall(-1, 100, 0.2) })
	assert.Panics(t, func() { BlackCall(100, 0, 0.2) })
	assert.Panics(t, func() { BlackCall(100, 100, math.Copysign(0.1, -1)) })
}
