// Package engines provides analytical pricing for the calibration
// instruments: European swaptions under LGM, FX and equity options under
// Black-Scholes dynamics and CPI caps/floors under Dodgson-Kainth inflation.
package engines

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// OptionType distinguishes calls from puts.
type OptionType int

const (
	Call OptionType = iota
	Put
)

// BlackCall returns the undiscounted Black value of a call on forward with
// the given strike and total standard deviation sigma*sqrt(T).
func BlackCall(forward, strike, stdDev float64) float64 {
	return blackValue(forward, strike, stdDev, +1)
}

// BlackPut returns the undiscounted Black value of a put.
func BlackPut(forward, strike, stdDev float64) float64 {
	return blackValue(forward, strike, stdDev, -1)
}

func blackValue(forward, strike, stdDev, omega float64) float64 {
	if forward <= 0 || strike <= 0 {
		panic(fmt.Sprintf("black value: forward %v and strike %v must be positive", forward, strike))
	}
	if stdDev < 0 {
		panic(fmt.Sprintf("black value: negative standard deviation %v", stdDev))
	}
	if stdDev == 0 {
		return math.Max(omega*(forward-strike), 0)
	}
	d1 := (math.Log(forward/strike) + 0.5*stdDev*stdDev) / stdDev
	d2 := d1 - stdDev
	return omega * (forward*stdNormal.CDF(omega*d1) - strike*stdNormal.CDF(omega*d2))
}
