// Package model implements the coupled cross-asset model: per-factor
// parametrizations, the shared correlation structure, closed-form moments of
// the joint state and the calibration entry points that mutate parameters in
// place.
package model

import "fmt"

// AssetClass tags a stochastic factor with its asset class. The declared
// order is load-bearing: it fixes the state vector layout.
type AssetClass int

const (
	IR AssetClass = iota
	FX
	EQ
	INF
	CR
)

// String returns the conventional short name of the asset class.
func (a AssetClass) String() string {
	switch a {
	case IR:
		return "IR"
	case FX:
		return "FX"
	case EQ:
		return "EQ"
	case INF:
		return "INF"
	case CR:
		return "CR"
	default:
		return fmt.Sprintf("AssetClass(%d)", int(a))
	}
}
