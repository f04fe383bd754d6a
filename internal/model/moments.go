package model

import (
	"math"

	"github.com/wonny/crossasset/internal/mathutil"
	"gonum.org/v1/gonum/mat"
)

// load is one Brownian exposure of a state component over a horizon [t0, T]:
// the component's stochastic deviation is the sum over its loads of
// int_{t0}^{T} g(u) dW_b(u).
type load struct {
	brownian    int
	g           func(u float64) float64
	breakpoints []float64
}

// componentLoads returns the Brownian loads of state component idx over
// [t0, T]. IR-driven components pick up integrated loads from the currencies
// entering their drift.
func (m *CrossAssetModel) componentLoads(idx int, t0, T float64) []load {
	nCcy := len(m.irs)
	nFx := len(m.fxs)
	nEq := len(m.eqs)
	nInf := len(m.infs)

	irIntegrated := func(c int, scale float64) load {
		ir := m.irs[c]
		hT := ir.H(T)
		return load{
			brownian:    m.BrownianIndex(IR, c),
			g:           func(u float64) float64 { return scale * (hT - ir.H(u)) * ir.Alpha(u) },
			breakpoints: ir.Breakpoints(),
		}
	}

	switch {
	case idx < nCcy: // IR z_i
		ir := m.irs[idx]
		return []load{{
			brownian:    m.BrownianIndex(IR, idx),
			g:           ir.Alpha,
			breakpoints: ir.Breakpoints(),
		}}

	case idx < nCcy+nFx: // FX x_j
		j := idx - nCcy
		fx := m.fxs[j]
		return []load{
			{
				brownian:    m.BrownianIndex(FX, j),
				g:           fx.Sigma,
				breakpoints: fx.Breakpoints(),
			},
			irIntegrated(0, 1),
			irIntegrated(j+1, -1),
		}

	case idx < nCcy+nFx+nEq: // EQ s_k
		k := idx - nCcy - nFx
		eq := m.eqs[k]
		c := m.currencyIdx[eq.Currency()]
		return []load{
			{
				brownian:    m.BrownianIndex(EQ, k),
				g:           eq.Sigma,
				breakpoints: eq.Breakpoints(),
			},
			irIntegrated(c, 1),
		}

	case idx < nCcy+nFx+nEq+2*nInf: // INF z or y
		l := (idx - nCcy - nFx - nEq) / 2
		aux := (idx-nCcy-nFx-nEq)%2 == 1
		return m.dkLoads(&m.infs[l].dkParametrization, m.BrownianIndex(INF, l), aux)

	default: // CR z or y
		mIdx := (idx - nCcy - nFx - nEq - 2*nInf) / 2
		aux := (idx-nCcy-nFx-nEq-2*nInf)%2 == 1
		return m.dkLoads(&m.crs[mIdx].dkParametrization, m.BrownianIndex(CR, mIdx), aux)
	}
}

func (m *CrossAssetModel) dkLoads(dk *dkParametrization, brownian int, aux bool) []load {
	if aux {
		return []load{{
			brownian:    brownian,
			g:           func(u float64) float64 { return dk.H(u) * dk.Alpha(u) },
			breakpoints: dk.Breakpoints(),
		}}
	}
	return []load{{
		brownian:    brownian,
		g:           dk.Alpha,
		breakpoints: dk.Breakpoints(),
	}}
}

// irDrift returns the drift gamma_i(u) of IR factor i under the domestic LGM
// measure. The domestic factor is driftless; foreign factors pick up the
// quanto and change-of-measure terms.
func (m *CrossAssetModel) irDrift(i int) func(u float64) float64 {
	if i == 0 {
		return func(u float64) float64 { return 0 }
	}
	ir := m.irs[i]
	ir0 := m.irs[0]
	fx := m.fxs[i-1]
	rho0i := m.Correlation(IR, 0, IR, i)
	rhoix := m.Correlation(IR, i, FX, i-1)
	return func(u float64) float64 {
		ai := ir.Alpha(u)
		return -ir.H(u)*ai*ai +
			rho0i*ir0.H(u)*ir0.Alpha(u)*ai -
			rhoix*ai*fx.Sigma(u)
	}
}

// dkDrift returns the drift gamma_k(u) of a DK block's primary factor,
// sign +1 for inflation and -1 for credit.
func (m *CrossAssetModel) dkDrift(dk *dkParametrization, dkClass AssetClass, dkIdx int, sign float64) func(u float64) float64 {
	c := m.currencyIdx[dk.Currency()]
	ir0 := m.irs[0]
	rho0 := m.Correlation(dkClass, dkIdx, IR, 0)
	var rhoFx float64
	var fx *FxBs
	if c > 0 {
		fx = m.fxs[c-1]
		rhoFx = m.Correlation(dkClass, dkIdx, FX, c-1)
	}
	return func(u float64) float64 {
		ak := dk.Alpha(u)
		d := sign*dk.H(u)*ak*ak + rho0*ir0.H(u)*ir0.Alpha(u)*ak
		if fx != nil {
			d -= rhoFx * ak * fx.Sigma(u)
		}
		return d
	}
}

// irBreakpoints merges the grids entering IR factor i's drift.
func (m *CrossAssetModel) irDriftBreakpoints(i int) []float64 {
	if i == 0 {
		return nil
	}
	return mathutil.MergeBreakpoints(m.irs[i].Breakpoints(), m.irs[0].Breakpoints(), m.fxs[i-1].Breakpoints())
}

func (m *CrossAssetModel) dkDriftBreakpoints(dk *dkParametrization) []float64 {
	c := m.currencyIdx[dk.Currency()]
	bp := mathutil.MergeBreakpoints(dk.Breakpoints(), m.irs[0].Breakpoints())
	if c > 0 {
		bp = mathutil.MergeBreakpoints(bp, m.fxs[c-1].Breakpoints())
	}
	return bp
}

// Expectation returns the conditional expectation E[X(t0+dt) | X(t0) = x0] of
// the full state vector under the domestic LGM measure.
func (m *CrossAssetModel) Expectation(t0 float64, x0 []float64, dt float64) []float64 {
	T := t0 + dt
	nCcy := len(m.irs)
	nFx := len(m.fxs)
	nEq := len(m.eqs)
	out := make([]float64, m.StateDim())

	ir0 := m.irs[0]

	// IR factors.
	for i := 0; i < nCcy; i++ {
		idx := m.StateIndex(IR, i)
		drift := m.irDrift(i)
		out[idx] = x0[idx] + mathutil.SegmentIntegrate(drift, t0, T, m.irDriftBreakpoints(i))
	}

	// FX factors.
	for j := 0; j < nFx; j++ {
		idx := m.StateIndex(FX, j)
		fx := m.fxs[j]
		c := j + 1
		ir := m.irs[c]

		p0 := ir0.TermStructure().CurrentLink()
		pc := ir.TermStructure().CurrentLink()

		h0T := ir0.H(T)
		h0t := ir0.H(t0)
		hcT := ir.H(T)
		hct := ir.H(t0)

		rhoX0 := m.Correlation(FX, j, IR, 0)
		driftC := m.irDrift(c)

		bp := mathutil.MergeBreakpoints(ir0.Breakpoints(), ir.Breakpoints(), fx.Breakpoints())
		deterministic := mathutil.SegmentIntegrate(func(u float64) float64 {
			return ir0.H(u)*ir0.Hprime(u)*ir0.Zeta(u) -
				ir.H(u)*ir.Hprime(u)*ir.Zeta(u) +
				rhoX0*fx.Sigma(u)*ir0.H(u)*ir0.Alpha(u) -
				(hcT-ir.H(u))*driftC(u)
		}, t0, T, bp)

		out[idx] = x0[idx] +
			math.Log(pc.Discount(T)*p0.Discount(t0)/(pc.Discount(t0)*p0.Discount(T))) +
			(h0T-h0t)*x0[m.StateIndex(IR, 0)] -
			(hcT-hct)*x0[m.StateIndex(IR, c)] -
			0.5*fx.Variance(t0, T) +
			deterministic
	}

	// EQ factors.
	for k := 0; k < nEq; k++ {
		idx := m.StateIndex(EQ, k)
		eq := m.eqs[k]
		c := m.currencyIdx[eq.Currency()]
		ir := m.irs[c]

		pc := ir.TermStructure().CurrentLink()
		pq := eq.Dividend().CurrentLink()

		hcT := ir.H(T)
		hct := ir.H(t0)

		rhoS0 := m.Correlation(EQ, k, IR, 0)
		var rhoSx float64
		var fxc *FxBs
		if c > 0 {
			fxc = m.fxs[c-1]
			rhoSx = m.Correlation(EQ, k, FX, c-1)
		}
		driftC := m.irDrift(c)

		bp := mathutil.MergeBreakpoints(m.irs[0].Breakpoints(), ir.Breakpoints(), eq.Breakpoints(), m.irDriftBreakpoints(c))
		deterministic := mathutil.SegmentIntegrate(func(u float64) float64 {
			d := ir.H(u)*ir.Hprime(u)*ir.Zeta(u) +
				rhoS0*eq.Sigma(u)*ir0.H(u)*ir0.Alpha(u) +
				(hcT-ir.H(u))*driftC(u)
			if fxc != nil {
				d -= rhoSx * eq.Sigma(u) * fxc.Sigma(u)
			}
			return d
		}, t0, T, bp)

		out[idx] = x0[idx] +
			math.Log(pc.Discount(t0)/pc.Discount(T)) -
			math.Log(pq.Discount(t0)/pq.Discount(T)) +
			(hcT-hct)*x0[m.StateIndex(IR, c)] -
			0.5*eq.Variance(t0, T) +
			deterministic
	}

	// INF and CR blocks.
	for l, p := range m.infs {
		m.dkExpectation(&p.dkParametrization, INF, l, +1, t0, T, x0, out)
	}
	for l, p := range m.crs {
		m.dkExpectation(&p.dkParametrization, CR, l, -1, t0, T, x0, out)
	}

	return out
}

func (m *CrossAssetModel) dkExpectation(dk *dkParametrization, class AssetClass, i int, sign float64,
	t0, T float64, x0, out []float64) {

	idx := m.StateIndex(class, i)
	drift := m.dkDrift(dk, class, i, sign)
	bp := m.dkDriftBreakpoints(dk)

	out[idx] = x0[idx] + mathutil.SegmentIntegrate(drift, t0, T, bp)
	out[idx+1] = x0[idx+1] + mathutil.SegmentIntegrate(func(u float64) float64 {
		return dk.H(u) * drift(u)
	}, t0, T, bp)
}

// Covariance returns the conditional covariance of the state vector over
// [t0, t0+dt]. It is independent of the state at t0.
func (m *CrossAssetModel) Covariance(t0, dt float64) *mat.SymDense {
	T := t0 + dt
	n := m.StateDim()
	cov := mat.NewSymDense(n, nil)

	loads := make([][]load, n)
	for i := 0; i < n; i++ {
		loads[i] = m.componentLoads(i, t0, T)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sum := 0.0
			for _, li := range loads[i] {
				for _, lj := range loads[j] {
					rho := m.corr.At(li.brownian, lj.brownian)
					if rho == 0 {
						continue
					}
					bp := mathutil.MergeBreakpoints(li.breakpoints, lj.breakpoints)
					sum += rho * mathutil.SegmentIntegrate(func(u float64) float64 {
						return li.g(u) * lj.g(u)
					}, t0, T, bp)
				}
			}
			cov.SetSym(i, j, sum)
		}
	}
	return cov
}
