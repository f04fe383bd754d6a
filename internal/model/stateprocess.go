package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Discretization selects the transition scheme of the state process.
type Discretization int

const (
	// Exact uses the closed-form Gaussian transition over a finite step.
	Exact Discretization = iota
	// Euler uses the first-order drift/diffusion approximation.
	Euler
)

// StateProcess exposes the model's joint state dynamics to simulation. The
// correlation matrix is validated for positive semi-definiteness here, not
// when individual entries are set.
type StateProcess struct {
	m    *CrossAssetModel
	disc Discretization
}

// linTerm is one off-identity linear coefficient of the conditional mean or
// Euler drift with respect to the initial state.
type linTerm struct {
	row, col int
	coeff    float64
}

// Step is a precomputed transition over [t0, t0+dt]: the state-independent
// part of the mean or drift, the linear dependence on the initial state and
// the noise transform. One Step can be applied to many paths.
type Step struct {
	disc   Discretization
	dt     float64
	mean0  []float64
	linear []linTerm
	noise  *mat.Dense // state dim x normal dim, includes sqrt(dt) for Euler
}

// StateProcess builds a process for the given discretization, validating the
// Brownian correlation matrix (with salvage if configured on the model).
func (m *CrossAssetModel) StateProcess(disc Discretization) (*StateProcess, error) {
	if err := m.validateCorrelation(); err != nil {
		return nil, err
	}
	return &StateProcess{m: m, disc: disc}, nil
}

// validateCorrelation checks the Brownian correlation matrix for positive
// semi-definiteness. With SalvageEigen, negative eigenvalues are clipped and
// the diagonal renormalized in place.
func (m *CrossAssetModel) validateCorrelation() error {
	n := m.corr.SymmetricDim()
	var eig mat.EigenSym
	if !eig.Factorize(m.corr, true) {
		return fmt.Errorf("state process: correlation eigendecomposition failed")
	}
	vals := eig.Values(nil)
	minEig := vals[0]
	for _, v := range vals {
		if v < minEig {
			minEig = v
		}
	}
	if minEig >= -1e-12 {
		return nil
	}
	if m.salvage != SalvageEigen {
		return fmt.Errorf("state process: correlation matrix is not positive semi-definite (min eigenvalue %g)", minEig)
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	for i := range vals {
		if vals[i] < 0 {
			vals[i] = 0
		}
	}
	// C' = V diag(max(lambda,0)) V^T, then rescale to unit diagonal.
	var tmp, fixed mat.Dense
	tmp.Mul(&vecs, mat.NewDiagDense(n, vals))
	fixed.Mul(&tmp, vecs.T())
	scale := make([]float64, n)
	for i := 0; i < n; i++ {
		scale[i] = 1 / math.Sqrt(fixed.At(i, i))
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.corr.SetSym(i, j, fixed.At(i, j)*scale[i]*scale[j])
		}
	}
	m.Update()
	return nil
}

// Dimension returns the state vector dimension.
func (sp *StateProcess) Dimension() int { return sp.m.StateDim() }

// NormalDim returns the number of independent standard normals one Evolve
// consumes: the state dimension for the exact scheme, the Brownian dimension
// for Euler.
func (sp *StateProcess) NormalDim() int {
	if sp.disc == Euler {
		return sp.m.BrownianDim()
	}
	return sp.m.StateDim()
}

// InitialState returns the model state at time zero: zero Gaussian factors,
// log spots for FX and equity.
func (sp *StateProcess) InitialState() []float64 {
	m := sp.m
	x := make([]float64, m.StateDim())
	for j, fx := range m.fxs {
		x[m.StateIndex(FX, j)] = math.Log(fx.FxSpot().Value())
	}
	for k, eq := range m.eqs {
		x[m.StateIndex(EQ, k)] = math.Log(eq.Spot().Value())
	}
	return x
}

// PrepareStep precomputes the transition over [t0, t0+dt].
func (sp *StateProcess) PrepareStep(t0, dt float64) (*Step, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("state process: step size must be positive, got %v", dt)
	}
	if sp.disc == Euler {
		return sp.prepareEuler(t0, dt)
	}
	return sp.prepareExact(t0, dt)
}

// Evolve advances a single state by one step consuming len(z) = NormalDim()
// standard normals. For repeated steps over the same interval, use
// PrepareStep and Step.Apply.
func (sp *StateProcess) Evolve(t0 float64, x0 []float64, dt float64, z []float64) ([]float64, error) {
	step, err := sp.PrepareStep(t0, dt)
	if err != nil {
		return nil, err
	}
	return step.Apply(x0, z), nil
}

func (sp *StateProcess) prepareExact(t0, dt float64) (*Step, error) {
	m := sp.m
	n := m.StateDim()

	zero := make([]float64, n)
	mean0 := m.Expectation(t0, zero, dt)

	var linear []linTerm
	for i := 0; i < n; i++ {
		linear = append(linear, linTerm{i, i, 1})
	}
	T := t0 + dt
	h0 := m.irs[0].H(T) - m.irs[0].H(t0)
	for j := range m.fxs {
		c := j + 1
		hc := m.irs[c].H(T) - m.irs[c].H(t0)
		row := m.StateIndex(FX, j)
		linear = append(linear,
			linTerm{row, m.StateIndex(IR, 0), h0},
			linTerm{row, m.StateIndex(IR, c), -hc},
		)
	}
	for k, eq := range m.eqs {
		c := m.currencyIdx[eq.Currency()]
		hc := m.irs[c].H(T) - m.irs[c].H(t0)
		linear = append(linear, linTerm{m.StateIndex(EQ, k), m.StateIndex(IR, c), hc})
	}

	cov := m.Covariance(t0, dt)
	noise, err := psdSqrt(cov)
	if err != nil {
		return nil, fmt.Errorf("state process: transition covariance: %w", err)
	}

	return &Step{disc: Exact, dt: dt, mean0: mean0, linear: linear, noise: noise}, nil
}

func (sp *StateProcess) prepareEuler(t0, dt float64) (*Step, error) {
	m := sp.m
	n := m.StateDim()
	nb := m.BrownianDim()

	drift0, linear := m.eulerDrift(t0)
	mean0 := make([]float64, n)
	for i := range mean0 {
		mean0[i] = drift0[i] * dt
	}
	for i := range linear {
		linear[i].coeff *= dt
	}
	for i := 0; i < n; i++ {
		linear = append(linear, linTerm{i, i, 1})
	}

	corrSqrt, err := psdSqrt(m.corr)
	if err != nil {
		return nil, fmt.Errorf("state process: correlation: %w", err)
	}

	// noise = D * sqrt(corr) * sqrt(dt)
	diff := mat.NewDense(n, nb, nil)
	sqdt := math.Sqrt(dt)
	setRow := func(row, brownian int, g float64) {
		for c := 0; c < nb; c++ {
			diff.Set(row, c, diff.At(row, c)+g*corrSqrt.At(brownian, c)*sqdt)
		}
	}
	for i, ir := range m.irs {
		setRow(m.StateIndex(IR, i), m.BrownianIndex(IR, i), ir.Alpha(t0))
	}
	for j, fx := range m.fxs {
		setRow(m.StateIndex(FX, j), m.BrownianIndex(FX, j), fx.Sigma(t0))
	}
	for k, eq := range m.eqs {
		setRow(m.StateIndex(EQ, k), m.BrownianIndex(EQ, k), eq.Sigma(t0))
	}
	for l, p := range m.infs {
		idx := m.StateIndex(INF, l)
		b := m.BrownianIndex(INF, l)
		setRow(idx, b, p.Alpha(t0))
		setRow(idx+1, b, p.H(t0)*p.Alpha(t0))
	}
	for l, p := range m.crs {
		idx := m.StateIndex(CR, l)
		b := m.BrownianIndex(CR, l)
		setRow(idx, b, p.Alpha(t0))
		setRow(idx+1, b, p.H(t0)*p.Alpha(t0))
	}

	return &Step{disc: Euler, dt: dt, mean0: mean0, linear: linear, noise: diff}, nil
}

// eulerDrift returns the state-independent drift vector at t and the linear
// coefficients of the drift with respect to the state.
func (m *CrossAssetModel) eulerDrift(t float64) ([]float64, []linTerm) {
	n := m.StateDim()
	drift := make([]float64, n)
	var linear []linTerm

	ir0 := m.irs[0]

	for i := range m.irs {
		drift[m.StateIndex(IR, i)] = m.irDrift(i)(t)
	}

	for j, fx := range m.fxs {
		c := j + 1
		ir := m.irs[c]
		row := m.StateIndex(FX, j)
		p0 := ir0.TermStructure().CurrentLink()
		pc := ir.TermStructure().CurrentLink()
		sig := fx.Sigma(t)
		rho := m.Correlation(FX, j, IR, 0)
		drift[row] = p0.Forward(t) - pc.Forward(t) +
			ir0.Zeta(t)*ir0.H(t)*ir0.Hprime(t) -
			ir.Zeta(t)*ir.H(t)*ir.Hprime(t) -
			0.5*sig*sig +
			rho*sig*ir0.H(t)*ir0.Alpha(t)
		linear = append(linear,
			linTerm{row, m.StateIndex(IR, 0), ir0.Hprime(t)},
			linTerm{row, m.StateIndex(IR, c), -ir.Hprime(t)},
		)
	}

	for k, eq := range m.eqs {
		c := m.currencyIdx[eq.Currency()]
		ir := m.irs[c]
		row := m.StateIndex(EQ, k)
		pc := ir.TermStructure().CurrentLink()
		pq := eq.Dividend().CurrentLink()
		sig := eq.Sigma(t)
		d := pc.Forward(t) - pq.Forward(t) +
			ir.Zeta(t)*ir.H(t)*ir.Hprime(t) -
			0.5*sig*sig +
			m.Correlation(EQ, k, IR, 0)*sig*ir0.H(t)*ir0.Alpha(t)
		if c > 0 {
			d -= m.Correlation(EQ, k, FX, c-1) * sig * m.fxs[c-1].Sigma(t)
		}
		drift[row] = d
		linear = append(linear, linTerm{row, m.StateIndex(IR, c), ir.Hprime(t)})
	}

	for l, p := range m.infs {
		idx := m.StateIndex(INF, l)
		g := m.dkDrift(&p.dkParametrization, INF, l, +1)(t)
		drift[idx] = g
		drift[idx+1] = p.H(t) * g
	}
	for l, p := range m.crs {
		idx := m.StateIndex(CR, l)
		g := m.dkDrift(&p.dkParametrization, CR, l, -1)(t)
		drift[idx] = g
		drift[idx+1] = p.H(t) * g
	}

	return drift, linear
}

// Apply advances x0 by the prepared step using the standard normal draws z.
func (s *Step) Apply(x0, z []float64) []float64 {
	n := len(s.mean0)
	out := make([]float64, n)
	copy(out, s.mean0)
	for _, lt := range s.linear {
		out[lt.row] += lt.coeff * x0[lt.col]
	}
	_, k := s.noise.Dims()
	for i := 0; i < n; i++ {
		acc := 0.0
		row := s.noise.RawRowView(i)
		for c := 0; c < k; c++ {
			acc += row[c] * z[c]
		}
		out[i] += acc
	}
	return out
}

// psdSqrt returns a square root factor B with B*B^T equal to the symmetric
// matrix a, through an eigendecomposition that tolerates semi-definite
// inputs. Eigenvalues below -1e-10 are rejected.
func psdSqrt(a *mat.SymDense) (*mat.Dense, error) {
	n := a.SymmetricDim()
	var eig mat.EigenSym
	if !eig.Factorize(a, true) {
		return nil, fmt.Errorf("eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	for i, v := range vals {
		if v < -1e-10 {
			return nil, fmt.Errorf("matrix is not positive semi-definite (eigenvalue %g)", v)
		}
		if v < 0 {
			v = 0
		}
		vals[i] = math.Sqrt(v)
	}

	// Fix each eigenvector's sign so the factor is deterministic across
	// LAPACK implementations: largest-magnitude component positive.
	for j := 0; j < n; j++ {
		maxIdx := 0
		for i := 1; i < n; i++ {
			if math.Abs(vecs.At(i, j)) > math.Abs(vecs.At(maxIdx, j)) {
				maxIdx = i
			}
		}
		if vecs.At(maxIdx, j) < 0 {
			for i := 0; i < n; i++ {
				vecs.Set(i, j, -vecs.At(i, j))
			}
		}
	}

	b := mat.NewDense(n, n, nil)
	b.Mul(&vecs, mat.NewDiagDense(n, vals))
	return b, nil
}
