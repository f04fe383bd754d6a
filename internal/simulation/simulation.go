// Package simulation generates Monte Carlo paths of the cross asset model
// state and provides the estimators used to validate prices against closed
// forms.
package simulation

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/crossasset/internal/model"
)

// Config describes one simulation run.
type Config struct {
	// Grid holds the strictly increasing positive simulation times.
	Grid []float64
	// Paths is the number of paths to generate.
	Paths int
	// Seed feeds the deterministic random source.
	Seed int64
	// Scheme selects the state transition discretization.
	Scheme model.Discretization
}

// Path is one realization of the state over the time grid. Row 0 holds the
// initial state at time zero, row i+1 the state at Grid[i].
type Path struct {
	Times  []float64
	States [][]float64
}

// State returns the state vector at grid time index i, with -1 addressing
// the initial state.
func (p *Path) State(i int) []float64 {
	return p.States[i+1]
}

// PathGenerator draws paths from a deterministic random source. The per-step
// transitions are precomputed once and shared across paths, so generating a
// path costs one matrix-vector product per step.
type PathGenerator struct {
	grid    []float64
	steps   []*model.Step
	initial []float64
	dim     int
	normals int
	rng     *rand.Rand
}

// NewPathGenerator validates the configuration and precomputes the step
// transitions.
func NewPathGenerator(m *model.CrossAssetModel, cfg Config) (*PathGenerator, error) {
	if len(cfg.Grid) == 0 {
		return nil, fmt.Errorf("simulation: empty time grid")
	}
	prev := 0.0
	for i, t := range cfg.Grid {
		if t <= prev {
			return nil, fmt.Errorf("simulation: grid must be strictly increasing and positive, got %v at %d", t, i)
		}
		prev = t
	}
	if cfg.Paths <= 0 {
		return nil, fmt.Errorf("simulation: path count must be positive, got %d", cfg.Paths)
	}

	sp, err := m.StateProcess(cfg.Scheme)
	if err != nil {
		return nil, err
	}

	steps := make([]*model.Step, len(cfg.Grid))
	t0 := 0.0
	for i, t := range cfg.Grid {
		step, err := sp.PrepareStep(t0, t-t0)
		if err != nil {
			return nil, err
		}
		steps[i] = step
		t0 = t
	}

	return &PathGenerator{
		grid:    append([]float64(nil), cfg.Grid...),
		steps:   steps,
		initial: sp.InitialState(),
		dim:     sp.Dimension(),
		normals: sp.NormalDim(),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Grid returns the simulation times.
func (g *PathGenerator) Grid() []float64 { return g.grid }

// Dimension returns the state vector dimension.
func (g *PathGenerator) Dimension() int { return g.dim }

// Next draws one path.
func (g *PathGenerator) Next() *Path {
	states := make([][]float64, len(g.grid)+1)
	states[0] = append([]float64(nil), g.initial...)
	z := make([]float64, g.normals)
	for i, step := range g.steps {
		for j := range z {
			z[j] = g.rng.NormFloat64()
		}
		states[i+1] = step.Apply(states[i], z)
	}
	return &Path{Times: g.grid, States: states}
}

// Run draws cfg.Paths paths and accumulates the payoff of each into an
// estimator.
func Run(g *PathGenerator, paths int, payoff func(*Path) float64) *Estimator {
	e := NewEstimator(paths)
	for i := 0; i < paths; i++ {
		e.Add(payoff(g.Next()))
	}
	return e
}

// Estimator accumulates scalar samples and reports the Monte Carlo mean with
// its standard error.
type Estimator struct {
	samples []float64
}

// NewEstimator returns an estimator with capacity for n samples.
func NewEstimator(n int) *Estimator {
	return &Estimator{samples: make([]float64, 0, n)}
}

// Add appends one sample.
func (e *Estimator) Add(v float64) {
	e.samples = append(e.samples, v)
}

// N returns the sample count.
func (e *Estimator) N() int { return len(e.samples) }

// Mean returns the sample mean.
func (e *Estimator) Mean() float64 {
	return stat.Mean(e.samples, nil)
}

// StdErr returns the standard error of the mean.
func (e *Estimator) StdErr() float64 {
	if len(e.samples) < 2 {
		return math.Inf(1)
	}
	return stat.StdDev(e.samples, nil) / math.Sqrt(float64(len(e.samples)))
}

// WithinConfidence reports whether target lies inside mean +- k stderr.
func (e *Estimator) WithinConfidence(target, k float64) bool {
	return math.Abs(e.Mean()-target) <= k*e.StdErr()
}
