// Package optimize provides the damped least-squares solver used for global
// model calibration.
package optimize

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Problem is a nonlinear least-squares problem: minimize |F(x)|^2 over x.
type Problem struct {
	// F evaluates the residual vector at x. The returned slice must always
	// have the same length.
	F func(x []float64) []float64
}

// Options control the iteration and stopping behaviour.
type Options struct {
	MaxIterations           int     // hard cap on LM iterations
	MaxStationaryIterations int     // stop after this many iterations without improvement
	RootEpsilon             float64 // tolerance on the residual norm
	FunctionEpsilon         float64 // tolerance on the improvement of the residual norm
	GradientEpsilon         float64 // tolerance on the gradient norm
}

// DefaultOptions mirrors the tolerances used throughout the calibration layer.
func DefaultOptions() Options {
	return Options{
		MaxIterations:           1000,
		MaxStationaryIterations: 500,
		RootEpsilon:             1e-8,
		FunctionEpsilon:         1e-8,
		GradientEpsilon:         1e-8,
	}
}

// Result reports the terminal state of a LevenbergMarquardt run.
type Result struct {
	X            []float64
	ResidualNorm float64
	Iterations   int
	Converged    bool
}

var errDimension = errors.New("optimize: empty parameter or residual vector")

// LevenbergMarquardt minimizes |F(x)|^2 starting from x0 using
// Levenberg-Marquardt damping with a forward-difference Jacobian.
func LevenbergMarquardt(p Problem, x0 []float64, opts Options) (Result, error) {
	n := len(x0)
	if n == 0 {
		return Result{}, errDimension
	}
	x := append([]float64(nil), x0...)
	r := p.F(x)
	m := len(r)
	if m == 0 {
		return Result{}, errDimension
	}

	res := mat.NewVecDense(m, append([]float64(nil), r...))
	norm := mat.Norm(res, 2)

	lambda := 1e-3
	const nu = 10.0
	stationary := 0
	iter := 0

	for ; iter < opts.MaxIterations; iter++ {
		if norm <= opts.RootEpsilon {
			return Result{X: x, ResidualNorm: norm, Iterations: iter, Converged: true}, nil
		}

		jac := jacobian(p, x, res.RawVector().Data)

		// grad = J^T r
		grad := mat.NewVecDense(n, nil)
		grad.MulVec(jac.T(), res)
		if mat.Norm(grad, 2) <= opts.GradientEpsilon {
			return Result{X: x, ResidualNorm: norm, Iterations: iter, Converged: true}, nil
		}

		// (J^T J + lambda diag(J^T J)) dx = -J^T r
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		for i := 0; i < n; i++ {
			d := jtj.At(i, i)
			if d == 0 {
				d = 1
			}
			jtj.Set(i, i, d*(1+lambda))
		}

		dx := mat.NewVecDense(n, nil)
		if err := dx.SolveVec(&jtj, grad); err != nil {
			// Singular normal equations: raise the damping and retry.
			lambda *= nu
			stationary++
			if stationary >= opts.MaxStationaryIterations {
				break
			}
			continue
		}

		trial := make([]float64, n)
		for i := range trial {
			trial[i] = x[i] - dx.AtVec(i)
		}
		trialRes := p.F(trial)
		trialVec := mat.NewVecDense(m, append([]float64(nil), trialRes...))
		trialNorm := mat.Norm(trialVec, 2)

		if trialNorm < norm {
			improvement := norm - trialNorm
			copy(x, trial)
			res = trialVec
			norm = trialNorm
			lambda = math.Max(lambda/nu, 1e-12)
			stationary = 0
			if improvement <= opts.FunctionEpsilon {
				return Result{X: x, ResidualNorm: norm, Iterations: iter + 1, Converged: true}, nil
			}
		} else {
			lambda *= nu
			stationary++
			if stationary >= opts.MaxStationaryIterations {
				break
			}
		}
	}

	return Result{X: x, ResidualNorm: norm, Iterations: iter, Converged: norm <= opts.RootEpsilon}, nil
}

// jacobian builds the forward-difference Jacobian of p.F at x, reusing the
// residuals r0 = p.F(x).
func jacobian(p Problem, x, r0 []float64) *mat.Dense {
	n := len(x)
	m := len(r0)
	jac := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		h := 1e-7 * math.Max(math.Abs(x[j]), 1e-4)
		xj := x[j]
		x[j] = xj + h
		rj := p.F(x)
		x[j] = xj
		for i := 0; i < m; i++ {
			jac.Set(i, j, (rj[i]-r0[i])/h)
		}
	}
	return jac
}
