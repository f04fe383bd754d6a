package mathutil

import (
	"fmt"
	"math"
)

// Brent finds a root of f in the bracket [a, b] using Brent's method.
// f(a) and f(b) must have opposite signs.
func Brent(f func(float64) float64, a, b, tol float64, maxIter int) (float64, error) {
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if fa*fb > 0 {
		return 0, fmt.Errorf("brent: root not bracketed in [%v, %v]", a, b)
	}

	c, fc := a, fa
	d, e := b-a, b-a

	for iter := 0; iter < maxIter; iter++ {
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*math.Nextafter(math.Abs(b), math.Inf(1))*0x1p-52 + tol/2
		xm := (c - b) / 2
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}
		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// Inverse quadratic interpolation, falling back to secant.
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}
		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
	}
	return b, fmt.Errorf("brent: no convergence after %d iterations", maxIter)
}

// ExpandBracket widens an initial guess interval geometrically until f changes
// sign, so Brent can take over. Returns an error when no sign change appears
// within maxSteps doublings.
func ExpandBracket(f func(float64) float64, a, b float64, maxSteps int) (float64, float64, error) {
	if a >= b {
		return 0, 0, fmt.Errorf("bracket: invalid interval [%v, %v]", a, b)
	}
	fa, fb := f(a), f(b)
	for i := 0; i < maxSteps; i++ {
		if fa*fb <= 0 {
			return a, b, nil
		}
		w := b - a
		if math.Abs(fa) < math.Abs(fb) {
			a -= w
			fa = f(a)
		} else {
			b += w
			fb = f(b)
		}
	}
	return 0, 0, fmt.Errorf("bracket: no sign change after %d expansions", maxSteps)
}
