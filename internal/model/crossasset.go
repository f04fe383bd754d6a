package model

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/mathutil"
	"gonum.org/v1/gonum/mat"
)

// SalvageMode controls how a correlation matrix failing the positive
// semi-definiteness check at state process construction is handled.
type SalvageMode int

const (
	// SalvageNone fails construction on a non-PSD matrix.
	SalvageNone SalvageMode = iota
	// SalvageEigen clips negative eigenvalues to zero and renormalizes the
	// diagonal back to one.
	SalvageEigen
)

// CrossAssetModel couples the per-factor parametrizations through a shared
// Brownian correlation matrix. The state vector is laid out in the fixed
// order IR (domestic first), FX, EQ, INF, CR; each INF/CR block contributes
// two state components (primary z and auxiliary y) but only one Brownian
// dimension.
type CrossAssetModel struct {
	irs  []*IrLgm1f
	fxs  []*FxBs
	eqs  []*EqBs
	infs []*InfDk
	crs  []*CrLgm1f

	corr    *mat.SymDense
	salvage SalvageMode

	currencyIdx map[string]int
	generation  uint64
}

// NewCrossAssetModel validates the parametrization lists and correlation
// matrix and assembles the model.
func NewCrossAssetModel(irs []*IrLgm1f, fxs []*FxBs, eqs []*EqBs, infs []*InfDk, crs []*CrLgm1f,
	corr *mat.SymDense, salvage SalvageMode) (*CrossAssetModel, error) {

	if len(irs) < 1 {
		return nil, fmt.Errorf("cross asset model: at least one IR parametrization required")
	}
	if len(fxs) != len(irs)-1 {
		return nil, fmt.Errorf("cross asset model: need %d FX parametrizations for %d currencies, got %d",
			len(irs)-1, len(irs), len(fxs))
	}

	ccyIdx := make(map[string]int, len(irs))
	for i, p := range irs {
		if _, dup := ccyIdx[p.Currency()]; dup {
			return nil, fmt.Errorf("cross asset model: duplicate currency %s", p.Currency())
		}
		ccyIdx[p.Currency()] = i
	}
	for j, p := range fxs {
		want := irs[j+1].Currency()
		if p.Currency() != want {
			return nil, fmt.Errorf("cross asset model: FX factor %d is %s, expected %s", j, p.Currency(), want)
		}
	}
	for _, p := range eqs {
		if _, ok := ccyIdx[p.Currency()]; !ok {
			return nil, fmt.Errorf("cross asset model: equity %s currency %s has no IR factor", p.Name(), p.Currency())
		}
	}
	for _, p := range infs {
		if _, ok := ccyIdx[p.Currency()]; !ok {
			return nil, fmt.Errorf("cross asset model: inflation index %s currency %s has no IR factor", p.Name(), p.Currency())
		}
	}
	for _, p := range crs {
		if _, ok := ccyIdx[p.Currency()]; !ok {
			return nil, fmt.Errorf("cross asset model: credit name %s currency %s has no IR factor", p.Name(), p.Currency())
		}
	}

	m := &CrossAssetModel{
		irs: irs, fxs: fxs, eqs: eqs, infs: infs, crs: crs,
		salvage:     salvage,
		currencyIdx: ccyIdx,
		generation:  1,
	}

	if corr == nil {
		corr = mat.NewSymDense(m.BrownianDim(), nil)
		for i := 0; i < m.BrownianDim(); i++ {
			corr.SetSym(i, i, 1)
		}
	}
	if corr.SymmetricDim() != m.BrownianDim() {
		return nil, fmt.Errorf("cross asset model: correlation dimension %d, expected %d",
			corr.SymmetricDim(), m.BrownianDim())
	}
	m.corr = corr
	return m, nil
}

// Currencies returns the model currencies in state order, domestic first.
func (m *CrossAssetModel) Currencies() []string {
	out := make([]string, len(m.irs))
	for i, p := range m.irs {
		out[i] = p.Currency()
	}
	return out
}

// CurrencyIndex returns the IR index of a currency.
func (m *CrossAssetModel) CurrencyIndex(ccy string) (int, bool) {
	i, ok := m.currencyIdx[ccy]
	return i, ok
}

// NumCurrencies returns the number of IR factors.
func (m *CrossAssetModel) NumCurrencies() int { return len(m.irs) }

// NumEq returns the number of equity factors.
func (m *CrossAssetModel) NumEq() int { return len(m.eqs) }

// NumInf returns the number of inflation blocks.
func (m *CrossAssetModel) NumInf() int { return len(m.infs) }

// NumCr returns the number of credit blocks.
func (m *CrossAssetModel) NumCr() int { return len(m.crs) }

// Ir returns IR parametrization i.
func (m *CrossAssetModel) Ir(i int) *IrLgm1f { return m.irs[i] }

// Fx returns FX parametrization i (foreign currency i+1).
func (m *CrossAssetModel) Fx(i int) *FxBs { return m.fxs[i] }

// Eq returns equity parametrization i.
func (m *CrossAssetModel) Eq(i int) *EqBs { return m.eqs[i] }

// Inf returns inflation parametrization i.
func (m *CrossAssetModel) Inf(i int) *InfDk { return m.infs[i] }

// Cr returns credit parametrization i.
func (m *CrossAssetModel) Cr(i int) *CrLgm1f { return m.crs[i] }

// StateDim returns the dimension of the state vector.
func (m *CrossAssetModel) StateDim() int {
	return len(m.irs) + len(m.fxs) + len(m.eqs) + 2*len(m.infs) + 2*len(m.crs)
}

// BrownianDim returns the number of driving Brownian motions.
func (m *CrossAssetModel) BrownianDim() int {
	return len(m.irs) + len(m.fxs) + len(m.eqs) + len(m.infs) + len(m.crs)
}

// StateIndex returns the offset of a factor's first state component.
// INF and CR blocks occupy two consecutive components (z then y).
func (m *CrossAssetModel) StateIndex(class AssetClass, i int) int {
	switch class {
	case IR:
		return i
	case FX:
		return len(m.irs) + i
	case EQ:
		return len(m.irs) + len(m.fxs) + i
	case INF:
		return len(m.irs) + len(m.fxs) + len(m.eqs) + 2*i
	case CR:
		return len(m.irs) + len(m.fxs) + len(m.eqs) + 2*len(m.infs) + 2*i
	default:
		panic(fmt.Sprintf("cross asset model: unknown asset class %v", class))
	}
}

// BrownianIndex returns a factor's Brownian dimension index.
func (m *CrossAssetModel) BrownianIndex(class AssetClass, i int) int {
	switch class {
	case IR:
		return i
	case FX:
		return len(m.irs) + i
	case EQ:
		return len(m.irs) + len(m.fxs) + i
	case INF:
		return len(m.irs) + len(m.fxs) + len(m.eqs) + i
	case CR:
		return len(m.irs) + len(m.fxs) + len(m.eqs) + len(m.infs) + i
	default:
		panic(fmt.Sprintf("cross asset model: unknown asset class %v", class))
	}
}

// Correlation returns the instantaneous correlation between two factors'
// Brownian drivers.
func (m *CrossAssetModel) Correlation(c1 AssetClass, i1 int, c2 AssetClass, i2 int) float64 {
	return m.corr.At(m.BrownianIndex(c1, i1), m.BrownianIndex(c2, i2))
}

// SetCorrelation overwrites one entry of the correlation matrix. The entry is
// range-checked but the matrix as a whole is not revalidated for positive
// semi-definiteness; that surfaces at state process construction.
func (m *CrossAssetModel) SetCorrelation(c1 AssetClass, i1 int, c2 AssetClass, i2 int, rho float64) error {
	if math.Abs(rho) > 1 {
		return fmt.Errorf("cross asset model: correlation %v outside [-1, 1]", rho)
	}
	b1 := m.BrownianIndex(c1, i1)
	b2 := m.BrownianIndex(c2, i2)
	if b1 == b2 {
		return fmt.Errorf("cross asset model: cannot set diagonal correlation entry")
	}
	m.corr.SetSym(b1, b2, rho)
	m.Update()
	return nil
}

// CorrelationMatrix returns the Brownian correlation matrix.
func (m *CrossAssetModel) CorrelationMatrix() *mat.SymDense { return m.corr }

// Update bumps the model generation. Consumers caching derived quantities
// compare generations to decide whether to recompute.
func (m *CrossAssetModel) Update() { m.generation++ }

// Generation returns the model's change counter.
func (m *CrossAssetModel) Generation() uint64 { return m.generation }

// Numeraire returns the domestic LGM numeraire N(t) given the domestic state
// component z0.
func (m *CrossAssetModel) Numeraire(t, z0 float64) float64 {
	p := m.irs[0]
	h := p.H(t)
	pt := p.TermStructure().CurrentLink().Discount(t)
	return math.Exp(h*z0+0.5*h*h*p.Zeta(t)) / pt
}

// DiscountBond returns the zero coupon bond price P_i(t, T) in currency i
// given that currency's state component z.
func (m *CrossAssetModel) DiscountBond(i int, t, T, z float64) float64 {
	if T < t {
		panic("cross asset model: discount bond maturity before valuation time")
	}
	p := m.irs[i]
	curve := p.TermStructure().CurrentLink()
	ht := p.H(t)
	hT := p.H(T)
	return curve.Discount(T) / curve.Discount(t) *
		math.Exp(-(hT-ht)*z-0.5*(hT*hT-ht*ht)*p.Zeta(t))
}

// ReducedDiscountBond returns P_i(t, T) deflated by the domestic numeraire,
// with z0 the domestic state component and z currency i's component.
func (m *CrossAssetModel) ReducedDiscountBond(i int, t, T, z, z0 float64) float64 {
	return m.DiscountBond(i, t, T, z) / m.Numeraire(t, z0)
}

// dkIrAdjustment computes the cross adjustment
//
//	A(t, T) = -s * rho * int_t^T (Hk(T)-Hk(u)) (Hc(T)-Hc(u)) alphak(u) alphac(u) du
//
// between a DK block and its currency's IR factor, where s is +1 for
// inflation and -1 for credit.
func (m *CrossAssetModel) dkIrAdjustment(dk *dkParametrization, dkClass AssetClass, dkIdx int, sign float64, t, T float64) float64 {
	c := m.currencyIdx[dk.Currency()]
	ir := m.irs[c]
	rho := m.Correlation(dkClass, dkIdx, IR, c)
	if rho == 0 {
		return 0
	}
	hkT := dk.H(T)
	hcT := ir.H(T)
	f := func(u float64) float64 {
		return (hkT - dk.H(u)) * (hcT - ir.H(u)) * dk.Alpha(u) * ir.Alpha(u)
	}
	bp := mathutil.MergeBreakpoints(dk.Breakpoints(), ir.Breakpoints())
	return -sign * rho * mathutil.SegmentIntegrate(f, t, T, bp)
}

// dkDrift computes int_0^t zeta_k(u) Hk(u) Hk'(u) du for a DK block.
func dkDriftIntegral(dk *dkParametrization, t float64) float64 {
	f := func(u float64) float64 {
		return dk.Zeta(u) * dk.H(u) * dk.Hprime(u)
	}
	return mathutil.SegmentIntegrate(f, 0, t, dk.Breakpoints())
}

// dkPair evaluates the realized and conditional factors shared by the
// inflation index and credit survival formulas. Q is the market curve value
// at a horizon (index growth factor or survival probability), sign is +1 for
// inflation and -1 for credit, and (z, y) is the block's state at t.
func (m *CrossAssetModel) dkPair(dk *dkParametrization, dkClass AssetClass, dkIdx int, sign float64,
	q func(float64) float64, t, T, z, y float64) (float64, float64) {

	a0t := m.dkIrAdjustment(dk, dkClass, dkIdx, sign, 0, t)
	a0T := m.dkIrAdjustment(dk, dkClass, dkIdx, sign, 0, T)
	atT := m.dkIrAdjustment(dk, dkClass, dkIdx, sign, t, T)

	ht := dk.H(t)
	hT := dk.H(T)
	zeta := dk.Zeta(t)

	realized := q(t) * math.Exp(-a0t-dkDriftIntegral(dk, t)+sign*(ht*z-y))

	conditional := q(T) / q(t) * math.Exp(
		sign*(hT-ht)*z-
			0.5*(hT*hT-ht*ht)*zeta+
			atT-a0T+a0t)

	return realized, conditional
}

// InfDkI returns the pair (realized index growth I(t)/I(0), conditional
// expected growth E[I(T)/I(t) | F_t]) for inflation block i given its state
// (z, y) at t. Both factors reproduce the market inflation curve at t = 0 and
// keep the numeraire-deflated indexed bond a martingale.
func (m *CrossAssetModel) InfDkI(i int, t, T, z, y float64) (float64, float64) {
	p := m.infs[i]
	curve := p.Curve().CurrentLink()
	return m.dkPair(&p.dkParametrization, INF, i, +1, curve.GrowthFactor, t, T, z, y)
}

// CrS returns the pair (realized survival S(0, t), conditional survival
// S(t, T)) for credit block i given its state (z, y) at t.
func (m *CrossAssetModel) CrS(i int, t, T, z, y float64) (float64, float64) {
	p := m.crs[i]
	curve := p.Curve().CurrentLink()
	return m.dkPair(&p.dkParametrization, CR, i, -1, curve.Survival, t, T, z, y)
}
