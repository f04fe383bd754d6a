package model

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/market"
	"gonum.org/v1/gonum/mat"
)

// FactorID names one Brownian factor for correlation purposes, e.g.
// {IR, "EUR"}, {FX, "USD"}, {CR, "itraxx"}.
type FactorID struct {
	Class AssetClass
	Name  string
}

// String formats the factor as CLASS:NAME.
func (f FactorID) String() string {
	return f.Class.String() + ":" + f.Name
}

type factorPair struct {
	a, b FactorID
}

// normalizePair orders a pair canonically so (a,b) and (b,a) hit the same key.
func normalizePair(a, b FactorID) factorPair {
	if a.Class > b.Class || (a.Class == b.Class && a.Name > b.Name) {
		a, b = b, a
	}
	return factorPair{a, b}
}

// CorrelationBuilder collects pairwise correlation quotes and assembles the
// Brownian-dimensioned correlation matrix for a given factor order. Quote
// values are resolved when Matrix is called, not when entries are set.
type CorrelationBuilder struct {
	entries map[factorPair]*market.Quote
}

// NewCorrelationBuilder returns an empty builder.
func NewCorrelationBuilder() *CorrelationBuilder {
	return &CorrelationBuilder{entries: make(map[factorPair]*market.Quote)}
}

// Set registers a correlation quote between two factors. Setting a pair twice
// replaces the quote. Self-pairs are rejected.
func (b *CorrelationBuilder) Set(f1, f2 FactorID, q *market.Quote) error {
	if f1 == f2 {
		return fmt.Errorf("correlation: self pair %s", f1)
	}
	if q == nil {
		return fmt.Errorf("correlation: nil quote for %s ~ %s", f1, f2)
	}
	b.entries[normalizePair(f1, f2)] = q
	return nil
}

// SetValue registers a fixed correlation value between two factors.
func (b *CorrelationBuilder) SetValue(f1, f2 FactorID, rho float64) error {
	return b.Set(f1, f2, market.NewQuote(rho))
}

// Matrix resolves all quotes and builds the symmetric correlation matrix over
// the given factor order. Unspecified pairs default to zero. It fails when a
// quote value lies outside [-1, 1] or when an entry references a factor that
// does not appear in the order.
func (b *CorrelationBuilder) Matrix(order []FactorID) (*mat.SymDense, error) {
	n := len(order)
	pos := make(map[FactorID]int, n)
	for i, f := range order {
		if _, dup := pos[f]; dup {
			return nil, fmt.Errorf("correlation: duplicate factor %s in order", f)
		}
		pos[f] = i
	}

	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
	}

	for pair, q := range b.entries {
		i, ok1 := pos[pair.a]
		j, ok2 := pos[pair.b]
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("correlation: entry %s ~ %s references a factor outside the model", pair.a, pair.b)
		}
		rho := q.Value()
		if math.Abs(rho) > 1 {
			return nil, fmt.Errorf("correlation: %s ~ %s = %v outside [-1, 1]", pair.a, pair.b, rho)
		}
		m.SetSym(i, j, rho)
	}
	return m, nil
}

// InducedAuxiliaryCorrelation reports the small-step correlation between a
// credit/inflation block's auxiliary state y and another factor correlated at
// rho with the block's primary factor. Over a short step the auxiliary
// increment integrates the primary's Brownian, which scales the correlation
// by sqrt(3)/2.
func InducedAuxiliaryCorrelation(rho float64) float64 {
	return rho * math.Sqrt(3) / 2
}
