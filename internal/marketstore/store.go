// Package marketstore loads market data snapshots from PostgreSQL into the
// in-memory market layer. The schema is one row per observable:
//
//	market_quotes  (kind, name, config, value)
//	market_curves  (kind, name, config, times float8[], vals float8[])
//	inflation_curves (name, config, base_cpi, times float8[], zeros float8[])
//	cpi_premiums   (name, config, expiry, premium)
//
// Curve kinds map onto the market accessors: discount and dividend rows hold
// discount factors, vol rows hold total volatilities, default rows hold
// survival probabilities.
package marketstore

import (
	"context"
	"fmt"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/pkg/database"
	"github.com/wonny/crossasset/pkg/logger"
)

// Quote kinds in market_quotes.
const (
	kindFxSpot     = "fx_spot"
	kindEquitySpot = "equity_spot"
)

// Curve kinds in market_curves.
const (
	kindDiscount    = "discount"
	kindDividend    = "dividend"
	kindSwaptionVol = "swaption_vol"
	kindFxVol       = "fx_vol"
	kindEquityVol   = "equity_vol"
	kindDefault     = "default"
)

// Store reads market snapshots from the database.
type Store struct {
	db  *database.DB
	log *logger.Logger
}

// New creates a store on an open connection pool.
func New(db *database.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log}
}

// Load reads the full market snapshot.
func (s *Store) Load(ctx context.Context) (*market.Market, error) {
	mkt := market.New()
	if err := s.loadQuotes(ctx, mkt); err != nil {
		return nil, err
	}
	if err := s.loadCurves(ctx, mkt); err != nil {
		return nil, err
	}
	if err := s.loadInflationCurves(ctx, mkt); err != nil {
		return nil, err
	}
	if err := s.loadCpiPremiums(ctx, mkt); err != nil {
		return nil, err
	}
	return mkt, nil
}

func (s *Store) loadQuotes(ctx context.Context, mkt *market.Market) error {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT kind, name, config, value FROM market_quotes`)
	if err != nil {
		return fmt.Errorf("load quotes: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var kind, name, config string
		var value float64
		if err := rows.Scan(&kind, &name, &config, &value); err != nil {
			return fmt.Errorf("scan quote: %w", err)
		}
		switch kind {
		case kindFxSpot:
			mkt.SetFxSpot(name, config, market.NewQuote(value))
		case kindEquitySpot:
			mkt.SetEquitySpot(name, config, market.NewQuote(value))
		default:
			return fmt.Errorf("load quotes: unknown kind %q for %s", kind, name)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load quotes: %w", err)
	}
	s.log.WithField("count", n).Debug("quotes loaded")
	return nil
}

func (s *Store) loadCurves(ctx context.Context, mkt *market.Market) error {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT kind, name, config, times, vals FROM market_curves`)
	if err != nil {
		return fmt.Errorf("load curves: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var kind, name, config string
		var times, values []float64
		if err := rows.Scan(&kind, &name, &config, &times, &values); err != nil {
			return fmt.Errorf("scan curve: %w", err)
		}
		if err := setCurve(mkt, kind, name, config, times, values); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load curves: %w", err)
	}
	s.log.WithField("count", n).Debug("curves loaded")
	return nil
}

func setCurve(mkt *market.Market, kind, name, config string, times, values []float64) error {
	switch kind {
	case kindDiscount:
		c, err := market.NewDiscountCurve(times, values)
		if err != nil {
			return fmt.Errorf("curve %s %s: %w", kind, name, err)
		}
		mkt.SetDiscountCurve(name, config, c)
	case kindDividend:
		c, err := market.NewDiscountCurve(times, values)
		if err != nil {
			return fmt.Errorf("curve %s %s: %w", kind, name, err)
		}
		mkt.SetDividendCurve(name, config, c)
	case kindSwaptionVol, kindFxVol, kindEquityVol:
		c, err := market.NewInterpolatedVol(times, values)
		if err != nil {
			return fmt.Errorf("curve %s %s: %w", kind, name, err)
		}
		switch kind {
		case kindSwaptionVol:
			mkt.SetSwaptionVol(name, config, c)
		case kindFxVol:
			mkt.SetFxVol(name, config, c)
		case kindEquityVol:
			mkt.SetEquityVol(name, config, c)
		}
	case kindDefault:
		c, err := market.NewSurvivalCurve(times, values)
		if err != nil {
			return fmt.Errorf("curve %s %s: %w", kind, name, err)
		}
		mkt.SetDefaultCurve(name, config, c)
	default:
		return fmt.Errorf("load curves: unknown kind %q for %s", kind, name)
	}
	return nil
}

func (s *Store) loadInflationCurves(ctx context.Context, mkt *market.Market) error {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT name, config, base_cpi, times, zeros FROM inflation_curves`)
	if err != nil {
		return fmt.Errorf("load inflation curves: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, config string
		var base float64
		var times, zeros []float64
		if err := rows.Scan(&name, &config, &base, &times, &zeros); err != nil {
			return fmt.Errorf("scan inflation curve: %w", err)
		}
		c, err := market.NewZeroInflationCurve(base, times, zeros)
		if err != nil {
			return fmt.Errorf("inflation curve %s: %w", name, err)
		}
		mkt.SetInflationCurve(name, config, c)
	}
	return rows.Err()
}

func (s *Store) loadCpiPremiums(ctx context.Context, mkt *market.Market) error {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT name, config, expiry, premium FROM cpi_premiums ORDER BY name, config, expiry`)
	if err != nil {
		return fmt.Errorf("load cpi premiums: %w", err)
	}
	defer rows.Close()

	type key struct{ name, config string }
	grouped := make(map[key]map[float64]*market.Quote)
	for rows.Next() {
		var name, config string
		var expiry, premium float64
		if err := rows.Scan(&name, &config, &expiry, &premium); err != nil {
			return fmt.Errorf("scan cpi premium: %w", err)
		}
		k := key{name, config}
		if grouped[k] == nil {
			grouped[k] = make(map[float64]*market.Quote)
		}
		grouped[k][expiry] = market.NewQuote(premium)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load cpi premiums: %w", err)
	}
	for k, premiums := range grouped {
		mkt.SetCpiVol(k.name, k.config, premiums)
	}
	return nil
}
