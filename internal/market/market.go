package market

import (
	"fmt"
	"sync"
)

// Kind identifies the asset class of a stored item.
type Kind string

const (
	KindDiscountCurve  Kind = "discount_curve"
	KindFxSpot         Kind = "fx_spot"
	KindFxVol          Kind = "fx_vol"
	KindSwaptionVol    Kind = "swaption_vol"
	KindEquitySpot     Kind = "equity_spot"
	KindEquityVol      Kind = "equity_vol"
	KindDividendCurve  Kind = "dividend_curve"
	KindDefaultCurve   Kind = "default_curve"
	KindInflationCurve Kind = "inflation_curve"
	KindCpiVol         Kind = "cpi_vol"
)

// DefaultConfiguration is the fallback configuration tag. Lookups for a
// specific configuration fall back to it when no dedicated item exists.
const DefaultConfiguration = "default"

// NotFoundError reports a missing market object.
type NotFoundError struct {
	Kind   Kind
	Name   string
	Config string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("market object not found: %s/%s (configuration %s)", e.Kind, e.Name, e.Config)
}

type key struct {
	kind   Kind
	name   string
	config string
}

// Market is the in-memory registry of term structures and quotes, keyed by
// (kind, name, configuration).
type Market struct {
	mu    sync.RWMutex
	items map[key]interface{}
}

// New returns an empty market.
func New() *Market {
	return &Market{items: make(map[key]interface{})}
}

func (m *Market) set(kind Kind, name, config string, v interface{}) {
	if config == "" {
		config = DefaultConfiguration
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key{kind, name, config}] = v
}

func (m *Market) get(kind Kind, name, config string) (interface{}, error) {
	if config == "" {
		config = DefaultConfiguration
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.items[key{kind, name, config}]; ok {
		return v, nil
	}
	if config != DefaultConfiguration {
		if v, ok := m.items[key{kind, name, DefaultConfiguration}]; ok {
			return v, nil
		}
	}
	return nil, &NotFoundError{Kind: kind, Name: name, Config: config}
}

// SetDiscountCurve registers a discount curve for a currency.
func (m *Market) SetDiscountCurve(ccy, config string, c YieldCurve) {
	m.set(KindDiscountCurve, ccy, config, c)
}

// DiscountCurve returns the discount curve for a currency.
func (m *Market) DiscountCurve(ccy, config string) (YieldCurve, error) {
	v, err := m.get(KindDiscountCurve, ccy, config)
	if err != nil {
		return nil, err
	}
	return v.(YieldCurve), nil
}

// SetFxSpot registers an FX spot quote for a currency pair like "USDEUR".
func (m *Market) SetFxSpot(pair, config string, q *Quote) {
	m.set(KindFxSpot, pair, config, q)
}

// FxSpot returns the FX spot quote for a currency pair.
func (m *Market) FxSpot(pair, config string) (*Quote, error) {
	v, err := m.get(KindFxSpot, pair, config)
	if err != nil {
		return nil, err
	}
	return v.(*Quote), nil
}

// SetFxVol registers an FX option volatility curve for a currency pair.
func (m *Market) SetFxVol(pair, config string, c VolCurve) {
	m.set(KindFxVol, pair, config, c)
}

// FxVol returns the FX option volatility curve for a currency pair.
func (m *Market) FxVol(pair, config string) (VolCurve, error) {
	v, err := m.get(KindFxVol, pair, config)
	if err != nil {
		return nil, err
	}
	return v.(VolCurve), nil
}

// SetSwaptionVol registers a swaption volatility curve for a currency.
func (m *Market) SetSwaptionVol(ccy, config string, c VolCurve) {
	m.set(KindSwaptionVol, ccy, config, c)
}

// SwaptionVol returns the swaption volatility curve for a currency.
func (m *Market) SwaptionVol(ccy, config string) (VolCurve, error) {
	v, err := m.get(KindSwaptionVol, ccy, config)
	if err != nil {
		return nil, err
	}
	return v.(VolCurve), nil
}

// SetEquitySpot registers an equity spot quote.
func (m *Market) SetEquitySpot(name, config string, q *Quote) {
	m.set(KindEquitySpot, name, config, q)
}

// EquitySpot returns the equity spot quote.
func (m *Market) EquitySpot(name, config string) (*Quote, error) {
	v, err := m.get(KindEquitySpot, name, config)
	if err != nil {
		return nil, err
	}
	return v.(*Quote), nil
}

// SetEquityVol registers an equity option volatility curve.
func (m *Market) SetEquityVol(name, config string, c VolCurve) {
	m.set(KindEquityVol, name, config, c)
}

// EquityVol returns the equity option volatility curve.
func (m *Market) EquityVol(name, config string) (VolCurve, error) {
	v, err := m.get(KindEquityVol, name, config)
	if err != nil {
		return nil, err
	}
	return v.(VolCurve), nil
}

// SetDividendCurve registers an equity dividend yield curve.
func (m *Market) SetDividendCurve(name, config string, c YieldCurve) {
	m.set(KindDividendCurve, name, config, c)
}

// DividendCurve returns the equity dividend yield curve.
func (m *Market) DividendCurve(name, config string) (YieldCurve, error) {
	v, err := m.get(KindDividendCurve, name, config)
	if err != nil {
		return nil, err
	}
	return v.(YieldCurve), nil
}

// SetDefaultCurve registers a credit default curve.
func (m *Market) SetDefaultCurve(name, config string, c DefaultCurve) {
	m.set(KindDefaultCurve, name, config, c)
}

// DefaultCurve returns the credit default curve.
func (m *Market) DefaultCurve(name, config string) (DefaultCurve, error) {
	v, err := m.get(KindDefaultCurve, name, config)
	if err != nil {
		return nil, err
	}
	return v.(DefaultCurve), nil
}

// SetInflationCurve registers a zero inflation curve.
func (m *Market) SetInflationCurve(name, config string, c InflationCurve) {
	m.set(KindInflationCurve, name, config, c)
}

// InflationCurve returns the zero inflation curve.
func (m *Market) InflationCurve(name, config string) (InflationCurve, error) {
	v, err := m.get(KindInflationCurve, name, config)
	if err != nil {
		return nil, err
	}
	return v.(InflationCurve), nil
}

// SetCpiVol registers CPI cap/floor price quotes keyed by index name. The
// stored value is a map from expiry to premium quote.
func (m *Market) SetCpiVol(name, config string, premiums map[float64]*Quote) {
	m.set(KindCpiVol, name, config, premiums)
}

// CpiVol returns the CPI cap/floor premium quotes for an index.
func (m *Market) CpiVol(name, config string) (map[float64]*Quote, error) {
	v, err := m.get(KindCpiVol, name, config)
	if err != nil {
		return nil, err
	}
	return v.(map[float64]*Quote), nil
}
