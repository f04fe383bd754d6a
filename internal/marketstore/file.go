package marketstore

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/crossasset/internal/market"
)

// marketFile mirrors the database schema as a YAML document, one entry per
// observable.
type marketFile struct {
	Quotes []struct {
		Kind   string  `yaml:"kind"`
		Name   string  `yaml:"name"`
		Config string  `yaml:"config"`
		Value  float64 `yaml:"value"`
	} `yaml:"quotes"`
	Curves []struct {
		Kind   string    `yaml:"kind"`
		Name   string    `yaml:"name"`
		Config string    `yaml:"config"`
		Times  []float64 `yaml:"times"`
		Values []float64 `yaml:"values"`
	} `yaml:"curves"`
	InflationCurves []struct {
		Name    string    `yaml:"name"`
		Config  string    `yaml:"config"`
		BaseCPI float64   `yaml:"base_cpi"`
		Times   []float64 `yaml:"times"`
		Zeros   []float64 `yaml:"zeros"`
	} `yaml:"inflation_curves"`
	CpiPremiums []struct {
		Name    string  `yaml:"name"`
		Config  string  `yaml:"config"`
		Expiry  float64 `yaml:"expiry"`
		Premium float64 `yaml:"premium"`
	} `yaml:"cpi_premiums"`
}

// LoadFile reads a market snapshot from a YAML file. Unknown fields are
// rejected.
func LoadFile(path string) (*market.Market, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read market file: %w", err)
	}
	return ParseFile(raw)
}

// ParseFile decodes a YAML market snapshot document.
func ParseFile(raw []byte) (*market.Market, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var doc marketFile
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode market file: %w", err)
	}

	mkt := market.New()
	for _, q := range doc.Quotes {
		switch q.Kind {
		case kindFxSpot:
			mkt.SetFxSpot(q.Name, q.Config, market.NewQuote(q.Value))
		case kindEquitySpot:
			mkt.SetEquitySpot(q.Name, q.Config, market.NewQuote(q.Value))
		default:
			return nil, fmt.Errorf("market file: unknown quote kind %q for %s", q.Kind, q.Name)
		}
	}
	for _, c := range doc.Curves {
		if err := setCurve(mkt, c.Kind, c.Name, c.Config, c.Times, c.Values); err != nil {
			return nil, fmt.Errorf("market file: %w", err)
		}
	}
	for _, ic := range doc.InflationCurves {
		c, err := market.NewZeroInflationCurve(ic.BaseCPI, ic.Times, ic.Zeros)
		if err != nil {
			return nil, fmt.Errorf("market file: inflation curve %s: %w", ic.Name, err)
		}
		mkt.SetInflationCurve(ic.Name, ic.Config, c)
	}

	type key struct{ name, config string }
	grouped := make(map[key]map[float64]*market.Quote)
	for _, p := range doc.CpiPremiums {
		k := key{p.Name, p.Config}
		if grouped[k] == nil {
			grouped[k] = make(map[float64]*market.Quote)
		}
		grouped[k][p.Expiry] = market.NewQuote(p.Premium)
	}
	for k, premiums := range grouped {
		mkt.SetCpiVol(k.name, k.config, premiums)
	}
	return mkt, nil
}
