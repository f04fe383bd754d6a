package marketstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarket = `
quotes:
  - { kind: fx_spot, name: USDEUR, value: 0.90 }
  - { kind: equity_spot, name: SPX, config: close, value: 4000 }

curves:
  - kind: discount
    name: EUR
    times: [1, 5]
    values: [0.98, 0.90]
  - kind: swaption_vol
    name: EUR
    times: [1, 5]
    values: [0.20, 0.22]
  - kind: default
    name: ACME
    times: [1, 5]
    values: [0.99, 0.95]

inflation_curves:
  - name: EUCPI
    base_cpi: 100
    times: [1, 5]
    zeros: [0.02, 0.022]

cpi_premiums:
  - { name: EUCPI, expiry: 2, premium: 0.012 }
  - { name: EUCPI, expiry: 4, premium: 0.021 }
`

func TestParseFile(t *testing.T) {
	mkt, err := ParseFile([]byte(sampleMarket))
	require.NoError(t, err)

	spot, err := mkt.FxSpot("USDEUR", "")
	require.NoError(t, err)
	assert.Equal(t, 0.90, spot.Value())

	eq, err := mkt.EquitySpot("SPX", "close")
	require.NoError(t, err)
	assert.Equal(t, 4000.0, eq.Value())

	eur, err := mkt.DiscountCurve("EUR", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.98, eur.Discount(1), 1e-12)

	sv, err := mkt.SwaptionVol("EUR", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.20, sv.Vol(1), 1e-12)

	dc, err := mkt.DefaultCurve("ACME", "")
	require.NoError(t, err)
	assert.InDelta(t, 0.99, dc.Survival(1), 1e-12)

	ic, err := mkt.InflationCurve("EUCPI", "")
	require.NoError(t, err)
	assert.Equal(t, 100.0, ic.BaseCPI())
	assert.InDelta(t, math.Pow(1.02, 1), ic.GrowthFactor(1), 1e-12)

	premiums, err := mkt.CpiVol("EUCPI", "")
	require.NoError(t, err)
	require.Len(t, premiums, 2)
	assert.Equal(t, 0.012, premiums[2].Value())
}

func TestParseFileRejectsUnknownKind(t *testing.T) {
	_, err := ParseFile([]byte(`
quotes:
  - { kind: bond_spot, name: X, value: 1 }
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown quote kind")
}

func TestParseFileRejectsUnknownField(t *testing.T) {
	_, err := ParseFile([]byte(`
surfaces:
  - { name: X }
`))
	require.Error(t, err)
}

func TestParseFileRejectsBadCurve(t *testing.T) {
	_, err := ParseFile([]byte(`
curves:
  - kind: discount
    name: EUR
    times: [1, 5]
    values: [0.98]
`))
	require.Error(t, err)
}
