package marketstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/crossasset/pkg/config"
	"github.com/wonny/crossasset/pkg/database"
	"github.com/wonny/crossasset/pkg/logger"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS market_quotes (
	kind   TEXT NOT NULL,
	name   TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT 'default',
	value  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (kind, name, config)
);
CREATE TABLE IF NOT EXISTS market_curves (
	kind   TEXT NOT NULL,
	name   TEXT NOT NULL,
	config TEXT NOT NULL DEFAULT 'default',
	times  DOUBLE PRECISION[] NOT NULL,
	vals   DOUBLE PRECISION[] NOT NULL,
	PRIMARY KEY (kind, name, config)
);
CREATE TABLE IF NOT EXISTS inflation_curves (
	name     TEXT NOT NULL,
	config   TEXT NOT NULL DEFAULT 'default',
	base_cpi DOUBLE PRECISION NOT NULL,
	times    DOUBLE PRECISION[] NOT NULL,
	zeros    DOUBLE PRECISION[] NOT NULL,
	PRIMARY KEY (name, config)
);
CREATE TABLE IF NOT EXISTS cpi_premiums (
	name    TEXT NOT NULL,
	config  TEXT NOT NULL DEFAULT 'default',
	expiry  DOUBLE PRECISION NOT NULL,
	premium DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (name, config, expiry)
);
`

// TestLoad is an integration test and needs DATABASE_URL pointing at a
// scratch database.
func TestLoad(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	db, err := database.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = db.Pool.Exec(ctx, testSchema)
	require.NoError(t, err)
	defer func() {
		db.Pool.Exec(context.Background(),
			`DROP TABLE IF EXISTS market_quotes, market_curves, inflation_curves, cpi_premiums`)
	}()

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO market_quotes (kind, name, config, value) VALUES
			('fx_spot', 'USDEUR', 'default', 0.90),
			('equity_spot', 'SPX', 'default', 4000)
		ON CONFLICT (kind, name, config) DO UPDATE SET value = EXCLUDED.value`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO market_curves (kind, name, config, times, vals) VALUES
			('discount', 'EUR', 'default', ARRAY[1.0, 5.0], ARRAY[0.98, 0.90]),
			('discount', 'USD', 'default', ARRAY[1.0, 5.0], ARRAY[0.95, 0.78]),
			('swaption_vol', 'EUR', 'default', ARRAY[1.0, 5.0], ARRAY[0.20, 0.22]),
			('default', 'ACME', 'default', ARRAY[1.0, 5.0], ARRAY[0.99, 0.95])
		ON CONFLICT (kind, name, config) DO UPDATE SET times = EXCLUDED.times, vals = EXCLUDED.vals`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO inflation_curves (name, config, base_cpi, times, zeros) VALUES
			('EUCPI', 'default', 100, ARRAY[1.0, 5.0], ARRAY[0.02, 0.022])
		ON CONFLICT (name, config) DO UPDATE SET base_cpi = EXCLUDED.base_cpi`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO cpi_premiums (name, config, expiry, premium) VALUES
			('EUCPI', 'default', 2, 0.012),
			('EUCPI', 'default', 4, 0.021)
		ON CONFLICT (name, config, expiry) DO UPDATE SET premium = EXCLUDED.premium`)
	require.NoError(t, err)

	log := logger.New(cfg)
	store := New(db, log)
	mkt, err := store.Load(ctx)
	require.NoError(t, err)

	spot, err := mkt.FxSpot("USDEUR", "")
	require.NoError(t, err)
	assert.Equal(t, 0.90, spot.Value())

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

	premiums, err := mkt.CpiVol("EUCPI", "")
	require.NoError(t, err)
	require.Len(t, premiums, 2)
	assert.Equal(t, 0.012, premiums[2].Value())
}
