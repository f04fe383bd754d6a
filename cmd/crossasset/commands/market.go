package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/marketstore"
	"github.com/wonny/crossasset/pkg/config"
	"github.com/wonny/crossasset/pkg/database"
	"github.com/wonny/crossasset/pkg/logger"
)

var (
	marketDataFile string
	fromDB         bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&marketDataFile, "market", "market.yaml", "market snapshot file")
	rootCmd.PersistentFlags().BoolVar(&fromDB, "from-db", false, "load market data from PostgreSQL instead of --market")
}

// loadMarketData resolves the market snapshot source. The returned closer
// releases the database pool when --from-db is set and is a no-op otherwise.
func loadMarketData(cfg *config.Config, log *logger.Logger) (*market.Market, func(), error) {
	if !fromDB {
		mkt, err := marketstore.LoadFile(marketDataFile)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("file", marketDataFile).Info("market snapshot loaded")
		return mkt, func() {}, nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	mkt, err := marketstore.New(db, log).Load(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load market data: %w", err)
	}
	return mkt, db.Close, nil
}
