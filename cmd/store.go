package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "treasury.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// selectCompanies resolves the configured companies, optionally narrowed to a
// ticker list.
func selectCompanies(tickers []string) ([]model.Company, error) {
	if len(cfg.Companies) == 0 {
		return nil, eris.New("no companies configured (set companies in the config file)")
	}
	if len(tickers) == 0 {
		return cfg.Companies, nil
	}

	byTicker := make(map[string]model.Company, len(cfg.Companies))
	for _, c := range cfg.Companies {
		byTicker[c.Ticker] = c
	}

	out := make([]model.Company, 0, len(tickers))
	for _, t := range tickers {
		c, ok := byTicker[t]
		if !ok {
			return nil, eris.Errorf("ticker %s is not configured", t)
		}
		out = append(out, c)
	}
	return out, nil
}
