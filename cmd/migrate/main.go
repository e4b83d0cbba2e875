package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/data"
	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/data/repository/csvledger"
	"github.com/KotFed0t/trade_tracker_bot/data/repository/ledger"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/jmoiron/sqlx"
)

// Imports a legacy csv ledger into the relational backend selected by
// STORAGE_BACKEND. Meant to run once when moving off the csv files.
func main() {
	portfolioFile := flag.String("portfolio", "", "portfolio history csv (default from config)")
	tradeLogFile := flag.String("trades", "", "trade log csv (default from config)")
	watchlistFile := flag.String("watchlist", "", "watchlist json (default from config)")
	flag.Parse()

	cfg := config.MustLoad()
	if *portfolioFile != "" {
		cfg.Storage.CSV.PortfolioFile = *portfolioFile
	}
	if *tradeLogFile != "" {
		cfg.Storage.CSV.TradeLogFile = *tradeLogFile
	}
	if *watchlistFile != "" {
		cfg.Storage.CSV.WatchlistFile = *watchlistFile
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx := utils.CreateCtxWithNewRqID(context.Background())

	source, err := csvledger.New(cfg)
	if err != nil {
		slog.Error("csv ledger open error", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var db *sqlx.DB
	switch cfg.Storage.Backend {
	case "sqlite":
		db = data.NewSQLiteClient(cfg)
	case "postgres":
		db = data.NewPostgresClient(cfg)
	default:
		slog.Error("migration target must be sqlite or postgres", slog.String("backend", cfg.Storage.Backend))
		os.Exit(1)
	}
	defer db.Close()

	if err := runImport(ctx, source, ledger.New(db)); err != nil {
		slog.Error("import failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	slog.Info("import completed")
}

func runImport(ctx context.Context, source *csvledger.CSVLedger, target *ledger.Ledger) error {
	holdings, err := source.LoadHoldings(ctx)
	if err != nil {
		return fmt.Errorf("read holdings: %w", err)
	}

	hasCash := true
	cash, err := source.LoadCash(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("read cash: %w", err)
		}
		hasCash = false
	}

	trades, err := source.TradeLog(ctx, 0)
	if err != nil {
		return fmt.Errorf("read trade log: %w", err)
	}

	records, err := source.History(ctx)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	snapshots := snapshotsFromRecords(records)

	watchlist, err := source.Watchlist(ctx)
	if err != nil {
		return fmt.Errorf("read watchlist: %w", err)
	}

	slog.Info("importing csv ledger",
		slog.Int("holdings", len(holdings)),
		slog.Int("trades", len(trades)),
		slog.Int("snapshot days", len(snapshots)),
		slog.Int("watchlist", len(watchlist)),
	)

	return target.WithinTransaction(ctx, func(ctx context.Context) error {
		// TradeLog returns newest first, append oldest first so journal ids
		// follow trade order.
		for i := len(trades) - 1; i >= 0; i-- {
			if err := target.AppendTradeLog(ctx, entryFromRecord(trades[i])); err != nil {
				return fmt.Errorf("append trade %s %s: %w", trades[i].Date.Format(model.DateLayout), trades[i].Ticker, err)
			}
		}

		for _, snapshot := range snapshots {
			if err := target.ReplaceHistory(ctx, snapshot); err != nil {
				return fmt.Errorf("replace history %s: %w", snapshot.Date.Format(model.DateLayout), err)
			}
		}

		if err := target.ReplaceHoldings(ctx, holdings); err != nil {
			return fmt.Errorf("replace holdings: %w", err)
		}

		if hasCash {
			if err := target.SetCash(ctx, cash); err != nil {
				return fmt.Errorf("set cash: %w", err)
			}
		}

		for _, ticker := range watchlist {
			if err := target.AddToWatchlist(ctx, ticker); err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
				return fmt.Errorf("watch %s: %w", ticker, err)
			}
		}

		return nil
	})
}

func entryFromRecord(r model.TradeRecord) model.TradeLogEntry {
	if r.SharesBought.Valid {
		return model.BuyLogEntry{
			Date:   r.Date,
			Ticker: r.Ticker,
			Shares: r.SharesBought.Decimal,
			Price:  r.BuyPrice.Decimal,
			Cost:   r.CostBasis.Decimal,
			Reason: r.Reason,
		}
	}
	return model.SellLogEntry{
		Date:      r.Date,
		Ticker:    r.Ticker,
		Shares:    r.SharesSold.Decimal,
		Price:     r.SellPrice.Decimal,
		CostBasis: r.CostBasis.Decimal,
		PnL:       r.PnL.Decimal,
		Reason:    r.Reason,
	}
}

// snapshotsFromRecords regroups flat history rows into one snapshot per day.
// Rows arrive dates ascending, so the result keeps that order.
func snapshotsFromRecords(records []model.HistoryRecord) []model.Snapshot {
	var snapshots []model.Snapshot
	byDate := make(map[string]int)

	for _, r := range records {
		key := r.Date.Format(model.DateLayout)
		idx, ok := byDate[key]
		if !ok {
			idx = len(snapshots)
			byDate[key] = idx
			snapshots = append(snapshots, model.Snapshot{Date: r.Date})
		}

		if r.Ticker == model.TotalTicker {
			snapshots[idx].Total = model.SnapshotTotal{
				TotalValue:  r.TotalValue.Decimal,
				PnL:         r.PnL.Decimal,
				CashBalance: r.CashBalance.Decimal,
				TotalEquity: r.TotalEquity.Decimal,
			}
			continue
		}

		snapshots[idx].Positions = append(snapshots[idx].Positions, model.PositionSnapshot{
			Ticker:       r.Ticker,
			Shares:       r.Shares.Decimal,
			BuyPrice:     r.CostBasis.Decimal,
			StopLoss:     r.StopLoss.Decimal,
			CurrentPrice: r.CurrentPrice.Decimal,
			MarketValue:  r.TotalValue.Decimal,
			PnL:          r.PnL.Decimal,
			Action:       r.Action,
		})
	}

	return snapshots
}
