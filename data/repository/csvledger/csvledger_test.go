package csvledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/shopspring/decimal"
)

func ledgerConfig(dir string) *config.Config {
	cfg := &config.Config{}
	cfg.Storage.CSV.PortfolioFile = filepath.Join(dir, "chatgpt_portfolio_update.csv")
	cfg.Storage.CSV.TradeLogFile = filepath.Join(dir, "chatgpt_trade_log.csv")
	cfg.Storage.CSV.WatchlistFile = filepath.Join(dir, "watchlist.json")
	return cfg
}

func openLedger(t *testing.T, cfg *config.Config) *CSVLedger {
	t.Helper()
	led, err := New(cfg)
	if err != nil {
		t.Fatalf("can't open csv ledger: %v", err)
	}
	return led
}

func d(value string) decimal.Decimal {
	out, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return out
}

func day(value string) time.Time {
	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func snapshotFor(date string, cash, equity decimal.Decimal, positions ...model.PositionSnapshot) model.Snapshot {
	value := decimal.Zero
	pnl := decimal.Zero
	for _, p := range positions {
		value = value.Add(p.MarketValue)
		pnl = pnl.Add(p.PnL)
	}
	return model.Snapshot{
		Date:      day(date),
		Positions: positions,
		Total: model.SnapshotTotal{
			TotalValue:  value,
			PnL:         pnl,
			CashBalance: cash,
			TotalEquity: equity,
		},
	}
}

func TestCSVLedger_FreshFilesNeedInit(t *testing.T) {
	t.Parallel()

	led := openLedger(t, ledgerConfig(t.TempDir()))
	ctx := context.Background()

	needsInit, err := led.NeedsInit(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !needsInit {
		t.Error("expected a fresh ledger to need init")
	}

	if _, err := led.LoadCash(ctx); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for cash, got %v", err)
	}

	holdings, err := led.LoadHoldings(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("expected no holdings, got %+v", holdings)
	}
}

func TestCSVLedger_SnapshotRoundTripsHoldingsAndCash(t *testing.T) {
	t.Parallel()

	cfg := ledgerConfig(t.TempDir())
	led := openLedger(t, cfg)
	ctx := context.Background()

	entry := model.BuyLogEntry{
		Date: day("2025-06-02"), Ticker: "AAPL",
		Shares: d("10"), Price: d("150"), Cost: d("1500"), Reason: model.ReasonManualBuy,
	}
	holdings := []model.Holding{{Ticker: "AAPL", Shares: d("10"), StopLoss: d("140"), BuyPrice: d("150"), CostBasis: d("1500")}}
	snap := snapshotFor("2025-06-02", d("8500"), d("10050"), model.PositionSnapshot{
		Ticker: "AAPL", Shares: d("10"), BuyPrice: d("150"), StopLoss: d("140"),
		CurrentPrice: d("155"), MarketValue: d("1550"), PnL: d("50"), Action: model.ActionHold,
	})

	err := led.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := led.AppendTradeLog(ctx, entry); err != nil {
			return err
		}
		if err := led.ReplaceHoldings(ctx, holdings); err != nil {
			return err
		}
		if err := led.SetCash(ctx, d("8500")); err != nil {
			return err
		}
		return led.ReplaceHistory(ctx, snap)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a fresh ledger over the same files must rebuild the state from the
	// latest date block
	reopened := openLedger(t, cfg)

	needsInit, err := reopened.NeedsInit(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if needsInit {
		t.Error("expected the reopened ledger to be initialized")
	}

	cash, err := reopened.LoadCash(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cash.Equal(d("8500")) {
		t.Errorf("expected cash 8500, got %s", cash)
	}

	got, err := reopened.LoadHoldings(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(got))
	}
	h := got[0]
	if h.Ticker != "AAPL" || !h.Shares.Equal(d("10")) || !h.BuyPrice.Equal(d("150")) || !h.StopLoss.Equal(d("140")) {
		t.Errorf("unexpected holding: %+v", h)
	}
	if !h.CostBasis.Equal(d("1500")) {
		t.Errorf("expected cost basis rebuilt as 1500, got %s", h.CostBasis)
	}
}

func TestCSVLedger_MutationsStageUntilSnapshotWrite(t *testing.T) {
	t.Parallel()

	cfg := ledgerConfig(t.TempDir())
	led := openLedger(t, cfg)
	ctx := context.Background()

	if err := led.SetCash(ctx, d("10000")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// cash visible on this handle
	cash, err := led.LoadCash(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cash.Equal(d("10000")) {
		t.Errorf("expected staged cash 10000, got %s", cash)
	}

	// but not durable without a snapshot write
	reopened := openLedger(t, cfg)
	if _, err := reopened.LoadCash(ctx); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected staged cash to be lost on reopen, got %v", err)
	}
}

func TestCSVLedger_ReplaceHistoryOverwritesSameDay(t *testing.T) {
	t.Parallel()

	led := openLedger(t, ledgerConfig(t.TempDir()))
	ctx := context.Background()

	if err := led.ReplaceHistory(ctx, snapshotFor("2025-06-02", d("10000"), d("10000"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := led.ReplaceHistory(ctx, snapshotFor("2025-06-02", d("10100"), d("10100"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := led.History(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the rewrite to replace the day, got %d rows", len(records))
	}
	if records[0].Ticker != model.TotalTicker || !records[0].TotalEquity.Decimal.Equal(d("10100")) {
		t.Errorf("unexpected surviving row: %+v", records[0])
	}
}

func TestCSVLedger_HistoryOrdersByDateWithTotalLast(t *testing.T) {
	t.Parallel()

	led := openLedger(t, ledgerConfig(t.TempDir()))
	ctx := context.Background()

	// written out of order on purpose
	err := led.ReplaceHistory(ctx, snapshotFor("2025-06-02", d("8500"), d("10100"),
		model.PositionSnapshot{Ticker: "MSFT", Shares: d("2"), BuyPrice: d("300"), CurrentPrice: d("310"), MarketValue: d("620"), PnL: d("20"), Action: model.ActionHold},
		model.PositionSnapshot{Ticker: "AAPL", Shares: d("10"), BuyPrice: d("150"), CurrentPrice: d("155"), MarketValue: d("1550"), PnL: d("50"), Action: model.ActionHold},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = led.ReplaceHistory(ctx, snapshotFor("2025-06-01", d("10000"), d("10000")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := led.History(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r.Date.Format(model.DateLayout)+" "+r.Ticker)
	}
	want := []string{
		"2025-06-01 TOTAL",
		"2025-06-02 AAPL",
		"2025-06-02 MSFT",
		"2025-06-02 TOTAL",
	}
	if len(got) != len(want) {
		t.Fatalf("expected rows %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected rows %v, got %v", want, got)
		}
	}
}

func TestCSVLedger_EquityCurveReadsTotalRows(t *testing.T) {
	t.Parallel()

	led := openLedger(t, ledgerConfig(t.TempDir()))
	ctx := context.Background()

	if err := led.ReplaceHistory(ctx, snapshotFor("2025-06-01", d("10000"), d("10000"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := led.ReplaceHistory(ctx, snapshotFor("2025-06-02", d("8500"), d("10100"),
		model.PositionSnapshot{Ticker: "AAPL", Shares: d("10"), BuyPrice: d("150"), CurrentPrice: d("155"), MarketValue: d("1550"), PnL: d("50"), Action: model.ActionHold},
	)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	points, err := led.EquityCurve(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if !points[0].Equity.Equal(d("10000")) || !points[1].Equity.Equal(d("10100")) {
		t.Errorf("unexpected curve: %+v", points)
	}
	if !points[0].Date.Equal(day("2025-06-01")) || !points[1].Date.Equal(day("2025-06-02")) {
		t.Errorf("unexpected dates: %+v", points)
	}
}

func TestCSVLedger_TradeLogNewestFirstWithLimit(t *testing.T) {
	t.Parallel()

	led := openLedger(t, ledgerConfig(t.TempDir()))
	ctx := context.Background()

	entries := []model.TradeLogEntry{
		model.BuyLogEntry{Date: day("2025-06-01"), Ticker: "AAPL", Shares: d("10"), Price: d("150"), Cost: d("1500"), Reason: model.ReasonManualBuy},
		model.BuyLogEntry{Date: day("2025-06-02"), Ticker: "MSFT", Shares: d("2"), Price: d("300"), Cost: d("600"), Reason: model.ReasonManualBuy},
		model.SellLogEntry{Date: day("2025-06-03"), Ticker: "AAPL", Shares: d("4"), Price: d("160"), CostBasis: d("600"), PnL: d("40"), Reason: model.ReasonManualSell},
	}
	for _, e := range entries {
		if err := led.AppendTradeLog(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	trades, err := led.TradeLog(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if trades[0].Ticker != "AAPL" || !trades[0].SharesSold.Valid {
		t.Errorf("expected the sell first, got %+v", trades[0])
	}
	if trades[0].ID != 3 || trades[2].ID != 1 {
		t.Errorf("expected ids to follow append order, got %d and %d", trades[0].ID, trades[2].ID)
	}

	limited, err := led.TradeLog(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 trades with the limit, got %d", len(limited))
	}
	if limited[0].ID != 3 || limited[1].ID != 2 {
		t.Errorf("expected the two newest trades, got %+v", limited)
	}
}

func TestCSVLedger_TradeLogRoundTripsBuyAndSellColumns(t *testing.T) {
	t.Parallel()

	led := openLedger(t, ledgerConfig(t.TempDir()))
	ctx := context.Background()

	buy := model.BuyLogEntry{Date: day("2025-06-02"), Ticker: "NVDA", Shares: d("10"), Price: d("155"), Cost: d("1550"), Reason: model.ReasonManualBuy}
	sell := model.SellLogEntry{Date: day("2025-06-03"), Ticker: "NVDA", Shares: d("4"), Price: d("160"), CostBasis: d("620"), PnL: d("20"), Reason: model.ReasonManualSell}
	if err := led.AppendTradeLog(ctx, buy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := led.AppendTradeLog(ctx, sell); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trades, err := led.TradeLog(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotSell, gotBuy := trades[0], trades[1]

	if !gotBuy.SharesBought.Valid || !gotBuy.SharesBought.Decimal.Equal(d("10")) {
		t.Errorf("expected bought shares 10, got %+v", gotBuy.SharesBought)
	}
	if !gotBuy.BuyPrice.Valid || !gotBuy.BuyPrice.Decimal.Equal(d("155")) {
		t.Errorf("expected buy price 155, got %+v", gotBuy.BuyPrice)
	}
	if !gotBuy.CostBasis.Valid || !gotBuy.CostBasis.Decimal.Equal(d("1550")) {
		t.Errorf("expected cost 1550, got %+v", gotBuy.CostBasis)
	}
	if gotBuy.PnL.Valid || gotBuy.SharesSold.Valid || gotBuy.SellPrice.Valid {
		t.Errorf("expected sell columns empty on a buy, got %+v", gotBuy)
	}
	if gotBuy.Reason != model.ReasonManualBuy {
		t.Errorf("unexpected reason %q", gotBuy.Reason)
	}

	if !gotSell.SharesSold.Valid || !gotSell.SharesSold.Decimal.Equal(d("4")) {
		t.Errorf("expected sold shares 4, got %+v", gotSell.SharesSold)
	}
	if !gotSell.SellPrice.Valid || !gotSell.SellPrice.Decimal.Equal(d("160")) {
		t.Errorf("expected sell price 160, got %+v", gotSell.SellPrice)
	}
	if !gotSell.PnL.Valid || !gotSell.PnL.Decimal.Equal(d("20")) {
		t.Errorf("expected pnl 20, got %+v", gotSell.PnL)
	}
	if gotSell.SharesBought.Valid || gotSell.BuyPrice.Valid {
		t.Errorf("expected buy columns empty on a sell, got %+v", gotSell)
	}
}

func TestCSVLedger_WatchlistPersistsSorted(t *testing.T) {
	t.Parallel()

	cfg := ledgerConfig(t.TempDir())
	led := openLedger(t, cfg)
	ctx := context.Background()

	if err := led.AddToWatchlist(ctx, "NVDA"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := led.AddToWatchlist(ctx, "ABEO"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := led.AddToWatchlist(ctx, "NVDA"); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	tickers, err := led.Watchlist(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tickers) != 2 || tickers[0] != "ABEO" || tickers[1] != "NVDA" {
		t.Errorf("expected sorted watchlist [ABEO NVDA], got %v", tickers)
	}

	if err := led.RemoveFromWatchlist(ctx, "ABEO"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := led.RemoveFromWatchlist(ctx, "ABEO"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	reopened := openLedger(t, cfg)
	tickers, err = reopened.Watchlist(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tickers) != 1 || tickers[0] != "NVDA" {
		t.Errorf("expected [NVDA] after reopen, got %v", tickers)
	}
}
