package csvledger

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/shopspring/decimal"
)

// CSVLedger keeps the portfolio in the legacy flat files: a snapshot history
// CSV, a trade log CSV and a watchlist JSON. The latest date block of the
// history file IS the holdings state, with the TOTAL row carrying cash, so
// the files written here load back byte-for-byte equivalent.
//
// Holdings and cash mutations are staged in memory and become durable with
// the snapshot write that ends every trade and valuation flow. Every write
// goes through a temp file plus rename.
type CSVLedger struct {
	portfolioFile string
	tradeLogFile  string
	watchlistFile string

	mu       sync.Mutex
	loaded   bool
	holdings []model.Holding
	cash     decimal.Decimal
	hasCash  bool
}

type txKey struct{}

var historyHeader = []string{"Date", "Ticker", "Shares", "Cost Basis", "Stop Loss", "Current Price", "Total Value", "PnL", "Action", "Cash Balance", "Total Equity"}

var tradeLogHeader = []string{"Date", "Ticker", "Shares Bought", "Buy Price", "Cost Basis", "PnL", "Reason", "Shares Sold", "Sell Price"}

func New(cfg *config.Config) (*CSVLedger, error) {
	c := &CSVLedger{
		portfolioFile: cfg.Storage.CSV.PortfolioFile,
		tradeLogFile:  cfg.Storage.CSV.TradeLogFile,
		watchlistFile: cfg.Storage.CSV.WatchlistFile,
	}

	for _, path := range []string{c.portfolioFile, c.tradeLogFile, c.watchlistFile} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	if _, err := os.Stat(c.portfolioFile); errors.Is(err, os.ErrNotExist) {
		if err := atomicWriteCSV(c.portfolioFile, [][]string{historyHeader}); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(c.tradeLogFile); errors.Is(err, os.ErrNotExist) {
		if err := atomicWriteCSV(c.tradeLogFile, [][]string{tradeLogHeader}); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// WithinTransaction serializes the closure against all other ledger calls.
// There is no rollback for flat files: partial effects of a failed closure
// stay staged in memory only until the next snapshot write.
func (c *CSVLedger) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return tFunc(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return tFunc(context.WithValue(ctx, txKey{}, struct{}{}))
}

// lock claims the mutex unless the context already runs inside
// WithinTransaction, which holds it for the whole closure.
func (c *CSVLedger) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	c.mu.Lock()
	return c.mu.Unlock
}

func (c *CSVLedger) LoadHoldings(ctx context.Context) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("LoadHoldings start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("LoadHoldings failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("LoadHoldings completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()
	if err = c.ensureLoaded(); err != nil {
		return nil, err
	}

	holdings = make([]model.Holding, len(c.holdings))
	copy(holdings, c.holdings)
	return holdings, nil
}

func (c *CSVLedger) ReplaceHoldings(ctx context.Context, holdings []model.Holding) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("ReplaceHoldings start", slog.String("rqID", rqID), slog.Int("count", len(holdings)))
	defer func() {
		if err != nil {
			slog.Error("ReplaceHoldings failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ReplaceHoldings completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()
	if err = c.ensureLoaded(); err != nil {
		return err
	}

	c.holdings = make([]model.Holding, len(holdings))
	copy(c.holdings, holdings)
	return nil
}

func (c *CSVLedger) LoadCash(ctx context.Context) (balance decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("LoadCash start", slog.String("rqID", rqID))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("LoadCash failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("LoadCash completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()
	if err = c.ensureLoaded(); err != nil {
		return decimal.Decimal{}, err
	}

	if !c.hasCash {
		return decimal.Decimal{}, repository.ErrNotFound
	}
	return c.cash, nil
}

func (c *CSVLedger) SetCash(ctx context.Context, balance decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("SetCash start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("SetCash failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("SetCash completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()
	if err = c.ensureLoaded(); err != nil {
		return err
	}

	c.cash = balance
	c.hasCash = true
	return nil
}

func (c *CSVLedger) NeedsInit(ctx context.Context) (needsInit bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("NeedsInit start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("NeedsInit failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("NeedsInit completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()
	if err = c.ensureLoaded(); err != nil {
		return false, err
	}

	return len(c.holdings) == 0 && !c.hasCash, nil
}

func (c *CSVLedger) AppendTradeLog(ctx context.Context, entry model.TradeLogEntry) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("AppendTradeLog start", slog.String("rqID", rqID), slog.String("ticker", entry.EntryTicker()))
	defer func() {
		if err != nil {
			slog.Error("AppendTradeLog failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("AppendTradeLog completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()

	rows, err := readCSVFile(c.tradeLogFile, tradeLogHeader)
	if err != nil {
		return err
	}

	row, err := formatTradeLogEntry(entry)
	if err != nil {
		return err
	}
	rows = append(rows, row)

	return atomicWriteCSV(c.tradeLogFile, prependHeader(tradeLogHeader, rows))
}

func (c *CSVLedger) TradeLog(ctx context.Context, limit int) (trades []model.TradeRecord, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("TradeLog start", slog.String("rqID", rqID), slog.Int("limit", limit))
	defer func() {
		if err != nil {
			slog.Error("TradeLog failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("TradeLog completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()

	rows, err := readCSVFile(c.tradeLogFile, tradeLogHeader)
	if err != nil {
		return nil, err
	}

	trades = make([]model.TradeRecord, 0, len(rows))
	for i, row := range rows {
		trade, err := parseTradeRecord(row)
		if err != nil {
			return nil, err
		}
		trade.ID = int64(i + 1)
		trades = append(trades, trade)
	}

	// newest first, file order is append order
	slices.Reverse(trades)
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

func (c *CSVLedger) ReplaceHistory(ctx context.Context, snapshot model.Snapshot) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	date := snapshot.Date.Format(model.DateLayout)
	slog.Debug("ReplaceHistory start", slog.String("rqID", rqID), slog.String("date", date))
	defer func() {
		if err != nil {
			slog.Error("ReplaceHistory failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ReplaceHistory completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()

	rows, err := readCSVFile(c.portfolioFile, historyHeader)
	if err != nil {
		return err
	}

	kept := make([][]string, 0, len(rows)+len(snapshot.Positions)+1)
	for _, row := range rows {
		if len(row) > 0 && row[0] == date {
			continue
		}
		kept = append(kept, row)
	}
	kept = append(kept, snapshotRows(snapshot)...)

	return atomicWriteCSV(c.portfolioFile, prependHeader(historyHeader, kept))
}

func (c *CSVLedger) History(ctx context.Context) (records []model.HistoryRecord, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("History start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("History failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("History completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()

	rows, err := readCSVFile(c.portfolioFile, historyHeader)
	if err != nil {
		return nil, err
	}

	records = make([]model.HistoryRecord, 0, len(rows))
	for _, row := range rows {
		record, err := parseHistoryRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		if (records[i].Ticker == model.TotalTicker) != (records[j].Ticker == model.TotalTicker) {
			return records[j].Ticker == model.TotalTicker
		}
		return records[i].Ticker < records[j].Ticker
	})
	return records, nil
}

func (c *CSVLedger) EquityCurve(ctx context.Context) (points []model.EquityPoint, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("EquityCurve start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("EquityCurve failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("EquityCurve completed", slog.String("rqID", rqID))
		}
	}()

	records, err := c.History(ctx)
	if err != nil {
		return nil, err
	}

	points = make([]model.EquityPoint, 0, len(records))
	for _, r := range records {
		if r.Ticker != model.TotalTicker || !r.TotalEquity.Valid {
			continue
		}
		points = append(points, model.EquityPoint{Date: r.Date, Equity: r.TotalEquity.Decimal})
	}
	return points, nil
}

func (c *CSVLedger) Watchlist(ctx context.Context) (tickers []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Watchlist start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("Watchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("Watchlist completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()
	return c.readWatchlist()
}

func (c *CSVLedger) AddToWatchlist(ctx context.Context, ticker string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("AddToWatchlist start", slog.String("rqID", rqID), slog.String("ticker", ticker))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
			slog.Error("AddToWatchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("AddToWatchlist completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()

	tickers, err := c.readWatchlist()
	if err != nil {
		return err
	}
	if slices.Contains(tickers, ticker) {
		return repository.ErrAlreadyExists
	}

	tickers = append(tickers, ticker)
	sort.Strings(tickers)
	return c.writeWatchlist(tickers)
}

func (c *CSVLedger) RemoveFromWatchlist(ctx context.Context, ticker string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("RemoveFromWatchlist start", slog.String("rqID", rqID), slog.String("ticker", ticker))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("RemoveFromWatchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("RemoveFromWatchlist completed", slog.String("rqID", rqID))
		}
	}()

	defer c.lock(ctx)()

	tickers, err := c.readWatchlist()
	if err != nil {
		return err
	}

	idx := slices.Index(tickers, ticker)
	if idx < 0 {
		return repository.ErrNotFound
	}

	return c.writeWatchlist(slices.Delete(tickers, idx, idx+1))
}

// ensureLoaded reconstructs holdings and cash from the latest date block of
// the history file. Callers hold the mutex.
func (c *CSVLedger) ensureLoaded() error {
	if c.loaded {
		return nil
	}

	rows, err := readCSVFile(c.portfolioFile, historyHeader)
	if err != nil {
		return err
	}

	latest := ""
	for _, row := range rows {
		if len(row) > 0 && row[0] > latest {
			latest = row[0]
		}
	}

	c.holdings = c.holdings[:0]
	c.hasCash = false
	for _, row := range rows {
		if len(row) == 0 || row[0] != latest {
			continue
		}
		record, err := parseHistoryRecord(row)
		if err != nil {
			return err
		}
		if record.Ticker == model.TotalTicker {
			if record.CashBalance.Valid {
				c.cash = record.CashBalance.Decimal
				c.hasCash = true
			}
			continue
		}
		shares := record.Shares.Decimal
		buyPrice := record.CostBasis.Decimal
		c.holdings = append(c.holdings, model.Holding{
			Ticker:    record.Ticker,
			Shares:    shares,
			StopLoss:  record.StopLoss.Decimal,
			BuyPrice:  buyPrice,
			CostBasis: shares.Mul(buyPrice),
		})
	}

	c.loaded = true
	return nil
}

func (c *CSVLedger) readWatchlist() ([]string, error) {
	data, err := os.ReadFile(c.watchlistFile)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0)
	if err := json.Unmarshal(data, &tickers); err != nil {
		return nil, fmt.Errorf("parse watchlist file: %w", err)
	}
	return tickers, nil
}

func (c *CSVLedger) writeWatchlist(tickers []string) error {
	data, err := json.MarshalIndent(tickers, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.watchlistFile), "tmp-*.json")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, c.watchlistFile)
}

// readCSVFile returns the data rows, skipping the header when present.
func readCSVFile(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return [][]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	if len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == header[0] {
		rows = rows[1:]
	}
	return rows, nil
}

func prependHeader(header []string, rows [][]string) [][]string {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, header)
	return append(out, rows...)
}

func atomicWriteCSV(path string, rows [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "tmp-*.csv")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func snapshotRows(snapshot model.Snapshot) [][]string {
	date := snapshot.Date.Format(model.DateLayout)
	rows := make([][]string, 0, len(snapshot.Positions)+1)
	for _, p := range snapshot.Positions {
		rows = append(rows, []string{
			date, p.Ticker,
			p.Shares.String(), p.BuyPrice.String(), p.StopLoss.String(), p.CurrentPrice.String(),
			p.MarketValue.String(), p.PnL.String(), p.Action, "", "",
		})
	}
	rows = append(rows, []string{
		date, model.TotalTicker,
		"", "", "", "",
		snapshot.Total.TotalValue.String(), snapshot.Total.PnL.String(), "",
		snapshot.Total.CashBalance.String(), snapshot.Total.TotalEquity.String(),
	})
	return rows
}

func parseHistoryRecord(row []string) (model.HistoryRecord, error) {
	if len(row) < len(historyHeader) {
		return model.HistoryRecord{}, fmt.Errorf("malformed history row: %q", strings.Join(row, ","))
	}

	date, err := parseDate(row[0])
	if err != nil {
		return model.HistoryRecord{}, err
	}

	record := model.HistoryRecord{Date: date, Ticker: row[1], Action: row[8]}
	for i, dst := range []*decimal.NullDecimal{
		&record.Shares, &record.CostBasis, &record.StopLoss, &record.CurrentPrice,
		&record.TotalValue, &record.PnL,
	} {
		if *dst, err = parseNullDecimal(row[2+i]); err != nil {
			return model.HistoryRecord{}, err
		}
	}
	if record.CashBalance, err = parseNullDecimal(row[9]); err != nil {
		return model.HistoryRecord{}, err
	}
	if record.TotalEquity, err = parseNullDecimal(row[10]); err != nil {
		return model.HistoryRecord{}, err
	}
	return record, nil
}

func formatTradeLogEntry(entry model.TradeLogEntry) ([]string, error) {
	switch e := entry.(type) {
	case model.BuyLogEntry:
		return []string{
			e.Date.Format(model.DateLayout), e.Ticker,
			e.Shares.String(), e.Price.String(), e.Cost.String(), "",
			e.Reason, "", "",
		}, nil
	case model.SellLogEntry:
		return []string{
			e.Date.Format(model.DateLayout), e.Ticker,
			"", "", e.CostBasis.String(), e.PnL.String(),
			e.Reason, e.Shares.String(), e.Price.String(),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported trade log entry type %T", entry)
	}
}

func parseTradeRecord(row []string) (model.TradeRecord, error) {
	if len(row) < len(tradeLogHeader) {
		return model.TradeRecord{}, fmt.Errorf("malformed trade log row: %q", strings.Join(row, ","))
	}

	date, err := parseDate(row[0])
	if err != nil {
		return model.TradeRecord{}, err
	}

	record := model.TradeRecord{Date: date, Ticker: row[1], Reason: row[6]}
	for i, dst := range []*decimal.NullDecimal{
		&record.SharesBought, &record.BuyPrice, &record.CostBasis, &record.PnL,
	} {
		if *dst, err = parseNullDecimal(row[2+i]); err != nil {
			return model.TradeRecord{}, err
		}
	}
	if record.SharesSold, err = parseNullDecimal(row[7]); err != nil {
		return model.TradeRecord{}, err
	}
	if record.SellPrice, err = parseNullDecimal(row[8]); err != nil {
		return model.TradeRecord{}, err
	}
	return record, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func parseNullDecimal(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return decimal.NewNullDecimal(v), nil
}
