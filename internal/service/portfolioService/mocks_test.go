package portfolioService

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/marketModel"
	"github.com/shopspring/decimal"
)

// mockRepo is an in-memory stand-in for the ledger store. Err fields inject
// failures per method, the slices record what the service wrote.
type mockRepo struct {
	holdings  []model.Holding
	cash      decimal.Decimal
	hasCash   bool
	watchlist []string
	trades    []model.TradeRecord
	history   []model.HistoryRecord
	equity    []model.EquityPoint

	loadHoldingsErr    error
	loadCashErr        error
	needsInitErr       error
	txErr              error
	appendErr          error
	replaceHoldingsErr error
	setCashErr         error
	replaceHistoryErr  error
	tradeLogErr        error
	historyErr         error
	equityErr          error
	watchlistErr       error
	addWatchErr        error
	removeWatchErr     error

	txCalls           int
	appendedEntries   []model.TradeLogEntry
	replacedHoldings  [][]model.Holding
	setCashCalls      []decimal.Decimal
	replacedSnapshots []model.Snapshot
	addedToWatch      []string
	removedFromWatch  []string
}

func (m *mockRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	m.txCalls++
	if m.txErr != nil {
		return m.txErr
	}
	return tFunc(ctx)
}

func (m *mockRepo) LoadHoldings(_ context.Context) ([]model.Holding, error) {
	if m.loadHoldingsErr != nil {
		return nil, m.loadHoldingsErr
	}
	out := make([]model.Holding, len(m.holdings))
	copy(out, m.holdings)
	return out, nil
}

func (m *mockRepo) ReplaceHoldings(_ context.Context, holdings []model.Holding) error {
	if m.replaceHoldingsErr != nil {
		return m.replaceHoldingsErr
	}
	cp := make([]model.Holding, len(holdings))
	copy(cp, holdings)
	m.replacedHoldings = append(m.replacedHoldings, cp)
	return nil
}

func (m *mockRepo) LoadCash(_ context.Context) (decimal.Decimal, error) {
	if m.loadCashErr != nil {
		return decimal.Decimal{}, m.loadCashErr
	}
	if !m.hasCash {
		return decimal.Decimal{}, repository.ErrNotFound
	}
	return m.cash, nil
}

func (m *mockRepo) SetCash(_ context.Context, balance decimal.Decimal) error {
	if m.setCashErr != nil {
		return m.setCashErr
	}
	m.setCashCalls = append(m.setCashCalls, balance)
	return nil
}

func (m *mockRepo) NeedsInit(_ context.Context) (bool, error) {
	if m.needsInitErr != nil {
		return false, m.needsInitErr
	}
	return len(m.holdings) == 0 && !m.hasCash, nil
}

func (m *mockRepo) AppendTradeLog(_ context.Context, entry model.TradeLogEntry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appendedEntries = append(m.appendedEntries, entry)
	return nil
}

func (m *mockRepo) TradeLog(_ context.Context, limit int) ([]model.TradeRecord, error) {
	if m.tradeLogErr != nil {
		return nil, m.tradeLogErr
	}
	out := make([]model.TradeRecord, len(m.trades))
	copy(out, m.trades)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) ReplaceHistory(_ context.Context, snapshot model.Snapshot) error {
	if m.replaceHistoryErr != nil {
		return m.replaceHistoryErr
	}
	m.replacedSnapshots = append(m.replacedSnapshots, snapshot)
	return nil
}

func (m *mockRepo) History(_ context.Context) ([]model.HistoryRecord, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.history, nil
}

func (m *mockRepo) EquityCurve(_ context.Context) ([]model.EquityPoint, error) {
	if m.equityErr != nil {
		return nil, m.equityErr
	}
	return m.equity, nil
}

func (m *mockRepo) Watchlist(_ context.Context) ([]string, error) {
	if m.watchlistErr != nil {
		return nil, m.watchlistErr
	}
	out := make([]string, len(m.watchlist))
	copy(out, m.watchlist)
	return out, nil
}

func (m *mockRepo) AddToWatchlist(_ context.Context, ticker string) error {
	if m.addWatchErr != nil {
		return m.addWatchErr
	}
	for _, t := range m.watchlist {
		if t == ticker {
			return repository.ErrAlreadyExists
		}
	}
	m.watchlist = append(m.watchlist, ticker)
	m.addedToWatch = append(m.addedToWatch, ticker)
	return nil
}

func (m *mockRepo) RemoveFromWatchlist(_ context.Context, ticker string) error {
	if m.removeWatchErr != nil {
		return m.removeWatchErr
	}
	for i, t := range m.watchlist {
		if t == ticker {
			m.watchlist = append(m.watchlist[:i], m.watchlist[i+1:]...)
			m.removedFromWatch = append(m.removedFromWatch, ticker)
			return nil
		}
	}
	return repository.ErrNotFound
}

// mockMarket serves quotes and day ranges from fixed maps. A ticker absent
// from the map fails, like an unknown symbol would.
type mockMarket struct {
	quotes       map[string]marketModel.Quote
	quotesErr    error
	singleQuotes map[string]marketModel.Quote
	dayRanges    map[string]marketModel.DayRange
	dayRangeErr  error

	quotesCalls   [][]string
	quoteCalls    []string
	dayRangeCalls []string
}

func (m *mockMarket) Quote(_ context.Context, ticker string) (marketModel.Quote, error) {
	m.quoteCalls = append(m.quoteCalls, ticker)
	if quote, ok := m.singleQuotes[ticker]; ok {
		return quote, nil
	}
	return marketModel.Quote{}, errors.New("no data for symbol")
}

func (m *mockMarket) Quotes(_ context.Context, tickers []string) (map[string]marketModel.Quote, error) {
	cp := make([]string, len(tickers))
	copy(cp, tickers)
	m.quotesCalls = append(m.quotesCalls, cp)

	if m.quotesErr != nil {
		return nil, m.quotesErr
	}
	out := make(map[string]marketModel.Quote, len(tickers))
	for _, t := range tickers {
		if quote, ok := m.quotes[t]; ok {
			out[t] = quote
		}
	}
	return out, nil
}

func (m *mockMarket) DayRange(_ context.Context, ticker string) (marketModel.DayRange, error) {
	m.dayRangeCalls = append(m.dayRangeCalls, ticker)
	if m.dayRangeErr != nil {
		return marketModel.DayRange{}, m.dayRangeErr
	}
	if r, ok := m.dayRanges[ticker]; ok {
		return r, nil
	}
	return marketModel.DayRange{}, errors.New("no data for symbol")
}

type mockCache struct {
	quotes map[string]marketModel.Quote
	getErr error
	setErr error

	getCalls [][]string
	setCalls [][]marketModel.Quote
}

func (m *mockCache) GetQuotes(_ context.Context, tickers []string) (map[string]marketModel.Quote, error) {
	cp := make([]string, len(tickers))
	copy(cp, tickers)
	m.getCalls = append(m.getCalls, cp)

	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make(map[string]marketModel.Quote, len(tickers))
	for _, t := range tickers {
		if quote, ok := m.quotes[t]; ok {
			out[t] = quote
		}
	}
	return out, nil
}

func (m *mockCache) SetQuotes(_ context.Context, quotes []marketModel.Quote) error {
	cp := make([]marketModel.Quote, len(quotes))
	copy(cp, quotes)
	m.setCalls = append(m.setCalls, cp)
	return m.setErr
}

type mockReports struct {
	data []byte
	ext  string
	err  error

	calls      int
	lastReport model.Report
}

func (m *mockReports) Generate(_ context.Context, report model.Report) ([]byte, string, error) {
	m.calls++
	m.lastReport = report
	if m.err != nil {
		return nil, "", m.err
	}
	return m.data, m.ext, nil
}

type mockCharts struct {
	img []byte
	err error

	gotPoints []model.EquityPoint
}

func (m *mockCharts) RenderEquityCurve(_ context.Context, points []model.EquityPoint) ([]byte, error) {
	m.gotPoints = points
	if m.err != nil {
		return nil, m.err
	}
	return m.img, nil
}

type mockStorage struct {
	link string
	err  error

	uploadedNames []string
}

func (m *mockStorage) UploadFile(_ context.Context, _ io.Reader, filename string) (string, error) {
	m.uploadedNames = append(m.uploadedNames, filename)
	if m.err != nil {
		return "", m.err
	}
	return m.link, nil
}

var testDay = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

// newTestService wires the service onto the given mocks with a pinned clock.
func newTestService(repo *mockRepo, cache *mockCache, market *mockMarket) *PortfolioService {
	cfg := &config.Config{}
	cfg.Telegram.FileLimitInBytes = 50 * 1024 * 1024
	s := New(repo, cache, market, &mockReports{data: []byte("xlsx"), ext: ".xlsx"}, &mockCharts{img: []byte("png")}, nil, cfg)
	s.now = func() time.Time { return time.Date(2025, time.June, 2, 15, 4, 5, 0, time.UTC) }
	return s
}

func d(value string) decimal.Decimal {
	out, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return out
}

func quoteOf(ticker, price string) marketModel.Quote {
	return marketModel.Quote{Ticker: ticker, Price: d(price)}
}

func rangeOf(ticker, low, high string) marketModel.DayRange {
	return marketModel.DayRange{Ticker: ticker, Low: d(low), High: d(high)}
}
