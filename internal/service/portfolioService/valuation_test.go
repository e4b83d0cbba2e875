package portfolioService

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/marketModel"
	"github.com/KotFed0t/trade_tracker_bot/internal/service"
)

func TestRevalue_WritesSnapshotForTheDay(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		holdings: []model.Holding{
			{Ticker: "AAPL", Shares: d("10"), BuyPrice: d("150"), CostBasis: d("1500")},
			{Ticker: "MSFT", Shares: d("2"), BuyPrice: d("300"), CostBasis: d("600")},
		},
		hasCash: true,
		cash:    d("500"),
	}
	cache := &mockCache{quotes: map[string]marketModel.Quote{"AAPL": quoteOf("AAPL", "155")}}
	market := &mockMarket{quotes: map[string]marketModel.Quote{"MSFT": quoteOf("MSFT", "310")}}
	svc := newTestService(repo, cache, market)

	res, err := svc.Revalue(context.Background(), time.Date(2025, time.June, 2, 18, 45, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.MissingQuotes) != 0 {
		t.Errorf("expected no missing quotes, got %v", res.MissingQuotes)
	}
	if !res.Snapshot.Date.Equal(testDay) {
		t.Errorf("expected snapshot date normalized to %s, got %s", testDay, res.Snapshot.Date)
	}
	if len(res.Snapshot.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(res.Snapshot.Positions))
	}

	aapl, msft := res.Snapshot.Positions[0], res.Snapshot.Positions[1]
	if !aapl.MarketValue.Equal(d("1550")) || !aapl.PnL.Equal(d("50")) {
		t.Errorf("unexpected AAPL row: %+v", aapl)
	}
	if !msft.MarketValue.Equal(d("620")) || !msft.PnL.Equal(d("20")) {
		t.Errorf("unexpected MSFT row: %+v", msft)
	}
	total := res.Snapshot.Total
	if !total.TotalValue.Equal(d("2170")) || !total.PnL.Equal(d("70")) || !total.CashBalance.Equal(d("500")) || !total.TotalEquity.Equal(d("2670")) {
		t.Errorf("unexpected total row: %+v", total)
	}

	if repo.txCalls != 1 {
		t.Errorf("expected 1 transaction, got %d", repo.txCalls)
	}
	if len(repo.replacedSnapshots) != 1 {
		t.Errorf("expected 1 snapshot write, got %d", len(repo.replacedSnapshots))
	}
	if len(cache.setCalls) != 1 || len(cache.setCalls[0]) != 1 || cache.setCalls[0][0].Ticker != "MSFT" {
		t.Errorf("expected only the fetched MSFT quote written back to cache, got %+v", cache.setCalls)
	}
}

func TestRevalue_RefusesUninitializedLedger(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{}
	svc := newTestService(repo, &mockCache{}, &mockMarket{})

	_, err := svc.Revalue(context.Background(), testDay)
	if !errors.Is(err, service.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if repo.txCalls != 0 {
		t.Errorf("expected no transaction, got %d", repo.txCalls)
	}
}

func TestRevalue_ValuesUnpricedTickerAtZero(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		holdings: []model.Holding{{Ticker: "XYZ", Shares: d("5"), BuyPrice: d("10"), CostBasis: d("50")}},
		hasCash:  true,
		cash:     d("20"),
	}
	market := &mockMarket{}
	svc := newTestService(repo, &mockCache{}, market)

	res, err := svc.Revalue(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.MissingQuotes) != 1 || res.MissingQuotes[0] != "XYZ" {
		t.Errorf("expected XYZ reported missing, got %v", res.MissingQuotes)
	}
	if len(market.quoteCalls) != 1 || market.quoteCalls[0] != "XYZ" {
		t.Errorf("expected a single quote fallback attempt for XYZ, got %v", market.quoteCalls)
	}

	pos := res.Snapshot.Positions[0]
	if !pos.CurrentPrice.IsZero() || !pos.MarketValue.IsZero() {
		t.Errorf("expected a zero valued row, got %+v", pos)
	}
	if !pos.PnL.Equal(d("-50")) {
		t.Errorf("expected pnl -50 against the zero price, got %s", pos.PnL)
	}
	if !res.Snapshot.Total.TotalEquity.Equal(d("20")) {
		t.Errorf("expected equity to collapse to cash, got %s", res.Snapshot.Total.TotalEquity)
	}
}

func TestPortfolio_BuildsSummaryWithPnLPercent(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		holdings: []model.Holding{
			{Ticker: "AAPL", Shares: d("10"), BuyPrice: d("150"), CostBasis: d("1500")},
			{Ticker: "MSFT", Shares: d("5"), BuyPrice: d("200"), CostBasis: d("1000")},
		},
		hasCash: true,
		cash:    d("100"),
	}
	cache := &mockCache{quotes: map[string]marketModel.Quote{"AAPL": quoteOf("AAPL", "155")}}
	svc := newTestService(repo, cache, &mockMarket{})

	summary, err := svc.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(summary.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(summary.Positions))
	}

	aapl := summary.Positions[0]
	if !aapl.PriceKnown {
		t.Error("expected AAPL price known")
	}
	if !aapl.MarketValue.Equal(d("1550")) || !aapl.PnL.Equal(d("50")) {
		t.Errorf("unexpected AAPL values: %+v", aapl)
	}
	if !aapl.PnLPct.Equal(d("3.33")) {
		t.Errorf("expected pnl pct 3.33, got %s", aapl.PnLPct)
	}

	msft := summary.Positions[1]
	if msft.PriceKnown {
		t.Error("expected MSFT price unknown")
	}
	if !msft.PnL.Equal(d("-1000")) || !msft.PnLPct.IsZero() {
		t.Errorf("unexpected MSFT values: %+v", msft)
	}

	if !summary.TotalValue.Equal(d("1550")) || !summary.TotalPnL.Equal(d("-950")) || !summary.TotalEquity.Equal(d("1650")) {
		t.Errorf("unexpected totals: %+v", summary)
	}
	if len(summary.MissingQuotes) != 1 || summary.MissingQuotes[0] != "MSFT" {
		t.Errorf("expected MSFT in missing quotes, got %v", summary.MissingQuotes)
	}
}

func TestPortfolio_FallsBackToSingleQuoteWhenBatchMisses(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		holdings: []model.Holding{{Ticker: "NVDA", Shares: d("1"), BuyPrice: d("150"), CostBasis: d("150")}},
		hasCash:  true,
		cash:     d("100"),
	}
	cache := &mockCache{}
	market := &mockMarket{singleQuotes: map[string]marketModel.Quote{"NVDA": quoteOf("NVDA", "157")}}
	svc := newTestService(repo, cache, market)

	summary, err := svc.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := summary.Positions[0]
	if !pos.PriceKnown || !pos.CurrentPrice.Equal(d("157")) {
		t.Errorf("expected the fallback quote to price the position, got %+v", pos)
	}
	if len(summary.MissingQuotes) != 0 {
		t.Errorf("expected no missing quotes, got %v", summary.MissingQuotes)
	}
	if len(market.quotesCalls) != 1 || len(market.quoteCalls) != 1 {
		t.Errorf("expected one batch call and one fallback call, got %v and %v", market.quotesCalls, market.quoteCalls)
	}
	if len(cache.setCalls) != 1 || cache.setCalls[0][0].Ticker != "NVDA" {
		t.Errorf("expected the fallback quote cached, got %+v", cache.setCalls)
	}
}

func TestPortfolio_FlagsPositionsNearStopLoss(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		stop  string
		price string
		near  bool
	}{
		{"four percent above stop", "100", "104", true},
		{"exactly five percent above stop", "100", "105", true},
		{"six percent above stop", "100", "106", false},
		{"below stop", "100", "99", true},
		{"no stop set", "0", "104", false},
	}

	for _, tc := range cases {
		repo := &mockRepo{
			holdings: []model.Holding{{Ticker: "AAPL", Shares: d("1"), StopLoss: d(tc.stop), BuyPrice: d("90"), CostBasis: d("90")}},
			hasCash:  true,
			cash:     d("10"),
		}
		cache := &mockCache{quotes: map[string]marketModel.Quote{"AAPL": quoteOf("AAPL", tc.price)}}
		svc := newTestService(repo, cache, &mockMarket{})

		summary, err := svc.Portfolio(context.Background())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if summary.Positions[0].NearStopLoss != tc.near {
			t.Errorf("%s: expected NearStopLoss %v for price %s stop %s", tc.name, tc.near, tc.price, tc.stop)
		}
	}
}

func TestDailySummary_ComputesDayPnLAgainstPreviousClose(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		holdings: []model.Holding{{Ticker: "AAPL", Shares: d("10"), BuyPrice: d("150"), CostBasis: d("1500")}},
		hasCash:  true,
		cash:     d("9000"),
		equity: []model.EquityPoint{
			{Date: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), Equity: d("10000")},
			{Date: testDay, Equity: d("10100")},
		},
	}
	cache := &mockCache{quotes: map[string]marketModel.Quote{"AAPL": quoteOf("AAPL", "155")}}
	svc := newTestService(repo, cache, &mockMarket{})

	summary, err := svc.DailySummary(context.Background(), time.Date(2025, time.June, 2, 21, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !summary.TotalEquity.Equal(d("10550")) {
		t.Errorf("expected live equity 10550, got %s", summary.TotalEquity)
	}
	if !summary.HasDayPnL {
		t.Fatal("expected day pnl present")
	}
	if !summary.DayPnL.Equal(d("550")) {
		t.Errorf("expected day pnl 550 against the June 1 close, got %s", summary.DayPnL)
	}
	if summary.Best == nil || summary.Best.Ticker != "AAPL" {
		t.Errorf("expected AAPL as best position, got %+v", summary.Best)
	}
}

func TestDailySummary_FirstDayHasNoDayPnL(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		hasCash: true,
		cash:    d("10000"),
		equity:  []model.EquityPoint{{Date: testDay, Equity: d("10000")}},
	}
	svc := newTestService(repo, &mockCache{}, &mockMarket{})

	summary, err := svc.DailySummary(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.HasDayPnL {
		t.Error("expected no day pnl when today is the only snapshot")
	}
	if summary.Best != nil || summary.Worst != nil {
		t.Error("expected no best or worst position on an empty book")
	}
}

func TestDailySummary_PicksBestAndWorstAmongPricedPositions(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		holdings: []model.Holding{
			{Ticker: "AAPL", Shares: d("10"), BuyPrice: d("150"), CostBasis: d("1500")},
			{Ticker: "MSFT", Shares: d("5"), BuyPrice: d("200"), CostBasis: d("1000")},
			{Ticker: "XYZ", Shares: d("5"), BuyPrice: d("10"), CostBasis: d("50")},
		},
		hasCash: true,
		cash:    d("100"),
	}
	cache := &mockCache{quotes: map[string]marketModel.Quote{
		"AAPL": quoteOf("AAPL", "155"),
		"MSFT": quoteOf("MSFT", "190"),
	}}
	svc := newTestService(repo, cache, &mockMarket{})

	summary, err := svc.DailySummary(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Best == nil || summary.Best.Ticker != "AAPL" {
		t.Errorf("expected AAPL as best, got %+v", summary.Best)
	}
	if summary.Worst == nil || summary.Worst.Ticker != "MSFT" {
		t.Errorf("expected MSFT as worst, got %+v", summary.Worst)
	}
}

func TestWarmQuoteCache_FetchesHeldAndWatchedTickersOnce(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		holdings: []model.Holding{
			{Ticker: "AAPL", Shares: d("1"), BuyPrice: d("150"), CostBasis: d("150")},
			{Ticker: "MSFT", Shares: d("1"), BuyPrice: d("300"), CostBasis: d("300")},
		},
		hasCash:   true,
		cash:      d("100"),
		watchlist: []string{"MSFT", "NVDA"},
	}
	cache := &mockCache{}
	market := &mockMarket{quotes: map[string]marketModel.Quote{
		"AAPL": quoteOf("AAPL", "155"),
		"MSFT": quoteOf("MSFT", "310"),
		"NVDA": quoteOf("NVDA", "157"),
	}}
	svc := newTestService(repo, cache, market)

	if err := svc.WarmQuoteCache(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(market.quotesCalls) != 1 {
		t.Fatalf("expected one batch call, got %d", len(market.quotesCalls))
	}
	got := market.quotesCalls[0]
	want := []string{"AAPL", "MSFT", "NVDA"}
	if len(got) != len(want) {
		t.Fatalf("expected tickers %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected tickers %v, got %v", want, got)
		}
	}

	if len(cache.setCalls) != 1 || len(cache.setCalls[0]) != 3 {
		t.Errorf("expected 3 quotes written to cache, got %+v", cache.setCalls)
	}
}

func TestWarmQuoteCache_NoTickersMakesNoCalls(t *testing.T) {
	t.Parallel()

	market := &mockMarket{}
	cache := &mockCache{}
	svc := newTestService(&mockRepo{}, cache, market)

	if err := svc.WarmQuoteCache(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(market.quotesCalls) != 0 || len(cache.setCalls) != 0 {
		t.Error("expected no market or cache calls on an empty ledger")
	}
}

func TestWarmQuoteCache_PropagatesMarketError(t *testing.T) {
	t.Parallel()

	repo := &mockRepo{
		holdings: []model.Holding{{Ticker: "AAPL", Shares: d("1"), BuyPrice: d("150"), CostBasis: d("150")}},
		hasCash:  true,
		cash:     d("100"),
	}
	wantErr := errors.New("yahoo is down")
	svc := newTestService(repo, &mockCache{}, &mockMarket{quotesErr: wantErr})

	if err := svc.WarmQuoteCache(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected the market error back, got %v", err)
	}
}
