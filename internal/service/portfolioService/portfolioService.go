package portfolioService

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/marketModel"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/shopspring/decimal"
)

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	LoadHoldings(ctx context.Context) ([]model.Holding, error)
	ReplaceHoldings(ctx context.Context, holdings []model.Holding) error
	LoadCash(ctx context.Context) (decimal.Decimal, error)
	SetCash(ctx context.Context, balance decimal.Decimal) error
	NeedsInit(ctx context.Context) (bool, error)
	AppendTradeLog(ctx context.Context, entry model.TradeLogEntry) error
	TradeLog(ctx context.Context, limit int) ([]model.TradeRecord, error)
	ReplaceHistory(ctx context.Context, snapshot model.Snapshot) error
	History(ctx context.Context) ([]model.HistoryRecord, error)
	EquityCurve(ctx context.Context) ([]model.EquityPoint, error)
	Watchlist(ctx context.Context) ([]string, error)
	AddToWatchlist(ctx context.Context, ticker string) error
	RemoveFromWatchlist(ctx context.Context, ticker string) error
}

type MarketApi interface {
	Quote(ctx context.Context, ticker string) (marketModel.Quote, error)
	Quotes(ctx context.Context, tickers []string) (map[string]marketModel.Quote, error)
	DayRange(ctx context.Context, ticker string) (marketModel.DayRange, error)
}

type Cache interface {
	GetQuotes(ctx context.Context, tickers []string) (map[string]marketModel.Quote, error)
	SetQuotes(ctx context.Context, quotes []marketModel.Quote) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.Report) (fileBytes []byte, fileExtension string, err error)
}

type ChartGenerator interface {
	RenderEquityCurve(ctx context.Context, points []model.EquityPoint) ([]byte, error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type PortfolioService struct {
	repo    Repository
	cache   Cache
	market  MarketApi
	reports ReportGenerator
	charts  ChartGenerator
	storage CloudStorage // nil when cloud uploads are disabled
	cfg     *config.Config
	now     func() time.Time
}

func New(
	repo Repository,
	cache Cache,
	market MarketApi,
	reports ReportGenerator,
	charts ChartGenerator,
	storage CloudStorage,
	cfg *config.Config,
) *PortfolioService {
	return &PortfolioService{
		repo:    repo,
		cache:   cache,
		market:  market,
		reports: reports,
		charts:  charts,
		storage: storage,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *PortfolioService) NeedsInit(ctx context.Context) (bool, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.NeedsInit"

	needsInit, err := s.repo.NeedsInit(ctx)
	if err != nil {
		slog.Error("got error from repo.NeedsInit", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return false, err
	}
	return needsInit, nil
}

// loadState reads the current ledger from the store. A missing cash record
// reads as zero so callers can rely on plain arithmetic.
func (s *PortfolioService) loadState(ctx context.Context) ([]model.Holding, decimal.Decimal, error) {
	holdings, err := s.repo.LoadHoldings(ctx)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}

	cash, err := s.repo.LoadCash(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, decimal.Decimal{}, err
		}
		cash = decimal.Zero
	}

	return holdings, cash, nil
}

// resolveQuotes prices the tickers cache-first, batch-fetching misses,
// retrying leftovers one by one and writing fetched quotes back to the
// cache. It never fails: unresolved tickers come back in the second
// return value, sorted.
func (s *PortfolioService) resolveQuotes(ctx context.Context, tickers []string) (map[string]decimal.Decimal, []string) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.resolveQuotes"

	prices := make(map[string]decimal.Decimal, len(tickers))
	if len(tickers) == 0 {
		return prices, nil
	}

	cached, err := s.cache.GetQuotes(ctx, tickers)
	if err != nil {
		slog.Warn("can't get quotes from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		cached = map[string]marketModel.Quote{}
	}

	misses := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		if quote, ok := cached[ticker]; ok {
			prices[ticker] = quote.Price
		} else {
			misses = append(misses, ticker)
		}
	}

	if len(misses) > 0 {
		fetched, err := s.market.Quotes(ctx, misses)
		if err != nil {
			slog.Warn("batch quote fetch failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			toCache := make([]marketModel.Quote, 0, len(fetched))
			for _, ticker := range misses {
				if quote, ok := fetched[ticker]; ok {
					prices[ticker] = quote.Price
					toCache = append(toCache, quote)
				}
			}
			if len(toCache) > 0 {
				if err := s.cache.SetQuotes(ctx, toCache); err != nil {
					slog.Warn("can't write quotes to cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
				}
			}
		}
	}

	// the chart endpoint sometimes knows tickers the spark batch does not,
	// so leftovers get one more chance individually
	fallback := make([]marketModel.Quote, 0)
	for _, ticker := range tickers {
		if _, ok := prices[ticker]; ok {
			continue
		}
		quote, err := s.market.Quote(ctx, ticker)
		if err != nil {
			slog.Warn("per ticker quote fallback failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker), slog.String("err", err.Error()))
			continue
		}
		prices[ticker] = quote.Price
		fallback = append(fallback, quote)
	}
	if len(fallback) > 0 {
		if err := s.cache.SetQuotes(ctx, fallback); err != nil {
			slog.Warn("can't write quotes to cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	unresolved := make([]string, 0)
	for _, ticker := range tickers {
		if _, ok := prices[ticker]; !ok {
			unresolved = append(unresolved, ticker)
		}
	}
	sort.Strings(unresolved)

	return prices, unresolved
}

// WarmQuoteCache refreshes cached prices for every held and watched ticker.
func (s *PortfolioService) WarmQuoteCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.WarmQuoteCache"

	slog.Debug("WarmQuoteCache start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("WarmQuoteCache finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	holdings, err := s.repo.LoadHoldings(ctx)
	if err != nil {
		slog.Error("got error from repo.LoadHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	watched, err := s.repo.Watchlist(ctx)
	if err != nil {
		slog.Error("got error from repo.Watchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	seen := make(map[string]struct{}, len(holdings)+len(watched))
	tickers := make([]string, 0, len(holdings)+len(watched))
	for _, h := range holdings {
		if _, ok := seen[h.Ticker]; !ok {
			seen[h.Ticker] = struct{}{}
			tickers = append(tickers, h.Ticker)
		}
	}
	for _, t := range watched {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			tickers = append(tickers, t)
		}
	}

	if len(tickers) == 0 {
		return nil
	}

	quotes, err := s.market.Quotes(ctx, tickers)
	if err != nil {
		slog.Error("got error from market.Quotes", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	toCache := make([]marketModel.Quote, 0, len(quotes))
	for _, quote := range quotes {
		toCache = append(toCache, quote)
	}
	if len(toCache) == 0 {
		return nil
	}

	return s.cache.SetQuotes(ctx, toCache)
}

func tickersOf(holdings []model.Holding) []string {
	tickers := make([]string, 0, len(holdings))
	for _, h := range holdings {
		tickers = append(tickers, h.Ticker)
	}
	return tickers
}
