package portfolioService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/service"
	"github.com/KotFed0t/trade_tracker_bot/utils"
)

// Watchlist returns the watched tickers with their current prices. A ticker
// without a resolvable quote comes back with PriceKnown false, never a fake
// zero.
func (s *PortfolioService) Watchlist(ctx context.Context) ([]model.WatchItem, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Watchlist"

	slog.Debug("Watchlist start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("Watchlist finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	tickers, err := s.repo.Watchlist(ctx)
	if err != nil {
		slog.Error("got error from repo.Watchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	prices, _ := s.resolveQuotes(ctx, tickers)

	items := make([]model.WatchItem, 0, len(tickers))
	for _, ticker := range tickers {
		price, known := prices[ticker]
		items = append(items, model.WatchItem{
			Ticker:     ticker,
			Price:      price,
			PriceKnown: known,
		})
	}
	return items, nil
}

// AddToWatchlist puts a ticker on the watchlist. Tickers already held in the
// portfolio are rejected, the watchlist tracks candidates only.
func (s *PortfolioService) AddToWatchlist(ctx context.Context, ticker string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AddToWatchlist"

	slog.Debug("AddToWatchlist start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	defer func() {
		slog.Debug("AddToWatchlist finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	}()

	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return fmt.Errorf("%w: empty ticker", service.ErrInvalidInput)
	}

	holdings, err := s.repo.LoadHoldings(ctx)
	if err != nil {
		slog.Error("got error from repo.LoadHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}
	if _, held := findHolding(holdings, ticker); held {
		return fmt.Errorf("%w: %s is already held in the portfolio", service.ErrInvalidInput, ticker)
	}

	err = s.repo.AddToWatchlist(ctx, ticker)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return service.ErrAlreadyWatched
		}
		slog.Error("got error from repo.AddToWatchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}
	return nil
}

func (s *PortfolioService) RemoveFromWatchlist(ctx context.Context, ticker string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RemoveFromWatchlist"

	slog.Debug("RemoveFromWatchlist start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	defer func() {
		slog.Debug("RemoveFromWatchlist finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
	}()

	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return fmt.Errorf("%w: empty ticker", service.ErrInvalidInput)
	}

	err := s.repo.RemoveFromWatchlist(ctx, ticker)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotWatched
		}
		slog.Error("got error from repo.RemoveFromWatchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}
	return nil
}
