package portfolioService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/service"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/shopspring/decimal"
)

// Buy validates a buy order against today's traded range and the cash
// balance, then applies it: journal entry, holdings merge, cash debit and the
// day's snapshot land in one transaction. A validation failure leaves the
// store untouched.
func (s *PortfolioService) Buy(ctx context.Context, order model.BuyOrder) (model.TradeConfirmation, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Buy"

	slog.Debug("Buy start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", order.Ticker))
	defer func() {
		slog.Debug("Buy finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", order.Ticker))
	}()

	order.Ticker = normalizeTicker(order.Ticker)
	if order.Ticker == "" {
		return model.TradeConfirmation{}, fmt.Errorf("%w: empty ticker", service.ErrInvalidInput)
	}
	if !order.Shares.IsPositive() || !order.Price.IsPositive() {
		return model.TradeConfirmation{}, fmt.Errorf("%w: shares and price must be positive", service.ErrInvalidInput)
	}
	if order.StopLoss.IsNegative() {
		return model.TradeConfirmation{}, fmt.Errorf("%w: stop loss must not be negative", service.ErrInvalidInput)
	}

	dayRange, err := s.market.DayRange(ctx, order.Ticker)
	if err != nil {
		slog.Error("got error from market.DayRange", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeConfirmation{}, fmt.Errorf("%w: %v", service.ErrMarketDataUnavailable, err)
	}
	if order.Price.LessThan(dayRange.Low) || order.Price.GreaterThan(dayRange.High) {
		return model.TradeConfirmation{}, fmt.Errorf(
			"%w: %s traded %s - %s today",
			service.ErrPriceOutOfRange, order.Ticker, dayRange.Low.StringFixed(2), dayRange.High.StringFixed(2),
		)
	}

	holdings, cash, err := s.loadState(ctx)
	if err != nil {
		slog.Error("can't load portfolio state", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeConfirmation{}, err
	}

	cost := order.Shares.Mul(order.Price)
	if cost.GreaterThan(cash) {
		return model.TradeConfirmation{}, fmt.Errorf(
			"%w: need %s, have %s",
			service.ErrInsufficientFunds, cost.StringFixed(2), cash.StringFixed(2),
		)
	}

	newHoldings := applyBuy(holdings, order)
	newCash := cash.Sub(cost)
	day := normalizeDay(s.now())

	prices, missing := s.resolveQuotes(ctx, tickersOf(newHoldings))
	missing = seedTradePrice(prices, missing, order.Ticker, order.Price)
	if len(missing) > 0 {
		slog.Warn("snapshot has unpriced tickers", slog.String("rqID", rqID), slog.String("op", op), slog.Any("tickers", missing))
	}
	snapshot := s.buildSnapshot(day, newHoldings, newCash, prices)

	entry := model.BuyLogEntry{
		Date:   day,
		Ticker: order.Ticker,
		Shares: order.Shares,
		Price:  order.Price,
		Cost:   cost,
		Reason: model.ReasonManualBuy,
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.AppendTradeLog(ctx, entry); err != nil {
			return fmt.Errorf("append trade log: %w", err)
		}
		if err := s.repo.ReplaceHoldings(ctx, newHoldings); err != nil {
			return fmt.Errorf("replace holdings: %w", err)
		}
		if err := s.repo.SetCash(ctx, newCash); err != nil {
			return fmt.Errorf("set cash: %w", err)
		}
		if err := s.repo.ReplaceHistory(ctx, snapshot); err != nil {
			return fmt.Errorf("replace history: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("buy transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeConfirmation{}, err
	}

	removedFromWatchlist := false
	err = s.repo.RemoveFromWatchlist(ctx, order.Ticker)
	switch {
	case err == nil:
		removedFromWatchlist = true
	case !errors.Is(err, repository.ErrNotFound):
		slog.Warn("can't remove bought ticker from watchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return model.TradeConfirmation{
		Ticker:               order.Ticker,
		Shares:               order.Shares,
		Price:                order.Price,
		Amount:               cost,
		CashAfter:            newCash,
		RemovedFromWatchlist: removedFromWatchlist,
	}, nil
}

// Sell validates a sell order against the held position and today's traded
// range, then applies it atomically. PnL is realized against the weighted
// average buy price.
func (s *PortfolioService) Sell(ctx context.Context, order model.SellOrder) (model.TradeConfirmation, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Sell"

	slog.Debug("Sell start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", order.Ticker))
	defer func() {
		slog.Debug("Sell finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", order.Ticker))
	}()

	order.Ticker = normalizeTicker(order.Ticker)
	if order.Ticker == "" {
		return model.TradeConfirmation{}, fmt.Errorf("%w: empty ticker", service.ErrInvalidInput)
	}
	if !order.Shares.IsPositive() || !order.Price.IsPositive() {
		return model.TradeConfirmation{}, fmt.Errorf("%w: shares and price must be positive", service.ErrInvalidInput)
	}

	holdings, cash, err := s.loadState(ctx)
	if err != nil {
		slog.Error("can't load portfolio state", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeConfirmation{}, err
	}

	held, ok := findHolding(holdings, order.Ticker)
	if !ok {
		return model.TradeConfirmation{}, fmt.Errorf("%w: %s", service.ErrUnknownTicker, order.Ticker)
	}

	dayRange, err := s.market.DayRange(ctx, order.Ticker)
	if err != nil {
		slog.Error("got error from market.DayRange", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeConfirmation{}, fmt.Errorf("%w: %v", service.ErrMarketDataUnavailable, err)
	}
	if order.Price.LessThan(dayRange.Low) || order.Price.GreaterThan(dayRange.High) {
		return model.TradeConfirmation{}, fmt.Errorf(
			"%w: %s traded %s - %s today",
			service.ErrPriceOutOfRange, order.Ticker, dayRange.Low.StringFixed(2), dayRange.High.StringFixed(2),
		)
	}

	if order.Shares.GreaterThan(held.Shares) {
		return model.TradeConfirmation{}, fmt.Errorf(
			"%w: only %s shares of %s held",
			service.ErrOversell, held.Shares.String(), order.Ticker,
		)
	}

	pnl := order.Price.Sub(held.BuyPrice).Mul(order.Shares)
	soldBasis := order.Shares.Mul(held.BuyPrice)
	proceeds := order.Shares.Mul(order.Price)

	newHoldings, closed := applySell(holdings, order.Ticker, order.Shares)
	newCash := cash.Add(proceeds)
	day := normalizeDay(s.now())

	prices, missing := s.resolveQuotes(ctx, tickersOf(newHoldings))
	missing = seedTradePrice(prices, missing, order.Ticker, order.Price)
	if len(missing) > 0 {
		slog.Warn("snapshot has unpriced tickers", slog.String("rqID", rqID), slog.String("op", op), slog.Any("tickers", missing))
	}
	snapshot := s.buildSnapshot(day, newHoldings, newCash, prices)

	entry := model.SellLogEntry{
		Date:      day,
		Ticker:    order.Ticker,
		Shares:    order.Shares,
		Price:     order.Price,
		CostBasis: soldBasis,
		PnL:       pnl,
		Reason:    model.ReasonManualSell,
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.AppendTradeLog(ctx, entry); err != nil {
			return fmt.Errorf("append trade log: %w", err)
		}
		if err := s.repo.ReplaceHoldings(ctx, newHoldings); err != nil {
			return fmt.Errorf("replace holdings: %w", err)
		}
		if err := s.repo.SetCash(ctx, newCash); err != nil {
			return fmt.Errorf("set cash: %w", err)
		}
		if err := s.repo.ReplaceHistory(ctx, snapshot); err != nil {
			return fmt.Errorf("replace history: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("sell transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeConfirmation{}, err
	}

	return model.TradeConfirmation{
		Ticker:         order.Ticker,
		Shares:         order.Shares,
		Price:          order.Price,
		Amount:         proceeds,
		PnL:            pnl,
		CashAfter:      newCash,
		PositionClosed: closed,
	}, nil
}

// InitPortfolio seeds the ledger with starting cash and writes the day-zero
// snapshot. It refuses to run on a ledger that already has state.
func (s *PortfolioService) InitPortfolio(ctx context.Context, cash decimal.Decimal) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.InitPortfolio"

	slog.Debug("InitPortfolio start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("InitPortfolio finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	if !cash.IsPositive() {
		return fmt.Errorf("%w: starting cash must be positive", service.ErrInvalidInput)
	}

	needsInit, err := s.repo.NeedsInit(ctx)
	if err != nil {
		slog.Error("got error from repo.NeedsInit", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}
	if !needsInit {
		return service.ErrAlreadyInitialized
	}

	snapshot := s.buildSnapshot(normalizeDay(s.now()), nil, cash, nil)

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetCash(ctx, cash); err != nil {
			return fmt.Errorf("set cash: %w", err)
		}
		if err := s.repo.ReplaceHistory(ctx, snapshot); err != nil {
			return fmt.Errorf("replace history: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("init transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// AddCash deposits into the cash balance and refreshes the day's snapshot.
func (s *PortfolioService) AddCash(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AddCash"

	slog.Debug("AddCash start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("AddCash finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: amount must be positive", service.ErrInvalidInput)
	}

	holdings, cash, err := s.loadState(ctx)
	if err != nil {
		slog.Error("can't load portfolio state", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Decimal{}, err
	}

	newCash := cash.Add(amount)
	day := normalizeDay(s.now())

	prices, missing := s.resolveQuotes(ctx, tickersOf(holdings))
	if len(missing) > 0 {
		slog.Warn("snapshot has unpriced tickers", slog.String("rqID", rqID), slog.String("op", op), slog.Any("tickers", missing))
	}
	snapshot := s.buildSnapshot(day, holdings, newCash, prices)

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetCash(ctx, newCash); err != nil {
			return fmt.Errorf("set cash: %w", err)
		}
		if err := s.repo.ReplaceHistory(ctx, snapshot); err != nil {
			return fmt.Errorf("replace history: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("add cash transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.Decimal{}, err
	}

	return newCash, nil
}

// TradeLog returns the most recent trades, newest first. limit <= 0 returns
// the whole journal.
func (s *PortfolioService) TradeLog(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.TradeLog"

	records, err := s.repo.TradeLog(ctx, limit)
	if err != nil {
		slog.Error("got error from repo.TradeLog", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}
	return records, nil
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func normalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// applyBuy merges an order into the holdings. A repeated buy accumulates
// shares and cost, recomputes the weighted average buy price and overwrites
// the stop loss with the latest value.
func applyBuy(holdings []model.Holding, order model.BuyOrder) []model.Holding {
	out := make([]model.Holding, 0, len(holdings)+1)
	merged := false
	for _, h := range holdings {
		if h.Ticker == order.Ticker {
			h.Shares = h.Shares.Add(order.Shares)
			h.CostBasis = h.CostBasis.Add(order.Shares.Mul(order.Price))
			h.BuyPrice = h.CostBasis.Div(h.Shares)
			h.StopLoss = order.StopLoss
			merged = true
		}
		out = append(out, h)
	}
	if !merged {
		out = append(out, model.Holding{
			Ticker:    order.Ticker,
			Shares:    order.Shares,
			StopLoss:  order.StopLoss,
			BuyPrice:  order.Price,
			CostBasis: order.Shares.Mul(order.Price),
		})
	}
	return out
}

// applySell reduces or removes the position. A partial sell keeps the buy
// price and stop loss and scales the cost basis down to the remaining shares.
func applySell(holdings []model.Holding, ticker string, shares decimal.Decimal) (out []model.Holding, closed bool) {
	out = make([]model.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.Ticker != ticker {
			out = append(out, h)
			continue
		}
		remaining := h.Shares.Sub(shares)
		if remaining.IsZero() {
			closed = true
			continue
		}
		h.Shares = remaining
		h.CostBasis = remaining.Mul(h.BuyPrice)
		out = append(out, h)
	}
	return out, closed
}

func findHolding(holdings []model.Holding, ticker string) (model.Holding, bool) {
	for _, h := range holdings {
		if h.Ticker == ticker {
			return h, true
		}
	}
	return model.Holding{}, false
}

// seedTradePrice marks the just-traded ticker priced at its execution price
// when no market quote resolved, so a trade never degrades its own snapshot
// row to zero.
func seedTradePrice(prices map[string]decimal.Decimal, missing []string, ticker string, price decimal.Decimal) []string {
	for i, t := range missing {
		if t == ticker {
			prices[ticker] = price
			return append(missing[:i], missing[i+1:]...)
		}
	}
	return missing
}
