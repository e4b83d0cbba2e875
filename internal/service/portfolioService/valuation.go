package portfolioService

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/service"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/shopspring/decimal"
)

var stopLossProximity = decimal.NewFromFloat(0.05)

// Revalue prices every open position for the given day and persists the
// snapshot. Re-running for the same day overwrites that day's rows, so the
// scheduled job can repeat safely.
func (s *PortfolioService) Revalue(ctx context.Context, day time.Time) (model.ValuationResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Revalue"

	day = normalizeDay(day)

	slog.Debug("Revalue start", slog.String("rqID", rqID), slog.String("op", op), slog.String("day", day.Format(model.DateLayout)))
	defer func() {
		slog.Debug("Revalue finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("day", day.Format(model.DateLayout)))
	}()

	needsInit, err := s.repo.NeedsInit(ctx)
	if err != nil {
		slog.Error("got error from repo.NeedsInit", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ValuationResult{}, err
	}
	if needsInit {
		return model.ValuationResult{}, service.ErrNotInitialized
	}

	holdings, cash, err := s.loadState(ctx)
	if err != nil {
		slog.Error("can't load portfolio state", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ValuationResult{}, err
	}

	prices, missing := s.resolveQuotes(ctx, tickersOf(holdings))
	if len(missing) > 0 {
		slog.Warn("snapshot has unpriced tickers", slog.String("rqID", rqID), slog.String("op", op), slog.Any("tickers", missing))
	}
	snapshot := s.buildSnapshot(day, holdings, cash, prices)

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.ReplaceHoldings(ctx, holdings); err != nil {
			return fmt.Errorf("replace holdings: %w", err)
		}
		if err := s.repo.ReplaceHistory(ctx, snapshot); err != nil {
			return fmt.Errorf("replace history: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("revalue transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ValuationResult{}, err
	}

	return model.ValuationResult{Snapshot: snapshot, MissingQuotes: missing}, nil
}

// Portfolio prices the current holdings without touching the store. Used by
// the portfolio view and the refresh button.
func (s *PortfolioService) Portfolio(ctx context.Context) (model.PortfolioSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Portfolio"

	slog.Debug("Portfolio start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("Portfolio finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	summary, err := s.liveSummary(ctx)
	if err != nil {
		slog.Error("can't build portfolio summary", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.PortfolioSummary{}, err
	}
	return summary, nil
}

// DailySummary builds the digest for the /summary command: live equity and
// positions plus the day's PnL against the previous snapshot's TOTAL row.
func (s *PortfolioService) DailySummary(ctx context.Context, day time.Time) (model.DailySummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DailySummary"

	day = normalizeDay(day)

	slog.Debug("DailySummary start", slog.String("rqID", rqID), slog.String("op", op), slog.String("day", day.Format(model.DateLayout)))
	defer func() {
		slog.Debug("DailySummary finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("day", day.Format(model.DateLayout)))
	}()

	summary, err := s.liveSummary(ctx)
	if err != nil {
		slog.Error("can't build portfolio summary", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.DailySummary{}, err
	}

	points, err := s.repo.EquityCurve(ctx)
	if err != nil {
		slog.Error("got error from repo.EquityCurve", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.DailySummary{}, err
	}

	out := model.DailySummary{
		Date:        day,
		TotalEquity: summary.TotalEquity,
		CashBalance: summary.CashBalance,
		Positions:   summary.Positions,
	}

	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Date.Before(day) {
			out.DayPnL = summary.TotalEquity.Sub(points[i].Equity)
			out.HasDayPnL = true
			break
		}
	}

	for i := range summary.Positions {
		p := summary.Positions[i]
		if !p.PriceKnown {
			continue
		}
		if out.Best == nil || p.PnLPct.GreaterThan(out.Best.PnLPct) {
			best := p
			out.Best = &best
		}
		if out.Worst == nil || p.PnLPct.LessThan(out.Worst.PnLPct) {
			worst := p
			out.Worst = &worst
		}
	}

	return out, nil
}

func (s *PortfolioService) liveSummary(ctx context.Context) (model.PortfolioSummary, error) {
	holdings, cash, err := s.loadState(ctx)
	if err != nil {
		return model.PortfolioSummary{}, err
	}
	prices, missing := s.resolveQuotes(ctx, tickersOf(holdings))
	return buildSummary(holdings, cash, prices, missing), nil
}

// buildSnapshot values the holdings at the given prices. An unpriced ticker
// values at 0.00, its PnL arithmetic included, matching how the history file
// has always recorded dead quotes. Totals accumulate the rounded values.
func (s *PortfolioService) buildSnapshot(day time.Time, holdings []model.Holding, cash decimal.Decimal, prices map[string]decimal.Decimal) model.Snapshot {
	positions := make([]model.PositionSnapshot, 0, len(holdings))
	totalValue := decimal.Zero
	totalPnL := decimal.Zero

	for _, h := range holdings {
		price := prices[h.Ticker]
		value := price.Mul(h.Shares).Round(2)
		pnl := price.Sub(h.BuyPrice).Mul(h.Shares).Round(2)
		totalValue = totalValue.Add(value)
		totalPnL = totalPnL.Add(pnl)

		positions = append(positions, model.PositionSnapshot{
			Ticker:       h.Ticker,
			Shares:       h.Shares,
			BuyPrice:     h.BuyPrice,
			StopLoss:     h.StopLoss,
			CurrentPrice: price,
			MarketValue:  value,
			PnL:          pnl,
			Action:       model.ActionHold,
		})
	}

	return model.Snapshot{
		Date:      day,
		Positions: positions,
		Total: model.SnapshotTotal{
			TotalValue:  totalValue.Round(2),
			PnL:         totalPnL.Round(2),
			CashBalance: cash.Round(2),
			TotalEquity: totalValue.Add(cash).Round(2),
		},
	}
}

func buildSummary(holdings []model.Holding, cash decimal.Decimal, prices map[string]decimal.Decimal, missing []string) model.PortfolioSummary {
	positions := make([]model.Position, 0, len(holdings))
	totalValue := decimal.Zero
	totalPnL := decimal.Zero

	for _, h := range holdings {
		price, known := prices[h.Ticker]
		value := price.Mul(h.Shares).Round(2)
		pnl := price.Sub(h.BuyPrice).Mul(h.Shares).Round(2)
		pnlPct := decimal.Zero
		if known && !h.BuyPrice.IsZero() {
			pnlPct = price.Sub(h.BuyPrice).Div(h.BuyPrice).Mul(decimal.NewFromInt(100)).Round(2)
		}
		totalValue = totalValue.Add(value)
		totalPnL = totalPnL.Add(pnl)

		positions = append(positions, model.Position{
			Holding:      h,
			CurrentPrice: price,
			PriceKnown:   known,
			MarketValue:  value,
			PnL:          pnl,
			PnLPct:       pnlPct,
			NearStopLoss: known && nearStopLoss(price, h.StopLoss),
		})
	}

	return model.PortfolioSummary{
		Positions:     positions,
		TotalValue:    totalValue.Round(2),
		TotalPnL:      totalPnL.Round(2),
		CashBalance:   cash.Round(2),
		TotalEquity:   totalValue.Add(cash).Round(2),
		MissingQuotes: missing,
	}
}

// nearStopLoss reports whether the price sits within 5% above the stop, or
// at/below it. A zero stop means no stop is set.
func nearStopLoss(price, stop decimal.Decimal) bool {
	if !stop.IsPositive() || !price.IsPositive() {
		return false
	}
	return price.Sub(stop).Div(stop).LessThanOrEqual(stopLossProximity)
}
