package telebotConverter

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/footballModel"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/tgCallback"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func signedMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "+$" + d.StringFixed(2)
}

func signedPct(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2) + "%"
	}
	return "+" + d.StringFixed(2) + "%"
}

// PortfolioResponse renders the portfolio view with its inline action
// buttons.
func PortfolioResponse(summary model.PortfolioSummary) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString("📊 Portfolio\n\n")

	if len(summary.Positions) == 0 {
		sb.WriteString("No open positions yet.\n\n")
	}

	for _, p := range summary.Positions {
		sb.WriteString(fmt.Sprintf("🔹 %s\n", p.Ticker))
		sb.WriteString(fmt.Sprintf("   ▸ shares: %s\n", p.Shares.String()))
		sb.WriteString(fmt.Sprintf("   ▸ avg price: %s\n", money(p.BuyPrice)))
		if p.PriceKnown {
			sb.WriteString(fmt.Sprintf("   ▸ price: %s (%s)\n", money(p.CurrentPrice), signedPct(p.PnLPct)))
			sb.WriteString(fmt.Sprintf("   ▸ value: %s\n", money(p.MarketValue)))
			sb.WriteString(fmt.Sprintf("   ▸ PnL: %s\n", signedMoney(p.PnL)))
		} else {
			sb.WriteString("   ▸ price: n/a\n")
		}
		if p.NearStopLoss {
			sb.WriteString(fmt.Sprintf("   ⚠️ near stop loss (%s)\n", money(p.StopLoss)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("💵 Cash: %s\n", money(summary.CashBalance)))
	sb.WriteString(fmt.Sprintf("💰 Total equity: %s\n", money(summary.TotalEquity)))
	if len(summary.Positions) > 0 {
		sb.WriteString(fmt.Sprintf("📈 Total PnL: %s\n", signedMoney(summary.TotalPnL)))
	}

	if len(summary.MissingQuotes) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️ no quotes for: %s\n", strings.Join(summary.MissingQuotes, ", ")))
	}

	refreshBtn := markup.Data("🔄 Refresh", tgCallback.RefreshPortfolio)
	buyBtn := markup.Data("🟢 Buy", tgCallback.Buy)
	sellBtn := markup.Data("🔴 Sell", tgCallback.Sell)
	addCashBtn := markup.Data("💵 Add cash", tgCallback.AddCash)
	watchlistBtn := markup.Data("👀 Watchlist", tgCallback.ShowWatchlist)
	exportBtn := markup.Data("📄 Export", tgCallback.ExportReport)
	markup.Inline(
		markup.Row(refreshBtn),
		markup.Row(buyBtn, sellBtn),
		markup.Row(addCashBtn, watchlistBtn),
		markup.Row(exportBtn),
	)

	return sb.String(), markup
}

// WatchlistResponse renders the watchlist with per-ticker remove buttons.
func WatchlistResponse(items []model.WatchItem) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString("👀 Watchlist\n\n")

	if len(items) == 0 {
		sb.WriteString("Watchlist is empty.\n")
	}

	rows := make([]tele.Row, 0, len(items)+1)
	for _, item := range items {
		if item.PriceKnown {
			sb.WriteString(fmt.Sprintf("• %s - %s\n", item.Ticker, money(item.Price)))
		} else {
			sb.WriteString(fmt.Sprintf("• %s - n/a\n", item.Ticker))
		}
		rows = append(rows, markup.Row(markup.Data("❌ "+item.Ticker, tgCallback.Unwatch, item.Ticker)))
	}

	addBtn := markup.Data("➕ Watch ticker", tgCallback.WatchTicker)
	rows = append(rows, markup.Row(addBtn))
	markup.Inline(rows...)

	return sb.String(), markup
}

// SellPrompt asks for a ticker to sell, offering the open positions as
// buttons.
func SellPrompt(summary model.PortfolioSummary) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}

	rows := make([]tele.Row, 0, len(summary.Positions)+1)
	btns := make([]tele.Btn, 0, 3)
	for _, p := range summary.Positions {
		btns = append(btns, markup.Data(p.Ticker, tgCallback.SellTicker, p.Ticker))
		if len(btns) == 3 {
			rows = append(rows, markup.Row(btns...))
			btns = make([]tele.Btn, 0, 3)
		}
	}
	if len(btns) > 0 {
		rows = append(rows, markup.Row(btns...))
	}
	rows = append(rows, markup.Row(markup.Data("🚫 Cancel", tgCallback.CancelFlow)))
	markup.Inline(rows...)

	return "Select a position to sell or type the ticker:", markup
}

// StopLossPrompt asks for the stop loss percent with a skip button.
func StopLossPrompt() (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	skipBtn := markup.Data("⏭ No stop loss", tgCallback.SkipStopLoss)
	cancelBtn := markup.Data("🚫 Cancel", tgCallback.CancelFlow)
	markup.Inline(markup.Row(skipBtn), markup.Row(cancelBtn))
	return "Enter the stop loss as a percent below your entry price (e.g. 15):", markup
}

// CancelablePrompt renders a plain flow prompt with a cancel button.
func CancelablePrompt(text string) (string, *tele.ReplyMarkup) {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("🚫 Cancel", tgCallback.CancelFlow)))
	return text, markup
}

func BuyConfirmationResponse(conf model.TradeConfirmation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Bought %s %s @ %s\n", conf.Shares.String(), conf.Ticker, money(conf.Price)))
	sb.WriteString(fmt.Sprintf("💸 Total: %s\n", money(conf.Amount)))
	sb.WriteString(fmt.Sprintf("💵 Cash left: %s\n", money(conf.CashAfter)))
	if conf.RemovedFromWatchlist {
		sb.WriteString("👀 removed from watchlist\n")
	}
	return sb.String()
}

func SellConfirmationResponse(conf model.TradeConfirmation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Sold %s %s @ %s\n", conf.Shares.String(), conf.Ticker, money(conf.Price)))
	sb.WriteString(fmt.Sprintf("💰 Proceeds: %s\n", money(conf.Amount)))
	sb.WriteString(fmt.Sprintf("📈 Realized PnL: %s\n", signedMoney(conf.PnL)))
	sb.WriteString(fmt.Sprintf("💵 Cash: %s\n", money(conf.CashAfter)))
	if conf.PositionClosed {
		sb.WriteString("🏁 position closed\n")
	}
	return sb.String()
}

// TradeLogResponse renders the recent trades, newest first.
func TradeLogResponse(records []model.TradeRecord) string {
	if len(records) == 0 {
		return "🧾 No trades yet."
	}

	var sb strings.Builder
	sb.WriteString("🧾 Recent trades\n\n")
	for _, r := range records {
		date := r.Date.Format(model.DateLayout)
		if r.SharesBought.Valid {
			sb.WriteString(fmt.Sprintf(
				"%s %s - BUY %s @ %s (%s)\n",
				date, r.Ticker, r.SharesBought.Decimal.String(),
				money(r.BuyPrice.Decimal), money(r.CostBasis.Decimal),
			))
			continue
		}
		sb.WriteString(fmt.Sprintf(
			"%s %s - SELL %s @ %s, PnL %s\n",
			date, r.Ticker, r.SharesSold.Decimal.String(),
			money(r.SellPrice.Decimal), signedMoney(r.PnL.Decimal),
		))
	}
	return sb.String()
}

// DailySummaryResponse renders the daily digest in Markdown.
func DailySummaryResponse(s model.DailySummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Daily summary - %s*\n\n", s.Date.Format(model.DateLayout)))
	sb.WriteString(fmt.Sprintf("💰 Equity: %s\n", money(s.TotalEquity)))
	sb.WriteString(fmt.Sprintf("💵 Cash: %s\n", money(s.CashBalance)))
	if s.HasDayPnL {
		sb.WriteString(fmt.Sprintf("📈 Day PnL: %s\n", signedMoney(s.DayPnL)))
	} else {
		sb.WriteString("📈 Day PnL: n/a (first snapshot)\n")
	}

	if s.Best != nil && s.Worst != nil {
		sb.WriteString(fmt.Sprintf("\n🏆 Best: %s %s\n", s.Best.Ticker, signedPct(s.Best.PnLPct)))
		sb.WriteString(fmt.Sprintf("📉 Worst: %s %s\n", s.Worst.Ticker, signedPct(s.Worst.PnLPct)))
	}

	if len(s.Positions) > 0 {
		sb.WriteString("\nPositions:\n")
		for _, p := range s.Positions {
			if p.PriceKnown {
				sb.WriteString(fmt.Sprintf("• %s: %s (%s)\n", p.Ticker, money(p.MarketValue), signedPct(p.PnLPct)))
			} else {
				sb.WriteString(fmt.Sprintf("• %s: no quote\n", p.Ticker))
			}
		}
	}

	return sb.String()
}

// PredictionsResponse renders the football predictions grouped by league.
func PredictionsResponse(date string, predictions []footballModel.Prediction) string {
	if len(predictions) == 0 {
		return fmt.Sprintf("⚽ No matches today (%s) in the tracked leagues.", date)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚽ Predictions for %s\n", date))

	lastLeague := ""
	for _, p := range predictions {
		if p.League != lastLeague {
			sb.WriteString(fmt.Sprintf("\n🏆 %s\n", p.League))
			lastLeague = p.League
		}
		sb.WriteString(fmt.Sprintf("• %s vs %s\n", p.HomeTeam, p.AwayTeam))
		sb.WriteString(fmt.Sprintf("  → %s (%.2f vs %.2f)\n", outcomeLabel(p), p.HomeScore, p.AwayScore))
		if p.Odds != nil {
			sb.WriteString(fmt.Sprintf("  💰 %s / %s / %s\n", orNA(p.Odds.Home), orNA(p.Odds.Draw), orNA(p.Odds.Away)))
		}
	}

	return sb.String()
}

func outcomeLabel(p footballModel.Prediction) string {
	switch p.Outcome {
	case footballModel.OutcomeHomeWin:
		return p.HomeTeam + " win"
	case footballModel.OutcomeAwayWin:
		return p.AwayTeam + " win"
	default:
		return "draw"
	}
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
