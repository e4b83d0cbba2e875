package telegram

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/footballModel"
	"github.com/KotFed0t/trade_tracker_bot/internal/service"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	internalErrMsg    = "something went wrong, try again later"
	sessionExpiredMsg = "session expired, start over with one of the commands"
	invalidNumberMsg  = "enter a positive number, e.g. 125.50"

	// telegram rejects messages over 4096 characters
	maxMessageLen = 4000
)

type PortfolioService interface {
	NeedsInit(ctx context.Context) (bool, error)
	InitPortfolio(ctx context.Context, cash decimal.Decimal) error
	Portfolio(ctx context.Context) (model.PortfolioSummary, error)
	Buy(ctx context.Context, order model.BuyOrder) (model.TradeConfirmation, error)
	Sell(ctx context.Context, order model.SellOrder) (model.TradeConfirmation, error)
	AddCash(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	TradeLog(ctx context.Context, limit int) ([]model.TradeRecord, error)
	DailySummary(ctx context.Context, day time.Time) (model.DailySummary, error)
	Watchlist(ctx context.Context) ([]model.WatchItem, error)
	AddToWatchlist(ctx context.Context, ticker string) error
	RemoveFromWatchlist(ctx context.Context, ticker string) error
	ExportReport(ctx context.Context) (model.ReportFile, error)
	EquityChart(ctx context.Context) ([]byte, error)
}

type FootballService interface {
	Predictions(ctx context.Context, day time.Time) ([]footballModel.Prediction, error)
}

type Session interface {
	GetSession(ctx context.Context, chatID int64) (model.Session, error)
	SetSession(ctx context.Context, chatID int64, session model.Session) error
	DeleteSession(ctx context.Context, chatID int64) error
}

type Controller struct {
	portfolio PortfolioService
	football  FootballService
	session   Session
	cfg       *config.Config
}

func NewController(cfg *config.Config, portfolio PortfolioService, football FootballService, session Session) *Controller {
	return &Controller{
		portfolio: portfolio,
		football:  football,
		session:   session,
		cfg:       cfg,
	}
}

// Start greets the user: a fresh ledger begins the init flow, an existing
// one gets the portfolio view.
func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	needsInit, err := ctrl.portfolio.NeedsInit(ctx)
	if err != nil {
		slog.Error("got error from portfolio.NeedsInit", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if needsInit {
		if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingStartingCash}); err != nil {
			return c.Send(internalErrMsg)
		}
		return c.Send("👋 Welcome! Your portfolio is empty.\nEnter your starting cash amount:")
	}

	return ctrl.renderPortfolio(ctx, c, false)
}

func (ctrl *Controller) ProcessStartingCash(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	amount, err := parsePositiveDecimal(c.Message().Text)
	if err != nil {
		return c.Send(invalidNumberMsg)
	}

	err = ctrl.portfolio.InitPortfolio(ctx, amount)
	ctrl.resetSession(ctx, c.Chat().ID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyInitialized) {
			return ctrl.renderPortfolio(ctx, c, false)
		}
		slog.Error("got error from portfolio.InitPortfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	_ = c.Send("✅ Portfolio initialized with " + amount.StringFixed(2) + " in cash.")
	return ctrl.renderPortfolio(ctx, c, false)
}

func (ctrl *Controller) ShowPortfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	return ctrl.renderPortfolio(ctx, c, false)
}

func (ctrl *Controller) RefreshPortfolio(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	return ctrl.renderPortfolio(ctx, c, true)
}

func (ctrl *Controller) renderPortfolio(ctx context.Context, c tele.Context, edit bool) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	summary, err := ctrl.portfolio.Portfolio(ctx)
	if err != nil {
		slog.Error("got error from portfolio.Portfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.PortfolioResponse(summary)
	if edit {
		return c.Edit(text, markup)
	}
	return c.Send(text, markup)
}

// InitBuy starts the buy flow: ticker, shares, price, stop loss.
func (ctrl *Controller) InitBuy(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingBuyTicker}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(telebotConverter.CancelablePrompt("Enter the ticker to buy:"))
}

func (ctrl *Controller) ProcessBuyTicker(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	ticker := strings.ToUpper(strings.TrimSpace(c.Message().Text))
	if ticker == "" {
		return c.Send("enter a ticker, e.g. AAPL")
	}

	draft := &model.DraftOrder{Ticker: ticker}
	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingBuyShares, Draft: draft}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(telebotConverter.CancelablePrompt("How many shares of " + ticker + "?"))
}

func (ctrl *Controller) ProcessBuyShares(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil || chatSession.Draft == nil {
		return c.Send(sessionExpiredMsg)
	}

	shares, err := parsePositiveDecimal(c.Message().Text)
	if err != nil {
		return c.Send(invalidNumberMsg)
	}

	chatSession.Draft.Shares = shares
	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingBuyPrice, Draft: chatSession.Draft}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(telebotConverter.CancelablePrompt("At what price per share? Must be within today's traded range."))
}

func (ctrl *Controller) ProcessBuyPrice(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil || chatSession.Draft == nil {
		return c.Send(sessionExpiredMsg)
	}

	price, err := parsePositiveDecimal(c.Message().Text)
	if err != nil {
		return c.Send(invalidNumberMsg)
	}

	chatSession.Draft.Price = price
	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingBuyStopPct, Draft: chatSession.Draft}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(telebotConverter.StopLossPrompt())
}

func (ctrl *Controller) ProcessBuyStopPct(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil || chatSession.Draft == nil {
		return c.Send(sessionExpiredMsg)
	}

	pct, err := parseStopPct(c.Message().Text)
	if err != nil {
		return c.Send("enter a percent between 0 and 100, or press the skip button")
	}

	stop := decimal.Zero
	if pct.IsPositive() {
		stop = chatSession.Draft.Price.
			Mul(decimal.NewFromInt(1).Sub(pct.Div(decimal.NewFromInt(100)))).
			Round(2)
	}

	return ctrl.executeBuy(ctx, c, chatSession, stop)
}

// SkipStopLoss finishes the buy flow without a stop loss.
func (ctrl *Controller) SkipStopLoss(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil || chatSession.Draft == nil || chatSession.Action != model.ExpectingBuyStopPct {
		return c.Send(sessionExpiredMsg)
	}

	return ctrl.executeBuy(ctx, c, chatSession, decimal.Zero)
}

func (ctrl *Controller) executeBuy(ctx context.Context, c tele.Context, chatSession model.Session, stop decimal.Decimal) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	order := model.BuyOrder{
		Ticker:   chatSession.Draft.Ticker,
		Shares:   chatSession.Draft.Shares,
		Price:    chatSession.Draft.Price,
		StopLoss: stop,
	}

	conf, err := ctrl.portfolio.Buy(ctx, order)
	ctrl.resetSession(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from portfolio.Buy", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(tradeErrMsg(err))
	}

	return c.Send(telebotConverter.BuyConfirmationResponse(conf))
}

// InitSell starts the sell flow, offering the open positions as buttons.
func (ctrl *Controller) InitSell(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingSellTicker}); err != nil {
		return c.Send(internalErrMsg)
	}

	summary, err := ctrl.portfolio.Portfolio(ctx)
	if err != nil {
		slog.Error("got error from portfolio.Portfolio", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(telebotConverter.CancelablePrompt("Enter the ticker to sell:"))
	}

	return c.Send(telebotConverter.SellPrompt(summary))
}

// SellTicker handles a position button tapped in the sell prompt.
func (ctrl *Controller) SellTicker(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	return ctrl.processSellTicker(ctx, c, c.Data())
}

func (ctrl *Controller) ProcessSellTicker(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	return ctrl.processSellTicker(ctx, c, c.Message().Text)
}

func (ctrl *Controller) processSellTicker(ctx context.Context, c tele.Context, text string) error {
	ticker := strings.ToUpper(strings.TrimSpace(text))
	if ticker == "" {
		return c.Send("enter a ticker, e.g. AAPL")
	}

	draft := &model.DraftOrder{Ticker: ticker}
	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingSellShares, Draft: draft}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(telebotConverter.CancelablePrompt("How many shares of " + ticker + " to sell?"))
}

func (ctrl *Controller) ProcessSellShares(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil || chatSession.Draft == nil {
		return c.Send(sessionExpiredMsg)
	}

	shares, err := parsePositiveDecimal(c.Message().Text)
	if err != nil {
		return c.Send(invalidNumberMsg)
	}

	chatSession.Draft.Shares = shares
	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingSellPrice, Draft: chatSession.Draft}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(telebotConverter.CancelablePrompt("At what price per share?"))
}

func (ctrl *Controller) ProcessSellPrice(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil || chatSession.Draft == nil {
		return c.Send(sessionExpiredMsg)
	}

	price, err := parsePositiveDecimal(c.Message().Text)
	if err != nil {
		return c.Send(invalidNumberMsg)
	}

	order := model.SellOrder{
		Ticker: chatSession.Draft.Ticker,
		Shares: chatSession.Draft.Shares,
		Price:  price,
	}

	conf, err := ctrl.portfolio.Sell(ctx, order)
	ctrl.resetSession(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from portfolio.Sell", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(tradeErrMsg(err))
	}

	return c.Send(telebotConverter.SellConfirmationResponse(conf))
}

func (ctrl *Controller) InitAddCash(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingCashAmount}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(telebotConverter.CancelablePrompt("How much cash to add?"))
}

func (ctrl *Controller) ProcessCashAmount(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	amount, err := parsePositiveDecimal(c.Message().Text)
	if err != nil {
		return c.Send(invalidNumberMsg)
	}

	balance, err := ctrl.portfolio.AddCash(ctx, amount)
	ctrl.resetSession(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from portfolio.AddCash", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(tradeErrMsg(err))
	}

	return c.Send("✅ Added $" + amount.StringFixed(2) + ". Cash balance: $" + balance.StringFixed(2))
}

func (ctrl *Controller) InitWatchTicker(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	if err := ctrl.saveSession(ctx, c.Chat().ID, model.Session{Action: model.ExpectingWatchTicker}); err != nil {
		return c.Send(internalErrMsg)
	}
	return c.Send(telebotConverter.CancelablePrompt("Enter the ticker to watch:"))
}

func (ctrl *Controller) ProcessWatchTicker(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	ticker := strings.ToUpper(strings.TrimSpace(c.Message().Text))
	err := ctrl.portfolio.AddToWatchlist(ctx, ticker)
	ctrl.resetSession(ctx, c.Chat().ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyWatched):
			return c.Send("👀 " + ticker + " is already on the watchlist")
		case errors.Is(err, service.ErrInvalidInput):
			return c.Send("❌ " + err.Error())
		default:
			slog.Error("got error from portfolio.AddToWatchlist", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send(internalErrMsg)
		}
	}

	return ctrl.renderWatchlist(ctx, c, false)
}

func (ctrl *Controller) ShowWatchlist(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	return ctrl.renderWatchlist(ctx, c, false)
}

// ShowWatchlistInline replaces the portfolio view with the watchlist when
// its button is tapped.
func (ctrl *Controller) ShowWatchlistInline(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	return ctrl.renderWatchlist(ctx, c, true)
}

func (ctrl *Controller) Unwatch(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	err := ctrl.portfolio.RemoveFromWatchlist(ctx, c.Data())
	if err != nil && !errors.Is(err, service.ErrNotWatched) {
		slog.Error("got error from portfolio.RemoveFromWatchlist", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return ctrl.renderWatchlist(ctx, c, true)
}

func (ctrl *Controller) renderWatchlist(ctx context.Context, c tele.Context, edit bool) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	items, err := ctrl.portfolio.Watchlist(ctx)
	if err != nil {
		slog.Error("got error from portfolio.Watchlist", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text, markup := telebotConverter.WatchlistResponse(items)
	if edit {
		return c.Edit(text, markup)
	}
	return c.Send(text, markup)
}

func (ctrl *Controller) History(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	records, err := ctrl.portfolio.TradeLog(ctx, ctrl.cfg.TradesPerPage)
	if err != nil {
		slog.Error("got error from portfolio.TradeLog", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.TradeLogResponse(records))
}

func (ctrl *Controller) Summary(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	summary, err := ctrl.portfolio.DailySummary(ctx, time.Now())
	if err != nil {
		slog.Error("got error from portfolio.DailySummary", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	return c.Send(telebotConverter.DailySummaryResponse(summary), tele.ModeMarkdown)
}

func (ctrl *Controller) Chart(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	img, err := ctrl.portfolio.EquityChart(ctx)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Send("📉 No history yet, make a trade first.")
		}
		slog.Error("got error from portfolio.EquityChart", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(img))}
	return c.Send(photo)
}

func (ctrl *Controller) Export(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	file, err := ctrl.portfolio.ExportReport(ctx)
	if err != nil {
		slog.Error("got error from portfolio.ExportReport", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	if file.Link != "" {
		return c.Send("📄 The report is too big for telegram, download it here: " + file.Link)
	}

	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(file.Data)),
		FileName: file.FileName,
	}
	return c.Send(doc)
}

func (ctrl *Controller) Predictions(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	day := time.Now()
	predictions, err := ctrl.football.Predictions(ctx, day)
	if err != nil {
		slog.Error("got error from football.Predictions", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(internalErrMsg)
	}

	text := telebotConverter.PredictionsResponse(day.Format("2006-01-02"), predictions)
	return sendLong(c, text)
}

func (ctrl *Controller) Cancel(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	ctrl.resetSession(ctx, c.Chat().ID)
	return c.Send("🚫 Cancelled.")
}

func (ctrl *Controller) saveSession(ctx context.Context, chatID int64, chatSession model.Session) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	if err := ctrl.session.SetSession(ctx, chatID, chatSession); err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}
	return nil
}

func (ctrl *Controller) resetSession(ctx context.Context, chatID int64) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	if err := ctrl.session.DeleteSession(ctx, chatID); err != nil {
		slog.Error("got error from session.DeleteSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	chatSession, err := ctrl.session.GetSession(ctx, c.Chat().ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return model.Session{}, err
	}
	return chatSession, nil
}

func tradeErrMsg(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrPriceOutOfRange),
		errors.Is(err, service.ErrInsufficientFunds),
		errors.Is(err, service.ErrUnknownTicker),
		errors.Is(err, service.ErrOversell):
		return "❌ " + err.Error()
	case errors.Is(err, service.ErrMarketDataUnavailable):
		return "❌ market data unavailable, try again later"
	default:
		return internalErrMsg
	}
}

func parsePositiveDecimal(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, errors.New("value must be positive")
	}
	return d, nil
}

func parseStopPct(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Decimal{}, errors.New("percent must be within [0, 100)")
	}
	return d, nil
}

// sendLong splits a reply on line boundaries so it stays under the telegram
// message size limit.
func sendLong(c tele.Context, text string) error {
	for len(text) > maxMessageLen {
		cut := strings.LastIndexByte(text[:maxMessageLen], '\n')
		if cut <= 0 {
			cut = maxMessageLen
		}
		if err := c.Send(text[:cut]); err != nil {
			return err
		}
		text = strings.TrimLeft(text[cut:], "\n")
	}
	return c.Send(text)
}
