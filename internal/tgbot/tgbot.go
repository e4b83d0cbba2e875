package tgbot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/tgCallback"
	"github.com/KotFed0t/trade_tracker_bot/internal/transport/telegram"
	customMW "github.com/KotFed0t/trade_tracker_bot/internal/transport/telegram/middleware"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, chatID int64) (model.Session, error)
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
	cfg     *config.Config
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session, cfg: cfg}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.AllowChat(b.cfg.Telegram.AllowedChatID), customMW.Logger())

	b.setupRoutes()

	if err := b.bot.SetCommands(commands); err != nil {
		slog.Error("error while bot.SetCommands", slog.String("err", err.Error()))
	}

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

var commands = []tele.Command{
	{Text: "portfolio", Description: "open positions and cash"},
	{Text: "buy", Description: "record a buy"},
	{Text: "sell", Description: "record a sell"},
	{Text: "addcash", Description: "deposit cash"},
	{Text: "watchlist", Description: "tickers on the radar"},
	{Text: "history", Description: "recent trades"},
	{Text: "summary", Description: "daily portfolio summary"},
	{Text: "chart", Description: "equity curve"},
	{Text: "export", Description: "xlsx report"},
	{Text: "predictions", Description: "football match predictions"},
	{Text: "cancel", Description: "abort the current flow"},
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		// pick the controller method from the conversation step stored in the session
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)
		chatSession, err := b.session.GetSession(ctx, c.Chat().ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("something went wrong, try again later")
		}

		c.Set("session", chatSession)

		switch chatSession.Action {
		case model.ExpectingStartingCash:
			return b.ctrl.ProcessStartingCash(c)
		case model.ExpectingBuyTicker:
			return b.ctrl.ProcessBuyTicker(c)
		case model.ExpectingBuyShares:
			return b.ctrl.ProcessBuyShares(c)
		case model.ExpectingBuyPrice:
			return b.ctrl.ProcessBuyPrice(c)
		case model.ExpectingBuyStopPct:
			return b.ctrl.ProcessBuyStopPct(c)
		case model.ExpectingSellTicker:
			return b.ctrl.ProcessSellTicker(c)
		case model.ExpectingSellShares:
			return b.ctrl.ProcessSellShares(c)
		case model.ExpectingSellPrice:
			return b.ctrl.ProcessSellPrice(c)
		case model.ExpectingCashAmount:
			return b.ctrl.ProcessCashAmount(c)
		case model.ExpectingWatchTicker:
			return b.ctrl.ProcessWatchTicker(c)
		default:
			return c.Send("start with one of the commands, e.g. /portfolio")
		}
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/portfolio", b.ctrl.ShowPortfolio)
	b.bot.Handle("/buy", b.ctrl.InitBuy)
	b.bot.Handle("/sell", b.ctrl.InitSell)
	b.bot.Handle("/addcash", b.ctrl.InitAddCash)
	b.bot.Handle("/watch", b.ctrl.InitWatchTicker)
	b.bot.Handle("/watchlist", b.ctrl.ShowWatchlist)
	b.bot.Handle("/history", b.ctrl.History)
	b.bot.Handle("/summary", b.ctrl.Summary)
	b.bot.Handle("/chart", b.ctrl.Chart)
	b.bot.Handle("/export", b.ctrl.Export)
	b.bot.Handle("/predictions", b.ctrl.Predictions)
	b.bot.Handle("/cancel", b.ctrl.Cancel)

	b.bot.Handle(&tele.Btn{Unique: tgCallback.RefreshPortfolio}, b.ctrl.RefreshPortfolio)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Buy}, b.ctrl.InitBuy)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Sell}, b.ctrl.InitSell)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.AddCash}, b.ctrl.InitAddCash)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.ShowWatchlist}, b.ctrl.ShowWatchlistInline)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.WatchTicker}, b.ctrl.InitWatchTicker)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Unwatch}, b.ctrl.Unwatch)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.ExportReport}, b.ctrl.Export)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.SellTicker}, b.ctrl.SellTicker)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.SkipStopLoss}, b.ctrl.SkipStopLoss)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.CancelFlow}, b.ctrl.Cancel)
}
