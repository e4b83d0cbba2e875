package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

const (
	ReasonManualBuy  = "MANUAL BUY - New position"
	ReasonManualSell = "MANUAL SELL - User"
)

type BuyOrder struct {
	Ticker   string
	Shares   decimal.Decimal
	Price    decimal.Decimal
	StopLoss decimal.Decimal
}

type SellOrder struct {
	Ticker string
	Shares decimal.Decimal
	Price  decimal.Decimal
}

// TradeLogEntry is the closed set of journal entry variants. Buy and sell
// rows populate different columns, so each side carries its own fields.
type TradeLogEntry interface {
	EntryDate() time.Time
	EntryTicker() string
	tradeLogEntry()
}

type BuyLogEntry struct {
	Date   time.Time
	Ticker string
	Shares decimal.Decimal
	Price  decimal.Decimal
	Cost   decimal.Decimal
	Reason string
}

func (e BuyLogEntry) EntryDate() time.Time { return e.Date }
func (e BuyLogEntry) EntryTicker() string  { return e.Ticker }
func (BuyLogEntry) tradeLogEntry()         {}

type SellLogEntry struct {
	Date      time.Time
	Ticker    string
	Shares    decimal.Decimal
	Price     decimal.Decimal
	CostBasis decimal.Decimal
	PnL       decimal.Decimal
	Reason    string
}

func (e SellLogEntry) EntryDate() time.Time { return e.Date }
func (e SellLogEntry) EntryTicker() string  { return e.Ticker }
func (SellLogEntry) tradeLogEntry()         {}

// TradeRecord is the flat read side of the journal, one row per logged trade.
type TradeRecord struct {
	ID           int64
	Date         time.Time
	Ticker       string
	SharesBought decimal.NullDecimal
	BuyPrice     decimal.NullDecimal
	CostBasis    decimal.NullDecimal
	PnL          decimal.NullDecimal
	Reason       string
	SharesSold   decimal.NullDecimal
	SellPrice    decimal.NullDecimal
}

// TradeConfirmation summarizes an executed trade for the user.
// Amount is the total cost on buys and the proceeds on sells.
type TradeConfirmation struct {
	Ticker               string
	Shares               decimal.Decimal
	Price                decimal.Decimal
	Amount               decimal.Decimal
	PnL                  decimal.Decimal
	CashAfter            decimal.Decimal
	PositionClosed       bool
	RemovedFromWatchlist bool
}
