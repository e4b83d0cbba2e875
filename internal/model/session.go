package model

import "github.com/shopspring/decimal"

type action int

const (
	DefaultAction action = iota
	ExpectingStartingCash
	ExpectingBuyTicker
	ExpectingBuyShares
	ExpectingBuyPrice
	ExpectingBuyStopPct
	ExpectingSellTicker
	ExpectingSellShares
	ExpectingSellPrice
	ExpectingCashAmount
	ExpectingWatchTicker
)

// Session holds the per-chat conversation state. The draft accumulates the
// order fields entered so far during a buy or sell flow.
type Session struct {
	Action action
	Draft  *DraftOrder
}

type DraftOrder struct {
	Ticker string
	Shares decimal.Decimal
	Price  decimal.Decimal
}
