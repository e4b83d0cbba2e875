package model

import (
	"github.com/shopspring/decimal"
)

// Holding is one open position in the ledger. BuyPrice is the weighted
// average cost per share, CostBasis the total amount invested. Positions
// with exactly zero shares are removed from the store, never persisted.
type Holding struct {
	Ticker    string
	Shares    decimal.Decimal
	StopLoss  decimal.Decimal
	BuyPrice  decimal.Decimal
	CostBasis decimal.Decimal
}

// Position is a holding valued at the current market price, for display.
type Position struct {
	Holding
	CurrentPrice decimal.Decimal
	PriceKnown   bool
	MarketValue  decimal.Decimal
	PnL          decimal.Decimal
	PnLPct       decimal.Decimal
	NearStopLoss bool
}

type PortfolioSummary struct {
	Positions     []Position
	TotalValue    decimal.Decimal
	TotalPnL      decimal.Decimal
	CashBalance   decimal.Decimal
	TotalEquity   decimal.Decimal
	MissingQuotes []string
}

type WatchItem struct {
	Ticker     string
	Price      decimal.Decimal
	PriceKnown bool
}
