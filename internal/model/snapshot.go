package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TotalTicker is the reserved pseudo ticker of the per-day summary row.
const TotalTicker = "TOTAL"

const ActionHold = "HOLD"

// Snapshot is one day's valuation of the whole portfolio: a row per open
// position plus a single total. Persisting it replaces any rows already
// stored for the same date.
type Snapshot struct {
	Date      time.Time
	Positions []PositionSnapshot
	Total     SnapshotTotal
}

type PositionSnapshot struct {
	Ticker       string
	Shares       decimal.Decimal
	BuyPrice     decimal.Decimal
	StopLoss     decimal.Decimal
	CurrentPrice decimal.Decimal
	MarketValue  decimal.Decimal
	PnL          decimal.Decimal
	Action       string
}

type SnapshotTotal struct {
	TotalValue  decimal.Decimal
	PnL         decimal.Decimal
	CashBalance decimal.Decimal
	TotalEquity decimal.Decimal
}

type ValuationResult struct {
	Snapshot Snapshot
	// MissingQuotes lists tickers valued at 0.00 because no price resolved.
	MissingQuotes []string
}

// HistoryRecord is the flat read side of the snapshot history. CostBasis
// mirrors the stored column and holds the per-share average cost, not the
// total invested amount. Position rows leave the cash columns null, the
// TOTAL row leaves the per-position columns null.
type HistoryRecord struct {
	Date         time.Time
	Ticker       string
	Shares       decimal.NullDecimal
	CostBasis    decimal.NullDecimal
	StopLoss     decimal.NullDecimal
	CurrentPrice decimal.NullDecimal
	TotalValue   decimal.NullDecimal
	PnL          decimal.NullDecimal
	Action       string
	CashBalance  decimal.NullDecimal
	TotalEquity  decimal.NullDecimal
}

type EquityPoint struct {
	Date   time.Time
	Equity decimal.Decimal
}

// DailySummary is the digest rendered by the /summary command.
type DailySummary struct {
	Date        time.Time
	TotalEquity decimal.Decimal
	CashBalance decimal.Decimal
	DayPnL      decimal.Decimal
	HasDayPnL   bool
	Positions   []Position
	Best        *Position
	Worst       *Position
}
