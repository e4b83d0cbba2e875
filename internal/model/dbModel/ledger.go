package dbModel

import (
	"github.com/shopspring/decimal"
)

type Holding struct {
	Ticker    string          `db:"ticker"`
	Shares    decimal.Decimal `db:"shares"`
	StopLoss  decimal.Decimal `db:"stop_loss"`
	BuyPrice  decimal.Decimal `db:"buy_price"`
	CostBasis decimal.Decimal `db:"cost_basis"`
}

type TradeLog struct {
	ID           int64               `db:"id"`
	Date         string              `db:"date"`
	Ticker       string              `db:"ticker"`
	SharesBought decimal.NullDecimal `db:"shares_bought"`
	BuyPrice     decimal.NullDecimal `db:"buy_price"`
	CostBasis    decimal.NullDecimal `db:"cost_basis"`
	PnL          decimal.NullDecimal `db:"pnl"`
	Reason       string              `db:"reason"`
	SharesSold   decimal.NullDecimal `db:"shares_sold"`
	SellPrice    decimal.NullDecimal `db:"sell_price"`
}

// HistoryRow is one portfolio_history row. The cost_basis column keeps the
// legacy meaning: per-share average cost.
type HistoryRow struct {
	Date         string              `db:"date"`
	Ticker       string              `db:"ticker"`
	Shares       decimal.NullDecimal `db:"shares"`
	CostBasis    decimal.NullDecimal `db:"cost_basis"`
	StopLoss     decimal.NullDecimal `db:"stop_loss"`
	CurrentPrice decimal.NullDecimal `db:"current_price"`
	TotalValue   decimal.NullDecimal `db:"total_value"`
	PnL          decimal.NullDecimal `db:"pnl"`
	Action       string              `db:"action"`
	CashBalance  decimal.NullDecimal `db:"cash_balance"`
	TotalEquity  decimal.NullDecimal `db:"total_equity"`
}

type EquityRow struct {
	Date        string              `db:"date"`
	TotalEquity decimal.NullDecimal `db:"total_equity"`
}
