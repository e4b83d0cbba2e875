package dbConverter

import (
	"fmt"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/dbModel"
	"github.com/shopspring/decimal"
)

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		Ticker:    dbHolding.Ticker,
		Shares:    dbHolding.Shares,
		StopLoss:  dbHolding.StopLoss,
		BuyPrice:  dbHolding.BuyPrice,
		CostBasis: dbHolding.CostBasis,
	}
}

func ConvertHoldings(dbHoldings []dbModel.Holding) []model.Holding {
	holdings := make([]model.Holding, 0, len(dbHoldings))
	for _, h := range dbHoldings {
		holdings = append(holdings, ConvertHolding(h))
	}
	return holdings
}

func ConvertHoldingToDb(holding model.Holding) dbModel.Holding {
	return dbModel.Holding{
		Ticker:    holding.Ticker,
		Shares:    holding.Shares,
		StopLoss:  holding.StopLoss,
		BuyPrice:  holding.BuyPrice,
		CostBasis: holding.CostBasis,
	}
}

func ConvertHoldingsToDb(holdings []model.Holding) []dbModel.Holding {
	dbHoldings := make([]dbModel.Holding, 0, len(holdings))
	for _, h := range holdings {
		dbHoldings = append(dbHoldings, ConvertHoldingToDb(h))
	}
	return dbHoldings
}

// ConvertTradeLogEntryToDb flattens a tagged journal entry into the row
// shape, leaving the other side's columns null.
func ConvertTradeLogEntryToDb(entry model.TradeLogEntry) (dbModel.TradeLog, error) {
	switch e := entry.(type) {
	case model.BuyLogEntry:
		return dbModel.TradeLog{
			Date:         e.Date.Format(model.DateLayout),
			Ticker:       e.Ticker,
			SharesBought: decimal.NewNullDecimal(e.Shares),
			BuyPrice:     decimal.NewNullDecimal(e.Price),
			CostBasis:    decimal.NewNullDecimal(e.Cost),
			Reason:       e.Reason,
		}, nil
	case model.SellLogEntry:
		return dbModel.TradeLog{
			Date:       e.Date.Format(model.DateLayout),
			Ticker:     e.Ticker,
			CostBasis:  decimal.NewNullDecimal(e.CostBasis),
			PnL:        decimal.NewNullDecimal(e.PnL),
			Reason:     e.Reason,
			SharesSold: decimal.NewNullDecimal(e.Shares),
			SellPrice:  decimal.NewNullDecimal(e.Price),
		}, nil
	default:
		return dbModel.TradeLog{}, fmt.Errorf("unsupported trade log entry type %T", entry)
	}
}

func ConvertTradeRecord(dbTrade dbModel.TradeLog) (model.TradeRecord, error) {
	date, err := time.Parse(model.DateLayout, dbTrade.Date)
	if err != nil {
		return model.TradeRecord{}, fmt.Errorf("parse trade date %q: %w", dbTrade.Date, err)
	}
	return model.TradeRecord{
		ID:           dbTrade.ID,
		Date:         date,
		Ticker:       dbTrade.Ticker,
		SharesBought: dbTrade.SharesBought,
		BuyPrice:     dbTrade.BuyPrice,
		CostBasis:    dbTrade.CostBasis,
		PnL:          dbTrade.PnL,
		Reason:       dbTrade.Reason,
		SharesSold:   dbTrade.SharesSold,
		SellPrice:    dbTrade.SellPrice,
	}, nil
}

func ConvertTradeRecords(dbTrades []dbModel.TradeLog) ([]model.TradeRecord, error) {
	trades := make([]model.TradeRecord, 0, len(dbTrades))
	for _, t := range dbTrades {
		trade, err := ConvertTradeRecord(t)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// ConvertSnapshotToDb flattens a snapshot into history rows: one per
// position plus the TOTAL row carrying the cash columns.
func ConvertSnapshotToDb(snapshot model.Snapshot) []dbModel.HistoryRow {
	date := snapshot.Date.Format(model.DateLayout)
	rows := make([]dbModel.HistoryRow, 0, len(snapshot.Positions)+1)
	for _, p := range snapshot.Positions {
		rows = append(rows, dbModel.HistoryRow{
			Date:         date,
			Ticker:       p.Ticker,
			Shares:       decimal.NewNullDecimal(p.Shares),
			CostBasis:    decimal.NewNullDecimal(p.BuyPrice),
			StopLoss:     decimal.NewNullDecimal(p.StopLoss),
			CurrentPrice: decimal.NewNullDecimal(p.CurrentPrice),
			TotalValue:   decimal.NewNullDecimal(p.MarketValue),
			PnL:          decimal.NewNullDecimal(p.PnL),
			Action:       p.Action,
		})
	}
	rows = append(rows, dbModel.HistoryRow{
		Date:        date,
		Ticker:      model.TotalTicker,
		TotalValue:  decimal.NewNullDecimal(snapshot.Total.TotalValue),
		PnL:         decimal.NewNullDecimal(snapshot.Total.PnL),
		CashBalance: decimal.NewNullDecimal(snapshot.Total.CashBalance),
		TotalEquity: decimal.NewNullDecimal(snapshot.Total.TotalEquity),
	})
	return rows
}

func ConvertHistoryRecord(dbRow dbModel.HistoryRow) (model.HistoryRecord, error) {
	date, err := time.Parse(model.DateLayout, dbRow.Date)
	if err != nil {
		return model.HistoryRecord{}, fmt.Errorf("parse history date %q: %w", dbRow.Date, err)
	}
	return model.HistoryRecord{
		Date:         date,
		Ticker:       dbRow.Ticker,
		Shares:       dbRow.Shares,
		CostBasis:    dbRow.CostBasis,
		StopLoss:     dbRow.StopLoss,
		CurrentPrice: dbRow.CurrentPrice,
		TotalValue:   dbRow.TotalValue,
		PnL:          dbRow.PnL,
		Action:       dbRow.Action,
		CashBalance:  dbRow.CashBalance,
		TotalEquity:  dbRow.TotalEquity,
	}, nil
}

func ConvertHistoryRecords(dbRows []dbModel.HistoryRow) ([]model.HistoryRecord, error) {
	records := make([]model.HistoryRecord, 0, len(dbRows))
	for _, r := range dbRows {
		record, err := ConvertHistoryRecord(r)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// ConvertEquityRows keeps only rows with a stored equity value.
func ConvertEquityRows(dbRows []dbModel.EquityRow) ([]model.EquityPoint, error) {
	points := make([]model.EquityPoint, 0, len(dbRows))
	for _, r := range dbRows {
		if !r.TotalEquity.Valid {
			continue
		}
		date, err := time.Parse(model.DateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("parse history date %q: %w", r.Date, err)
		}
		points = append(points, model.EquityPoint{Date: date, Equity: r.TotalEquity.Decimal})
	}
	return points, nil
}
