package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) Generate(ctx context.Context, report model.Report) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillPortfolioSheet(f, report); err != nil {
		return nil, "", err
	}
	if err := g.fillTradesSheet(f, report.Trades); err != nil {
		return nil, "", err
	}
	if err := g.fillHistorySheet(f, report.History); err != nil {
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillPortfolioSheet(f *excelize.File, report model.Report) error {
	const sheetName = "Portfolio"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "H1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Open positions")
	if err := applyHeaderStyle(f, sheetName, "A1", "#cfe2f3"); err != nil {
		return err
	}

	_ = f.SetCellStr(sheetName, "A2", "ticker")
	_ = f.SetCellStr(sheetName, "B2", "shares")
	_ = f.SetCellStr(sheetName, "C2", "buy price")
	_ = f.SetCellStr(sheetName, "D2", "stop loss")
	_ = f.SetCellStr(sheetName, "E2", "current price")
	_ = f.SetCellStr(sheetName, "F2", "market value")
	_ = f.SetCellStr(sheetName, "G2", "pnl")
	_ = f.SetCellStr(sheetName, "H2", "pnl %")

	for i, p := range report.Summary.Positions {
		row := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), p.Ticker)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), p.Shares.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), p.BuyPrice.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), p.StopLoss.InexactFloat64())
		if p.PriceKnown {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), p.CurrentPrice.InexactFloat64())
			_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), p.MarketValue.InexactFloat64())
			_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), p.PnL.InexactFloat64())
			_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), p.PnLPct.InexactFloat64())
		}
	}

	rowNum := len(report.Summary.Positions) + 4

	if err := f.MergeCell(sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("B%d", rowNum)); err != nil {
		return err
	}
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), "Totals")
	if err := applyHeaderStyle(f, sheetName, fmt.Sprintf("A%d", rowNum), "#d9ead3"); err != nil {
		return err
	}

	totals := []struct {
		label string
		value decimal.Decimal
	}{
		{"total value", report.Summary.TotalValue},
		{"total pnl", report.Summary.TotalPnL},
		{"cash balance", report.Summary.CashBalance},
		{"total equity", report.Summary.TotalEquity},
	}
	for _, t := range totals {
		rowNum++
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), t.label)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), t.value.InexactFloat64())
	}

	rowNum++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "generated at")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), report.GeneratedAt.Format("2006-01-02 15:04:05"))

	return nil
}

func (g *XLSXGenerator) fillTradesSheet(f *excelize.File, trades []model.TradeRecord) error {
	const sheetName = "Trades"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "I1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Trade history")
	if err := applyHeaderStyle(f, sheetName, "A1", "#f9cb9c"); err != nil {
		return err
	}

	_ = f.SetCellStr(sheetName, "A2", "date")
	_ = f.SetCellStr(sheetName, "B2", "ticker")
	_ = f.SetCellStr(sheetName, "C2", "shares bought")
	_ = f.SetCellStr(sheetName, "D2", "buy price")
	_ = f.SetCellStr(sheetName, "E2", "cost basis")
	_ = f.SetCellStr(sheetName, "F2", "pnl")
	_ = f.SetCellStr(sheetName, "G2", "reason")
	_ = f.SetCellStr(sheetName, "H2", "shares sold")
	_ = f.SetCellStr(sheetName, "I2", "sell price")

	for i, t := range trades {
		row := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), t.Date.Format(model.DateLayout))
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", row), t.Ticker)
		setNullDecimal(f, sheetName, fmt.Sprintf("C%d", row), t.SharesBought)
		setNullDecimal(f, sheetName, fmt.Sprintf("D%d", row), t.BuyPrice)
		setNullDecimal(f, sheetName, fmt.Sprintf("E%d", row), t.CostBasis)
		setNullDecimal(f, sheetName, fmt.Sprintf("F%d", row), t.PnL)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("G%d", row), t.Reason)
		setNullDecimal(f, sheetName, fmt.Sprintf("H%d", row), t.SharesSold)
		setNullDecimal(f, sheetName, fmt.Sprintf("I%d", row), t.SellPrice)
	}

	return nil
}

func (g *XLSXGenerator) fillHistorySheet(f *excelize.File, history []model.HistoryRecord) error {
	const sheetName = "History"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "K1"); err != nil {
		return err
	}
	f.SetCellValue(sheetName, "A1", "Portfolio history")
	if err := applyHeaderStyle(f, sheetName, "A1", "#cccccc"); err != nil {
		return err
	}

	_ = f.SetCellStr(sheetName, "A2", "date")
	_ = f.SetCellStr(sheetName, "B2", "ticker")
	_ = f.SetCellStr(sheetName, "C2", "shares")
	_ = f.SetCellStr(sheetName, "D2", "cost basis")
	_ = f.SetCellStr(sheetName, "E2", "stop loss")
	_ = f.SetCellStr(sheetName, "F2", "current price")
	_ = f.SetCellStr(sheetName, "G2", "total value")
	_ = f.SetCellStr(sheetName, "H2", "pnl")
	_ = f.SetCellStr(sheetName, "I2", "action")
	_ = f.SetCellStr(sheetName, "J2", "cash balance")
	_ = f.SetCellStr(sheetName, "K2", "total equity")

	for i, r := range history {
		row := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), r.Date.Format(model.DateLayout))
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", row), r.Ticker)
		setNullDecimal(f, sheetName, fmt.Sprintf("C%d", row), r.Shares)
		setNullDecimal(f, sheetName, fmt.Sprintf("D%d", row), r.CostBasis)
		setNullDecimal(f, sheetName, fmt.Sprintf("E%d", row), r.StopLoss)
		setNullDecimal(f, sheetName, fmt.Sprintf("F%d", row), r.CurrentPrice)
		setNullDecimal(f, sheetName, fmt.Sprintf("G%d", row), r.TotalValue)
		setNullDecimal(f, sheetName, fmt.Sprintf("H%d", row), r.PnL)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("I%d", row), r.Action)
		setNullDecimal(f, sheetName, fmt.Sprintf("J%d", row), r.CashBalance)
		setNullDecimal(f, sheetName, fmt.Sprintf("K%d", row), r.TotalEquity)
	}

	return nil
}

func applyHeaderStyle(f *excelize.File, sheetName, cell, color string) error {
	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, cell, cell, styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}
	return nil
}

func setNullDecimal(f *excelize.File, sheetName, cell string, d decimal.NullDecimal) {
	if d.Valid {
		_ = f.SetCellValue(sheetName, cell, d.Decimal.InexactFloat64())
	}
}
