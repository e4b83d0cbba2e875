package ledger

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/trade_tracker_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/dbModel"
	"github.com/KotFed0t/trade_tracker_bot/utils"
)

func (l *Ledger) AppendTradeLog(ctx context.Context, entry model.TradeLogEntry) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO trade_log (date, ticker, shares_bought, buy_price, cost_basis, pnl, reason, shares_sold, sell_price)
		VALUES (:date, :ticker, :shares_bought, :buy_price, :cost_basis, :pnl, :reason, :shares_sold, :sell_price)`

	slog.Debug("AppendTradeLog start", slog.String("rqID", rqID), slog.String("ticker", entry.EntryTicker()))
	defer func() {
		if err != nil {
			slog.Error("AppendTradeLog failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("AppendTradeLog completed", slog.String("rqID", rqID))
		}
	}()

	row, err := dbConverter.ConvertTradeLogEntryToDb(entry)
	if err != nil {
		return err
	}

	_, err = l.txOrDb(ctx).NamedExecContext(ctx, query, row)
	return err
}

// TradeLog returns logged trades newest first. A non-positive limit returns
// the whole journal.
func (l *Ledger) TradeLog(ctx context.Context, limit int) (trades []model.TradeRecord, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT id, date, ticker, shares_bought, buy_price, cost_basis, pnl, reason, shares_sold, sell_price
		FROM trade_log ORDER BY id DESC`

	slog.Debug("TradeLog start", slog.String("rqID", rqID), slog.Int("limit", limit))
	defer func() {
		if err != nil {
			slog.Error("TradeLog failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("TradeLog completed", slog.String("rqID", rqID))
		}
	}()

	q := l.txOrDb(ctx)
	dbTrades := make([]dbModel.TradeLog, 0)

	if limit > 0 {
		err = q.SelectContext(ctx, &dbTrades, q.Rebind(query+` LIMIT ?`), limit)
	} else {
		err = q.SelectContext(ctx, &dbTrades, query)
	}
	if err != nil {
		return nil, err
	}

	return dbConverter.ConvertTradeRecords(dbTrades)
}

// ReplaceHistory swaps the snapshot rows of the snapshot's date. Rows of
// other dates are never touched, which keeps re-runs for the same day
// idempotent and prior days immutable.
func (l *Ledger) ReplaceHistory(ctx context.Context, snapshot model.Snapshot) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	deleteQuery := `DELETE FROM portfolio_history WHERE date = ?`
	insertQuery := `
		INSERT INTO portfolio_history (date, ticker, shares, cost_basis, stop_loss, current_price, total_value, pnl, action, cash_balance, total_equity)
		VALUES (:date, :ticker, :shares, :cost_basis, :stop_loss, :current_price, :total_value, :pnl, :action, :cash_balance, :total_equity)`

	date := snapshot.Date.Format(model.DateLayout)

	slog.Debug("ReplaceHistory start", slog.String("rqID", rqID), slog.String("date", date))
	defer func() {
		if err != nil {
			slog.Error("ReplaceHistory failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ReplaceHistory completed", slog.String("rqID", rqID))
		}
	}()

	q := l.txOrDb(ctx)

	_, err = q.ExecContext(ctx, q.Rebind(deleteQuery), date)
	if err != nil {
		return err
	}

	_, err = q.NamedExecContext(ctx, insertQuery, dbConverter.ConvertSnapshotToDb(snapshot))
	return err
}

// History returns every snapshot row, dates ascending, the TOTAL row last
// within its date.
func (l *Ledger) History(ctx context.Context) (records []model.HistoryRecord, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		SELECT date, ticker, shares, cost_basis, stop_loss, current_price, total_value, pnl, action, cash_balance, total_equity
		FROM portfolio_history
		ORDER BY date, CASE WHEN ticker = ? THEN 1 ELSE 0 END, ticker`

	slog.Debug("History start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("History failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("History completed", slog.String("rqID", rqID))
		}
	}()

	q := l.txOrDb(ctx)
	dbRows := make([]dbModel.HistoryRow, 0)
	err = q.SelectContext(ctx, &dbRows, q.Rebind(query), model.TotalTicker)
	if err != nil {
		return nil, err
	}

	return dbConverter.ConvertHistoryRecords(dbRows)
}

func (l *Ledger) EquityCurve(ctx context.Context) (points []model.EquityPoint, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT date, total_equity FROM portfolio_history WHERE ticker = ? ORDER BY date`

	slog.Debug("EquityCurve start", slog.String("rqID", rqID))
	defer func() {
		if err != nil {
			slog.Error("EquityCurve failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("EquityCurve completed", slog.String("rqID", rqID))
		}
	}()

	q := l.txOrDb(ctx)
	dbRows := make([]dbModel.EquityRow, 0)
	err = q.SelectContext(ctx, &dbRows, q.Rebind(query), model.TotalTicker)
	if err != nil {
		return nil, err
	}

	return dbConverter.ConvertEquityRows(dbRows)
}
