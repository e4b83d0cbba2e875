package ledger

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/internal/converter/dbConverter"
	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/dbModel"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/shopspring/decimal"
)

func (l *Ledger) LoadHoldings(ctx context.Context) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ticker, shares, stop_loss, buy_price, cost_basis FROM holdings ORDER BY ticker`

	slog.Debug("LoadHoldings start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("LoadHoldings failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("LoadHoldings completed", slog.String("rqID", rqID))
		}
	}()

	dbHoldings := make([]dbModel.Holding, 0)
	err = l.txOrDb(ctx).SelectContext(ctx, &dbHoldings, query)
	if err != nil {
		return nil, err
	}

	return dbConverter.ConvertHoldings(dbHoldings), nil
}

// ReplaceHoldings rewrites the holdings table so the stored state always
// mirrors the ledger state after a trade or a snapshot.
func (l *Ledger) ReplaceHoldings(ctx context.Context, holdings []model.Holding) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	deleteQuery := `DELETE FROM holdings`
	insertQuery := `
		INSERT INTO holdings (ticker, shares, stop_loss, buy_price, cost_basis)
		VALUES (:ticker, :shares, :stop_loss, :buy_price, :cost_basis)`

	slog.Debug("ReplaceHoldings start", slog.String("rqID", rqID), slog.Int("count", len(holdings)))
	defer func() {
		if err != nil {
			slog.Error("ReplaceHoldings failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("ReplaceHoldings completed", slog.String("rqID", rqID))
		}
	}()

	q := l.txOrDb(ctx)

	_, err = q.ExecContext(ctx, deleteQuery)
	if err != nil {
		return err
	}

	if len(holdings) == 0 {
		return nil
	}

	_, err = q.NamedExecContext(ctx, insertQuery, dbConverter.ConvertHoldingsToDb(holdings))
	return err
}

func (l *Ledger) LoadCash(ctx context.Context) (balance decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT balance FROM cash WHERE id = 0`

	slog.Debug("LoadCash start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("LoadCash failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("LoadCash completed", slog.String("rqID", rqID))
		}
	}()

	err = l.txOrDb(ctx).QueryRowContext(ctx, query).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, repository.ErrNotFound
		}
		return decimal.Decimal{}, err
	}

	return balance, nil
}

func (l *Ledger) SetCash(ctx context.Context, balance decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO cash (id, balance) VALUES (0, ?) ON CONFLICT (id) DO UPDATE SET balance = excluded.balance`

	slog.Debug("SetCash start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("SetCash failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("SetCash completed", slog.String("rqID", rqID))
		}
	}()

	q := l.txOrDb(ctx)
	_, err = q.ExecContext(ctx, q.Rebind(query), balance)
	return err
}

// NeedsInit reports whether the ledger is empty: no holdings and no cash
// record means the portfolio was never initialized.
func (l *Ledger) NeedsInit(ctx context.Context) (needsInit bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT (SELECT COUNT(*) FROM holdings) + (SELECT COUNT(*) FROM cash)`

	slog.Debug("NeedsInit start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("NeedsInit failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("NeedsInit completed", slog.String("rqID", rqID))
		}
	}()

	var count int
	err = l.txOrDb(ctx).QueryRowContext(ctx, query).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == 0, nil
}
