package ledger

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/trade_tracker_bot/data/repository"
	"github.com/KotFed0t/trade_tracker_bot/utils"
)

func (l *Ledger) Watchlist(ctx context.Context) (tickers []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ticker FROM watchlist ORDER BY ticker`

	slog.Debug("Watchlist start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("Watchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("Watchlist completed", slog.String("rqID", rqID))
		}
	}()

	tickers = make([]string, 0)
	err = l.txOrDb(ctx).SelectContext(ctx, &tickers, query)
	if err != nil {
		return nil, err
	}

	return tickers, nil
}

func (l *Ledger) AddToWatchlist(ctx context.Context, ticker string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `INSERT INTO watchlist (ticker) VALUES (?)`

	slog.Debug("AddToWatchlist start", slog.String("rqID", rqID), slog.String("ticker", ticker))
	defer func() {
		if err != nil {
			slog.Error("AddToWatchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("AddToWatchlist completed", slog.String("rqID", rqID))
		}
	}()

	q := l.txOrDb(ctx)
	_, err = q.ExecContext(ctx, q.Rebind(query), ticker)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return err
	}

	return nil
}

func (l *Ledger) RemoveFromWatchlist(ctx context.Context, ticker string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `DELETE FROM watchlist WHERE ticker = ?`

	slog.Debug("RemoveFromWatchlist start", slog.String("rqID", rqID), slog.String("ticker", ticker))
	defer func() {
		if err != nil {
			slog.Error("RemoveFromWatchlist failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("RemoveFromWatchlist completed", slog.String("rqID", rqID))
		}
	}()

	q := l.txOrDb(ctx)
	res, err := q.ExecContext(ctx, q.Rebind(query), ticker)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
