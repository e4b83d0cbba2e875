package portfolioService

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/internal/service"
	"github.com/KotFed0t/trade_tracker_bot/utils"
)

// ExportReport builds the xlsx report over the full journal and history.
// Files over the Telegram document limit go to cloud storage and come back
// as a link instead of raw bytes.
func (s *PortfolioService) ExportReport(ctx context.Context) (model.ReportFile, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ExportReport"

	slog.Debug("ExportReport start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("ExportReport finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	summary, err := s.liveSummary(ctx)
	if err != nil {
		slog.Error("can't build portfolio summary", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ReportFile{}, err
	}

	trades, err := s.repo.TradeLog(ctx, 0)
	if err != nil {
		slog.Error("got error from repo.TradeLog", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ReportFile{}, err
	}

	history, err := s.repo.History(ctx)
	if err != nil {
		slog.Error("got error from repo.History", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ReportFile{}, err
	}

	report := model.Report{
		GeneratedAt: s.now(),
		Summary:     summary,
		Trades:      trades,
		History:     history,
	}

	fileBytes, ext, err := s.reports.Generate(ctx, report)
	if err != nil {
		slog.Error("can't generate report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.ReportFile{}, err
	}

	fileName := fmt.Sprintf("portfolio_report_%s%s", report.GeneratedAt.Format(model.DateLayout), ext)

	if s.storage != nil && len(fileBytes) > s.cfg.Telegram.FileLimitInBytes {
		link, err := s.storage.UploadFile(ctx, bytes.NewReader(fileBytes), fileName)
		if err != nil {
			slog.Error("can't upload report to cloud storage", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return model.ReportFile{}, err
		}
		return model.ReportFile{FileName: fileName, Link: link}, nil
	}

	return model.ReportFile{FileName: fileName, Data: fileBytes}, nil
}

// EquityChart renders the equity curve as a PNG for the /chart command.
func (s *PortfolioService) EquityChart(ctx context.Context) ([]byte, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.EquityChart"

	slog.Debug("EquityChart start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("EquityChart finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	points, err := s.repo.EquityCurve(ctx)
	if err != nil {
		slog.Error("got error from repo.EquityCurve", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}
	if len(points) == 0 {
		return nil, service.ErrNotFound
	}

	img, err := s.charts.RenderEquityCurve(ctx, points)
	if err != nil {
		slog.Error("can't render equity chart", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}
	return img, nil
}
