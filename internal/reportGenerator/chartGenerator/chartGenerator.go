package chartGenerator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KotFed0t/trade_tracker_bot/internal/model"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	charts "github.com/vicanso/go-charts/v2"
)

type ChartGenerator struct{}

func New() *ChartGenerator {
	return &ChartGenerator{}
}

// RenderEquityCurve draws the total equity by day as a PNG line chart.
func (g *ChartGenerator) RenderEquityCurve(ctx context.Context, points []model.EquityPoint) ([]byte, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ChartGenerator.RenderEquityCurve"

	slog.Debug("RenderEquityCurve start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("points", len(points)))

	if len(points) == 0 {
		return nil, errors.New("empty equity curve")
	}

	labels := make([]string, len(points))
	values := make([]float64, len(points))
	var yMin, yMax float64
	for i, p := range points {
		labels[i] = p.Date.Format(model.DateLayout)
		v := p.Equity.InexactFloat64()
		values[i] = v
		if i == 0 {
			yMin, yMax = v, v
			continue
		}
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}

	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	split := len(labels)
	if split > 10 {
		split = 10
	}

	painter, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc("Total equity"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		slog.Error("can't render chart", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	img, err := painter.Bytes()
	if err != nil {
		slog.Error("can't encode chart", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	slog.Debug("RenderEquityCurve completed", slog.String("rqID", rqID), slog.String("op", op))

	return img, nil
}
