package yahooApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/internal/externalApi"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/marketModel"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Yahoo rejects requests with the default go client user agent.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

type YahooApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *YahooApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.YahooApi.Url).
		SetHeader("User-Agent", userAgent)
	return &YahooApi{client: client}
}

// Quote returns the current price: the regular market price from chart
// metadata when positive, otherwise the last non-zero close of the day.
func (a *YahooApi) Quote(ctx context.Context, ticker string) (marketModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("YahooApi.Quote start", slog.String("rqID", rqID), slog.String("ticker", ticker))

	result, err := a.fetchChart(ctx, ticker)
	if err != nil {
		slog.Error("YahooApi.Quote failed", slog.String("rqID", rqID), slog.String("ticker", ticker), slog.String("err", err.Error()))
		return marketModel.Quote{}, err
	}

	price := resolvePrice(result.Meta.RegularMarketPrice, closes(result))
	if !price.IsPositive() {
		slog.Error("YahooApi.Quote no usable price", slog.String("rqID", rqID), slog.String("ticker", ticker))
		return marketModel.Quote{}, externalApi.ErrNoData
	}

	slog.Debug("YahooApi.Quote completed", slog.String("rqID", rqID), slog.String("ticker", ticker))

	return marketModel.Quote{Ticker: ticker, Price: price}, nil
}

// Quotes batch-fetches prices via the spark endpoint. Tickers the exchange
// knows nothing about are left out of the map; only a request-level failure
// returns an error.
func (a *YahooApi) Quotes(ctx context.Context, tickers []string) (map[string]marketModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("YahooApi.Quotes start", slog.String("rqID", rqID), slog.Int("count", len(tickers)))

	quotes := make(map[string]marketModel.Quote, len(tickers))
	if len(tickers) == 0 {
		return quotes, nil
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"symbols":  strings.Join(tickers, ","),
			"range":    "1d",
			"interval": "1d",
		}).
		Get("/v7/finance/spark")

	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}
	if resp.IsError() {
		slog.Error("YahooApi.Quotes bad status", slog.String("rqID", rqID), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("yahoo spark request failed with status %d", resp.StatusCode())
	}

	rawSpark := marketModel.RawSpark{}
	if err = json.Unmarshal(resp.Body(), &rawSpark); err != nil {
		slog.Error("can't unmarshall spark response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	for _, result := range rawSpark.Spark.Result {
		if len(result.Response) == 0 {
			continue
		}
		r := result.Response[0]
		var lastCloses []*float64
		if len(r.Indicators.Quote) > 0 {
			lastCloses = r.Indicators.Quote[0].Close
		}
		price := resolvePrice(r.Meta.RegularMarketPrice, lastCloses)
		if !price.IsPositive() {
			continue
		}
		quotes[result.Symbol] = marketModel.Quote{Ticker: result.Symbol, Price: price}
	}

	slog.Debug("YahooApi.Quotes completed", slog.String("rqID", rqID), slog.Int("resolved", len(quotes)))

	return quotes, nil
}

// DayRange returns the traded low and high of the current session. Unlike
// Quote degradation is not allowed here: any failure propagates so trade
// validation can refuse to run blind.
func (a *YahooApi) DayRange(ctx context.Context, ticker string) (marketModel.DayRange, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("YahooApi.DayRange start", slog.String("rqID", rqID), slog.String("ticker", ticker))

	result, err := a.fetchChart(ctx, ticker)
	if err != nil {
		slog.Error("YahooApi.DayRange failed", slog.String("rqID", rqID), slog.String("ticker", ticker), slog.String("err", err.Error()))
		return marketModel.DayRange{}, err
	}

	var low, high decimal.Decimal
	if len(result.Indicators.Quote) > 0 {
		low = sliceExtreme(result.Indicators.Quote[0].Low, false)
		high = sliceExtreme(result.Indicators.Quote[0].High, true)
	}
	if !low.IsPositive() {
		low = decimal.NewFromFloat(result.Meta.RegularMarketDayLow)
	}
	if !high.IsPositive() {
		high = decimal.NewFromFloat(result.Meta.RegularMarketDayHigh)
	}

	if !low.IsPositive() || !high.IsPositive() || high.LessThan(low) {
		slog.Error("YahooApi.DayRange no usable range", slog.String("rqID", rqID), slog.String("ticker", ticker))
		return marketModel.DayRange{}, externalApi.ErrNoData
	}

	slog.Debug("YahooApi.DayRange completed", slog.String("rqID", rqID), slog.String("ticker", ticker))

	return marketModel.DayRange{Ticker: ticker, Low: low, High: high}, nil
}

func (a *YahooApi) fetchChart(ctx context.Context, ticker string) (marketModel.ChartResult, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"range":    "1d",
			"interval": "1d",
		}).
		Get("/v8/finance/chart/" + ticker)

	if err != nil {
		return marketModel.ChartResult{}, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return marketModel.ChartResult{}, externalApi.ErrNotFound
	}
	if resp.IsError() {
		return marketModel.ChartResult{}, fmt.Errorf("yahoo chart request failed with status %d", resp.StatusCode())
	}

	rawChart := marketModel.RawChart{}
	if err = json.Unmarshal(resp.Body(), &rawChart); err != nil {
		return marketModel.ChartResult{}, err
	}

	if rawChart.Chart.Error != nil {
		return marketModel.ChartResult{}, fmt.Errorf("yahoo chart error: %s", rawChart.Chart.Error.Description)
	}
	if len(rawChart.Chart.Result) == 0 {
		return marketModel.ChartResult{}, externalApi.ErrNoData
	}

	return rawChart.Chart.Result[0], nil
}

func closes(result marketModel.ChartResult) []*float64 {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	return result.Indicators.Quote[0].Close
}

// resolvePrice prefers the meta price and falls back to the last non-zero
// value of the series.
func resolvePrice(metaPrice float64, series []*float64) decimal.Decimal {
	if metaPrice > 0 {
		return decimal.NewFromFloat(metaPrice)
	}
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] != nil && *series[i] > 0 {
			return decimal.NewFromFloat(*series[i])
		}
	}
	return decimal.Decimal{}
}

// sliceExtreme returns the max (or min) of the non-nil values.
func sliceExtreme(series []*float64, max bool) decimal.Decimal {
	found := false
	extreme := 0.0
	for _, v := range series {
		if v == nil || *v <= 0 {
			continue
		}
		if !found || (max && *v > extreme) || (!max && *v < extreme) {
			extreme = *v
			found = true
		}
	}
	if !found {
		return decimal.Decimal{}
	}
	return decimal.NewFromFloat(extreme)
}
