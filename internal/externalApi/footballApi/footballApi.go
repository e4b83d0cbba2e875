package footballApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/footballModel"
	"github.com/KotFed0t/trade_tracker_bot/utils"
	"github.com/go-resty/resty/v2"
)

// FootballApi is a client for api-football behind the RapidAPI gateway.
type FootballApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *FootballApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.FootballApi.Url).
		SetHeader("x-rapidapi-key", cfg.API.FootballApi.Key).
		SetHeader("x-rapidapi-host", cfg.API.FootballApi.Host)
	return &FootballApi{client: client}
}

func (a *FootballApi) FixturesForDate(ctx context.Context, date string, leagueID, season int) ([]footballModel.FixtureEntry, error) {
	params := map[string]string{
		"date":   date,
		"league": strconv.Itoa(leagueID),
		"season": strconv.Itoa(season),
	}
	return a.fetchFixtures(ctx, "FixturesForDate", "/fixtures", params)
}

func (a *FootballApi) LastFixtures(ctx context.Context, teamID int64, n int) ([]footballModel.FixtureEntry, error) {
	params := map[string]string{
		"team": strconv.FormatInt(teamID, 10),
		"last": strconv.Itoa(n),
	}
	return a.fetchFixtures(ctx, "LastFixtures", "/fixtures", params)
}

func (a *FootballApi) HeadToHead(ctx context.Context, homeID, awayID int64, n int) ([]footballModel.FixtureEntry, error) {
	params := map[string]string{
		"h2h":  fmt.Sprintf("%d-%d", homeID, awayID),
		"last": strconv.Itoa(n),
	}
	return a.fetchFixtures(ctx, "HeadToHead", "/fixtures/headtohead", params)
}

// MatchWinnerOdds returns the bookmaker's Match Winner odds for a fixture,
// or nil when the bookmaker has not quoted it. Absence is not an error.
func (a *FootballApi) MatchWinnerOdds(ctx context.Context, fixtureID int64, bookmakerID int) (*footballModel.MatchOdds, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("FootballApi.MatchWinnerOdds start", slog.String("rqID", rqID), slog.Int64("fixtureID", fixtureID))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"fixture":   strconv.FormatInt(fixtureID, 10),
			"bookmaker": strconv.Itoa(bookmakerID),
		}).
		Get("/odds")

	if err != nil {
		slog.Error("error while dialing FootballApi", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}
	if resp.IsError() {
		slog.Error("FootballApi.MatchWinnerOdds bad status", slog.String("rqID", rqID), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("football odds request failed with status %d", resp.StatusCode())
	}

	rawOdds := footballModel.RawOdds{}
	if err = json.Unmarshal(resp.Body(), &rawOdds); err != nil {
		slog.Error("can't unmarshall odds response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	odds := extractMatchWinner(rawOdds)

	slog.Debug("FootballApi.MatchWinnerOdds completed", slog.String("rqID", rqID), slog.Bool("found", odds != nil))

	return odds, nil
}

func (a *FootballApi) fetchFixtures(ctx context.Context, op, url string, params map[string]string) ([]footballModel.FixtureEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("FootballApi."+op+" start", slog.String("rqID", rqID))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing FootballApi", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}
	if resp.IsError() {
		slog.Error("FootballApi."+op+" bad status", slog.String("rqID", rqID), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("football fixtures request failed with status %d", resp.StatusCode())
	}

	rawFixtures := footballModel.RawFixtures{}
	if err = json.Unmarshal(resp.Body(), &rawFixtures); err != nil {
		slog.Error("can't unmarshall fixtures response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	slog.Debug("FootballApi."+op+" completed", slog.String("rqID", rqID), slog.Int("count", len(rawFixtures.Response)))

	return rawFixtures.Response, nil
}

func extractMatchWinner(rawOdds footballModel.RawOdds) *footballModel.MatchOdds {
	for _, entry := range rawOdds.Response {
		for _, bookmaker := range entry.Bookmakers {
			for _, bet := range bookmaker.Bets {
				if bet.Name != "Match Winner" {
					continue
				}
				odds := &footballModel.MatchOdds{}
				for _, v := range bet.Values {
					switch v.Value {
					case "Home":
						odds.Home = v.Odd
					case "Draw":
						odds.Draw = v.Odd
					case "Away":
						odds.Away = v.Odd
					}
				}
				return odds
			}
		}
	}
	return nil
}
