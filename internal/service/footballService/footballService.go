package footballService

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/trade_tracker_bot/config"
	"github.com/KotFed0t/trade_tracker_bot/internal/model/footballModel"
	"github.com/KotFed0t/trade_tracker_bot/utils"
)

const (
	formMatches    = 5
	h2hMatches     = 5
	formWeight     = 0.7
	h2hWeight      = 0.3
	decisionMargin = 1.0
)

type league struct {
	name string
	id   int
}

var leagues = []league{
	{"Premier League", 39},
	{"Ligue 1", 61},
	{"La Liga", 140},
	{"Serie A", 135},
	{"Bundesliga", 78},
	{"UEFA Champions League", 2},
	{"UEFA Europa League", 3},
}

var finishedStatuses = map[string]struct{}{
	"FT":  {},
	"AET": {},
	"PEN": {},
}

type FootballApi interface {
	FixturesForDate(ctx context.Context, date string, leagueID, season int) ([]footballModel.FixtureEntry, error)
	LastFixtures(ctx context.Context, teamID int64, n int) ([]footballModel.FixtureEntry, error)
	HeadToHead(ctx context.Context, homeID, awayID int64, n int) ([]footballModel.FixtureEntry, error)
	MatchWinnerOdds(ctx context.Context, fixtureID int64, bookmakerID int) (*footballModel.MatchOdds, error)
}

type FootballService struct {
	api FootballApi
	cfg *config.Config
}

func New(api FootballApi, cfg *config.Config) *FootballService {
	return &FootballService{api: api, cfg: cfg}
}

// Predictions scores every fixture of the day across the tracked leagues.
// Recent form weighs more than head-to-head history, and a side is only
// predicted to win when its weighted score clears the other's by more than
// the decision margin. A failing league or fixture is skipped with a
// warning, one broken call never kills the whole run.
func (s *FootballService) Predictions(ctx context.Context, day time.Time) ([]footballModel.Prediction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FootballService.Predictions"

	date := day.Format("2006-01-02")

	slog.Debug("Predictions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("date", date))
	defer func() {
		slog.Debug("Predictions finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("date", date))
	}()

	predictions := make([]footballModel.Prediction, 0)
	for _, lg := range leagues {
		fixtures, err := s.api.FixturesForDate(ctx, date, lg.id, s.cfg.API.FootballApi.Season)
		if err != nil {
			slog.Warn("skipping league, can't fetch fixtures",
				slog.String("rqID", rqID), slog.String("op", op), slog.String("league", lg.name), slog.String("err", err.Error()))
			continue
		}

		for _, fixture := range fixtures {
			prediction, err := s.predictFixture(ctx, lg.name, fixture)
			if err != nil {
				slog.Warn("skipping fixture",
					slog.String("rqID", rqID), slog.String("op", op),
					slog.String("match", fixture.Teams.Home.Name+" - "+fixture.Teams.Away.Name),
					slog.String("err", err.Error()))
				continue
			}
			predictions = append(predictions, prediction)
		}
	}

	return predictions, nil
}

func (s *FootballService) predictFixture(ctx context.Context, leagueName string, fixture footballModel.FixtureEntry) (footballModel.Prediction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "FootballService.predictFixture"

	homeForm, err := s.formScore(ctx, fixture.Teams.Home.ID)
	if err != nil {
		return footballModel.Prediction{}, fmt.Errorf("home form: %w", err)
	}
	awayForm, err := s.formScore(ctx, fixture.Teams.Away.ID)
	if err != nil {
		return footballModel.Prediction{}, fmt.Errorf("away form: %w", err)
	}
	h2h, err := s.headToHeadScore(ctx, fixture.Teams.Home.ID, fixture.Teams.Away.ID)
	if err != nil {
		return footballModel.Prediction{}, fmt.Errorf("head to head: %w", err)
	}

	homeScore := formWeight*float64(homeForm) + h2hWeight*float64(h2h)
	awayScore := formWeight * float64(awayForm)

	outcome := footballModel.OutcomeDraw
	switch {
	case homeScore > awayScore+decisionMargin:
		outcome = footballModel.OutcomeHomeWin
	case awayScore > homeScore+decisionMargin:
		outcome = footballModel.OutcomeAwayWin
	}

	prediction := footballModel.Prediction{
		FixtureID: fixture.Fixture.ID,
		League:    leagueName,
		HomeTeam:  fixture.Teams.Home.Name,
		AwayTeam:  fixture.Teams.Away.Name,
		HomeScore: homeScore,
		AwayScore: awayScore,
		Outcome:   outcome,
	}

	odds, err := s.api.MatchWinnerOdds(ctx, fixture.Fixture.ID, s.cfg.API.FootballApi.BookmakerID)
	if err != nil {
		slog.Warn("odds unavailable", slog.String("rqID", rqID), slog.String("op", op),
			slog.Int64("fixtureID", fixture.Fixture.ID), slog.String("err", err.Error()))
	} else {
		prediction.Odds = odds
	}

	return prediction, nil
}

// formScore sums the last finished matches of a team: a win counts 2, a
// draw 1, a loss nothing.
func (s *FootballService) formScore(ctx context.Context, teamID int64) (int, error) {
	fixtures, err := s.api.LastFixtures(ctx, teamID, formMatches)
	if err != nil {
		return 0, err
	}

	score := 0
	for _, f := range fixtures {
		if !isFinished(f) {
			continue
		}
		switch {
		case wonBy(f, teamID):
			score += 2
		case isDraw(f):
			score++
		}
	}
	return score, nil
}

// headToHeadScore scores the past meetings from the home side's point of
// view: home win +2, draw +1, home loss -2.
func (s *FootballService) headToHeadScore(ctx context.Context, homeID, awayID int64) (int, error) {
	fixtures, err := s.api.HeadToHead(ctx, homeID, awayID, h2hMatches)
	if err != nil {
		return 0, err
	}

	score := 0
	for _, f := range fixtures {
		if !isFinished(f) {
			continue
		}
		switch {
		case wonBy(f, homeID):
			score += 2
		case isDraw(f):
			score++
		default:
			score -= 2
		}
	}
	return score, nil
}

func isFinished(f footballModel.FixtureEntry) bool {
	_, ok := finishedStatuses[f.Fixture.Status.Short]
	return ok
}

func wonBy(f footballModel.FixtureEntry, teamID int64) bool {
	if f.Teams.Home.ID == teamID {
		return f.Teams.Home.Winner != nil && *f.Teams.Home.Winner
	}
	if f.Teams.Away.ID == teamID {
		return f.Teams.Away.Winner != nil && *f.Teams.Away.Winner
	}
	return false
}

func isDraw(f footballModel.FixtureEntry) bool {
	return f.Teams.Home.Winner == nil && f.Teams.Away.Winner == nil
}
