package footballModel

// Raw shapes mirror the api-football v3 responses, trimmed to the fields
// the prediction engine reads.

type RawFixtures struct {
	Response []FixtureEntry `json:"response"`
}

type FixtureEntry struct {
	Fixture Fixture `json:"fixture"`
	Teams   Teams   `json:"teams"`
}

type Fixture struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"`
	Status Status `json:"status"`
}

type Status struct {
	Short string `json:"short"`
}

type Teams struct {
	Home Team `json:"home"`
	Away Team `json:"away"`
}

type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Winner is true for the winning side, false for the losing one and
	// null on draws and unplayed fixtures.
	Winner *bool `json:"winner"`
}

type RawOdds struct {
	Response []OddsEntry `json:"response"`
}

type OddsEntry struct {
	Bookmakers []Bookmaker `json:"bookmakers"`
}

type Bookmaker struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Bets []Bet  `json:"bets"`
}

type Bet struct {
	Name   string     `json:"name"`
	Values []BetValue `json:"values"`
}

type BetValue struct {
	Value string `json:"value"`
	Odd   string `json:"odd"`
}

type Outcome int

const (
	OutcomeDraw Outcome = iota
	OutcomeHomeWin
	OutcomeAwayWin
)

// MatchOdds holds the bookmaker's Match Winner odds as quoted strings.
// Empty fields mean the bookmaker had no quote for that side.
type MatchOdds struct {
	Home string
	Draw string
	Away string
}

type Prediction struct {
	FixtureID int64
	League    string
	HomeTeam  string
	AwayTeam  string
	HomeScore float64
	AwayScore float64
	Outcome   Outcome
	Odds      *MatchOdds
}
