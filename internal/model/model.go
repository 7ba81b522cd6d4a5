package model

// ---- Reference entities ----

// Team is a franchise, looked up by its full name.
type Team struct {
	ID        int64
	Name      string
	ShortCode string
}

// Player is a registered player. TeamID is nil until affiliation inference assigns one.
type Player struct {
	ID     int64
	Name   string
	TeamID *int64
	Active bool
}

// Match is a registered fixture. The winner fields are derived from the event log.
type Match struct {
	ID            int64
	Team1ID       int64
	Team2ID       int64
	Date          string // "YYYY-MM-DD"
	Season        string
	WinnerTeamID  *int64
	WinningMargin *int
	WinType       *string
}

// Opponent returns the other participant of the match, or 0 if teamID did not play in it.
func (m *Match) Opponent(teamID int64) int64 {
	switch teamID {
	case m.Team1ID:
		return m.Team2ID
	case m.Team2ID:
		return m.Team1ID
	default:
		return 0
	}
}

// TeamAssignment is an inferred player→team affiliation, ready to be persisted.
type TeamAssignment struct {
	PlayerName string
	TeamID     int64
}

// ---- Source records ----

// RawEvent is one delivery as it appears in the source feed: names, not ids.
type RawEvent struct {
	MatchID int64
	Season  string
	Date    string
	Team1   string // the match's two participants
	Team2   string
	Innings int
	Team    string // batting side for this delivery
	Over    int
	Ball    int

	Batsman    string
	NonStriker string
	Bowler     string

	BatsmanRuns int
	Extras      int
	TotalRuns   int
	Wides       int
	NoBalls     int
	Byes        int
	LegByes     int

	IsWicket  bool
	PlayerOut string // "" if none
	Kind      string // dismissal kind, "" if none
	Fielders  string
}

// ---- Fact rows ----

// Event is a resolved delivery, ready to be persisted.
type Event struct {
	MatchID      int64
	Innings      int
	TeamID       int64
	Over         int
	Ball         int
	BatsmanID    int64
	NonStrikerID *int64
	BowlerID     int64

	BatsmanRuns int
	Extras      int
	TotalRuns   int
	Wides       int
	NoBalls     int
	Byes        int
	LegByes     int

	IsWicket      bool
	PlayerOutID   *int64
	DismissalKind *string
	Fielders      *string
}

// Key returns the composite identity of the event.
func (e *Event) Key() EventKey {
	return EventKey{
		MatchID:   e.MatchID,
		Innings:   e.Innings,
		Over:      e.Over,
		Ball:      e.Ball,
		BatsmanID: e.BatsmanID,
		BowlerID:  e.BowlerID,
	}
}

// EventKey is the tuple that uniquely identifies a stored event.
type EventKey struct {
	MatchID   int64
	Innings   int
	Over      int
	Ball      int
	BatsmanID int64
	BowlerID  int64
}

// ---- Derived metrics ----

// PlayerMatchStat holds one player's batting and bowling figures for one match.
type PlayerMatchStat struct {
	MatchID  int64
	PlayerID int64
	TeamID   int64

	// Batting
	RunsScored int
	BallsFaced int
	Fours      int
	Sixes      int
	StrikeRate float64
	IsNotOut   bool

	// Bowling
	OversBowled  float64
	RunsConceded int
	WicketsTaken int
	EconomyRate  float64
}

// Batted reports whether the row carries a batting record.
func (s *PlayerMatchStat) Batted() bool {
	return s.BallsFaced > 0
}

// Bowled reports whether the row carries a bowling record.
func (s *PlayerMatchStat) Bowled() bool {
	return s.OversBowled > 0 || s.RunsConceded > 0 || s.WicketsTaken > 0
}

// TeamTotal is the summed runs of one team across all innings of a match.
type TeamTotal struct {
	MatchID int64
	TeamID  int64
	Runs    int
}

// MatchOutcome is a derived result written back to the matches table.
// A nil WinnerTeamID clears the winner fields (tie).
type MatchOutcome struct {
	MatchID       int64
	WinnerTeamID  *int64
	WinningMargin *int
	WinType       *string
}

// ---- Read-side summaries ----

// MatchSummary is a lightweight record for list/show commands.
type MatchSummary struct {
	Match
	Team1Name  string
	Team2Name  string
	WinnerName string
	Events     int
}

// PlayerStatLine is a stat row joined with player and team names for display.
type PlayerStatLine struct {
	PlayerMatchStat
	PlayerName string
	TeamName   string
}
