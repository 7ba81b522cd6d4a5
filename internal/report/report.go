package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/crickrecon/internal/model"
	"github.com/pable/crickrecon/internal/storage"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// Result renders a match result, e.g. "Mumbai Indians won by 15 runs".
func Result(s model.MatchSummary) string {
	switch {
	case s.WinnerTeamID != nil && s.WinningMargin != nil && s.WinType != nil:
		return fmt.Sprintf("%s won by %d %s", s.WinnerName, *s.WinningMargin, *s.WinType)
	case s.WinnerTeamID != nil:
		return s.WinnerName + " won"
	case s.Events > 0:
		return "tied / no result"
	default:
		return "—"
	}
}

// PrintMatchSummary prints a one-line summary header for the match.
func PrintMatchSummary(w io.Writer, s model.MatchSummary) {
	fmt.Fprintf(w, "\nMatch %d  |  %s vs %s  |  Date: %s  |  Season: %s  |  %s  |  Deliveries: %s\n\n",
		s.ID, s.Team1Name, s.Team2Name, s.Date, s.Season, Result(s), humanize.Comma(int64(s.Events)))
}

// PrintMatchList prints the stored matches, one per row.
func PrintMatchList(w io.Writer, matches []model.MatchSummary) {
	table := newTable(w)
	table.Header("MATCH", "DATE", "SEASON", "TEAM 1", "TEAM 2", "RESULT", "BALLS")
	for _, m := range matches {
		table.Append(
			strconv.FormatInt(m.ID, 10),
			m.Date,
			m.Season,
			m.Team1Name,
			m.Team2Name,
			Result(m),
			humanize.Comma(int64(m.Events)),
		)
	}
	table.Render()
}

// PrintBattingTable prints every player of the match who faced a ball.
func PrintBattingTable(w io.Writer, lines []model.PlayerStatLine) {
	table := newTable(w)
	table.Header("BATTER", "TEAM", "R", "B", "4s", "6s", "SR", " ")
	for _, l := range lines {
		if !l.Batted() {
			continue
		}
		notOut := ""
		if l.IsNotOut {
			notOut = "not out"
		}
		table.Append(
			l.PlayerName,
			l.TeamName,
			strconv.Itoa(l.RunsScored),
			strconv.Itoa(l.BallsFaced),
			strconv.Itoa(l.Fours),
			strconv.Itoa(l.Sixes),
			fmt.Sprintf("%.2f", l.StrikeRate),
			notOut,
		)
	}
	table.Render()
}

// PrintBowlingTable prints every player of the match who bowled.
func PrintBowlingTable(w io.Writer, lines []model.PlayerStatLine) {
	table := newTable(w)
	table.Header("BOWLER", "TEAM", "O", "R", "W", "ECON")
	for _, l := range lines {
		if !l.Bowled() {
			continue
		}
		table.Append(
			l.PlayerName,
			l.TeamName,
			fmt.Sprintf("%.1f", l.OversBowled),
			strconv.Itoa(l.RunsConceded),
			strconv.Itoa(l.WicketsTaken),
			fmt.Sprintf("%.2f", l.EconomyRate),
		)
	}
	table.Render()
}

// PrintQueryResult prints raw query output as a table followed by the row count.
func PrintQueryResult(w io.Writer, cols []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}
	table := newTable(w)
	colsAny := make([]any, len(cols))
	for i, c := range cols {
		colsAny[i] = c
	}
	table.Header(colsAny...)
	for _, row := range rows {
		rowAny := make([]any, len(row))
		for i, v := range row {
			rowAny[i] = v
		}
		table.Append(rowAny...)
	}
	table.Render()
	fmt.Fprintf(w, "\n(%s rows)\n", humanize.Comma(int64(len(rows))))
}

// PrintOverview prints table counts and coverage.
func PrintOverview(w io.Writer, ov storage.Overview) {
	fmt.Fprintf(w, "\n=== Database Summary ===\n\n")
	fmt.Fprintf(w, "  Teams          : %s\n", humanize.Comma(int64(ov.Teams)))
	fmt.Fprintf(w, "  Players        : %s (%s with a team)\n",
		humanize.Comma(int64(ov.Players)), humanize.Comma(int64(ov.PlayersWithTeams)))
	fmt.Fprintf(w, "  Matches        : %s (%s with a winner)\n",
		humanize.Comma(int64(ov.Matches)), humanize.Comma(int64(ov.MatchesWithWins)))
	fmt.Fprintf(w, "  Deliveries     : %s\n", humanize.Comma(int64(ov.Events)))
	fmt.Fprintf(w, "  Player stats   : %s\n", humanize.Comma(int64(ov.PlayerStats)))
	if ov.FirstMatch != "" {
		fmt.Fprintf(w, "  Date range     : %s → %s\n", ov.FirstMatch, ov.LastMatch)
	}
	fmt.Fprintf(w, "  Seasons        : %d\n", ov.Seasons)
}

// PrintQuality prints data-quality counters; non-zero problem counts are highlighted.
func PrintQuality(w io.Writer, q storage.Quality) {
	fmt.Fprintf(w, "\n--- Data Quality ---\n\n")
	table := newTable(w)
	table.Header("CHECK", "COUNT", "STATUS")
	for _, c := range []struct {
		name string
		n    int
	}{
		{"orphaned deliveries", q.OrphanedEvents},
		{"deliveries without non-striker", q.EventsMissingNonStriker},
		{"wickets without dismissed player", q.WicketsMissingPlayerOut},
		{"active players without team", q.UnassignedActivePlayers},
		{"matches without deliveries", q.MatchesWithoutEvents},
	} {
		table.Append(c.name, humanize.Comma(int64(c.n)), checkStatus(c.n))
	}
	table.Render()
}

// PrintPlayersByTeam prints how many active players each team has.
func PrintPlayersByTeam(w io.Writer, teams []storage.TeamPlayerCount) {
	fmt.Fprintf(w, "\n--- Players by Team ---\n\n")
	table := newTable(w)
	table.Header("TEAM", "PLAYERS")
	for _, t := range teams {
		table.Append(t.TeamName, strconv.Itoa(t.Players))
	}
	table.Render()
}

// PrintTopScorers prints the all-time leading run scorers.
func PrintTopScorers(w io.Writer, scorers []storage.RunScorer) {
	fmt.Fprintf(w, "\n--- Top Run Scorers ---\n\n")
	table := newTable(w)
	table.Header("#", "PLAYER", "RUNS", "BALLS", "SR")
	for i, s := range scorers {
		sr := "—"
		if s.Balls > 0 {
			sr = fmt.Sprintf("%.2f", float64(s.Runs)*100/float64(s.Balls))
		}
		table.Append(
			strconv.Itoa(i+1),
			s.PlayerName,
			humanize.Comma(int64(s.Runs)),
			humanize.Comma(int64(s.Balls)),
			sr,
		)
	}
	table.Render()
}
