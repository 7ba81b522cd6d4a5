package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/pable/crickrecon/internal/affiliation"
	"github.com/pable/crickrecon/internal/aggregator"
	"github.com/pable/crickrecon/internal/outcome"
	"github.com/pable/crickrecon/internal/pipeline"
	"github.com/pable/crickrecon/internal/storage"
)

var (
	cOK      = color.New(color.FgGreen, color.Bold)
	cFailed  = color.New(color.FgRed, color.Bold)
	cWarn    = color.New(color.FgYellow)
	cHeading = color.New(color.FgCyan, color.Bold)
)

func status(err error) string {
	if err != nil {
		return cFailed.Sprint("failed")
	}
	return cOK.Sprint("ok")
}

func checkStatus(n int) string {
	if n > 0 {
		return cWarn.Sprint("check")
	}
	return cOK.Sprint("ok")
}

func count(n int) string { return humanize.Comma(int64(n)) }

// signed renders a row-count delta with an explicit sign.
func signed(n int) string {
	if n > 0 {
		return "+" + count(n)
	}
	return count(n)
}

// PrintStageTable prints one row per executed stage.
func PrintStageTable(w io.Writer, runID string, stages []pipeline.StageResult) {
	cHeading.Fprintf(w, "\n--- Run %s ---\n\n", runID)
	table := newTable(w)
	table.Header("STAGE", "TABLE", "BEFORE", "AFTER", "Δ ROWS", "CHANGED", "TIME", "STATUS")
	for _, s := range stages {
		table.Append(
			s.Stage,
			s.Table,
			count(s.Before),
			count(s.After),
			signed(s.After-s.Before),
			count(s.Changed),
			s.Elapsed.Round(time.Millisecond).String(),
			status(s.Err),
		)
	}
	table.Render()
	for _, s := range stages {
		if s.Err != nil {
			cFailed.Fprintf(w, "  %s: %v\n", s.Stage, s.Err)
		}
	}
}

// PrintSeed prints what the seed stage registered.
func PrintSeed(w io.Writer, rep pipeline.SeedReport) {
	cHeading.Fprintf(w, "\n--- Reference data ---\n\n")
	fmt.Fprintf(w, "  Fixtures in feed : %s\n", count(rep.Fixtures))
	fmt.Fprintf(w, "  New teams        : %s\n", count(rep.Teams))
	fmt.Fprintf(w, "  New players      : %s\n", count(rep.Players))
	fmt.Fprintf(w, "  New matches      : %s\n", count(rep.Matches))
}

// PrintLoad prints the filter, resolver and loader counters.
func PrintLoad(w io.Writer, res pipeline.LoadResult) {
	f, r, l := res.Filter, res.Resolve, res.Load
	cHeading.Fprintf(w, "\n--- Load ---\n\n")
	fmt.Fprintf(w, "  Source rows           : %s\n", count(f.InputRows))
	fmt.Fprintf(w, "  Incomplete matches    : %s (%s rows)\n", count(len(f.IncompleteMatches)), count(f.IncompleteRows))
	fmt.Fprintf(w, "  Unregistered matches  : %s (%s rows)\n", count(len(f.UnregisteredIDs)), count(f.UnregisteredRows))
	fmt.Fprintf(w, "  Unresolved names      : %s rows\n", count(r.Dropped))
	fmt.Fprintf(w, "  Already stored        : %s\n", count(l.AlreadyPresent))
	fmt.Fprintf(w, "  Repeated in source    : %s\n", count(l.DuplicateInInput))
	fmt.Fprintf(w, "  Appended              : %s in %s batches\n", count(l.Appended), count(l.Batches))
}

// PrintAffiliation prints the affiliation counters.
func PrintAffiliation(w io.Writer, rep affiliation.Report) {
	cHeading.Fprintf(w, "\n--- Affiliation ---\n\n")
	fmt.Fprintf(w, "  Players observed : %s\n", count(rep.PlayersObserved))
	fmt.Fprintf(w, "  Conflicts        : %s\n", count(rep.Conflicts))
	fmt.Fprintf(w, "  Updated          : %s\n", count(rep.Updated))
	fmt.Fprintf(w, "  Unchanged        : %s\n", count(rep.Unchanged))
	if rep.UnresolvedTeams > 0 || rep.UnknownPlayers > 0 {
		cWarn.Fprintf(w, "  Skipped          : %s unknown teams, %s unknown players\n",
			count(rep.UnresolvedTeams), count(rep.UnknownPlayers))
	}
}

// PrintOutcome prints the outcome derivation counters.
func PrintOutcome(w io.Writer, rep outcome.Report) {
	cHeading.Fprintf(w, "\n--- Outcomes ---\n\n")
	fmt.Fprintf(w, "  Matches  : %s\n", count(rep.MatchesConsidered))
	fmt.Fprintf(w, "  Decided  : %s\n", count(rep.Decided))
	fmt.Fprintf(w, "  Tied     : %s\n", count(rep.Tied))
	fmt.Fprintf(w, "  Skipped  : %s (no runs)\n", count(rep.Skipped))
	fmt.Fprintf(w, "  Changed  : %s\n", count(rep.Changed))
}

// PrintStats prints the stat aggregation counters.
func PrintStats(w io.Writer, rep aggregator.Report) {
	cHeading.Fprintf(w, "\n--- Player stats ---\n\n")
	fmt.Fprintf(w, "  Deliveries    : %s\n", count(rep.Events))
	fmt.Fprintf(w, "  Rows          : %s (replaced %s)\n", count(rep.Rows), count(rep.Replaced))
	fmt.Fprintf(w, "  Batting       : %s\n", count(rep.BattingRows))
	fmt.Fprintf(w, "  Bowling       : %s (%s bowling only)\n", count(rep.BowlingRows), count(rep.BowlingOnlyRows))
}

// PrintRunSummary prints every stage report of a full run followed by the stage table.
func PrintRunSummary(w io.Writer, res *pipeline.RunResult) {
	PrintAffiliation(w, res.Affiliation)
	PrintLoad(w, res.Load)
	PrintOutcome(w, res.Outcome)
	PrintStats(w, res.Stats)
	PrintStageTable(w, res.RunID, res.Stages)
}

// PrintRecentRuns prints the audited stages of recent runs, newest first.
func PrintRecentRuns(w io.Writer, runs []storage.StageRun) {
	cHeading.Fprintf(w, "\n--- Recent runs ---\n\n")
	if len(runs) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	table := newTable(w)
	table.Header("RUN", "STAGE", "FINISHED", "BEFORE", "AFTER", "CHANGED", "STATUS")
	for _, r := range runs {
		runID := r.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		table.Append(
			runID,
			r.Stage,
			humanize.Time(r.FinishedAt),
			count(r.BeforeCount),
			count(r.AfterCount),
			count(r.Changed),
			status(r.Err),
		)
	}
	table.Render()
}
