// Package feed reads the denormalized ball-by-ball CSV export into source records.
// Columns are addressed by header name, so column order and extra columns do not matter.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pable/crickrecon/internal/model"
)

// Column names, with accepted aliases.
var columns = map[string][]string{
	"match_id":     {"match_id"},
	"season":       {"season"},
	"date":         {"date", "match_date"},
	"team1":        {"team1"},
	"team2":        {"team2"},
	"innings":      {"innings"},
	"team":         {"team", "batting_team"},
	"over":         {"over", "over_number"},
	"ball":         {"ball", "ball_number"},
	"batsman":      {"batsman", "batter", "striker"},
	"non_striker":  {"non_striker"},
	"bowler":       {"bowler"},
	"batsman_runs": {"batsman_runs"},
	"extras":       {"extras", "extra_runs"},
	"total_runs":   {"total_runs"},
	"wides":        {"wides"},
	"noballs":      {"noballs"},
	"byes":         {"byes"},
	"legbyes":      {"legbyes"},
	"wicket":       {"wicket", "is_wicket"},
	"player_out":   {"player_out", "player_dismissed"},
	"kind":         {"kind", "dismissal_kind"},
	"fielders":     {"fielders", "fielder"},
}

var required = []string{"match_id", "team", "over", "ball", "batsman", "bowler"}

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
}

// ReadFile reads every record from the CSV file at path.
func ReadFile(path string) ([]model.RawEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	rows, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Read parses CSV with a header row into source records in file order.
func Read(r io.Reader) ([]model.RawEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := indexHeader(header)
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}

	var out []model.RawEvent
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ev, err := parseRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func indexHeader(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := make(map[string]int, len(columns))
	for name, aliases := range columns {
		for _, a := range aliases {
			if i, ok := pos[a]; ok {
				idx[name] = i
				break
			}
		}
	}
	return idx
}

// fieldReader pulls typed values out of one record, remembering the first error.
type fieldReader struct {
	rec []string
	idx map[string]int
	err error
}

func (f *fieldReader) str(name string) string {
	i, ok := f.idx[name]
	if !ok || i >= len(f.rec) {
		return ""
	}
	v := strings.TrimSpace(f.rec[i])
	if isNA(v) {
		return ""
	}
	return v
}

func (f *fieldReader) num(name string) int {
	v := f.str(name)
	if v == "" || f.err != nil {
		return 0
	}
	n, err := parseInt(v)
	if err != nil {
		f.err = fmt.Errorf("column %s: %w", name, err)
	}
	return int(n)
}

func (f *fieldReader) id(name string) int64 {
	v := f.str(name)
	if v == "" || f.err != nil {
		return 0
	}
	n, err := parseInt(v)
	if err != nil {
		f.err = fmt.Errorf("column %s: %w", name, err)
	}
	return n
}

func parseRecord(rec []string, idx map[string]int) (model.RawEvent, error) {
	f := &fieldReader{rec: rec, idx: idx}
	ev := model.RawEvent{
		MatchID:     f.id("match_id"),
		Season:      f.str("season"),
		Date:        normalizeDate(f.str("date")),
		Team1:       f.str("team1"),
		Team2:       f.str("team2"),
		Innings:     f.num("innings"),
		Team:        f.str("team"),
		Over:        f.num("over"),
		Ball:        f.num("ball"),
		Batsman:     f.str("batsman"),
		NonStriker:  f.str("non_striker"),
		Bowler:      f.str("bowler"),
		BatsmanRuns: f.num("batsman_runs"),
		Extras:      f.num("extras"),
		TotalRuns:   f.num("total_runs"),
		Wides:       f.num("wides"),
		NoBalls:     f.num("noballs"),
		Byes:        f.num("byes"),
		LegByes:     f.num("legbyes"),
		PlayerOut:   f.str("player_out"),
		Kind:        f.str("kind"),
		Fielders:    f.str("fielders"),
	}
	if f.err != nil {
		return model.RawEvent{}, f.err
	}
	ev.IsWicket = truthy(f.str("wicket")) || ev.PlayerOut != ""
	return ev, nil
}

// parseInt accepts plain integers and integral floats ("3.0"), which spreadsheet and
// dataframe exports emit for columns that had missing values.
func parseInt(v string) (int64, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	fl, err := strconv.ParseFloat(v, 64)
	if err != nil || fl != math.Trunc(fl) || math.IsInf(fl, 0) {
		return 0, fmt.Errorf("not an integer: %q", v)
	}
	return int64(fl), nil
}

// truthy reports whether a wicket cell marks a dismissal. Any non-empty value counts
// except explicit false markers.
func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "", "0", "0.0", "false", "no", "n":
		return false
	}
	return true
}

func isNA(v string) bool {
	switch v {
	case "NA", "N/A", "NaN", "nan", "None", "null", "NULL":
		return true
	}
	return false
}

// normalizeDate rewrites recognised date formats to YYYY-MM-DD and passes anything
// else through unchanged.
func normalizeDate(v string) string {
	if v == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return v
}
