package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/crickrecon/internal/feed"
	"github.com/pable/crickrecon/internal/model"
)

func ball(matchID int64, team string, n int) model.RawEvent {
	return model.RawEvent{MatchID: matchID, Team: team, Ball: n, Batsman: "b", Bowler: "w"}
}

func registered(ids ...int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestApply_DropsSingleTeamMatch(t *testing.T) {
	rows := []model.RawEvent{
		ball(1, "MI", 1), ball(1, "CSK", 2),
		ball(2, "RR", 1), ball(2, "RR", 2), ball(2, "RR", 3),
	}
	kept, rep := Apply(rows, registered(1, 2))

	require.Len(t, kept, 2)
	assert.Equal(t, []int64{2}, rep.IncompleteMatches)
	assert.Equal(t, 3, rep.IncompleteRows)
	assert.Equal(t, 0, rep.UnregisteredRows)
	assert.Equal(t, 5, rep.InputRows)
	assert.Equal(t, 2, rep.KeptRows)
	for _, r := range kept {
		assert.Equal(t, int64(1), r.MatchID)
	}
}

func TestApply_DropsUnregisteredMatch(t *testing.T) {
	rows := []model.RawEvent{
		ball(1, "MI", 1), ball(1, "CSK", 2),
		ball(3, "KKR", 1), ball(3, "SRH", 2),
	}
	kept, rep := Apply(rows, registered(1))

	require.Len(t, kept, 2)
	assert.Equal(t, 2, rep.UnregisteredRows)
	assert.Equal(t, []int64{3}, rep.UnregisteredIDs)
	assert.Empty(t, rep.IncompleteMatches)
}

func TestApply_IncompleteTakesPrecedenceOverUnregistered(t *testing.T) {
	rows := []model.RawEvent{ball(4, "MI", 1), ball(4, "MI", 2)}
	kept, rep := Apply(rows, registered())

	assert.Empty(t, kept)
	assert.Equal(t, 2, rep.IncompleteRows)
	assert.Equal(t, 0, rep.UnregisteredRows)
}

func TestApply_BlankTeamIsNotATeam(t *testing.T) {
	rows := []model.RawEvent{
		ball(7, "MI", 1), ball(7, "MI", 2), ball(7, "", 3),
		ball(8, "", 1), ball(8, "", 2),
	}
	kept, rep := Apply(rows, registered(7, 8))

	assert.Empty(t, kept)
	assert.Equal(t, []int64{7, 8}, rep.IncompleteMatches)
	assert.Equal(t, 5, rep.IncompleteRows)
	assert.Empty(t, Fixtures(rows))
}

func TestApply_NATeamFromFeed(t *testing.T) {
	in := "match_id,team,over,ball,batsman,bowler\n" +
		"7,MI,0,1,x,y\n7,MI,0,2,x,y\n7,NA,0,3,x,y\n"
	rows, err := feed.Read(strings.NewReader(in))
	require.NoError(t, err)

	kept, rep := Apply(rows, registered(7))
	assert.Empty(t, kept)
	assert.Equal(t, []int64{7}, rep.IncompleteMatches)
}

func TestApply_PreservesOrder(t *testing.T) {
	rows := []model.RawEvent{
		ball(1, "MI", 3), ball(2, "RR", 9), ball(1, "CSK", 1), ball(2, "GT", 7), ball(1, "MI", 2),
	}
	kept, _ := Apply(rows, registered(1, 2))

	require.Len(t, kept, 5)
	var balls []int
	for _, r := range kept {
		balls = append(balls, r.Ball)
	}
	assert.Equal(t, []int{3, 9, 1, 7, 2}, balls)
}

func TestApply_NoSideEffectsOnInput(t *testing.T) {
	rows := []model.RawEvent{ball(1, "MI", 1), ball(2, "RR", 1)}
	Apply(rows, registered(1))
	assert.Equal(t, int64(1), rows[0].MatchID)
	assert.Equal(t, int64(2), rows[1].MatchID)
}

func TestFixtures(t *testing.T) {
	rows := []model.RawEvent{
		ball(7, "MI", 1), ball(5, "RR", 1), ball(7, "CSK", 2), ball(5, "RR", 2), ball(7, "MI", 3),
	}
	got := Fixtures(rows)
	require.Len(t, got, 1)
	assert.Equal(t, Fixture{MatchID: 7, Team1: "MI", Team2: "CSK"}, got[0])
}

func TestFixtures_PrefersDeclaredPairing(t *testing.T) {
	first := ball(9, "CSK", 1)
	first.Team1, first.Team2, first.Season, first.Date = "MI", "CSK", "2019", "2019-05-12"
	got := Fixtures([]model.RawEvent{first, ball(9, "MI", 2)})
	require.Len(t, got, 1)
	assert.Equal(t, Fixture{MatchID: 9, Season: "2019", Date: "2019-05-12", Team1: "MI", Team2: "CSK"}, got[0])
}
