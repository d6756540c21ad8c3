package view

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tasks(done, total int) []models.Task {
	out := make([]models.Task, total)
	for i := range out {
		out[i] = models.Task{ID: uuid.New(), Name: "t", Completed: i < done}
	}
	return out
}

func game(name, venue string, status models.Status, t []models.Task) models.Game {
	g := models.Game{ID: uuid.New(), Name: name, Venue: venue, Status: status, Tasks: t}
	g.Normalize()
	return g
}

func TestProgressRounding(t *testing.T) {
	cases := []struct {
		done, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13}, // 12.5 rounds up
		{3, 3, 100},
	}
	for _, c := range cases {
		g := game("g", "", models.StatusPlanned, tasks(c.done, c.total))
		assert.Equal(t, c.want, Progress(g), "%d/%d", c.done, c.total)
	}
}

func TestComputeCountersAndUpcoming(t *testing.T) {
	games := []models.Game{
		game("A", "", models.StatusPlanned, tasks(1, 2)),
		game("B", "", models.StatusCompleted, tasks(2, 2)),
		game("C", "", models.StatusInProgress, nil),
		game("D", "", models.StatusPlanned, tasks(0, 1)),
		game("E", "", models.StatusPlanned, nil),
	}

	v := Compute(Input{Games: games})

	assert.Equal(t, Counters{TotalGames: 5, ActiveGames: 4, CompletedTasks: 3}, v.Counters)
	require.Len(t, v.Upcoming, 3)
	assert.Equal(t, "A", v.Upcoming[0].Game.Name)
	assert.Equal(t, "C", v.Upcoming[1].Game.Name)
	assert.Equal(t, "D", v.Upcoming[2].Game.Name)
	assert.Equal(t, Stats{Completed: 1, Planned: 3, InProgress: 1, OverallProgress: 60}, v.Stats)
	assert.Len(t, v.Table.Rows, 5)
	assert.False(t, v.Table.Empty)
}

func TestTableFilterAndSearch(t *testing.T) {
	games := []models.Game{
		game("Big Quiz Night", "Bar", models.StatusPlanned, nil),
		game("quiz cup", "Club", models.StatusCompleted, nil),
		game("Trivia", "Quizland", models.StatusPlanned, nil),
		game("Other", "Hall", models.StatusPlanned, nil),
	}

	v := Compute(Input{Games: games, StatusFilter: models.StatusPlanned, Search: "QUIZ"})
	require.Len(t, v.Table.Rows, 2)
	assert.Equal(t, "Big Quiz Night", v.Table.Rows[0].Game.Name)
	assert.Equal(t, "Trivia", v.Table.Rows[1].Game.Name)
	assert.Equal(t, "Планируется", v.Table.Rows[0].StatusLabel)

	v = Compute(Input{Games: games, StatusFilter: models.StatusInProgress, Search: "quiz"})
	assert.True(t, v.Table.Empty)
	assert.NotNil(t, v.Table.Rows)
}

func TestEmptyMirror(t *testing.T) {
	v := Compute(Input{})
	assert.True(t, v.Table.Empty)
	assert.Empty(t, v.Upcoming)
	assert.Equal(t, 0, v.Stats.OverallProgress)
}

func TestSubViews(t *testing.T) {
	g := game("A", "", models.StatusPlanned, tasks(1, 3))
	g.Teams = []models.Team{
		{ID: uuid.New(), Number: 1, Name: "Альфа", MemberCount: 4},
		{ID: uuid.New(), Number: 2, Name: "Бета", MemberCount: 6},
	}

	tl := Tasks(g)
	assert.Equal(t, 33, tl.Progress)
	assert.Equal(t, 1, tl.Completed)
	assert.False(t, tl.Empty)

	teams := Teams(g)
	assert.Equal(t, 2, teams.TotalTeams)
	assert.Equal(t, 10, teams.Participants)

	assert.True(t, Teams(game("B", "", models.StatusPlanned, nil)).Empty)
}

func TestSynchronizerRecomputesOnEveryTrigger(t *testing.T) {
	var views []View
	s := NewSynchronizer(nil, []string{"a"}, func(v View) { views = append(views, v) })

	s.SetGames([]models.Game{game("Quiz", "", models.StatusPlanned, nil)})
	s.SetTemplate([]string{"a", "b"})
	s.SetFilter(models.StatusCompleted, "")

	require.Len(t, views, 4)
	assert.Equal(t, 0, views[0].Counters.TotalGames)
	assert.Equal(t, 1, views[1].Counters.TotalGames)
	assert.Equal(t, []string{"a", "b"}, views[2].Template)
	assert.True(t, views[3].Table.Empty)
	assert.Equal(t, views[3], s.Current())
}
