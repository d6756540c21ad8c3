// internal/view/view.go
package view

import (
	"math"
	"strings"

	"github.com/jason-s-yu/quizdesk/internal/models"
)

// UpcomingLimit caps the upcoming games panel.
const UpcomingLimit = 3

// Input is everything a dashboard view is derived from.
type Input struct {
	Games        []models.Game
	Template     []string
	StatusFilter models.Status // empty means all statuses
	Search       string
}

// Counters are the headline numbers on the dashboard.
type Counters struct {
	TotalGames     int `json:"totalGames"`
	ActiveGames    int `json:"activeGames"`
	CompletedTasks int `json:"completedTasks"`
}

// Row is one line of the games table.
type Row struct {
	Game         models.Game `json:"game"`
	StatusLabel  string      `json:"statusLabel"`
	Progress     int         `json:"progress"`
	TeamCount    int         `json:"teamCount"`
	Participants int         `json:"participants"`
}

// Table is the filtered games table. Empty is set when nothing matched, so
// the client shows an explicit empty state instead of a bare table.
type Table struct {
	Rows  []Row `json:"rows"`
	Empty bool  `json:"empty"`
}

// Stats aggregates games by status.
type Stats struct {
	Completed       int `json:"completed"`
	Planned         int `json:"planned"`
	InProgress      int `json:"inProgress"`
	OverallProgress int `json:"overallProgress"`
}

// View is the full derived dashboard.
type View struct {
	Counters Counters `json:"counters"`
	Upcoming []Row    `json:"upcoming"`
	Table    Table    `json:"table"`
	Stats    Stats    `json:"stats"`
	Template []string `json:"template"`
}

// TaskList is the checklist sub-view of one game.
type TaskList struct {
	GameID    string        `json:"gameId"`
	GameName  string        `json:"gameName"`
	Tasks     []models.Task `json:"tasks"`
	Completed int           `json:"completed"`
	Progress  int           `json:"progress"`
	Empty     bool          `json:"empty"`
}

// TeamList is the roster sub-view of one game.
type TeamList struct {
	GameID       string        `json:"gameId"`
	GameName     string        `json:"gameName"`
	Teams        []models.Team `json:"teams"`
	TotalTeams   int           `json:"totalTeams"`
	Participants int           `json:"participants"`
	Empty        bool          `json:"empty"`
}

// Percent returns round(100*part/whole) with halves rounded up, or 0 when
// whole is zero.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Floor(100*float64(part)/float64(whole) + 0.5))
}

// Progress is the share of completed tasks of g, in percent.
func Progress(g models.Game) int {
	return Percent(g.CompletedTasks(), len(g.Tasks))
}

func row(g models.Game) Row {
	return Row{
		Game:         g.Clone(),
		StatusLabel:  g.Status.Label(),
		Progress:     Progress(g),
		TeamCount:    len(g.Teams),
		Participants: g.Participants(),
	}
}

// Matches reports whether g passes the status filter and the search text.
// Search is a case-insensitive substring of name or venue.
func Matches(g models.Game, status models.Status, search string) bool {
	if status != "" && g.Status != status {
		return false
	}
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(g.Name), search) ||
		strings.Contains(strings.ToLower(g.Venue), search)
}

// Compute derives the dashboard from scratch. Games are taken in mirror
// order and never re-sorted.
func Compute(in Input) View {
	v := View{
		Upcoming: []Row{},
		Table:    Table{Rows: []Row{}},
		Template: append([]string{}, in.Template...),
	}

	totalTasks := 0
	for _, g := range in.Games {
		v.Counters.TotalGames++
		v.Counters.CompletedTasks += g.CompletedTasks()
		totalTasks += len(g.Tasks)

		switch g.Status {
		case models.StatusCompleted:
			v.Stats.Completed++
		case models.StatusPlanned:
			v.Stats.Planned++
		case models.StatusInProgress:
			v.Stats.InProgress++
		}

		if g.Status != models.StatusCompleted {
			v.Counters.ActiveGames++
			if len(v.Upcoming) < UpcomingLimit {
				v.Upcoming = append(v.Upcoming, row(g))
			}
		}

		if Matches(g, in.StatusFilter, in.Search) {
			v.Table.Rows = append(v.Table.Rows, row(g))
		}
	}
	v.Table.Empty = len(v.Table.Rows) == 0
	v.Stats.OverallProgress = Percent(v.Counters.CompletedTasks, totalTasks)
	return v
}

// Tasks builds the checklist sub-view of g.
func Tasks(g models.Game) TaskList {
	return TaskList{
		GameID:    g.ID.String(),
		GameName:  g.Name,
		Tasks:     models.CloneTasks(g.Tasks),
		Completed: g.CompletedTasks(),
		Progress:  Progress(g),
		Empty:     len(g.Tasks) == 0,
	}
}

// Teams builds the roster sub-view of g.
func Teams(g models.Game) TeamList {
	return TeamList{
		GameID:       g.ID.String(),
		GameName:     g.Name,
		Teams:        models.CloneTeams(g.Teams),
		TotalTeams:   len(g.Teams),
		Participants: g.Participants(),
		Empty:        len(g.Teams) == 0,
	}
}
