// internal/models/game.go
package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CopySuffix is appended to the name of a duplicated game.
const CopySuffix = " (копия)"

// Game is one scheduled quiz event with its checklist and team roster.
type Game struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Venue  string    `json:"venue"`
	Date   string    `json:"date"` // ISO date (YYYY-MM-DD), empty when unscheduled
	Time   string    `json:"time"`
	Status Status    `json:"status"`

	// Tasks keeps checklist order; it is never reordered.
	Tasks []Task `json:"tasks"`
	// Teams is ordered by registration; Number is dense 1..N.
	Teams []Team `json:"teams"`

	CreatedAt time.Time `json:"createdAt"`
}

// Task is a single checklist item on a game.
type Task struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
}

// Team is a participant group registered for one game.
type Team struct {
	ID                 uuid.UUID  `json:"id"`
	Number             int        `json:"number"`
	Name               string     `json:"name"`
	MemberCount        int        `json:"memberCount"`
	CaptainSocialLink  string     `json:"captainSocialLink,omitempty"`
	CaptainName        string     `json:"captainName,omitempty"`
	RegisteredAt       *time.Time `json:"registeredAt,omitempty"`
	RegistrationSource string     `json:"registrationSource,omitempty"`
}

// Team member count bounds, inclusive.
const (
	MinMembers = 1
	MaxMembers = 20
)

// GameFields holds the user-editable fields of a game.
type GameFields struct {
	Name   string `json:"name"`
	Venue  string `json:"venue"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Status Status `json:"status"`
}

// GamePatch is a partial update. Nil fields are left untouched, so Tasks and
// Teams are only written when explicitly included.
type GamePatch struct {
	Name   *string `json:"name,omitempty"`
	Venue  *string `json:"venue,omitempty"`
	Date   *string `json:"date,omitempty"`
	Time   *string `json:"time,omitempty"`
	Status *Status `json:"status,omitempty"`
	Tasks  *[]Task `json:"tasks,omitempty"`
	Teams  *[]Team `json:"teams,omitempty"`
}

// PatchFromFields builds a patch that overwrites every user-editable field.
func PatchFromFields(f GameFields) GamePatch {
	return GamePatch{
		Name:   &f.Name,
		Venue:  &f.Venue,
		Date:   &f.Date,
		Time:   &f.Time,
		Status: &f.Status,
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p GamePatch) IsEmpty() bool {
	return p.Name == nil && p.Venue == nil && p.Date == nil && p.Time == nil &&
		p.Status == nil && p.Tasks == nil && p.Teams == nil
}

// Apply merges the patch into g.
func (p GamePatch) Apply(g *Game) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Venue != nil {
		g.Venue = *p.Venue
	}
	if p.Date != nil {
		g.Date = *p.Date
	}
	if p.Time != nil {
		g.Time = *p.Time
	}
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.Tasks != nil {
		g.Tasks = CloneTasks(*p.Tasks)
	}
	if p.Teams != nil {
		g.Teams = CloneTeams(*p.Teams)
	}
	g.Normalize()
}

// Normalize replaces absent sequences with empty ones.
func (g *Game) Normalize() {
	if g.Tasks == nil {
		g.Tasks = []Task{}
	}
	if g.Teams == nil {
		g.Teams = []Team{}
	}
}

// Clone returns a deep copy of g.
func (g Game) Clone() Game {
	out := g
	out.Tasks = CloneTasks(g.Tasks)
	out.Teams = CloneTeams(g.Teams)
	return out
}

// CompletedTasks counts tasks marked done.
func (g Game) CompletedTasks() int {
	n := 0
	for _, t := range g.Tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

// Participants sums member counts across all teams.
func (g Game) Participants() int {
	n := 0
	for _, t := range g.Teams {
		n += t.MemberCount
	}
	return n
}

// HasTeamName reports whether a team with the given name (case-insensitive,
// trimmed) is already registered. A non-nil except id is skipped, which lets
// an edited team keep its own name.
func (g Game) HasTeamName(name string, except uuid.UUID) bool {
	name = strings.TrimSpace(name)
	for _, t := range g.Teams {
		if except != uuid.Nil && t.ID == except {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(t.Name), name) {
			return true
		}
	}
	return false
}

// FindTask returns the index of the task with the given id or -1.
func (g Game) FindTask(id uuid.UUID) int {
	for i, t := range g.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// FindTeam returns the index of the team with the given id or -1.
func (g Game) FindTeam(id uuid.UUID) int {
	for i, t := range g.Teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// NewTaskID returns a fresh task id.
func NewTaskID() uuid.UUID { return uuid.New() }

// NewTeamID returns a fresh team id.
func NewTeamID() uuid.UUID { return uuid.New() }

// CloneTasks copies a task slice, never returning nil.
func CloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	copy(out, in)
	return out
}

// CloneTeams copies a team slice, never returning nil.
func CloneTeams(in []Team) []Team {
	out := make([]Team, len(in))
	copy(out, in)
	for i := range out {
		if in[i].RegisteredAt != nil {
			ts := *in[i].RegisteredAt
			out[i].RegisteredAt = &ts
		}
	}
	return out
}

// RenumberTeams assigns dense 1..N numbers in the existing order.
func RenumberTeams(teams []Team) []Team {
	out := CloneTeams(teams)
	for i := range out {
		out[i].Number = i + 1
	}
	return out
}

// TasksFromTemplate expands template names into a fresh, incomplete checklist.
func TasksFromTemplate(names []string) []Task {
	tasks := make([]Task, 0, len(names))
	for _, n := range names {
		tasks = append(tasks, Task{ID: NewTaskID(), Name: n})
	}
	return tasks
}

// ResetTasks clones tasks with fresh ids and completed=false.
func ResetTasks(in []Task) []Task {
	out := make([]Task, 0, len(in))
	for _, t := range in {
		out = append(out, Task{ID: NewTaskID(), Name: t.Name})
	}
	return out
}

// UnmarshalJSON decodes a game document, defaulting absent sequences to empty.
func (g *Game) UnmarshalJSON(data []byte) error {
	type alias Game
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*g = Game(a)
	g.Normalize()
	return nil
}
