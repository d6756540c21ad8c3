// internal/dashboard/session.go
package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/gateway"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/view"
)

// Source is the read side a session renders from.
type Source interface {
	Games() []models.Game
	Get(id uuid.UUID) (models.Game, bool)
	Version() uint64
}

// TemplateSource yields the current template task names.
type TemplateSource interface {
	Names() []string
}

// Writer is the subset of the mutation gateway a session dispatches to.
type Writer interface {
	CreateGame(ctx context.Context, f models.GameFields) (uuid.UUID, error)
	UpdateGame(ctx context.Context, id uuid.UUID, patch models.GamePatch) error
	DeleteGame(ctx context.Context, id uuid.UUID, c gateway.Confirmer) error
	DuplicateGame(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	AddTask(ctx context.Context, gameID uuid.UUID, name string) error
	ToggleTask(ctx context.Context, gameID, taskID uuid.UUID) error
	RemoveTask(ctx context.Context, gameID, taskID uuid.UUID, c gateway.Confirmer) error
	AddTeam(ctx context.Context, gameID uuid.UUID, in gateway.TeamInput) error
	EditTeam(ctx context.Context, gameID, teamID uuid.UUID, in gateway.TeamInput) error
	RemoveTeam(ctx context.Context, gameID, teamID uuid.UUID, c gateway.Confirmer) error
	AddTemplateTask(ctx context.Context, name string) error
	RemoveTemplateTask(ctx context.Context, index int, c gateway.Confirmer) error
}

// State is everything a dashboard client has selected or typed. Selections
// are explicit optional ids.
type State struct {
	StatusFilter models.Status `json:"statusFilter"`
	Search       string        `json:"search"`
	TasksGame    uuid.NullUUID `json:"tasksGame"`
	TeamsGame    uuid.NullUUID `json:"teamsGame"`
	// EditingGame is open with a Nil id for a new game.
	EditingGame uuid.NullUUID `json:"editingGame"`
	// EditingTeam is open with a Nil id for a new team in TeamsGame.
	EditingTeam uuid.NullUUID `json:"editingTeam"`
}

// Frame is one full render pushed to a client.
type Frame struct {
	Version     uint64         `json:"version"`
	State       State          `json:"state"`
	View        view.View      `json:"view"`
	Tasks       *view.TaskList `json:"tasks,omitempty"`
	Teams       *view.TeamList `json:"teams,omitempty"`
	EditingGame *models.Game   `json:"editingGame,omitempty"`
	EditingTeam *models.Team   `json:"editingTeam,omitempty"`
	Statuses    []StatusOption `json:"statuses"`
}

// StatusOption is one entry of the status selector.
type StatusOption struct {
	Code  models.Status `json:"code"`
	Label string        `json:"label"`
}

// Session owns one client's state. Intents change it; Render derives the
// frame from it and the current mirror.
type Session struct {
	src       Source
	templates TemplateSource
	writer    Writer

	mu    sync.Mutex
	state State
}

// NewSession starts with no filter and nothing open.
func NewSession(src Source, templates TemplateSource, writer Writer) *Session {
	return &Session{src: src, templates: templates, writer: writer}
}

// State returns a copy of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) update(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func some(id uuid.UUID) uuid.NullUUID { return uuid.NullUUID{UUID: id, Valid: true} }

// Dispatch applies one intent. Mutating intents go through the writer; their
// effect on the games shows up with the next mirror push. Editors stay open
// when a save fails.
func (s *Session) Dispatch(ctx context.Context, in Intent) error {
	switch in.Type {
	case SetFilter:
		s.update(func(st *State) {
			st.StatusFilter = in.Status
			st.Search = in.Search
		})
	case OpenTasks:
		s.update(func(st *State) { st.TasksGame = some(in.GameID) })
	case CloseTasks:
		s.update(func(st *State) { st.TasksGame = uuid.NullUUID{} })
	case OpenTeams:
		s.update(func(st *State) {
			st.TeamsGame = some(in.GameID)
			st.EditingTeam = uuid.NullUUID{}
		})
	case CloseTeams:
		s.update(func(st *State) {
			st.TeamsGame = uuid.NullUUID{}
			st.EditingTeam = uuid.NullUUID{}
		})
	case EditGame:
		s.update(func(st *State) { st.EditingGame = some(in.GameID) })
	case CloseGameEditor:
		s.update(func(st *State) { st.EditingGame = uuid.NullUUID{} })
	case EditTeam:
		s.update(func(st *State) { st.EditingTeam = some(in.TeamID) })
	case CloseTeamEditor:
		s.update(func(st *State) { st.EditingTeam = uuid.NullUUID{} })

	case SaveGame:
		return s.saveGame(ctx, in)
	case DeleteGame:
		return s.writer.DeleteGame(ctx, in.GameID, gateway.Answer(in.Confirm))
	case DuplicateGame:
		_, err := s.writer.DuplicateGame(ctx, in.GameID)
		return err
	case AddTask:
		return s.writer.AddTask(ctx, in.GameID, in.Name)
	case ToggleTask:
		return s.writer.ToggleTask(ctx, in.GameID, in.TaskID)
	case RemoveTask:
		return s.writer.RemoveTask(ctx, in.GameID, in.TaskID, gateway.Answer(in.Confirm))
	case SaveTeam:
		return s.saveTeam(ctx, in)
	case RemoveTeam:
		st := s.State()
		gameID := in.GameID
		if gameID == uuid.Nil && st.TeamsGame.Valid {
			gameID = st.TeamsGame.UUID
		}
		return s.writer.RemoveTeam(ctx, gameID, in.TeamID, gateway.Answer(in.Confirm))
	case AddTemplateTask:
		return s.writer.AddTemplateTask(ctx, in.Name)
	case RemoveTemplateTask:
		return s.writer.RemoveTemplateTask(ctx, in.Index, gateway.Answer(in.Confirm))
	default:
		return fmt.Errorf("unknown intent %q", in.Type)
	}
	return nil
}

func (s *Session) saveGame(ctx context.Context, in Intent) error {
	if in.Game == nil {
		return fmt.Errorf("%s: missing game fields", in.Type)
	}
	editing := s.State().EditingGame
	var err error
	if editing.Valid && editing.UUID != uuid.Nil {
		err = s.writer.UpdateGame(ctx, editing.UUID, models.PatchFromFields(*in.Game))
	} else {
		_, err = s.writer.CreateGame(ctx, *in.Game)
	}
	if err != nil {
		return err
	}
	s.update(func(st *State) { st.EditingGame = uuid.NullUUID{} })
	return nil
}

func (s *Session) saveTeam(ctx context.Context, in Intent) error {
	if in.Team == nil {
		return fmt.Errorf("%s: missing team fields", in.Type)
	}
	st := s.State()
	if !st.TeamsGame.Valid {
		return fmt.Errorf("%s: no game open", in.Type)
	}
	var err error
	if st.EditingTeam.Valid && st.EditingTeam.UUID != uuid.Nil {
		err = s.writer.EditTeam(ctx, st.TeamsGame.UUID, st.EditingTeam.UUID, *in.Team)
	} else {
		err = s.writer.AddTeam(ctx, st.TeamsGame.UUID, *in.Team)
	}
	if err != nil {
		return err
	}
	s.update(func(st *State) { st.EditingTeam = uuid.NullUUID{} })
	return nil
}

// Render derives a frame from the current state and mirror. Sub-views whose
// game has disappeared are omitted.
func (s *Session) Render() Frame {
	st := s.State()
	var names []string
	if s.templates != nil {
		names = s.templates.Names()
	}

	f := Frame{
		Version: s.src.Version(),
		State:   st,
		View: view.Compute(view.Input{
			Games:        s.src.Games(),
			Template:     names,
			StatusFilter: st.StatusFilter,
			Search:       st.Search,
		}),
		Statuses: statusOptions(),
	}

	if st.TasksGame.Valid {
		if g, ok := s.src.Get(st.TasksGame.UUID); ok {
			tl := view.Tasks(g)
			f.Tasks = &tl
		}
	}
	if st.TeamsGame.Valid {
		if g, ok := s.src.Get(st.TeamsGame.UUID); ok {
			tl := view.Teams(g)
			f.Teams = &tl
			if st.EditingTeam.Valid && st.EditingTeam.UUID != uuid.Nil {
				if i := g.FindTeam(st.EditingTeam.UUID); i >= 0 {
					team := g.Teams[i]
					f.EditingTeam = &team
				}
			}
		}
	}
	if st.EditingGame.Valid && st.EditingGame.UUID != uuid.Nil {
		if g, ok := s.src.Get(st.EditingGame.UUID); ok {
			f.EditingGame = &g
		}
	}
	return f
}

func statusOptions() []StatusOption {
	out := make([]StatusOption, 0, 3)
	for _, st := range models.Statuses() {
		out = append(out, StatusOption{Code: st, Label: st.Label()})
	}
	return out
}
