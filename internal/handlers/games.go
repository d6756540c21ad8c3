// internal/handlers/games.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/gateway"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/view"
)

// DashboardHandler renders the dashboard view for ?status= and ?q=.
func DashboardHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var status models.Status
		if raw := r.URL.Query().Get("status"); raw != "" {
			s, err := models.ParseStatus(raw)
			if err != nil {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			status = s
		}
		writeJSON(w, http.StatusOK, view.Compute(view.Input{
			Games:        app.Mirror.Games(),
			Template:     app.Templates.Names(),
			StatusFilter: status,
			Search:       r.URL.Query().Get("q"),
		}))
	}
}

func mirroredGame(app *App, w http.ResponseWriter, r *http.Request) (models.Game, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return models.Game{}, false
	}
	g, ok := app.Mirror.Get(id)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return models.Game{}, false
	}
	return g, true
}

// GameTasksHandler returns the checklist sub-view of one game.
func GameTasksHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g, ok := mirroredGame(app, w, r); ok {
			writeJSON(w, http.StatusOK, view.Tasks(g))
		}
	}
}

// GameTeamsHandler returns the roster sub-view of one game.
func GameTeamsHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g, ok := mirroredGame(app, w, r); ok {
			writeJSON(w, http.StatusOK, view.Teams(g))
		}
	}
}

type gameRef struct {
	ID      uuid.UUID `json:"id"`
	Confirm bool      `json:"confirm"`
}

type updateGameRequest struct {
	ID uuid.UUID `json:"id"`
	models.GamePatch
}

type taskRequest struct {
	GameID  uuid.UUID `json:"gameId"`
	TaskID  uuid.UUID `json:"taskId"`
	Name    string    `json:"name"`
	Confirm bool      `json:"confirm"`
}

type teamRequest struct {
	GameID  uuid.UUID `json:"gameId"`
	TeamID  uuid.UUID `json:"teamId"`
	Confirm bool      `json:"confirm"`
	gateway.TeamInput
}

// CreateGameHandler creates a game from its editable fields.
func CreateGameHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.GameFields
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "bad game payload", http.StatusBadRequest)
			return
		}
		id, err := app.Gateway.CreateGame(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
	}
}

// UpdateGameHandler merges the given fields into a game.
func UpdateGameHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateGameRequest
		if err := decodeBody(r, &req); err != nil || req.ID == uuid.Nil {
			http.Error(w, "bad update payload", http.StatusBadRequest)
			return
		}
		if err := app.Gateway.UpdateGame(r.Context(), req.ID, req.GamePatch); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// DeleteGameHandler deletes a game; the body must carry "confirm": true.
func DeleteGameHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gameRef
		if err := decodeBody(r, &req); err != nil || req.ID == uuid.Nil {
			http.Error(w, "bad delete payload", http.StatusBadRequest)
			return
		}
		if err := app.Gateway.DeleteGame(r.Context(), req.ID, gateway.Answer(req.Confirm)); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// DuplicateGameHandler copies a game and returns the new id (empty when the
// source is gone).
func DuplicateGameHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gameRef
		if err := decodeBody(r, &req); err != nil || req.ID == uuid.Nil {
			http.Error(w, "bad duplicate payload", http.StatusBadRequest)
			return
		}
		id, err := app.Gateway.DuplicateGame(r.Context(), req.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if id == uuid.Nil {
			writeJSON(w, http.StatusOK, map[string]string{"id": ""})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
	}
}

func taskHandler(app *App, do func(r *http.Request, req taskRequest) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req taskRequest
		if err := decodeBody(r, &req); err != nil || req.GameID == uuid.Nil {
			http.Error(w, "bad task payload", http.StatusBadRequest)
			return
		}
		if err := do(r, req); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// AddTaskHandler appends a task to a game's checklist.
func AddTaskHandler(app *App) http.HandlerFunc {
	return taskHandler(app, func(r *http.Request, req taskRequest) error {
		return app.Gateway.AddTask(r.Context(), req.GameID, req.Name)
	})
}

// ToggleTaskHandler flips a task's completed flag.
func ToggleTaskHandler(app *App) http.HandlerFunc {
	return taskHandler(app, func(r *http.Request, req taskRequest) error {
		return app.Gateway.ToggleTask(r.Context(), req.GameID, req.TaskID)
	})
}

// RemoveTaskHandler drops a task; requires "confirm": true.
func RemoveTaskHandler(app *App) http.HandlerFunc {
	return taskHandler(app, func(r *http.Request, req taskRequest) error {
		return app.Gateway.RemoveTask(r.Context(), req.GameID, req.TaskID, gateway.Answer(req.Confirm))
	})
}

func teamHandler(app *App, do func(r *http.Request, req teamRequest) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req teamRequest
		if err := decodeBody(r, &req); err != nil || req.GameID == uuid.Nil {
			http.Error(w, "bad team payload", http.StatusBadRequest)
			return
		}
		if err := do(r, req); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// AddTeamHandler registers a team manually.
func AddTeamHandler(app *App) http.HandlerFunc {
	return teamHandler(app, func(r *http.Request, req teamRequest) error {
		return app.Gateway.AddTeam(r.Context(), req.GameID, req.TeamInput)
	})
}

// EditTeamHandler updates a team's fields.
func EditTeamHandler(app *App) http.HandlerFunc {
	return teamHandler(app, func(r *http.Request, req teamRequest) error {
		return app.Gateway.EditTeam(r.Context(), req.GameID, req.TeamID, req.TeamInput)
	})
}

// RemoveTeamHandler drops a team and renumbers the rest; requires
// "confirm": true.
func RemoveTeamHandler(app *App) http.HandlerFunc {
	return teamHandler(app, func(r *http.Request, req teamRequest) error {
		return app.Gateway.RemoveTeam(r.Context(), req.GameID, req.TeamID, gateway.Answer(req.Confirm))
	})
}
