// internal/handlers/register.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/registration"
)

type registerRequest struct {
	GameID uuid.UUID `json:"gameId"`
	registration.Form
}

// newFlow builds a registration flow over the open games as they are now.
// HTTP registration is stateless, so every request loads afresh. Messages
// for the visitor land in the returned recorder.
func newFlow(app *App, r *http.Request) (*registration.Flow, *notify.Recorder, error) {
	dismiss := app.RegistrationDismiss
	if dismiss <= 0 {
		dismiss = registration.DefaultDismiss
	}
	notes := &notify.Recorder{Dismiss: dismiss}
	flow := registration.New(app.Collection, app.Gateway, notes, app.Logger, app.Metrics)
	if _, err := flow.Load(r.Context()); err != nil {
		return nil, notes, err
	}
	return flow, notes, nil
}

// writeRegisterError is writeError plus the visitor's notifications.
func writeRegisterError(w http.ResponseWriter, err error, notes *notify.Recorder) {
	status, body := errorBody(err)
	body["notifications"] = notes.All()
	writeJSON(w, status, body)
}

// RegisterGamesHandler lists games open for registration. Rosters are not
// exposed; only counts.
func RegisterGamesHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow, notes, err := newFlow(app, r)
		if err != nil {
			writeRegisterError(w, err, notes)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"games":         flow.Infos(),
			"options":       flow.Options(),
			"notifications": notes.All(),
		})
	}
}

// RegisterValidateHandler runs the field checks without submitting, for
// inline feedback while the visitor types.
func RegisterValidateHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "bad registration payload", http.StatusBadRequest)
			return
		}
		flow, notes, err := newFlow(app, r)
		if err != nil {
			writeRegisterError(w, err, notes)
			return
		}
		flow.Select(req.GameID)
		verr := flow.Validate(req.Form)
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":  verr == nil,
			"fields": flow.FieldErrors(),
		})
	}
}

// RegisterHandler appends the visitor's team to the chosen game.
func RegisterHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "bad registration payload", http.StatusBadRequest)
			return
		}
		flow, notes, err := newFlow(app, r)
		if err != nil {
			writeRegisterError(w, err, notes)
			return
		}
		flow.Select(req.GameID)
		team, err := flow.Submit(r.Context(), req.Form)
		if err != nil {
			writeRegisterError(w, err, notes)
			return
		}
		info, _ := flow.Selected()
		writeJSON(w, http.StatusCreated, map[string]any{
			"game": info,
			"team": map[string]any{
				"id":          team.ID,
				"number":      team.Number,
				"name":        team.Name,
				"memberCount": team.MemberCount,
			},
			"notifications": notes.All(),
		})
	}
}
