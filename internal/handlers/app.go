// internal/handlers/app.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jason-s-yu/quizdesk/internal/gateway"
	"github.com/jason-s-yu/quizdesk/internal/metrics"
	"github.com/jason-s-yu/quizdesk/internal/middleware"
	"github.com/jason-s-yu/quizdesk/internal/mirror"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/jason-s-yu/quizdesk/internal/templates"
	"github.com/jason-s-yu/quizdesk/internal/view"
	"github.com/sirupsen/logrus"
)

// App bundles what the HTTP handlers need.
type App struct {
	Logger     *logrus.Logger
	Collection store.Collection
	Mirror     *mirror.Mirror
	Gateway    *gateway.Gateway
	Templates  *templates.List
	Hub        *notify.Hub
	Metrics    *metrics.Recorder

	// RegistrationDismiss is how long registration messages stay visible.
	// They go back in the response to the visitor, never to the hub.
	RegistrationDismiss time.Duration

	// Overview keeps the unfiltered dashboard view current. Optional.
	Overview *view.Synchronizer
}

// Routes registers every endpoint on a new mux, wrapped in request logging.
func Routes(app *App) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /dashboard", DashboardHandler(app))
	mux.HandleFunc("GET /games/{id}/tasks", GameTasksHandler(app))
	mux.HandleFunc("GET /games/{id}/teams", GameTeamsHandler(app))

	mux.HandleFunc("POST /games/create", CreateGameHandler(app))
	mux.HandleFunc("POST /games/update", UpdateGameHandler(app))
	mux.HandleFunc("POST /games/delete", DeleteGameHandler(app))
	mux.HandleFunc("POST /games/duplicate", DuplicateGameHandler(app))

	mux.HandleFunc("POST /games/tasks/add", AddTaskHandler(app))
	mux.HandleFunc("POST /games/tasks/toggle", ToggleTaskHandler(app))
	mux.HandleFunc("POST /games/tasks/remove", RemoveTaskHandler(app))

	mux.HandleFunc("POST /games/teams/add", AddTeamHandler(app))
	mux.HandleFunc("POST /games/teams/edit", EditTeamHandler(app))
	mux.HandleFunc("POST /games/teams/remove", RemoveTeamHandler(app))

	mux.HandleFunc("GET /templates", ListTemplateHandler(app))
	mux.HandleFunc("POST /templates", AddTemplateHandler(app))
	mux.HandleFunc("POST /templates/remove", RemoveTemplateHandler(app))

	mux.HandleFunc("GET /dashboard/ws", DashboardWSHandler(app))

	mux.HandleFunc("GET /register/games", RegisterGamesHandler(app))
	mux.HandleFunc("POST /register/validate", RegisterValidateHandler(app))
	mux.HandleFunc("POST /register", RegisterHandler(app))

	mux.Handle("GET /metrics", app.Metrics.Handler())
	mux.HandleFunc("GET /healthz", HealthHandler(app))

	return middleware.LogMiddleware(app.Logger)(mux)
}

// HealthHandler reports liveness, the mirror version and, when an overview
// is kept, the dashboard counters.
func HealthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":        "ok",
			"mirrorVersion": app.Mirror.Version(),
		}
		if app.Overview != nil {
			body["counters"] = app.Overview.Current().Counters
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	writeJSON(w, status, body)
}

// errorBody maps domain errors to status codes:
// validation 422, unconfirmed delete 400, missing game 404, unreachable store 503.
func errorBody(err error) (int, map[string]any) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		}
	case errors.Is(err, gateway.ErrNotConfirmed):
		return http.StatusBadRequest, map[string]any{"error": "confirmation required"}
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, map[string]any{"error": "game not found"}
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, map[string]any{"error": err.Error()}
	default:
		return http.StatusInternalServerError, map[string]any{"error": err.Error()}
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
