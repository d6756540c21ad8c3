package handlers

import (
	"net/http"

	"github.com/jason-s-yu/quizdesk/internal/gateway"
)

// ListTemplateHandler returns the template task names.
func ListTemplateHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"names": app.Templates.Names()})
	}
}

// AddTemplateHandler appends {"name": ...} to the template.
func AddTemplateHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &req); err != nil {
			http.Error(w, "bad template payload", http.StatusBadRequest)
			return
		}
		if err := app.Gateway.AddTemplateTask(r.Context(), req.Name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"names": app.Templates.Names()})
	}
}

// RemoveTemplateHandler drops the entry at {"index": n, "confirm": true}.
func RemoveTemplateHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index   *int `json:"index"`
			Confirm bool `json:"confirm"`
		}
		if err := decodeBody(r, &req); err != nil || req.Index == nil {
			http.Error(w, "bad template payload", http.StatusBadRequest)
			return
		}
		if err := app.Gateway.RemoveTemplateTask(r.Context(), *req.Index, gateway.Answer(req.Confirm)); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"names": app.Templates.Names()})
	}
}
