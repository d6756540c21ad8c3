// internal/handlers/dashboard_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/quizdesk/internal/dashboard"
	"github.com/jason-s-yu/quizdesk/internal/middleware"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/sirupsen/logrus"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// Envelope types sent to dashboard clients.
const (
	envelopeFrame        = "frame"
	envelopeNotification = "notification"
	envelopeError        = "error"
)

type wsEnvelope struct {
	Type         string               `json:"type"`
	Frame        *dashboard.Frame     `json:"frame,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
	Error        string               `json:"error,omitempty"`
	Fields       map[string]string    `json:"fields,omitempty"`
}

// dashboardClient is one connected dashboard. dirty coalesces render
// requests: any number of mirror pushes between two writes yield one frame.
type dashboardClient struct {
	conn    *websocket.Conn
	session *dashboard.Session
	logger  *logrus.Entry
	dirty   chan struct{}
	errs    chan wsEnvelope
}

func (dc *dashboardClient) markDirty() {
	select {
	case dc.dirty <- struct{}{}:
	default:
	}
}

// DashboardWSHandler serves the live dashboard. Each client gets its own
// session; a full frame is pushed on connect, after every intent and whenever
// the mirror or the template changes. Hub notifications are forwarded as-is.
func DashboardWSHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{DashboardSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			app.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != DashboardSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the dashboard subprotocol")
			return
		}

		middleware.LogWebSocketConnect(app.Logger, r.RemoteAddr, r.URL.Path)
		app.Metrics.ClientConnected(1)
		defer app.Metrics.ClientConnected(-1)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		client := &dashboardClient{
			conn:    c,
			session: dashboard.NewSession(app.Mirror, app.Templates, app.Gateway),
			logger:  app.Logger.WithField("remote", r.RemoteAddr),
			dirty:   make(chan struct{}, 1),
			errs:    make(chan wsEnvelope, 4),
		}
		client.markDirty()

		stopMirror := app.Mirror.OnReplace(func([]models.Game) { client.markDirty() })
		defer stopMirror()
		stopTemplates := app.Templates.OnChange(func([]string) { client.markDirty() })
		defer stopTemplates()

		var notes <-chan notify.Notification
		if app.Hub != nil {
			ch, unsubscribe := app.Hub.Subscribe(16)
			defer unsubscribe()
			notes = ch
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			client.writePump(ctx, notes)
		}()

		err = client.readPump(ctx)
		cancel()
		<-done

		middleware.LogWebSocketDisconnect(app.Logger, r.RemoteAddr, r.URL.Path, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes intents until the connection closes. A normal close
// returns nil. Malformed JSON is reported to the client and skipped; binary
// frames close the connection.
func (dc *dashboardClient) readPump(ctx context.Context) error {
	for {
		typ, data, err := dc.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			dc.conn.Close(BadIntentError, "intents must be JSON text frames")
			return errors.New("binary frame from dashboard client")
		}

		var in dashboard.Intent
		if err := json.Unmarshal(data, &in); err != nil {
			dc.reportError(fmt.Errorf("invalid intent: %w", err))
			continue
		}

		if err := dc.session.Dispatch(ctx, in); err != nil {
			dc.logger.WithError(err).WithField("intent", in.Type).Debug("dashboard: intent rejected")
			dc.reportError(err)
		}
		dc.markDirty()
	}
}

func (dc *dashboardClient) reportError(err error) {
	env := wsEnvelope{Type: envelopeError, Error: err.Error()}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		env.Error = "validation failed"
		env.Fields = verr.Fields
	}
	select {
	case dc.errs <- env:
	default:
		dc.logger.Warn("dashboard: error envelope dropped")
	}
}

// writePump owns all writes to the connection.
func (dc *dashboardClient) writePump(ctx context.Context, notes <-chan notify.Notification) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case env := <-dc.errs:
			err = dc.write(ctx, env)
		case <-dc.dirty:
			frame := dc.session.Render()
			err = dc.write(ctx, wsEnvelope{Type: envelopeFrame, Frame: &frame})
		case n, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			err = dc.write(ctx, wsEnvelope{Type: envelopeNotification, Notification: &n})
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = dc.conn.Ping(pingCtx)
			cancel()
		}
		if err != nil {
			if ctx.Err() == nil {
				dc.logger.WithError(err).Warn("dashboard: write failed")
			}
			_ = dc.conn.Close(websocket.StatusGoingAway, "write failed")
			return
		}
	}
}

func (dc *dashboardClient) write(ctx context.Context, env wsEnvelope) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, dc.conn, env)
}
