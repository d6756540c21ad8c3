package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/quizdesk/internal/dashboard"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnvelope struct {
	Type  string `json:"type"`
	Frame *struct {
		State dashboard.State `json:"state"`
		View  struct {
			Counters struct {
				TotalGames int `json:"totalGames"`
			} `json:"counters"`
		} `json:"view"`
	} `json:"frame"`
	Notification *notify.Notification `json:"notification"`
	Error        string               `json:"error"`
	Fields       map[string]string    `json:"fields"`
}

func dialDashboard(t *testing.T, s *testServer, protocols ...string) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(s.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/dashboard/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: protocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c, ctx
}

// readUntil reads envelopes until match returns true.
func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, match func(testEnvelope) bool) testEnvelope {
	t.Helper()
	for {
		var env testEnvelope
		require.NoError(t, wsjson.Read(ctx, c, &env))
		if match(env) {
			return env
		}
	}
}

func TestDashboardSocketPushesFrames(t *testing.T) {
	s := newTestServer(t, futureGame("Квиз"))
	c, ctx := dialDashboard(t, s, DashboardSubprotocol)

	first := readUntil(t, ctx, c, func(e testEnvelope) bool { return e.Type == envelopeFrame })
	assert.Equal(t, 1, first.Frame.View.Counters.TotalGames)
	assert.False(t, first.Frame.State.EditingGame.Valid)

	require.NoError(t, wsjson.Write(ctx, c, dashboard.Intent{Type: dashboard.EditGame}))
	editing := readUntil(t, ctx, c, func(e testEnvelope) bool {
		return e.Type == envelopeFrame && e.Frame.State.EditingGame.Valid
	})
	assert.Equal(t, 1, editing.Frame.View.Counters.TotalGames)

	require.NoError(t, wsjson.Write(ctx, c, dashboard.Intent{
		Type: dashboard.SaveGame,
		Game: &models.GameFields{Name: "Новый квиз", Venue: "Клуб", Date: "2099-02-01"},
	}))
	note := readUntil(t, ctx, c, func(e testEnvelope) bool { return e.Type == envelopeNotification })
	assert.Equal(t, "Игра успешно добавлена!", note.Notification.Message)

	readUntil(t, ctx, c, func(e testEnvelope) bool {
		return e.Type == envelopeFrame && e.Frame.View.Counters.TotalGames == 2 && !e.Frame.State.EditingGame.Valid
	})
}

func TestDashboardSocketReportsErrors(t *testing.T) {
	s := newTestServer(t)
	c, ctx := dialDashboard(t, s, DashboardSubprotocol)

	require.NoError(t, wsjson.Write(ctx, c, dashboard.Intent{Type: dashboard.EditGame}))
	require.NoError(t, wsjson.Write(ctx, c, dashboard.Intent{
		Type: dashboard.SaveGame,
		Game: &models.GameFields{Venue: "Клуб"},
	}))
	env := readUntil(t, ctx, c, func(e testEnvelope) bool { return e.Type == envelopeError })
	assert.Equal(t, models.MsgNameRequired, env.Fields[models.FieldName])

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	env = readUntil(t, ctx, c, func(e testEnvelope) bool { return e.Type == envelopeError })
	assert.Contains(t, env.Error, "invalid intent")
}

func TestDashboardSocketRequiresSubprotocol(t *testing.T) {
	s := newTestServer(t)
	c, ctx := dialDashboard(t, s)

	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}
