package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/gateway"
	"github.com/jason-s-yu/quizdesk/internal/metrics"
	"github.com/jason-s-yu/quizdesk/internal/mirror"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/jason-s-yu/quizdesk/internal/templates"
	"github.com/jason-s-yu/quizdesk/internal/view"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app     *App
	coll    *store.MemoryCollection
	handler http.Handler
}

func newTestServer(t *testing.T, seed ...models.Game) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()

	coll := store.NewMemoryCollection()
	coll.Seed(seed...)

	rec := metrics.NewRecorder()
	hub := notify.NewHub(notify.DefaultDismiss, logger)
	m := mirror.New(logger, hub, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx, coll)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return m.Version() >= 1 }, time.Second, 5*time.Millisecond)

	tmpl, err := templates.Load(context.Background(), &templates.MemoryStore{})
	require.NoError(t, err)

	app := &App{
		Logger:              logger,
		Collection:          coll,
		Mirror:              m,
		Gateway:             gateway.New(coll, m, tmpl, hub, logger, gateway.WithMetrics(rec)),
		Templates:           tmpl,
		Hub:                 hub,
		Metrics:             rec,
		RegistrationDismiss: 5 * time.Second,
	}
	return &testServer{app: app, coll: coll, handler: Routes(app)}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func futureGame(name string) models.Game {
	return models.Game{
		ID: uuid.New(), Name: name, Venue: "Бар", Date: "2099-05-01", Time: "19:00",
		Status: models.StatusPlanned,
		Teams: []models.Team{{
			ID: uuid.New(), Number: 1, Name: "Альфа", MemberCount: 4,
			CaptainSocialLink: "https://vk.com/secret",
		}},
	}
}

func TestDashboardView(t *testing.T) {
	s := newTestServer(t, futureGame("Весенний квиз"), futureGame("Летний квиз"))

	rr := s.do(t, http.MethodGet, "/dashboard?q="+url.QueryEscape("весенний"), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var v view.View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, 2, v.Counters.TotalGames)
	require.Len(t, v.Table.Rows, 1)
	assert.Equal(t, "Весенний квиз", v.Table.Rows[0].Game.Name)

	rr = s.do(t, http.MethodGet, "/dashboard?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateAndDeleteGame(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/games/create", models.GameFields{Name: "Квиз", Venue: "Бар", Date: "2099-01-01"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	id := uuid.MustParse(created["id"])

	g, ok := s.app.Mirror.Get(id)
	require.True(t, ok)
	assert.Len(t, g.Tasks, len(templates.DefaultNames))

	rr = s.do(t, http.MethodPost, "/games/delete", map[string]any{"id": id})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	_, ok = s.app.Mirror.Get(id)
	assert.True(t, ok)

	rr = s.do(t, http.MethodPost, "/games/delete", map[string]any{"id": id, "confirm": true})
	require.Equal(t, http.StatusOK, rr.Code)
	_, ok = s.app.Mirror.Get(id)
	assert.False(t, ok)
}

func TestCreateGameValidation(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/games/create", models.GameFields{Venue: "Бар"})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, models.MsgNameRequired, body.Fields[models.FieldName])
}

func TestUpdateGameAndSubViews(t *testing.T) {
	g := futureGame("Квиз")
	s := newTestServer(t, g)

	rr := s.do(t, http.MethodPost, "/games/update", map[string]any{"id": g.ID, "venue": "Клуб"})
	require.Equal(t, http.StatusOK, rr.Code)
	got, _ := s.app.Mirror.Get(g.ID)
	assert.Equal(t, "Клуб", got.Venue)

	rr = s.do(t, http.MethodPost, "/games/tasks/add", map[string]any{"gameId": g.ID, "name": "Купить призы"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodGet, "/games/"+g.ID.String()+"/tasks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var tasks view.TaskList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tasks))
	require.Len(t, tasks.Tasks, 1)
	assert.Equal(t, "Купить призы", tasks.Tasks[0].Name)

	rr = s.do(t, http.MethodGet, "/games/"+uuid.NewString()+"/teams", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = s.do(t, http.MethodGet, "/games/nope/teams", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTeamEndpoints(t *testing.T) {
	g := futureGame("Квиз")
	s := newTestServer(t, g)

	rr := s.do(t, http.MethodPost, "/games/teams/add", map[string]any{
		"gameId": g.ID, "name": "Бета", "memberCount": 3,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, "/games/teams/add", map[string]any{
		"gameId": g.ID, "name": "Бета", "memberCount": 3,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = s.do(t, http.MethodPost, "/games/teams/remove", map[string]any{
		"gameId": g.ID, "teamId": g.Teams[0].ID, "confirm": true,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	got, _ := s.app.Mirror.Get(g.ID)
	require.Len(t, got.Teams, 1)
	assert.Equal(t, "Бета", got.Teams[0].Name)
	assert.Equal(t, 1, got.Teams[0].Number)
}

func TestTemplateEndpoints(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/templates", map[string]string{"name": "Забронировать зал"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, s.app.Templates.Names(), "Забронировать зал")

	rr = s.do(t, http.MethodPost, "/templates/remove", map[string]any{"confirm": true})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	n := len(s.app.Templates.Names())
	rr = s.do(t, http.MethodPost, "/templates/remove", map[string]any{"index": n - 1, "confirm": true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, s.app.Templates.Names(), "Забронировать зал")
}

func TestRegisterGamesHidesRosters(t *testing.T) {
	s := newTestServer(t, futureGame("Квиз"), models.Game{
		ID: uuid.New(), Name: "Старый", Date: "2000-01-01", Status: models.StatusPlanned,
	})

	rr := s.do(t, http.MethodGet, "/register/games", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")

	var body struct {
		Games []struct {
			Name      string `json:"name"`
			TeamCount int    `json:"teamCount"`
		} `json:"games"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Games, 1)
	assert.Equal(t, 1, body.Games[0].TeamCount)
}

func TestRegisterTeam(t *testing.T) {
	g := futureGame("Квиз")
	s := newTestServer(t, g)

	form := map[string]any{
		"gameId":         g.ID,
		"teamName":       "Гамма",
		"memberCount":    "6",
		"captainContact": "https://t.me/gamma",
	}

	rr := s.do(t, http.MethodPost, "/register/validate", form)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"valid":true`)

	rr = s.do(t, http.MethodPost, "/register", form)
	require.Equal(t, http.StatusCreated, rr.Code)

	got, _ := s.app.Mirror.Get(g.ID)
	require.Len(t, got.Teams, 2)
	assert.Equal(t, 2, got.Teams[1].Number)
	assert.Equal(t, "public_form", got.Teams[1].RegistrationSource)

	rr = s.do(t, http.MethodPost, "/register", form)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), models.MsgTeamNameTaken)
}

func TestRegisterRequiresOpenGame(t *testing.T) {
	s := newTestServer(t)
	dashboards, cancel := s.app.Hub.Subscribe(4)
	defer cancel()

	rr := s.do(t, http.MethodPost, "/register", map[string]any{
		"gameId": uuid.New(), "teamName": "Гамма", "memberCount": "6", "captainContact": "https://t.me/gamma",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), models.MsgSelectGame)

	var body struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 1)
	n := body.Notifications[0]
	assert.Equal(t, models.MsgSelectGame, n.Message)
	assert.Equal(t, notify.Error, n.Severity)
	assert.Equal(t, 5*time.Second, n.ExpiresAt.Sub(n.CreatedAt))
	assert.Empty(t, dashboards)
}

func TestRegisterToDeletedGameIsNotFound(t *testing.T) {
	g := futureGame("Квиз")
	s := newTestServer(t, g)
	app := *s.app
	app.Collection = &vanishingCollection{MemoryCollection: s.coll}
	handler := Routes(&app)

	dashboards, cancel := s.app.Hub.Subscribe(4)
	defer cancel()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"gameId": g.ID, "teamName": "Гамма", "memberCount": "6", "captainContact": "https://t.me/gamma",
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/register", &buf))

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Ошибка при регистрации команды")
	_, ok := s.app.Mirror.Get(g.ID)
	assert.False(t, ok)
	for len(dashboards) > 0 {
		n := <-dashboards
		assert.NotEqual(t, notify.Error, n.Severity, n.Message)
	}
}

// vanishingCollection deletes every game right after a registration loads
// it, as if an organizer removed it while the visitor was filling the form.
type vanishingCollection struct {
	*store.MemoryCollection
}

func (c *vanishingCollection) Query(ctx context.Context, q store.Query) ([]models.Game, error) {
	games, err := c.MemoryCollection.Query(ctx, q)
	for _, g := range games {
		_ = c.MemoryCollection.Delete(ctx, g.ID)
	}
	return games, err
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	s.do(t, http.MethodPost, "/games/create", models.GameFields{Name: "Квиз", Venue: "Бар"})
	rr = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `quizdesk_mutations_total{op="create_game",result="ok"} 1`))
}

func TestHealthReportsOverview(t *testing.T) {
	s := newTestServer(t, futureGame("Квиз"))
	s.app.Overview = view.NewSynchronizer(s.app.Mirror.Games(), s.app.Templates.Names(), nil)
	s.handler = Routes(s.app)

	rr := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"totalGames":1`)
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	s := newTestServer(t)
	s.coll.Fail(store.ErrUnavailable)

	rr := s.do(t, http.MethodPost, "/games/create", models.GameFields{Name: "Квиз", Venue: "Бар"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
