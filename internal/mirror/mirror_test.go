package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func runMirror(t *testing.T, m *Mirror, coll store.Collection) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, coll) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("mirror did not stop")
		}
	}
}

func TestRunReceivesInitialSnapshotNewestFirst(t *testing.T) {
	defer goleak.VerifyNone(t)

	coll := store.NewMemoryCollection()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	older := models.Game{ID: uuid.New(), Name: "Old", CreatedAt: base}
	newer := models.Game{ID: uuid.New(), Name: "New", CreatedAt: base.Add(time.Hour)}
	coll.Seed(older, newer)

	m := New(nil, nil, nil)
	stop := runMirror(t, m, coll)
	defer stop()

	require.Eventually(t, func() bool { return m.Version() == 1 }, time.Second, 5*time.Millisecond)
	games := m.Games()
	require.Len(t, games, 2)
	assert.Equal(t, "New", games[0].Name)
	assert.Equal(t, "Old", games[1].Name)
	assert.NotNil(t, games[0].Tasks)
	assert.NotNil(t, games[0].Teams)
}

func TestWritesReplaceWholeList(t *testing.T) {
	defer goleak.VerifyNone(t)

	coll := store.NewMemoryCollection()
	m := New(nil, nil, nil)

	var seen []int
	unsubscribe := m.OnReplace(func(games []models.Game) { seen = append(seen, len(games)) })
	defer unsubscribe()

	stop := runMirror(t, m, coll)
	require.Eventually(t, func() bool { return m.Version() == 1 }, time.Second, 5*time.Millisecond)

	id, err := coll.Create(context.Background(), models.Game{Name: "Quiz"})
	require.NoError(t, err)
	_, err = coll.Create(context.Background(), models.Game{Name: "Quiz 2"})
	require.NoError(t, err)
	stop()

	assert.Equal(t, []int{0, 1, 2}, seen)
	g, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Quiz", g.Name)
}

func TestErrorKeepsListAndNotifies(t *testing.T) {
	defer goleak.VerifyNone(t)

	coll := store.NewMemoryCollection()
	coll.Seed(models.Game{ID: uuid.New(), Name: "Kept"})

	rec := &notify.Recorder{}
	m := New(nil, rec, nil)
	stop := runMirror(t, m, coll)
	defer stop()
	require.Eventually(t, func() bool { return m.Version() == 1 }, time.Second, 5*time.Millisecond)

	coll.EmitError(errors.New("connection reset"))

	assert.Equal(t, uint64(1), m.Version())
	require.Len(t, m.Games(), 1)
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, last.Severity)
}

func TestGamesReturnsCopy(t *testing.T) {
	m := New(nil, nil, nil)
	m.Replace([]models.Game{{ID: uuid.New(), Name: "A", Tasks: []models.Task{{Name: "t"}}}})

	games := m.Games()
	games[0].Name = "mutated"
	games[0].Tasks[0].Completed = true

	fresh := m.Games()
	assert.Equal(t, "A", fresh[0].Name)
	assert.False(t, fresh[0].Tasks[0].Completed)
}

func TestGetMissing(t *testing.T) {
	m := New(nil, nil, nil)
	_, ok := m.Get(uuid.New())
	assert.False(t, ok)
}
