package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestQueryFiltersAndOrders(t *testing.T) {
	c := NewMemoryCollection()
	c.Seed(
		models.Game{ID: uuid.New(), Name: "late", Date: "2026-12-01", Status: models.StatusPlanned},
		models.Game{ID: uuid.New(), Name: "early", Date: "2026-11-01", Status: models.StatusInProgress},
		models.Game{ID: uuid.New(), Name: "past", Date: "2026-01-01", Status: models.StatusPlanned},
		models.Game{ID: uuid.New(), Name: "done", Date: "2026-12-05", Status: models.StatusCompleted},
		models.Game{ID: uuid.New(), Name: "undated", Status: models.StatusPlanned},
	)

	games, err := c.Query(context.Background(), Query{
		Statuses: []models.Status{models.StatusPlanned, models.StatusInProgress},
		DateFrom: "2026-10-19",
		OrderBy:  OrderByDate,
	})
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "early", games[0].Name)
	assert.Equal(t, "late", games[1].Name)
}

func TestNewestFirstOrder(t *testing.T) {
	c := NewMemoryCollection()
	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	c.Seed(
		models.Game{ID: uuid.New(), Name: "old", CreatedAt: base},
		models.Game{ID: uuid.New(), Name: "new", CreatedAt: base.Add(time.Hour)},
	)
	games, err := c.Query(context.Background(), AllNewestFirst)
	require.NoError(t, err)
	assert.Equal(t, "new", games[0].Name)
}

func TestSubscribeDeliversFullSnapshots(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCollection()
	var (
		mu    sync.Mutex
		sizes []int
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, AllNewestFirst, SnapshotHandler{
			OnSnapshot: func(games []models.Game) {
				mu.Lock()
				sizes = append(sizes, len(games))
				mu.Unlock()
			},
		})
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sizes) == 1
	}, time.Second, 5*time.Millisecond)

	id, err := c.Create(context.Background(), models.Game{Name: "a"})
	require.NoError(t, err)
	_, err = c.Create(context.Background(), models.Game{Name: "b"})
	require.NoError(t, err)
	require.NoError(t, c.Delete(context.Background(), id))

	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 1}, sizes)
	mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestUpdatePartialAndNotFound(t *testing.T) {
	c := NewMemoryCollection()
	id, err := c.Create(context.Background(), models.Game{Name: "a", Venue: "Бар"})
	require.NoError(t, err)

	name := "b"
	require.NoError(t, c.UpdatePartial(context.Background(), id, models.GamePatch{Name: &name}))
	games, _ := c.Query(context.Background(), Query{})
	require.Len(t, games, 1)
	assert.Equal(t, "b", games[0].Name)
	assert.Equal(t, "Бар", games[0].Venue)

	err = c.UpdatePartial(context.Background(), uuid.New(), models.GamePatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailWrapsUnavailable(t *testing.T) {
	c := NewMemoryCollection()
	c.Fail(errors.New("network down"))

	_, err := c.Create(context.Background(), models.Game{Name: "a"})
	assert.ErrorIs(t, err, ErrUnavailable)

	c.Fail(nil)
	_, err = c.Create(context.Background(), models.Game{Name: "a"})
	assert.NoError(t, err)
}
