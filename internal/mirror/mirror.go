// internal/mirror/mirror.go
package mirror

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/metrics"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/sirupsen/logrus"
)

// Mirror is the in-memory copy of the remote games collection. The whole
// list is swapped on every snapshot; it is never merged field by field.
// That keeps readers consistent at the cost of rewriting the full list per
// push, which is fine while the collection fits in memory.
type Mirror struct {
	mu      sync.RWMutex
	games   []models.Game
	version uint64

	listenMu  sync.Mutex
	listeners map[int]func(games []models.Game)
	nextID    int

	logger   *logrus.Logger
	notifier notify.Notifier
	metrics  *metrics.Recorder
}

// New returns an empty mirror. Any argument may be nil.
func New(logger *logrus.Logger, notifier notify.Notifier, rec *metrics.Recorder) *Mirror {
	if logger == nil {
		logger = logrus.New()
	}
	return &Mirror{
		games:     []models.Game{},
		listeners: make(map[int]func([]models.Game)),
		logger:    logger,
		notifier:  notifier,
		metrics:   rec,
	}
}

// Games returns a deep copy of the current list, newest first.
func (m *Mirror) Games() []models.Game {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Game, len(m.games))
	for i, g := range m.games {
		out[i] = g.Clone()
	}
	return out
}

// Get returns a copy of the game with the given id.
func (m *Mirror) Get(id uuid.UUID) (models.Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.games {
		if g.ID == id {
			return g.Clone(), true
		}
	}
	return models.Game{}, false
}

// Version increases by one on every replacement.
func (m *Mirror) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// OnReplace registers fn to receive a copy of each new list. The returned
// func removes the listener.
func (m *Mirror) OnReplace(fn func(games []models.Game)) func() {
	m.listenMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenMu.Unlock()

	return func() {
		m.listenMu.Lock()
		delete(m.listeners, id)
		m.listenMu.Unlock()
	}
}

// Replace swaps in a new list and fires listeners.
func (m *Mirror) Replace(games []models.Game) {
	next := make([]models.Game, len(games))
	for i, g := range games {
		g.Normalize()
		next[i] = g.Clone()
	}

	m.mu.Lock()
	m.games = next
	m.version++
	m.mu.Unlock()

	m.metrics.RecordSnapshot(len(next))

	m.listenMu.Lock()
	fns := make([]func([]models.Game), 0, len(m.listeners))
	for i := 0; i < m.nextID; i++ {
		if fn, ok := m.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.listenMu.Unlock()

	for _, fn := range fns {
		fn(m.Games())
	}
}

// Run keeps the mirror in sync with coll until ctx is cancelled. Errors leave
// the current list in place; retrying is up to the collection.
func (m *Mirror) Run(ctx context.Context, coll store.Collection) error {
	err := coll.Subscribe(ctx, store.AllNewestFirst, store.SnapshotHandler{
		OnSnapshot: m.Replace,
		OnError:    m.subscriptionFailed,
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (m *Mirror) subscriptionFailed(err error) {
	m.logger.WithError(err).Error("games subscription failed")
	m.metrics.RecordSubscriptionError()
	if m.notifier != nil {
		m.notifier.Notify("Ошибка соединения с базой данных", notify.Error)
	}
}
