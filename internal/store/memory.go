// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/models"
)

type memorySub struct {
	q Query
	h SnapshotHandler
}

// MemoryCollection is an in-process Collection. Snapshots are delivered
// synchronously, in write order, before the mutating call returns.
type MemoryCollection struct {
	mu    sync.Mutex
	games map[uuid.UUID]models.Game
	err   error

	deliverMu sync.Mutex
	subsMu    sync.Mutex
	subs      map[int]memorySub
	nextSub   int

	Now func() time.Time
}

// NewMemoryCollection returns an empty collection.
func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{
		games: make(map[uuid.UUID]models.Game),
		subs:  make(map[int]memorySub),
		Now:   time.Now,
	}
}

// Fail makes every following call return err wrapped in ErrUnavailable until
// Fail(nil) is called.
func (c *MemoryCollection) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// EmitError pushes err to every active subscription's error callback.
func (c *MemoryCollection) EmitError(err error) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	for _, s := range c.subscribers() {
		if s.h.OnError != nil {
			s.h.OnError(err)
		}
	}
}

// Seed stores games as-is, keeping their ids, without notifying subscribers.
func (c *MemoryCollection) Seed(games ...models.Game) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range games {
		g.Normalize()
		c.games[g.ID] = g.Clone()
	}
}

func (c *MemoryCollection) failure() error {
	if c.err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, c.err)
	}
	return nil
}

func (c *MemoryCollection) Subscribe(ctx context.Context, q Query, h SnapshotHandler) error {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = memorySub{q: q, h: h}
	c.subsMu.Unlock()

	defer func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}()

	c.deliverMu.Lock()
	games, err := c.Query(ctx, q)
	if err != nil {
		if h.OnError != nil {
			h.OnError(err)
		}
	} else if h.OnSnapshot != nil {
		h.OnSnapshot(games)
	}
	c.deliverMu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

func (c *MemoryCollection) Query(_ context.Context, q Query) ([]models.Game, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failure(); err != nil {
		return nil, err
	}
	all := make([]models.Game, 0, len(c.games))
	for _, g := range c.games {
		all = append(all, g)
	}
	return q.Apply(all), nil
}

func (c *MemoryCollection) Create(_ context.Context, g models.Game) (uuid.UUID, error) {
	c.mu.Lock()
	if err := c.failure(); err != nil {
		c.mu.Unlock()
		return uuid.Nil, err
	}
	g.ID = uuid.New()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = c.Now()
	}
	g.Normalize()
	c.games[g.ID] = g.Clone()
	c.mu.Unlock()

	c.publish()
	return g.ID, nil
}

func (c *MemoryCollection) UpdatePartial(_ context.Context, id uuid.UUID, patch models.GamePatch) error {
	c.mu.Lock()
	if err := c.failure(); err != nil {
		c.mu.Unlock()
		return err
	}
	g, ok := c.games[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	patch.Apply(&g)
	c.games[id] = g
	c.mu.Unlock()

	c.publish()
	return nil
}

func (c *MemoryCollection) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	if err := c.failure(); err != nil {
		c.mu.Unlock()
		return err
	}
	delete(c.games, id)
	c.mu.Unlock()

	c.publish()
	return nil
}

func (c *MemoryCollection) subscribers() []memorySub {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	out := make([]memorySub, 0, len(c.subs))
	for i := 0; i < c.nextSub; i++ {
		if s, ok := c.subs[i]; ok {
			out = append(out, s)
		}
	}
	return out
}

// publish re-runs each subscriber's query and hands it the full result set.
func (c *MemoryCollection) publish() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	for _, s := range c.subscribers() {
		games, err := c.Query(context.Background(), s.q)
		if err != nil {
			if s.h.OnError != nil {
				s.h.OnError(err)
			}
			continue
		}
		if s.h.OnSnapshot != nil {
			s.h.OnSnapshot(games)
		}
	}
}
