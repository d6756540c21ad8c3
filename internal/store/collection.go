// internal/store/collection.go
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/models"
)

// ErrUnavailable marks a failure to reach the remote collection. The caller
// keeps whatever state it already had.
var ErrUnavailable = errors.New("remote collection unavailable")

// ErrNotFound marks an operation on a game id that is no longer stored.
var ErrNotFound = errors.New("game not found")

// OrderField names a sortable game field.
type OrderField string

const (
	OrderByCreatedAt OrderField = "created_at"
	OrderByDate      OrderField = "date"
)

// Query selects and orders games. Zero values mean "no filter".
type Query struct {
	Statuses []models.Status
	// DateFrom keeps games whose date is on or after this ISO date. Games
	// without a date are excluded when DateFrom is set.
	DateFrom string
	OrderBy  OrderField
	Desc     bool
}

// AllNewestFirst is the query behind the live dashboard subscription.
var AllNewestFirst = Query{OrderBy: OrderByCreatedAt, Desc: true}

// SnapshotHandler receives subscription callbacks. OnSnapshot always gets the
// full ordered result set, never a delta.
type SnapshotHandler struct {
	OnSnapshot func(games []models.Game)
	OnError    func(err error)
}

// Collection is the remote document store holding game records.
type Collection interface {
	// Subscribe delivers the full result set for q now and after every change
	// until ctx is done. It blocks for the life of the subscription.
	Subscribe(ctx context.Context, q Query, h SnapshotHandler) error
	Query(ctx context.Context, q Query) ([]models.Game, error)
	Create(ctx context.Context, g models.Game) (uuid.UUID, error)
	UpdatePartial(ctx context.Context, id uuid.UUID, patch models.GamePatch) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Matches reports whether g passes the filters of q.
func (q Query) Matches(g models.Game) bool {
	if len(q.Statuses) > 0 {
		ok := false
		for _, s := range q.Statuses {
			if g.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if q.DateFrom != "" {
		d, err := time.Parse(time.DateOnly, g.Date)
		if err != nil {
			return false
		}
		from, err := time.Parse(time.DateOnly, q.DateFrom)
		if err == nil && d.Before(from) {
			return false
		}
	}
	return true
}

// Apply filters and orders games in place of a server-side query.
func (q Query) Apply(games []models.Game) []models.Game {
	out := make([]models.Game, 0, len(games))
	for _, g := range games {
		if q.Matches(g) {
			out = append(out, g.Clone())
		}
	}
	less := func(a, b models.Game) bool {
		switch q.OrderBy {
		case OrderByDate:
			return a.Date < b.Date
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			if q.Desc {
				return less(out[j], out[i])
			}
			return less(out[i], out[j])
		})
	}
	return out
}
