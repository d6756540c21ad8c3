// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/sirupsen/logrus"
)

// ChangeFeed carries "something changed" signals between writers and
// subscribers. Payloads are not needed since subscribers re-query.
type ChangeFeed interface {
	Publish(ctx context.Context, gameID uuid.UUID) error
	// Listen returns a channel that receives one value per change (coalesced).
	// The channel is closed when the feed drops or ctx is done.
	Listen(ctx context.Context) (<-chan struct{}, error)
}

// GamesCollection stores games as rows with JSONB task/team columns and
// implements store.Collection.
type GamesCollection struct {
	pool       *pgxpool.Pool
	feed       ChangeFeed
	logger     *logrus.Logger
	retryDelay time.Duration
}

// NewGamesCollection wires a pool and a change feed together.
func NewGamesCollection(pool *pgxpool.Pool, feed ChangeFeed, logger *logrus.Logger, retryDelay time.Duration) *GamesCollection {
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &GamesCollection{pool: pool, feed: feed, logger: logger, retryDelay: retryDelay}
}

const gameColumns = `id, name, venue, date, time, status, tasks, teams, created_at`

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
}

// Query runs a one-shot select.
func (c *GamesCollection) Query(ctx context.Context, q store.Query) ([]models.Game, error) {
	sql, args := buildSelect(q)
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, unavailable("query games", err)
	}
	defer rows.Close()

	games := []models.Game{}
	for rows.Next() {
		var (
			g            models.Game
			status       string
			tasks, teams []byte
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Venue, &g.Date, &g.Time, &status, &tasks, &teams, &g.CreatedAt); err != nil {
			return nil, unavailable("scan game", err)
		}
		g.Status = models.Status(status)
		if len(tasks) > 0 {
			if err := json.Unmarshal(tasks, &g.Tasks); err != nil {
				return nil, fmt.Errorf("decode tasks of game %s: %w", g.ID, err)
			}
		}
		if len(teams) > 0 {
			if err := json.Unmarshal(teams, &g.Teams); err != nil {
				return nil, fmt.Errorf("decode teams of game %s: %w", g.ID, err)
			}
		}
		g.Normalize()
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate games", err)
	}
	return games, nil
}

// Create inserts a new game row and returns its freshly assigned id.
func (c *GamesCollection) Create(ctx context.Context, g models.Game) (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to generate game id: %w", err)
	}
	g.Normalize()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	tasks, err := json.Marshal(g.Tasks)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode tasks: %w", err)
	}
	teams, err := json.Marshal(g.Teams)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode teams: %w", err)
	}

	q := `INSERT INTO games (` + gameColumns + `)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	err = pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, id, g.Name, g.Venue, g.Date, g.Time, string(g.Status), tasks, teams, g.CreatedAt)
		return e
	})
	if err != nil {
		return uuid.Nil, unavailable("insert game", err)
	}
	c.changed(ctx, id)
	return id, nil
}

// UpdatePartial merges the non-nil patch fields into the stored row.
func (c *GamesCollection) UpdatePartial(ctx context.Context, id uuid.UUID, patch models.GamePatch) error {
	sql, args, err := buildUpdate(id, patch)
	if err != nil {
		return err
	}
	if sql == "" {
		return nil
	}
	var affected int64
	err = pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, e := tx.Exec(ctx, sql, args...)
		affected = tag.RowsAffected()
		return e
	})
	if err != nil {
		return unavailable("update game", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	c.changed(ctx, id)
	return nil
}

// Delete removes a game row. Deleting a missing id is not an error.
func (c *GamesCollection) Delete(ctx context.Context, id uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
		return e
	})
	if err != nil {
		return unavailable("delete game", err)
	}
	c.changed(ctx, id)
	return nil
}

// Subscribe listens on the change feed and re-queries the full result set on
// every signal. A dropped feed is reported through OnError and retried after
// retryDelay; the loop only ends with ctx.
func (c *GamesCollection) Subscribe(ctx context.Context, q store.Query, h store.SnapshotHandler) error {
	deliver := func() {
		games, err := c.Query(ctx, q)
		if err != nil {
			if ctx.Err() == nil && h.OnError != nil {
				h.OnError(err)
			}
			return
		}
		if h.OnSnapshot != nil {
			h.OnSnapshot(games)
		}
	}

	for {
		changes, err := c.feed.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if h.OnError != nil {
				h.OnError(unavailable("listen for changes", err))
			}
		} else {
			// (Re)sync after the listener is up so no change is missed.
			deliver()
			for range changes {
				deliver()
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if h.OnError != nil {
				h.OnError(unavailable("change feed", errors.New("feed closed")))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *GamesCollection) changed(ctx context.Context, id uuid.UUID) {
	if c.feed == nil {
		return
	}
	if err := c.feed.Publish(ctx, id); err != nil && c.logger != nil {
		// The write succeeded; subscribers catch up on the next change.
		c.logger.WithError(err).WithField("game_id", id).Warn("failed to publish game change")
	}
}

// buildSelect renders q as SQL with positional args.
func buildSelect(q store.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	if len(q.Statuses) > 0 {
		codes := make([]string, 0, len(q.Statuses))
		for _, s := range q.Statuses {
			codes = append(codes, string(s))
		}
		args = append(args, codes)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if q.DateFrom != "" {
		args = append(args, q.DateFrom)
		where = append(where, fmt.Sprintf("date <> '' AND date >= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + gameColumns + " FROM games")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	switch q.OrderBy {
	case store.OrderByCreatedAt, store.OrderByDate:
		b.WriteString(" ORDER BY " + string(q.OrderBy))
		if q.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
	return b.String(), args
}

// buildUpdate renders patch as an UPDATE statement. An empty patch yields "".
func buildUpdate(id uuid.UUID, patch models.GamePatch) (string, []any, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Venue != nil {
		add("venue", *patch.Venue)
	}
	if patch.Date != nil {
		add("date", *patch.Date)
	}
	if patch.Time != nil {
		add("time", *patch.Time)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Tasks != nil {
		data, err := json.Marshal(models.CloneTasks(*patch.Tasks))
		if err != nil {
			return "", nil, fmt.Errorf("encode tasks: %w", err)
		}
		add("tasks", data)
	}
	if patch.Teams != nil {
		data, err := json.Marshal(models.CloneTeams(*patch.Teams))
		if err != nil {
			return "", nil, fmt.Errorf("encode teams: %w", err)
		}
		add("teams", data)
	}
	if len(sets) == 0 {
		return "", nil, nil
	}
	args = append(args, id)
	return fmt.Sprintf("UPDATE games SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args, nil
}
