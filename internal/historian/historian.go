// Package historian drains the mutation audit queue into Postgres in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/quizdesk/internal/cache"
	"github.com/sirupsen/logrus"
)

// Source yields queued mutation records. cache.MutationQueue implements it.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.MutationRecord, error)
}

// Sink persists a batch of records atomically.
type Sink interface {
	Write(ctx context.Context, records []cache.MutationRecord) error
}

// DefaultPopTimeout bounds each blocking pop so cancellation is noticed.
const DefaultPopTimeout = 3 * time.Second

// Service accumulates records from a Source and flushes them to a Sink when
// the batch is full or the flush interval passes.
type Service struct {
	source     Source
	sink       Sink
	logger     *logrus.Logger
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration

	batchMu sync.Mutex
	batch   []cache.MutationRecord
}

// New builds a Service. Non-positive sizes fall back to 20 records and 500ms.
func New(source Source, sink Sink, logger *logrus.Logger, batchSize int, flushDelay time.Duration) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		source:     source,
		sink:       sink,
		logger:     logger,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		popTimeout: DefaultPopTimeout,
		batch:      make([]cache.MutationRecord, 0, batchSize),
	}
}

// SetPopTimeout overrides DefaultPopTimeout.
func (s *Service) SetPopTimeout(d time.Duration) { s.popTimeout = d }

// Run pops until ctx is cancelled, then flushes what is left. Pops happen on
// their own goroutine so a blocking pop never delays the flush interval.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	popDone := make(chan struct{})
	go func() {
		defer close(popDone)
		s.popLoop(ctx)
	}()

	s.logger.Info("historian started")
	for {
		select {
		case <-ctx.Done():
			<-popDone
			s.Flush(context.WithoutCancel(ctx))
			s.logger.Info("historian shutting down")
			return nil

		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Service) popLoop(ctx context.Context) {
	for ctx.Err() == nil {
		rec, err := s.source.Pop(ctx, s.popTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.logger.WithError(err).Error("historian: pop failed")
			select {
			case <-ctx.Done():
			case <-time.After(s.popTimeout):
			}
			continue
		}
		if rec == nil {
			continue
		}
		s.append(ctx, *rec)
	}
}

// append adds a record and flushes once the batch is full.
func (s *Service) append(ctx context.Context, rec cache.MutationRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch. A failed batch is dropped and logged.
func (s *Service) Flush(ctx context.Context) int {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return 0
	}
	pending := make([]cache.MutationRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.sink.Write(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("records", len(pending)).Error("historian: flush failed")
		return 0
	}
	s.logger.Debugf("flushed %d mutation records", len(pending))
	return len(pending)
}

// PostgresSink inserts records into game_mutations.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink returns a sink writing through pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Write inserts the batch in one transaction.
func (p *PostgresSink) Write(ctx context.Context, records []cache.MutationRecord) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := insertMutationTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertMutationTx: %w", err)
			}
		}
		return nil
	})
}

func insertMutationTx(ctx context.Context, tx pgx.Tx, rec cache.MutationRecord) error {
	var detail []byte
	if rec.Detail != nil {
		b, err := json.Marshal(rec.Detail)
		if err != nil {
			return err
		}
		detail = b
	}
	q := `
		INSERT INTO game_mutations (game_id, op, ok, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(ctx, q, rec.GameID, rec.Op, rec.OK, detail, time.UnixMilli(rec.Timestamp).UTC())
	return err
}
