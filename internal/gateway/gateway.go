// internal/gateway/gateway.go
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/cache"
	"github.com/jason-s-yu/quizdesk/internal/metrics"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/jason-s-yu/quizdesk/internal/templates"
	"github.com/sirupsen/logrus"
)

// ErrNotConfirmed is returned when a destructive operation was declined.
var ErrNotConfirmed = errors.New("operation not confirmed")

// Operation names, used for metrics labels and audit records.
const (
	OpCreateGame         = "create_game"
	OpUpdateGame         = "update_game"
	OpDeleteGame         = "delete_game"
	OpDuplicateGame      = "duplicate_game"
	OpSetTasks           = "set_tasks"
	OpSetTeams           = "set_teams"
	OpRegisterTeam       = "register_team"
	OpAddTemplateTask    = "add_template_task"
	OpRemoveTemplateTask = "remove_template_task"
)

// Reader is the read side the gateway derives new sub-sequences from.
type Reader interface {
	Get(id uuid.UUID) (models.Game, bool)
}

// Auditor receives a record of every remote write. *cache.MutationQueue
// satisfies it.
type Auditor interface {
	Push(ctx context.Context, rec cache.MutationRecord) error
}

// Gateway is the only write path to the games collection. Every call makes
// one remote write followed by a notification.
//
// Calls are not serialized. Two writes of the same task or team list race,
// and the one resolving last wins, dropping the other's change.
type Gateway struct {
	coll      store.Collection
	mirror    Reader
	templates *templates.List
	notifier  notify.Notifier
	logger    *logrus.Logger
	metrics   *metrics.Recorder
	audit     Auditor
	now       func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAuditor pushes an audit record after each remote write.
func WithAuditor(a Auditor) Option {
	return func(g *Gateway) { g.audit = a }
}

// WithMetrics counts writes by operation and result.
func WithMetrics(r *metrics.Recorder) Option {
	return func(g *Gateway) { g.metrics = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New builds a Gateway. notifier and logger may be nil.
func New(coll store.Collection, mirror Reader, tmpl *templates.List, notifier notify.Notifier, logger *logrus.Logger, opts ...Option) *Gateway {
	if notifier == nil {
		notifier = notify.Multi{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	g := &Gateway{
		coll:      coll,
		mirror:    mirror,
		templates: tmpl,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// finish logs, counts, audits and notifies the outcome of one remote write.
// ErrNotFound is swallowed: the mirror may lag the store by one push.
func (g *Gateway) finish(ctx context.Context, op string, id uuid.UUID, err error, okMsg, failMsg string) error {
	if errors.Is(err, store.ErrNotFound) {
		g.logger.WithFields(logrus.Fields{"op": op, "game_id": id}).Debug("game vanished before write, skipping")
		return nil
	}

	g.metrics.RecordMutation(op, err)
	g.record(ctx, op, id, err)

	if err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{"op": op, "game_id": id}).Error("mutation failed")
		g.notifier.Notify(failMsg, notify.Error)
		return err
	}
	g.logger.WithFields(logrus.Fields{"op": op, "game_id": id}).Debug("mutation applied")
	g.notifier.Notify(okMsg, notify.Success)
	return nil
}

func (g *Gateway) record(ctx context.Context, op string, id uuid.UUID, err error) {
	if g.audit == nil {
		return
	}
	rec := cache.MutationRecord{
		GameID:    id,
		Op:        op,
		OK:        err == nil,
		Timestamp: g.now().UnixMilli(),
	}
	if err != nil {
		rec.Detail = map[string]any{"error": err.Error()}
	}
	if aerr := g.audit.Push(context.WithoutCancel(ctx), rec); aerr != nil {
		g.logger.WithError(aerr).WithField("op", op).Warn("failed to enqueue mutation record")
	}
}

func checkGameFields(f models.GameFields) error {
	verr := &models.ValidationError{}
	if strings.TrimSpace(f.Name) == "" {
		verr.Add(models.FieldName, models.MsgNameRequired)
	}
	if strings.TrimSpace(f.Venue) == "" {
		verr.Add(models.FieldVenue, models.MsgVenueRequired)
	}
	if f.Status != "" && !f.Status.Valid() {
		verr.Add(models.FieldStatus, models.MsgUnknownStatus)
	}
	return verr.OrNil()
}

// CreateGame writes a new game whose checklist is a fresh expansion of the
// current template.
func (g *Gateway) CreateGame(ctx context.Context, f models.GameFields) (uuid.UUID, error) {
	if err := checkGameFields(f); err != nil {
		return uuid.Nil, err
	}
	if f.Status == "" {
		f.Status = models.StatusPlanned
	}

	var names []string
	if g.templates != nil {
		names = g.templates.Names()
	}
	game := models.Game{
		Name:      strings.TrimSpace(f.Name),
		Venue:     strings.TrimSpace(f.Venue),
		Date:      f.Date,
		Time:      f.Time,
		Status:    f.Status,
		Tasks:     models.TasksFromTemplate(names),
		Teams:     []models.Team{},
		CreatedAt: g.now(),
	}

	id, err := g.coll.Create(ctx, game)
	return id, g.finish(ctx, OpCreateGame, id, err, "Игра успешно добавлена!", "Ошибка при добавлении игры")
}

// UpdateGame merges patch into the stored game. Name and venue, when given,
// are trimmed and must stay non-empty.
func (g *Gateway) UpdateGame(ctx context.Context, id uuid.UUID, patch models.GamePatch) error {
	verr := &models.ValidationError{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			verr.Add(models.FieldName, models.MsgNameRequired)
		}
		patch.Name = &name
	}
	if patch.Venue != nil {
		venue := strings.TrimSpace(*patch.Venue)
		if venue == "" {
			verr.Add(models.FieldVenue, models.MsgVenueRequired)
		}
		patch.Venue = &venue
	}
	if patch.Status != nil && !patch.Status.Valid() {
		verr.Add(models.FieldStatus, models.MsgUnknownStatus)
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	err := g.coll.UpdatePartial(ctx, id, patch)
	return g.finish(ctx, OpUpdateGame, id, err, "Игра обновлена!", "Ошибка при обновлении игры")
}

// DeleteGame removes a game after confirmation.
func (g *Gateway) DeleteGame(ctx context.Context, id uuid.UUID, c Confirmer) error {
	if !confirm(ctx, c, PromptDeleteGame) {
		return ErrNotConfirmed
	}
	err := g.coll.Delete(ctx, id)
	return g.finish(ctx, OpDeleteGame, id, err, "Игра удалена!", "Ошибка при удалении игры")
}

// DuplicateGame copies a mirrored game into a new planned, undated game with
// a reset checklist and no teams. A game missing from the mirror is a no-op.
func (g *Gateway) DuplicateGame(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	src, ok := g.mirror.Get(id)
	if !ok {
		g.logger.WithField("game_id", id).Debug("duplicate: game not in mirror")
		return uuid.Nil, nil
	}
	dup := models.Game{
		Name:      src.Name + models.CopySuffix,
		Venue:     src.Venue,
		Date:      "",
		Time:      src.Time,
		Status:    models.StatusPlanned,
		Tasks:     models.ResetTasks(src.Tasks),
		Teams:     []models.Team{},
		CreatedAt: g.now(),
	}
	newID, err := g.coll.Create(ctx, dup)
	return newID, g.finish(ctx, OpDuplicateGame, newID, err, "Игра успешно добавлена!", "Ошибка при добавлении игры")
}

// SetTaskList replaces the whole checklist of a game.
func (g *Gateway) SetTaskList(ctx context.Context, id uuid.UUID, tasks []models.Task) error {
	next := models.CloneTasks(tasks)
	err := g.coll.UpdatePartial(ctx, id, models.GamePatch{Tasks: &next})
	return g.finish(ctx, OpSetTasks, id, err, "Задачи обновлены!", "Ошибка при обновлении задач")
}

// SetTeamList replaces the whole roster of a game.
func (g *Gateway) SetTeamList(ctx context.Context, id uuid.UUID, teams []models.Team) error {
	next := models.CloneTeams(teams)
	err := g.coll.UpdatePartial(ctx, id, models.GamePatch{Teams: &next})
	return g.finish(ctx, OpSetTeams, id, err, "Список команд обновлен!", "Ошибка при обновлении команд")
}

// RegisterTeamList replaces a roster on behalf of a public registration.
// Unlike SetTeamList it reports store.ErrNotFound, and a failure is left for
// the caller to show; dashboards only hear about successes.
func (g *Gateway) RegisterTeamList(ctx context.Context, id uuid.UUID, teams []models.Team) error {
	next := models.CloneTeams(teams)
	err := g.coll.UpdatePartial(ctx, id, models.GamePatch{Teams: &next})
	g.metrics.RecordMutation(OpRegisterTeam, err)
	g.record(ctx, OpRegisterTeam, id, err)
	if err != nil {
		g.logger.WithError(err).WithField("game_id", id).Warn("registration write failed")
		return err
	}
	g.notifier.Notify("Список команд обновлен!", notify.Success)
	return nil
}
