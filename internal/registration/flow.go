// internal/registration/flow.go
package registration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/metrics"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/sirupsen/logrus"
)

// Source tags teams that registered themselves through the public form.
const Source = "public_form"

// DefaultDismiss is how long registration notifications stay visible.
const DefaultDismiss = 5 * time.Second

// ErrNoGameSelected is returned by Submit when no game is selected.
var ErrNoGameSelected = errors.New("no game selected")

// TeamWriter replaces a game's roster. The mutation gateway implements it.
type TeamWriter interface {
	RegisterTeamList(ctx context.Context, gameID uuid.UUID, teams []models.Team) error
}

// Form is the raw registration input as typed by the user.
type Form struct {
	TeamName       string `json:"teamName"`
	MemberCount    string `json:"memberCount"`
	CaptainName    string `json:"captainName"`
	CaptainContact string `json:"captainContact"`
}

// GameInfo is what the form shows about the selected game.
type GameInfo struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Date         string        `json:"date"`
	Time         string        `json:"time"`
	Venue        string        `json:"venue"`
	Status       models.Status `json:"status"`
	StatusLabel  string        `json:"statusLabel"`
	TeamCount    int           `json:"teamCount"`
	Participants int           `json:"participants"`
}

// Option is one entry of the game selector.
type Option struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}

// Flow is one visitor's registration session. It keeps the games it loaded
// and validates and submits against that snapshot without re-fetching.
type Flow struct {
	coll     store.Collection
	writer   TeamWriter
	notifier notify.Notifier
	logger   *logrus.Logger
	metrics  *metrics.Recorder
	now      func() time.Time

	mu         sync.Mutex
	games      []models.Game
	selected   uuid.NullUUID
	errs       map[string]string
	submitting bool
	confirmed  *models.Team
}

// New builds a Flow. notifier, logger and rec may be nil.
func New(coll store.Collection, writer TeamWriter, notifier notify.Notifier, logger *logrus.Logger, rec *metrics.Recorder) *Flow {
	if notifier == nil {
		notifier = notify.Multi{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Flow{
		coll:     coll,
		writer:   writer,
		notifier: notifier,
		logger:   logger,
		metrics:  rec,
		now:      time.Now,
		errs:     map[string]string{},
	}
}

// SetClock overrides time.Now.
func (f *Flow) SetClock(now func() time.Time) { f.now = now }

// OpenQuery selects planned or running games dated today or later, soonest
// first. Today starts at local midnight.
func OpenQuery(now time.Time) store.Query {
	var open []models.Status
	for _, s := range models.Statuses() {
		if s.Open() {
			open = append(open, s)
		}
	}
	return store.Query{
		Statuses: open,
		DateFrom: now.Format(time.DateOnly),
		OrderBy:  store.OrderByDate,
	}
}

// Load fetches the games open for registration. On failure the previous
// list is kept.
func (f *Flow) Load(ctx context.Context) ([]models.Game, error) {
	games, err := f.coll.Query(ctx, OpenQuery(f.now()))
	if err != nil {
		f.logger.WithError(err).Error("failed to load games for registration")
		f.notifier.Notify("Ошибка загрузки игр. Попробуйте позже.", notify.Error)
		return nil, err
	}

	open := make([]models.Game, 0, len(games))
	for _, g := range games {
		if g.Name == "" || g.Date == "" {
			continue
		}
		g.Normalize()
		open = append(open, g)
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].Date < open[j].Date })

	f.mu.Lock()
	f.games = open
	if f.selected.Valid && f.find(f.selected.UUID) < 0 {
		f.selected = uuid.NullUUID{}
	}
	f.mu.Unlock()
	return f.Games(), nil
}

// Games returns a copy of the last loaded list.
func (f *Flow) Games() []models.Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Game, len(f.games))
	for i, g := range f.games {
		out[i] = g.Clone()
	}
	return out
}

// Options renders the game selector, e.g. "Quiz - 2026-11-01 в 19:00".
func (f *Flow) Options() []Option {
	games := f.Games()
	out := make([]Option, 0, len(games))
	for _, g := range games {
		label := fmt.Sprintf("%s - %s", g.Name, g.Date)
		if g.Time != "" {
			label += " в " + g.Time
		}
		out = append(out, Option{ID: g.ID, Label: label})
	}
	return out
}

func (f *Flow) find(id uuid.UUID) int {
	for i, g := range f.games {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// Select picks a loaded game, or clears the selection when id is not loaded.
// It reports whether a game is now selected.
func (f *Flow) Select(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(id) < 0 {
		f.selected = uuid.NullUUID{}
		return false
	}
	f.selected = uuid.NullUUID{UUID: id, Valid: true}
	return true
}

// Selected describes the selected game.
func (f *Flow) Selected() (GameInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.selectedGame()
	if !ok {
		return GameInfo{}, false
	}
	return infoOf(g), true
}

// Infos describes every loaded game. Team details stay private.
func (f *Flow) Infos() []GameInfo {
	games := f.Games()
	out := make([]GameInfo, 0, len(games))
	for _, g := range games {
		out = append(out, infoOf(g))
	}
	return out
}

func infoOf(g models.Game) GameInfo {
	return GameInfo{
		ID:           g.ID,
		Name:         g.Name,
		Date:         g.Date,
		Time:         g.Time,
		Venue:        g.Venue,
		Status:       g.Status,
		StatusLabel:  g.Status.Label(),
		TeamCount:    len(g.Teams),
		Participants: g.Participants(),
	}
}

// selectedGame must be called with f.mu held.
func (f *Flow) selectedGame() (models.Game, bool) {
	if !f.selected.Valid {
		return models.Game{}, false
	}
	i := f.find(f.selected.UUID)
	if i < 0 {
		return models.Game{}, false
	}
	return f.games[i].Clone(), true
}

// ValidateTeamName checks length and uniqueness within the selected game.
func (f *Flow) ValidateTeamName(name string) string {
	if msg := models.CheckTeamName(name); msg != "" {
		return f.setFieldError(models.FieldTeamName, msg)
	}
	f.mu.Lock()
	g, ok := f.selectedGame()
	f.mu.Unlock()
	if ok && g.HasTeamName(name, uuid.Nil) {
		return f.setFieldError(models.FieldTeamName, models.MsgTeamNameTaken)
	}
	return f.setFieldError(models.FieldTeamName, "")
}

// ValidateMemberCount checks that raw is an integer within 1..20.
func (f *Flow) ValidateMemberCount(raw string) string {
	_, msg := models.ParseMemberCount(raw)
	return f.setFieldError(models.FieldMemberCount, msg)
}

// ValidateCaptainContact requires a well-formed URL.
func (f *Flow) ValidateCaptainContact(raw string) string {
	return f.setFieldError(models.FieldCaptainContact, models.CheckURL(raw))
}

func (f *Flow) setFieldError(field, msg string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg == "" {
		delete(f.errs, field)
	} else {
		f.errs[field] = msg
	}
	return msg
}

// FieldErrors returns the current per-field messages.
func (f *Flow) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errs))
	for k, v := range f.errs {
		out[k] = v
	}
	return out
}

// Validate runs every field check and requires a selected game.
func (f *Flow) Validate(form Form) error {
	verr := &models.ValidationError{}
	f.mu.Lock()
	_, selected := f.selectedGame()
	f.mu.Unlock()
	if !selected {
		verr.Add(models.FieldGame, models.MsgSelectGame)
	}
	if msg := f.ValidateTeamName(form.TeamName); msg != "" {
		verr.Add(models.FieldTeamName, msg)
	}
	if msg := f.ValidateMemberCount(form.MemberCount); msg != "" {
		verr.Add(models.FieldMemberCount, msg)
	}
	if msg := f.ValidateCaptainContact(form.CaptainContact); msg != "" {
		verr.Add(models.FieldCaptainContact, msg)
	}
	return verr.OrNil()
}

// Submit validates form and appends a new team to the selected game's roster
// as last loaded. On failure the form state is left as it was so the user can
// submit again.
func (f *Flow) Submit(ctx context.Context, form Form) (models.Team, error) {
	if err := f.Validate(form); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			if _, ok := verr.Fields[models.FieldGame]; ok {
				f.notifier.Notify(models.MsgSelectGame, notify.Error)
			}
		}
		f.metrics.RecordRegistration("invalid")
		return models.Team{}, err
	}

	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return models.Team{}, errors.New("registration already in progress")
	}
	g, ok := f.selectedGame()
	if !ok {
		f.mu.Unlock()
		return models.Team{}, ErrNoGameSelected
	}
	f.submitting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	count, _ := models.ParseMemberCount(form.MemberCount)
	registeredAt := f.now()
	team := models.Team{
		ID:                 models.NewTeamID(),
		Number:             len(g.Teams) + 1,
		Name:               strings.TrimSpace(form.TeamName),
		MemberCount:        count,
		CaptainSocialLink:  strings.TrimSpace(form.CaptainContact),
		CaptainName:        strings.TrimSpace(form.CaptainName),
		RegisteredAt:       &registeredAt,
		RegistrationSource: Source,
	}
	teams := append(models.CloneTeams(g.Teams), team)

	if err := f.writer.RegisterTeamList(ctx, g.ID, teams); err != nil {
		f.logger.WithError(err).WithField("game_id", g.ID).Error("team registration failed")
		f.notifier.Notify("Ошибка при регистрации команды: "+err.Error(), notify.Error)
		f.metrics.RecordRegistration("error")
		return models.Team{}, err
	}

	f.mu.Lock()
	f.confirmed = &team
	if i := f.find(g.ID); i >= 0 {
		f.games[i].Teams = teams
	}
	f.mu.Unlock()

	f.logger.WithFields(logrus.Fields{"game_id": g.ID, "team": team.Name}).Info("team registered")
	f.metrics.RecordRegistration("ok")
	return team, nil
}

// Submitting reports whether a submission is in flight.
func (f *Flow) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Confirmed returns the team registered by the last successful Submit.
func (f *Flow) Confirmed() (models.Team, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmed == nil {
		return models.Team{}, false
	}
	return *f.confirmed, true
}

// Reset starts over for another team: field errors, selection and
// confirmation are cleared. Loaded games are kept.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = map[string]string{}
	f.selected = uuid.NullUUID{}
	f.confirmed = nil
}
