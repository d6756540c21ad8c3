package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/notify"
	"github.com/jason-s-yu/quizdesk/internal/templates"
)

// TeamInput is the manually entered part of a team.
type TeamInput struct {
	Name              string `json:"name"`
	MemberCount       int    `json:"memberCount"`
	CaptainName       string `json:"captainName,omitempty"`
	CaptainSocialLink string `json:"captainSocialLink,omitempty"`
}

// Each derived operation below reads the current sub-sequence from the
// mirror, computes the next one locally and writes it back whole. A game or
// item missing from the mirror makes the call a no-op.

// AddTask appends an incomplete task to a game's checklist.
func (g *Gateway) AddTask(ctx context.Context, gameID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		verr := &models.ValidationError{}
		verr.Add(models.FieldName, models.MsgNameRequired)
		return verr
	}
	game, ok := g.mirror.Get(gameID)
	if !ok {
		return nil
	}
	tasks := append(game.Tasks, models.Task{ID: models.NewTaskID(), Name: name})
	return g.SetTaskList(ctx, gameID, tasks)
}

// ToggleTask flips the completed flag of one task.
func (g *Gateway) ToggleTask(ctx context.Context, gameID, taskID uuid.UUID) error {
	game, ok := g.mirror.Get(gameID)
	if !ok {
		return nil
	}
	i := game.FindTask(taskID)
	if i < 0 {
		return nil
	}
	game.Tasks[i].Completed = !game.Tasks[i].Completed
	return g.SetTaskList(ctx, gameID, game.Tasks)
}

// RemoveTask drops one task after confirmation.
func (g *Gateway) RemoveTask(ctx context.Context, gameID, taskID uuid.UUID, c Confirmer) error {
	if !confirm(ctx, c, PromptDeleteTask) {
		return ErrNotConfirmed
	}
	game, ok := g.mirror.Get(gameID)
	if !ok || game.FindTask(taskID) < 0 {
		return nil
	}
	tasks := make([]models.Task, 0, len(game.Tasks))
	for _, t := range game.Tasks {
		if t.ID != taskID {
			tasks = append(tasks, t)
		}
	}
	return g.SetTaskList(ctx, gameID, tasks)
}

func checkTeam(game models.Game, in TeamInput, self uuid.UUID) error {
	verr := &models.ValidationError{}
	if msg := models.CheckTeamName(in.Name); msg != "" {
		verr.Add(models.FieldTeamName, msg)
	} else if game.HasTeamName(in.Name, self) {
		verr.Add(models.FieldTeamName, models.MsgTeamNameTaken)
	}
	if msg := models.CheckMemberCount(in.MemberCount); msg != "" {
		verr.Add(models.FieldMemberCount, msg)
	}
	return verr.OrNil()
}

// AddTeam appends a manually entered team numbered after the last one.
func (g *Gateway) AddTeam(ctx context.Context, gameID uuid.UUID, in TeamInput) error {
	game, ok := g.mirror.Get(gameID)
	if !ok {
		return nil
	}
	if err := checkTeam(game, in, uuid.Nil); err != nil {
		return err
	}
	team := models.Team{
		ID:                models.NewTeamID(),
		Number:            len(game.Teams) + 1,
		Name:              strings.TrimSpace(in.Name),
		MemberCount:       in.MemberCount,
		CaptainName:       strings.TrimSpace(in.CaptainName),
		CaptainSocialLink: strings.TrimSpace(in.CaptainSocialLink),
	}
	return g.SetTeamList(ctx, gameID, append(game.Teams, team))
}

// EditTeam merges new field values into an existing team, keeping its id,
// number and registration metadata.
func (g *Gateway) EditTeam(ctx context.Context, gameID, teamID uuid.UUID, in TeamInput) error {
	game, ok := g.mirror.Get(gameID)
	if !ok {
		return nil
	}
	i := game.FindTeam(teamID)
	if i < 0 {
		return nil
	}
	if err := checkTeam(game, in, teamID); err != nil {
		return err
	}
	t := &game.Teams[i]
	t.Name = strings.TrimSpace(in.Name)
	t.MemberCount = in.MemberCount
	t.CaptainName = strings.TrimSpace(in.CaptainName)
	t.CaptainSocialLink = strings.TrimSpace(in.CaptainSocialLink)
	return g.SetTeamList(ctx, gameID, game.Teams)
}

// RemoveTeam drops one team after confirmation and renumbers the rest 1..N.
func (g *Gateway) RemoveTeam(ctx context.Context, gameID, teamID uuid.UUID, c Confirmer) error {
	if !confirm(ctx, c, PromptDeleteTeam) {
		return ErrNotConfirmed
	}
	game, ok := g.mirror.Get(gameID)
	if !ok || game.FindTeam(teamID) < 0 {
		return nil
	}
	teams := make([]models.Team, 0, len(game.Teams))
	for _, t := range game.Teams {
		if t.ID != teamID {
			teams = append(teams, t)
		}
	}
	return g.SetTeamList(ctx, gameID, models.RenumberTeams(teams))
}

// AddTemplateTask appends to the local template. Existing games keep their
// checklists.
func (g *Gateway) AddTemplateTask(ctx context.Context, name string) error {
	err := g.templates.Add(ctx, name)
	return g.finishTemplate(OpAddTemplateTask, err)
}

// RemoveTemplateTask drops the template entry at index after confirmation.
func (g *Gateway) RemoveTemplateTask(ctx context.Context, index int, c Confirmer) error {
	if !confirm(ctx, c, PromptDeleteTemplateTask) {
		return ErrNotConfirmed
	}
	err := g.templates.RemoveAt(ctx, index)
	return g.finishTemplate(OpRemoveTemplateTask, err)
}

func (g *Gateway) finishTemplate(op string, err error) error {
	var verr *models.ValidationError
	switch {
	case err == nil:
		g.metrics.RecordMutation(op, nil)
		return nil
	case errors.Is(err, templates.ErrNoSuchTask):
		g.logger.WithField("op", op).Debug("template entry already gone")
		return nil
	case errors.As(err, &verr):
		return err
	default:
		g.metrics.RecordMutation(op, err)
		g.logger.WithError(err).WithField("op", op).Error("template update failed")
		g.notifier.Notify("Ошибка при сохранении шаблона", notify.Error)
		return err
	}
}
