package dashboard

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/gateway"
	"github.com/jason-s-yu/quizdesk/internal/models"
)

// IntentType names a user action.
type IntentType string

// Navigation intents only change session state.
const (
	SetFilter       IntentType = "set_filter"
	OpenTasks       IntentType = "open_tasks"
	CloseTasks      IntentType = "close_tasks"
	OpenTeams       IntentType = "open_teams"
	CloseTeams      IntentType = "close_teams"
	EditGame        IntentType = "edit_game"
	CloseGameEditor IntentType = "close_game_editor"
	EditTeam        IntentType = "edit_team"
	CloseTeamEditor IntentType = "close_team_editor"
)

// Mutation intents go through the gateway.
const (
	SaveGame           IntentType = "save_game"
	DeleteGame         IntentType = "delete_game"
	DuplicateGame      IntentType = "duplicate_game"
	AddTask            IntentType = "add_task"
	ToggleTask         IntentType = "toggle_task"
	RemoveTask         IntentType = "remove_task"
	SaveTeam           IntentType = "save_team"
	RemoveTeam         IntentType = "remove_team"
	AddTemplateTask    IntentType = "add_template_task"
	RemoveTemplateTask IntentType = "remove_template_task"
)

// Intent is one user action as sent by a client.
type Intent struct {
	Type   IntentType `json:"type"`
	GameID uuid.UUID  `json:"gameId,omitempty"`
	TaskID uuid.UUID  `json:"taskId,omitempty"`
	TeamID uuid.UUID  `json:"teamId,omitempty"`

	Status models.Status `json:"status,omitempty"`
	Search string        `json:"search,omitempty"`

	Name  string `json:"name,omitempty"`
	Index int    `json:"index,omitempty"`

	Game *models.GameFields `json:"game,omitempty"`
	Team *gateway.TeamInput `json:"team,omitempty"`

	// Confirm carries the user's answer to the delete prompt.
	Confirm bool `json:"confirm,omitempty"`
}
