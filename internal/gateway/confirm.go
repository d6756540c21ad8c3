package gateway

import "context"

// Prompts shown before destructive operations.
const (
	PromptDeleteGame         = "Вы уверены, что хотите удалить эту игру?"
	PromptDeleteTask         = "Удалить эту задачу?"
	PromptDeleteTeam         = "Удалить эту команду?"
	PromptDeleteTemplateTask = "Удалить эту задачу из шаблона?"
)

// Confirmer asks the user a yes/no question and blocks for the answer.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Answer is a Confirmer with a fixed reply, used when the answer arrived with
// the request itself (e.g. a "confirm" flag in an HTTP body).
type Answer bool

func (a Answer) Confirm(context.Context, string) bool { return bool(a) }

func confirm(ctx context.Context, c Confirmer, prompt string) bool {
	if c == nil {
		return false
	}
	return c.Confirm(ctx, prompt)
}
