package database

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizdesk/internal/models"
	"github.com/jason-s-yu/quizdesk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelectNewestFirst(t *testing.T) {
	sql, args := buildSelect(store.AllNewestFirst)
	assert.Equal(t, "SELECT "+gameColumns+" FROM games ORDER BY created_at DESC", sql)
	assert.Empty(t, args)
}

func TestBuildSelectOpenGames(t *testing.T) {
	q := store.Query{
		Statuses: []models.Status{models.StatusPlanned, models.StatusInProgress},
		DateFrom: "2026-10-19",
		OrderBy:  store.OrderByDate,
	}
	sql, args := buildSelect(q)
	assert.Equal(t,
		"SELECT "+gameColumns+" FROM games WHERE status = ANY($1) AND date <> '' AND date >= $2 ORDER BY date ASC",
		sql)
	require.Len(t, args, 2)
	assert.Equal(t, []string{"planned", "in_progress"}, args[0])
	assert.Equal(t, "2026-10-19", args[1])
}

func TestBuildUpdateOnlyTouchesGivenFields(t *testing.T) {
	id := uuid.New()
	name := "Осенний квиз"
	status := models.StatusCompleted
	sql, args, err := buildUpdate(id, models.GamePatch{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE games SET name = $1, status = $2 WHERE id = $3", sql)
	assert.Equal(t, []any{name, "completed", id}, args)
}

func TestBuildUpdateEncodesTeams(t *testing.T) {
	id := uuid.New()
	teams := []models.Team{{ID: uuid.New(), Number: 1, Name: "Альфа", MemberCount: 4}}
	sql, args, err := buildUpdate(id, models.GamePatch{Teams: &teams})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE games SET teams = $1 WHERE id = $2", sql)

	var decoded []models.Team
	require.NoError(t, json.Unmarshal(args[0].([]byte), &decoded))
	assert.Equal(t, teams, decoded)
}

func TestBuildUpdateEmptyPatch(t *testing.T) {
	sql, args, err := buildUpdate(uuid.New(), models.GamePatch{})
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}
