// internal/models/validation.go
package models

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Field names used in ValidationError.
const (
	FieldTeamName       = "teamName"
	FieldMemberCount    = "memberCount"
	FieldCaptainContact = "captainContact"
	FieldGame           = "game"
	FieldName           = "name"
	FieldVenue          = "venue"
	FieldStatus         = "status"
)

// Field-level messages shown next to rejected inputs.
const (
	MsgTeamNameShort   = "Название команды должно содержать минимум 2 символа"
	MsgTeamNameTaken   = "Команда с таким названием уже зарегистрирована"
	MsgMemberCount     = "Количество участников должно быть от 1 до 20"
	MsgContactRequired = "Контакт капитана обязателен"
	MsgContactInvalid  = "Введите корректную ссылку (например: https://vk.com/...)"
	MsgSelectGame      = "Выберите игру для регистрации"
	MsgNameRequired    = "Введите название"
	MsgVenueRequired   = "Укажите место проведения"
	MsgUnknownStatus   = "Неизвестный статус"
)

// ValidationError collects per-field messages. It is returned when one or more
// inputs are rejected and is rendered inline next to each field.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// CheckTeamName requires at least two characters after trimming.
func CheckTeamName(name string) string {
	if len([]rune(strings.TrimSpace(name))) < 2 {
		return MsgTeamNameShort
	}
	return ""
}

// ParseMemberCount parses and range-checks a member count typed by a user.
func ParseMemberCount(raw string) (int, string) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, MsgMemberCount
	}
	if msg := CheckMemberCount(n); msg != "" {
		return 0, msg
	}
	return n, ""
}

// CheckMemberCount enforces the inclusive [MinMembers, MaxMembers] range.
func CheckMemberCount(n int) string {
	if n < MinMembers || n > MaxMembers {
		return MsgMemberCount
	}
	return ""
}

// CheckURL requires an absolute URL with a scheme and either a host or an
// opaque part (mailto:, tg:).
func CheckURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MsgContactRequired
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") || strings.ContainsAny(raw, " \t") {
		return MsgContactInvalid
	}
	return ""
}
