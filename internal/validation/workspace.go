package validation

import (
	"fmt"
	"regexp"
)

// WorkspaceIDPattern определяет допустимый формат идентификатора workspace
// Только латинские буквы (a-z, A-Z), цифры (0-9), дефис (-) и нижнее
// подчеркивание (_)
// Длина: 3-64 символа
var WorkspaceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

const (
	// MinWorkspaceIDLen минимальная длина идентификатора workspace
	MinWorkspaceIDLen = 3
	// MaxWorkspaceIDLen максимальная длина идентификатора workspace
	MaxWorkspaceIDLen = 64
)

// ValidateWorkspaceID проверяет, что идентификатор workspace соответствует
// требованиям. Идентификатор попадает в пути URL и имена каналов fanout,
// поэтому формат жесткий.
func ValidateWorkspaceID(workspaceID string) error {
	if workspaceID == "" {
		return fmt.Errorf("workspace id cannot be empty")
	}

	if len(workspaceID) < MinWorkspaceIDLen {
		return fmt.Errorf("workspace id must be at least %d characters long", MinWorkspaceIDLen)
	}

	if len(workspaceID) > MaxWorkspaceIDLen {
		return fmt.Errorf("workspace id must not exceed %d characters", MaxWorkspaceIDLen)
	}

	if !WorkspaceIDPattern.MatchString(workspaceID) {
		return fmt.Errorf("workspace id can only contain letters (a-z, A-Z), numbers (0-9), hyphens (-), and underscores (_)")
	}

	return nil
}
