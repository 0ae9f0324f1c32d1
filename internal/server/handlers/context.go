package handlers

import "context"

// contextKey тип для ключей контекста
type contextKey string

const (
	// WorkspaceIDKey ключ для хранения workspace_id в контексте
	WorkspaceIDKey contextKey = "workspace_id"
	// ActorIDKey ключ для хранения actor_id в контексте
	ActorIDKey contextKey = "actor_id"
)

// GetWorkspaceID извлекает workspace_id из контекста запроса
func GetWorkspaceID(ctx context.Context) (string, bool) {
	workspaceID, ok := ctx.Value(WorkspaceIDKey).(string)
	return workspaceID, ok
}

// GetActorID извлекает actor_id из контекста запроса
func GetActorID(ctx context.Context) (string, bool) {
	actorID, ok := ctx.Value(ActorIDKey).(string)
	return actorID, ok
}
