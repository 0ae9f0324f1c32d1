package handlers

import "net/http"

// Router собирает маршруты сервера. Авторизацию и сквозные middleware
// навешивает вызывающий (cmd/server).
type Router struct {
	Health    *HealthHandler
	Workspace *WorkspaceHandler
	Sync      *SyncHandler
}

// Mux возвращает настроенный mux. Health остается снаружи auth-цепочки,
// поэтому регистрируется отдельно.
func (rt *Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/workspaces/{workspace_id}/snapshot", rt.Workspace.Snapshot)
	mux.HandleFunc("GET /api/v1/workspaces/{workspace_id}/nodes", rt.Workspace.ListNodes)
	mux.HandleFunc("PATCH /api/v1/workspaces/{workspace_id}/nodes/{id}", rt.Workspace.UpsertNode)
	mux.HandleFunc("DELETE /api/v1/workspaces/{workspace_id}/nodes/{id}", rt.Workspace.DeleteNode)
	mux.HandleFunc("GET /api/v1/workspaces/{workspace_id}/connections", rt.Workspace.ListConnections)
	mux.HandleFunc("PATCH /api/v1/workspaces/{workspace_id}/connections/{id}", rt.Workspace.UpsertConnection)
	mux.HandleFunc("DELETE /api/v1/workspaces/{workspace_id}/connections/{id}", rt.Workspace.DeleteConnection)
	mux.HandleFunc("GET /api/v1/workspaces/{workspace_id}/sync", rt.Sync.HandleSync)

	return mux
}
