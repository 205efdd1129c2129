package routes

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/osbench/osbench/pkg/artifacts"
	"github.com/osbench/osbench/pkg/notify"
	"github.com/osbench/osbench/pkg/orchestrator"
)

// RegisterRoutes wires all API routes. store may be nil when off-box
// artifact storage is not configured.
func RegisterRoutes(api huma.API, orch *orchestrator.Orchestrator, hub *notify.Hub, store artifacts.Store) {
	RegisterHealth(api)
	RegisterRuns(api, orch)
	RegisterArtifacts(api, orch, store)
	RegisterEvents(api, hub)
}
