package app

import (
	"github.com/stacklok/status-page-server/internal/api/live"
	"github.com/stacklok/status-page-server/internal/regen"
	"github.com/stacklok/status-page-server/internal/render"
	"github.com/stacklok/status-page-server/internal/store"
	"github.com/stacklok/status-page-server/internal/templates"
	"github.com/stacklok/status-page-server/internal/watch"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Store holds services and interventions
	Store store.Store

	// Templates is the swappable page template set
	Templates *templates.Set

	// Renderer writes the site from a store snapshot
	Renderer *render.Renderer

	// Trigger is the change signal shared by every mutation source
	Trigger *regen.Trigger

	// Coordinator serializes and coalesces renders
	Coordinator *regen.Coordinator

	// Hub pushes refresh messages to browsers
	Hub *live.Hub

	// Watcher reloads templates and assets (optional)
	Watcher *watch.Watcher
}
