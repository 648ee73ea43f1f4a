package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Sync       SyncController
	Agencies   AgencyLinker
	Linkage    LinkageCalculator
	DB         Pinger
	AdminToken string
	Log        *logrus.Logger
}

// Register mounts every route on app.
func Register(app *fiber.App, d Deps) {
	app.Get("/", HomeHandler(d.Sync, d.Linkage, d.Log))
	app.Get("/health", HealthHandler(d.DB))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	admin := app.Group("/admin", AdminAuth(d.AdminToken))

	admin.Get("/sync", SyncStatusAllHandler(d.Sync))
	admin.Get("/sync/:source", SyncStatusHandler(d.Sync))
	admin.Post("/sync/:source", TriggerSyncHandler(d.Sync, d.Log))

	admin.Get("/agencies/unmatched", UnmatchedAgenciesHandler(d.Agencies))
	admin.Delete("/agencies/unmatched", ClearUnmatchedHandler(d.Agencies, d.Log))
	admin.Post("/agencies/refresh", RefreshAgenciesHandler(d.Agencies, d.Log))
	admin.Get("/agencies/resolve", ResolveAgencyHandler(d.Agencies))

	admin.Get("/linkage", LinkageHandler(d.Linkage, d.Log))
}
