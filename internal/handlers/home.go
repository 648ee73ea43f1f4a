package handlers

import (
	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jjenkins/factbase/internal/templates"
	"github.com/sirupsen/logrus"
)

// HomeHandler renders the sync status page. A failing section is reported
// on the page instead of failing the request.
func HomeHandler(sync SyncController, linkage LinkageCalculator, log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		data := templates.HomeData{}

		sources, err := sync.StatusAll(ctx)
		if err != nil {
			log.WithError(err).Error("Error loading sync status")
			data.Errors = append(data.Errors, "Sync status is unavailable")
		}
		data.Sources = sources

		stats, err := linkage.Calculate(ctx)
		if err != nil {
			log.WithError(err).Error("Error calculating linkage")
			data.Errors = append(data.Errors, "Linkage statistics are unavailable")
		}
		data.Linkage = stats

		page := templates.Home(data)
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}
