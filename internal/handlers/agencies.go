package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/factbase/internal/service"
	"github.com/sirupsen/logrus"
)

// AgencyLinker is the part of the agency resolver the admin API exposes.
type AgencyLinker interface {
	Resolve(q service.AgencyQuery) (service.Match, bool)
	Refresh(ctx context.Context) (service.CacheSizes, error)
	Unmatched() []service.UnmatchedAgency
	ClearUnmatched() int
}

func UnmatchedAgenciesHandler(linker AgencyLinker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		unmatched := linker.Unmatched()
		return c.JSON(fiber.Map{
			"count": len(unmatched),
			"names": unmatched,
		})
	}
}

func ClearUnmatchedHandler(linker AgencyLinker, log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		n := linker.ClearUnmatched()
		log.WithField("cleared", n).Info("Cleared unmatched agency names")
		return c.JSON(fiber.Map{"cleared": n})
	}
}

// RefreshAgenciesHandler rebuilds the resolver indexes from the store.
func RefreshAgenciesHandler(linker AgencyLinker, log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sizes, err := linker.Refresh(c.UserContext())
		if err != nil {
			log.WithError(err).Error("Failed to refresh agency resolver")
			return internalError(c, "failed to refresh agency resolver")
		}
		return c.JSON(sizes)
	}
}

// ResolveAgencyHandler runs one lookup through the cascade.
func ResolveAgencyHandler(linker AgencyLinker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := service.AgencyQuery{
			ExternalID: int64(c.QueryInt("id", 0)),
			Name:       c.Query("name"),
			ShortName:  c.Query("short_name"),
		}
		if q.Label() == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name, id or short_name is required"})
		}

		match, ok := linker.Resolve(q)
		if !ok {
			return c.JSON(fiber.Map{"matched": false, "query": q.Label()})
		}
		return c.JSON(fiber.Map{"matched": true, "query": q.Label(), "match": match})
	}
}
