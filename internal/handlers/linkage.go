package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/factbase/internal/service"
	"github.com/sirupsen/logrus"
)

type LinkageCalculator interface {
	Calculate(ctx context.Context) (*service.LinkageStatistics, error)
}

func LinkageHandler(linkage LinkageCalculator, log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := linkage.Calculate(c.UserContext())
		if err != nil {
			log.WithError(err).Error("Failed to calculate linkage statistics")
			return internalError(c, "failed to calculate linkage statistics")
		}
		return c.JSON(stats)
	}
}
