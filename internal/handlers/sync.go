package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/factbase/internal/model"
	"github.com/jjenkins/factbase/internal/service"
	"github.com/sirupsen/logrus"
)

// SyncController starts syncs and reports their status.
type SyncController interface {
	TriggerNow(source model.SyncSource, force bool) (service.TriggerResult, error)
	Status(ctx context.Context, source model.SyncSource) (service.ScheduleStatus, error)
	StatusAll(ctx context.Context) ([]service.ScheduleStatus, error)
}

type triggerResponse struct {
	Result service.TriggerResult   `json:"result"`
	Status *service.ScheduleStatus `json:"status,omitempty"`
}

// TriggerSyncHandler starts a run of the source in the background.
func TriggerSyncHandler(sync SyncController, log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		source := model.SyncSource(c.Params("source"))
		force := c.QueryBool("force", false)

		result, err := sync.TriggerNow(source, force)
		if errors.Is(err, service.ErrUnknownSource) {
			return notFound(c, "unknown source "+string(source))
		}
		if err != nil {
			log.WithError(err).WithField("source", source).Error("Failed to trigger sync")
			return internalError(c, "failed to trigger sync")
		}

		if result == service.TriggerAlreadyRunning {
			st, err := sync.Status(c.UserContext(), source)
			if err != nil {
				return internalError(c, "failed to load sync status")
			}
			return c.JSON(triggerResponse{Result: result, Status: &st})
		}

		log.WithFields(logrus.Fields{"source": source, "force": force}).Info("Sync triggered")
		return c.Status(fiber.StatusAccepted).JSON(triggerResponse{Result: result})
	}
}

func SyncStatusHandler(sync SyncController) fiber.Handler {
	return func(c *fiber.Ctx) error {
		source := model.SyncSource(c.Params("source"))

		st, err := sync.Status(c.UserContext(), source)
		if errors.Is(err, service.ErrUnknownSource) {
			return notFound(c, "unknown source "+string(source))
		}
		if err != nil {
			return internalError(c, "failed to load sync status")
		}
		return c.JSON(st)
	}
}

func SyncStatusAllHandler(sync SyncController) fiber.Handler {
	return func(c *fiber.Ctx) error {
		all, err := sync.StatusAll(c.UserContext())
		if err != nil {
			return internalError(c, "failed to load sync status")
		}
		return c.JSON(all)
	}
}
