package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/jjenkins/factbase/internal/handlers"
	"github.com/jjenkins/factbase/internal/service"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API and the sync scheduler",
	Long: `Start the admin HTTP server and, when scheduling is enabled, the cron
scheduler that keeps every source in sync. Manual triggers are available
through POST /admin/sync/:source either way.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler, err := service.NewScheduler(a.orch, service.SchedulerOptions{
		Enabled:   cfg.SchedulingEnabled(),
		Schedules: schedules(cfg),
	}, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:               "factbase",
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New())

	handlers.Register(app, handlers.Deps{
		Sync:       scheduler,
		Agencies:   a.resolver,
		Linkage:    a.linkage,
		DB:         a.db,
		AdminToken: cfg.AdminToken,
		Log:        logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("Starting server")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err = <-errCh:
		logger.WithError(err).Error("Server stopped")
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := app.ShutdownWithContext(shutdownCtx); serr != nil {
		logger.WithError(serr).Warn("Server shutdown incomplete")
	}
	scheduler.Stop(shutdownCtx)
	logger.Info("Shutdown complete")
	return err
}
