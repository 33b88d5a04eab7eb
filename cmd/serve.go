package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glefebvre/reelvault/internal/api"
	"github.com/glefebvre/reelvault/internal/auth"
	"github.com/glefebvre/reelvault/internal/cache"
	"github.com/glefebvre/reelvault/internal/config"
	"github.com/glefebvre/reelvault/internal/database"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/shutdown"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Start the HTTP API. The command will:
- Connect to the configured database and apply migrations
- Seed the bootstrap admin account when auth.admin_password is set
- Serve the API until SIGINT or SIGTERM, then drain in-flight requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}

		log := logger.AppLogger()
		if cfg.GetAppLogLevel() != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		if err := database.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		handler := shutdown.New(30*time.Second, log)
		handler.Register("database", func(ctx context.Context) error {
			return database.Close()
		})

		opts := []api.Option{api.WithLogger(log)}
		if cfg.Cache.Enabled {
			c, err := cache.New(cfg.Cache, log)
			if err != nil {
				_ = handler.Shutdown()
				return err
			}
			handler.Register("cache", func(ctx context.Context) error {
				return c.Close()
			})
			opts = append(opts, api.WithCache(c))
		}

		server, err := api.NewServer(cfg, database.Get(), opts...)
		if err != nil {
			_ = handler.Shutdown()
			return err
		}

		if err := seedAdmin(cmd.Context(), server.Auth(), cfg.Auth, log); err != nil {
			_ = handler.Shutdown()
			return err
		}

		handler.Register("http server", server.Shutdown)

		runErr := make(chan error, 1)
		go func() {
			runErr <- server.Run(cfg.API.Port)
			handler.Trigger()
		}()

		if err := handler.Wait(cmd.Context()); err != nil {
			return err
		}

		select {
		case err := <-runErr:
			return err
		default:
			return nil
		}
	},
}

func seedAdmin(ctx context.Context, svc *auth.Service, cfg config.AuthConfig, log *logger.Logger) error {
	created, err := svc.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, models.AdminRole(cfg.AdminRole))
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if !created {
		log.Debug("admin seeding skipped")
	}
	return nil
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides api.port)")
	rootCmd.AddCommand(serveCmd)
}
