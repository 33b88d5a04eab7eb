package main

import (
	"fmt"

	"github.com/glefebvre/reelvault/internal/auth"
	"github.com/glefebvre/reelvault/internal/config"
	"github.com/glefebvre/reelvault/internal/database"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Initialize(); err != nil {
			return err
		}
		defer database.Close()

		logger.AppLogger().Info("database schema is up to date")
		return nil
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create an admin account if none exists for the email",
	Long: `Create an admin account. Values default to auth.admin_email, auth.admin_password
and auth.admin_role; an existing account with the same email is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get().Auth
		if v, _ := cmd.Flags().GetString("email"); v != "" {
			cfg.AdminEmail = v
		}
		if v, _ := cmd.Flags().GetString("password"); v != "" {
			cfg.AdminPassword = v
		}
		if v, _ := cmd.Flags().GetString("role"); v != "" {
			cfg.AdminRole = v
		}
		if cfg.AdminPassword == "" {
			return fmt.Errorf("a password is required (--password or auth.admin_password)")
		}

		if err := database.Initialize(); err != nil {
			return err
		}
		defer database.Close()

		log := logger.AppLogger()
		svc := auth.NewService(database.Get(), cfg.JWTSecret, auth.WithLogger(log))
		if err := seedAdmin(cmd.Context(), svc, cfg, log); err != nil {
			return err
		}
		fmt.Printf("Admin %s is ready\n", auth.NormalizeEmail(cfg.AdminEmail))
		return nil
	},
}

func init() {
	seedAdminCmd.Flags().String("email", "", "admin email")
	seedAdminCmd.Flags().String("password", "", "admin password")
	seedAdminCmd.Flags().String("role", "", "admin role (admin or superadmin)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedAdminCmd)
}
