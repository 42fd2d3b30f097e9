/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/incidentdesk/apiserver/config"
	"github.com/incidentdesk/apiserver/internal/db"
	"github.com/incidentdesk/apiserver/internal/logger"
	"github.com/incidentdesk/apiserver/internal/services"
	"github.com/incidentdesk/apiserver/internal/store"
	"github.com/incidentdesk/apiserver/types"
)

var (
	adminName   string
	adminEmail  string
	adminSecret string
)

// createAdminCmd bootstraps the first administrator, since registration
// itself requires an admin token.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		log := logger.New("incidentdesk", cfg.LogLevel)

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		userRepo := store.NewUserRepository(conn)
		users := services.NewUserService(userRepo)
		audit := services.NewAuditService(store.NewAuditRepository(conn), userRepo, services.WithAuditLogger(log))

		user, err := users.Register(cmd.Context(), services.RegisterInput{
			Name:     adminName,
			Email:    adminEmail,
			Password: adminSecret,
			Role:     types.RoleAdmin,
		})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("an account with email %q already exists", adminEmail)
			}
			return err
		}

		audit.Record(cmd.Context(), services.AuditEntry{
			ResourceID:   user.ID,
			ResourceType: types.ResourceUser,
			Action:       types.ActionCreation,
			Description:  fmt.Sprintf("User %s created with role %s.", user.Name, user.Role),
			ActorID:      user.ID,
		})

		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd)
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminSecret, "secret", "", "login secret")
	_ = createAdminCmd.MarkFlagRequired("name")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("secret")
}
