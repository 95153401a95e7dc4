package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/config"
	"github.com/MarcoPoloResearchLab/kudos/internal/database"
	"github.com/MarcoPoloResearchLab/kudos/internal/ids"
	"github.com/MarcoPoloResearchLab/kudos/internal/logging"
	"github.com/MarcoPoloResearchLab/kudos/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage directory entries",
	}

	var email, fullName, role string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a directory entry for a Cognito account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd.Context(), func(ctx context.Context, directory *users.Service) error {
				user, err := directory.Create(ctx, users.NewUser{Email: email, FullName: fullName, Role: users.Role(role)})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, %s)\n", user.ID, user.Email, user.Role)
				return err
			})
		},
	}
	addCmd.Flags().StringVar(&email, "email", "", "Email matching the Cognito username")
	addCmd.Flags().StringVar(&fullName, "name", "", "Full name")
	addCmd.Flags().StringVar(&role, "role", string(users.RoleEmployee), "Role (admin, manager, employee)")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("name")

	var deactivateEmail string
	deactivateCmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate a directory entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDirectory(cmd.Context(), func(ctx context.Context, directory *users.Service) error {
				user, err := directory.FindByEmail(ctx, deactivateEmail)
				if err != nil {
					return err
				}
				if err := directory.Deactivate(ctx, user.ID); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s\n", user.Email)
				return err
			})
		},
	}
	deactivateCmd.Flags().StringVar(&deactivateEmail, "email", "", "Email of the user to deactivate")
	_ = deactivateCmd.MarkFlagRequired("email")

	userCmd.AddCommand(addCmd, deactivateCmd)
	return userCmd
}

func withDirectory(ctx context.Context, run func(context.Context, *users.Service) error) error {
	appConfig, err := config.LoadDatabase(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{Driver: appConfig.DatabaseDriver, DSN: appConfig.DatabaseDSN}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	directory, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: ids.NewUUIDProvider(),
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return run(ctx, directory)
}
