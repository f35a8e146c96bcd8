/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/db"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/services"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/store"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
	"github.com/spf13/cobra"
)

var admin struct {
	username string
	email    string
	fullName string
	password string
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Creates an active administrator account. The password may be given with
--password or through the ADMIN_PASSWORD environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := admin.password
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		if password == "" {
			return errors.New("a password is required (--password or ADMIN_PASSWORD)")
		}

		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn), log)
		id, err := users.Create(ctx, services.CreateUserInput{
			Username: admin.username,
			Email:    admin.email,
			Password: password,
			FullName: admin.fullName,
			Role:     types.RoleAdmin,
		})
		if err != nil {
			return errors.New(services.Message(err))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created admin %q with id %d\n", admin.username, id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateAdminCmd)

	userCreateAdminCmd.Flags().StringVarP(&admin.username, "username", "u", "admin", "admin username")
	userCreateAdminCmd.Flags().StringVarP(&admin.email, "email", "e", "", "admin email (required)")
	userCreateAdminCmd.Flags().StringVar(&admin.fullName, "full-name", "Administrator", "admin full name")
	userCreateAdminCmd.Flags().StringVarP(&admin.password, "password", "p", "", "admin password")

	_ = userCreateAdminCmd.MarkFlagRequired("email")
}
