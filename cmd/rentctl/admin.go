package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rentdesk/internal/app"
	mysqlrepo "rentdesk/internal/storage/mysql"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage platform operators",
}

var adminInput app.UserInput

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a platform admin user",
	Long: `Create a platform admin user.

Admins sign in through the normal login endpoint and may use the /v1/admin
console. They belong to a dedicated account that holds no properties.`,
	Example: `  rentctl admin create --email ops@example.com --password 's3cret-pass' --name "Ops"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := mysqlrepo.Open(cfg.MySQLDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		accounts := app.NewAccounts(mysqlrepo.New(db), nil, nil, app.Deps{})
		u, err := accounts.CreateAdmin(cmd.Context(), adminInput)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Email, u.ID)
		return nil
	},
}

func init() {
	f := adminCreateCmd.Flags()
	f.StringVar(&adminInput.Email, "email", "", "login email")
	f.StringVar(&adminInput.Password, "password", "", "login password")
	f.StringVar(&adminInput.FullName, "name", "Platform Admin", "display name")
	f.StringVar(&adminInput.Phone, "phone", "", "contact phone")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(adminCreateCmd)
	rootCmd.AddCommand(adminCmd)
}
