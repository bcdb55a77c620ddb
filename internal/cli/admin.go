package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// AdminPasswordEnv supplies the password when --password is not given.
const AdminPasswordEnv = "PORTFOLIO_ADMIN_PASSWORD"

func adminCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(adminCreateCmd(g))
	cmd.AddCommand(adminPasswdCmd(g))
	return cmd
}

func adminCreateCmd(g *globals) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Long: `Create an admin account for the CMS.

Examples:
  portfolio admin create --email me@example.com --password 'long passphrase'
  PORTFOLIO_ADMIN_PASSWORD='long passphrase' portfolio admin create --email me@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}

			a, err := g.open("portfolio-cli")
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.auth.CreateUser(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s\n", user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set "+AdminPasswordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func adminPasswdCmd(g *globals) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change an admin password",
		Long:  `Change an admin password and sign the account out everywhere.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}

			a, err := g.open("portfolio-cli")
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.auth.SetPassword(cmd.Context(), email, pw); err != nil {
				return fmt.Errorf("failed to change password for %s: %w", email, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password changed for %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&password, "password", "", "New password (or set "+AdminPasswordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func resolvePassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if pw := os.Getenv(AdminPasswordEnv); pw != "" {
		return pw, nil
	}
	return "", errors.New("password required: pass --password or set " + AdminPasswordEnv)
}
