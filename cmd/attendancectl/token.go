package main

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/spf13/cobra"
)

type tokenOutput struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		employeeID string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with jwt.secret",
		Long: `Mints an access token for local testing and service accounts. Identity
normally comes from the HR system; this only signs the claims the API reads.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := jwt.Role(role)
			if r != jwt.RoleEmployee && r != jwt.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", jwt.RoleEmployee, jwt.RoleAdmin)
			}

			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}

			svc := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
			token, expiresAt, err := svc.GenerateAccessToken(employeeID, r)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), tokenOutput{
					Token:     token,
					ExpiresAt: time.Unix(expiresAt, 0).UTC().Format(time.RFC3339),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVarP(&employeeID, "employee", "e", "", "Employee id (required)")
	cmd.Flags().StringVar(&role, "role", string(jwt.RoleEmployee), "employee or admin")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}
