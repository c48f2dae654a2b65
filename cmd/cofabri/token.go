package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/identity"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		role     string
		subject  string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token signed with admin.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			r := domain.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if subject == "" {
				subject = cfg.Admin.Username
			}
			if duration <= 0 {
				duration = cfg.Admin.TokenDuration
			}

			auth := identity.NewAuthenticator(identity.JWTConfig{
				SecretKey:     cfg.Admin.JWTSecret,
				TokenDuration: duration,
			})
			token, err := auth.Issue(subject, r)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", token.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", string(domain.RoleOperator), "role carried by the token (viewer, operator, admin)")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "token subject (default admin.username)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "token lifetime (default admin.token_duration)")

	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for admin.password_hash",
		Long: `Print a bcrypt hash for admin.password_hash. Without an argument the
password is read from the first line of standard input, which keeps it out
of shell history:

  echo -n 'a long passphrase' | cofabri hash-password`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = line
			}

			hash, err := identity.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
