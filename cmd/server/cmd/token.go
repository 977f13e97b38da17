package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/auth"
	"github.com/Togather-Foundation/graphevents/internal/config"
	"github.com/spf13/cobra"
)

func newTokenCommand(global *globalOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the write endpoints",
		Long: `Mint a JWT signed with JWT_SECRET.

Roles:
  writer  may create events (POST /events/)
  admin   may also delete events (DELETE /events/{id})

Examples:
  server token --subject deploy-bot --role writer --ttl 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			token, err := mintToken(cfg.Auth, subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, e.g. the client name (required)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleWriter), "role: writer or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func mintToken(cfg config.AuthConfig, subject, role string, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", errors.New("JWT_SECRET is not configured")
	}
	if subject == "" {
		return "", errors.New("--subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("--ttl must be positive")
	}
	normalized := auth.NormalizeRole(role)
	if string(normalized) != role {
		return "", fmt.Errorf("unknown role %q", role)
	}
	return auth.NewJWTManager(cfg.JWTSecret, cfg.Issuer).Generate(subject, normalized, ttl)
}
