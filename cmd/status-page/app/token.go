package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/status-page-server/internal/auth"
	"github.com/stacklok/status-page-server/internal/config"
)

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API bearer token",
		Long: `Issue an HS256 bearer token for the admin API, signed with the secret configured
under auth.jwt.secretFile or the STATUSPAGE_JWT_SECRET environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subject, err := cmd.Flags().GetString("subject")
			if err != nil {
				return fmt.Errorf("failed to get subject flag: %w", err)
			}
			ttl, err := cmd.Flags().GetDuration("ttl")
			if err != nil {
				return fmt.Errorf("failed to get ttl flag: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := issueAdminToken(cfg.Auth, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	tokenCmd.Flags().String("subject", "admin", "Subject (sub claim) of the token")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return tokenCmd
}

func issueAdminToken(cfg *config.AuthConfig, subject string, ttl time.Duration, now time.Time) (string, error) {
	var jwtCfg *config.JWTConfig
	if cfg != nil {
		jwtCfg = cfg.JWT
	}
	secret, err := jwtCfg.GetSecret()
	if err != nil {
		return "", err
	}

	opts := auth.TokenOptions{Subject: subject, TTL: ttl}
	if jwtCfg != nil {
		opts.Issuer, opts.Audience = jwtCfg.Issuer, jwtCfg.Audience
	}
	return auth.IssueToken(secret, opts, now)
}
