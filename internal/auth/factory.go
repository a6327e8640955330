package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stacklok/status-page-server/internal/config"
)

// NewAuthMiddleware creates the admin API middleware based on config.
// A nil config leaves the admin API open.
func NewAuthMiddleware(cfg *config.AuthConfig) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		slog.Info("auth: anonymous mode (no auth config)")
		return anonymousMiddleware, nil
	}

	switch cfg.Mode {
	case config.AuthModeAnonymous, "":
		slog.Info("auth: anonymous mode")
		return anonymousMiddleware, nil
	case config.AuthModeJWT:
		return createJWTMiddleware(cfg)
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

func createJWTMiddleware(cfg *config.AuthConfig) (func(http.Handler) http.Handler, error) {
	secret, err := cfg.JWT.GetSecret()
	if err != nil {
		return nil, err
	}

	var issuer, audience string
	if cfg.JWT != nil {
		issuer, audience = cfg.JWT.Issuer, cfg.JWT.Audience
	}
	validator, err := newHMACValidator(secret, issuer, audience)
	if err != nil {
		return nil, fmt.Errorf("failed to create token validator: %w", err)
	}

	slog.Info("auth: jwt mode", "issuer", issuer, "audience", audience)
	return newBearerMiddleware(validator, cfg.Realm).Middleware, nil
}
