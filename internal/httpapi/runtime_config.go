package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"memberdesk/backend/internal/config"
)

type RuntimeMode string

const (
	RuntimeModeDevelopment RuntimeMode = "development"
	RuntimeModeProduction  RuntimeMode = "production"
)

type RuntimeConfig struct {
	Mode               RuntimeMode
	CORSAllowedOrigins []string
	AllowAnyCORSOrigin bool
}

func (m RuntimeMode) IsDevelopment() bool {
	return m == RuntimeModeDevelopment
}

func (m RuntimeMode) IsProduction() bool {
	return m == RuntimeModeProduction
}

func DefaultListenAddr(mode RuntimeMode) string {
	if mode.IsDevelopment() {
		return "127.0.0.1:8070"
	}
	return ":8070"
}

// NewRuntimeConfig derives the runtime mode and CORS policy from cfg.
// Production is the default; it requires a JWT signing key and rejects
// wildcard origins.
func NewRuntimeConfig(cfg config.Config) (RuntimeConfig, error) {
	mode, err := runtimeMode(cfg)
	if err != nil {
		return RuntimeConfig{}, err
	}

	allowedOrigins := normalizeOrigins(cfg.CORS.AllowedOrigins)
	if mode.IsProduction() {
		if strings.TrimSpace(cfg.Auth.JWTSigningKey) == "" {
			return RuntimeConfig{}, errors.New("auth.jwt_signing_key is required in production mode")
		}
		for _, origin := range allowedOrigins {
			if origin == "*" {
				return RuntimeConfig{}, errors.New("cors.allowed_origins cannot include wildcard origin in production mode")
			}
		}
		return RuntimeConfig{
			Mode:               mode,
			CORSAllowedOrigins: allowedOrigins,
		}, nil
	}

	if len(allowedOrigins) == 0 {
		return RuntimeConfig{
			Mode:               mode,
			CORSAllowedOrigins: []string{"*"},
			AllowAnyCORSOrigin: true,
		}, nil
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return RuntimeConfig{
				Mode:               mode,
				CORSAllowedOrigins: []string{"*"},
				AllowAnyCORSOrigin: true,
			}, nil
		}
	}

	return RuntimeConfig{
		Mode:               mode,
		CORSAllowedOrigins: allowedOrigins,
	}, nil
}

func runtimeMode(cfg config.Config) (RuntimeMode, error) {
	if cfg.DevMode && cfg.ProductionMode {
		return "", fmt.Errorf("dev_mode and production_mode cannot both be true")
	}
	if cfg.DevMode {
		return RuntimeModeDevelopment, nil
	}
	return RuntimeModeProduction, nil
}

// normalizeOrigins trims and de-duplicates origins. Entries may themselves
// be comma separated lists, as they arrive from the environment.
func normalizeOrigins(raw []string) []string {
	values := make([]string, 0, len(raw))
	seen := map[string]struct{}{}
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			trimmedPart := strings.TrimSpace(part)
			if trimmedPart == "" {
				continue
			}
			if _, exists := seen[trimmedPart]; exists {
				continue
			}
			seen[trimmedPart] = struct{}{}
			values = append(values, trimmedPart)
		}
	}
	return values
}
