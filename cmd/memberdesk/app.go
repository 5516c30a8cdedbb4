package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"memberdesk/backend/internal/adapters/auth"
	"memberdesk/backend/internal/adapters/impexp"
	"memberdesk/backend/internal/adapters/latex"
	"memberdesk/backend/internal/adapters/mail"
	"memberdesk/backend/internal/adapters/persistence"
	"memberdesk/backend/internal/adapters/telemetry"
	"memberdesk/backend/internal/config"
	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/httpapi"
	"memberdesk/backend/internal/logging"
	"memberdesk/backend/internal/ports"
	"memberdesk/backend/internal/service"
)

// cliAuth is the identity used by maintenance commands run on the host.
var cliAuth = ports.AuthContext{UserID: "cli", Roles: []string{domain.RoleAdmin}}

// application holds everything a command needs once configuration is
// loaded and the database is migrated.
type application struct {
	config  config.Config
	runtime httpapi.RuntimeConfig
	logger  *zap.Logger
	repo    *persistence.SQLRepository
	service *service.Service
}

func openApplication(ctx context.Context, configFile string) (*application, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	runtimeConfig, err := httpapi.NewRuntimeConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("runtime config: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: runtimeConfig.Mode.IsDevelopment()})
	if err != nil {
		return nil, err
	}

	svcConfig, err := serviceConfig(cfg)
	if err != nil {
		return nil, err
	}
	mailer, err := newMailer(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}
	renderer, err := latex.NewRenderer(latex.Config{Binary: cfg.PDF.LatexBinary, Timeout: cfg.PDF.Timeout}, logger)
	if err != nil {
		return nil, err
	}

	repo, err := persistence.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}

	svc, err := service.New(service.Dependencies{
		Repository: repo,
		Telemetry:  telemetry.NewLogTelemetry(logger),
		Importer:   impexp.NewCSVCodec(),
		Mailer:     mailer,
		Renderer:   renderer,
		Passwords:  auth.BcryptHasher{Cost: bcrypt.DefaultCost},
		Logger:     logger,
	}, svcConfig)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	logger.Debug("application ready",
		zap.String("mode", string(runtimeConfig.Mode)),
		zap.String("database", repo.Dialect()),
		zap.Bool("mail_enabled", cfg.Mail.Enabled),
	)
	return &application{
		config:  cfg,
		runtime: runtimeConfig,
		logger:  logger,
		repo:    repo,
		service: svc,
	}, nil
}

func (a *application) Close() error {
	// Sync fails on terminals; only the repository error matters.
	_ = a.logger.Sync()
	return a.repo.Close()
}

// authentication returns the request authenticator and the token issuer.
// Development mode accepts identity headers and falls back to bearer tokens.
func (a *application) authentication() (ports.AuthProvider, ports.TokenIssuer, error) {
	jwt, err := auth.NewJWTAuthProviderFromConfig(a.config.Auth.JWTSigningKey, a.runtime.Mode.IsDevelopment())
	if err != nil {
		return nil, nil, err
	}
	if a.runtime.Mode.IsDevelopment() {
		return auth.NewDevAuthProvider(a.config.Auth.DevUserID, a.config.Auth.DevRoles).WithBearer(jwt), jwt, nil
	}
	return jwt, jwt, nil
}

func serviceConfig(cfg config.Config) (service.Config, error) {
	sharePrice, err := impexp.ParseAmount(cfg.Membership.SharePrice)
	if err != nil {
		return service.Config{}, fmt.Errorf("membership.share_price: %w", err)
	}
	annualDues, err := impexp.ParseAmount(cfg.Dues.AnnualAmount)
	if err != nil {
		return service.Config{}, fmt.Errorf("dues.annual_amount: %w", err)
	}
	// Exemptions are per member; a zero yearly amount would exempt everyone.
	if !sharePrice.IsPositive() || !annualDues.IsPositive() {
		return service.Config{}, errors.New("share price and annual dues must be positive")
	}

	return service.Config{
		OrganisationName: cfg.Membership.OrganisationName,
		BaseURL:          cfg.BaseURL,
		StaffAddress:     cfg.Mail.StaffAddress,
		MaxShares:        cfg.Membership.MaxShares,
		MinimumAge:       cfg.Membership.MinimumAge,
		SharePrice:       sharePrice,
		AnnualDues:       annualDues,
		InvoicePrefix:    cfg.Dues.InvoicePrefix,
		Concurrency:      cfg.Dues.Concurrency,
		CertificateTTL:   cfg.Membership.CertificateTTL,
	}, nil
}

func newMailer(cfg config.MailConfig, logger *zap.Logger) (ports.Mailer, error) {
	if !cfg.Enabled {
		return mail.NewLogMailer(logger), nil
	}
	mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("mail: %w", err)
	}
	return mailer, nil
}
