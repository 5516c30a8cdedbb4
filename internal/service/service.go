package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/ports"
)

type Dependencies struct {
	Repository ports.Repository
	Telemetry  ports.Telemetry
	Importer   ports.ImportExport
	Mailer     ports.Mailer
	Renderer   ports.DocumentRenderer
	Passwords  ports.PasswordHasher
	Logger     *zap.Logger
}

type Config struct {
	OrganisationName string
	BaseURL          string
	StaffAddress     string
	MaxShares        int
	MinimumAge       int
	SharePrice       decimal.Decimal
	AnnualDues       decimal.Decimal
	InvoicePrefix    string
	// Concurrency bounds the number of invoices rendered and mailed at once.
	Concurrency    int
	CertificateTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		OrganisationName: "Cooperative",
		BaseURL:          "http://localhost:8070",
		MaxShares:        domain.DefaultMaxShares,
		MinimumAge:       domain.DefaultMinimumAge,
		SharePrice:       domain.DefaultSharePrice,
		AnnualDues:       domain.DefaultAnnualDues,
		InvoicePrefix:    "COOP",
		Concurrency:      4,
		CertificateTTL:   14 * 24 * time.Hour,
	}
}

type Service struct {
	repo      ports.Repository
	telemetry ports.Telemetry
	importer  ports.ImportExport
	mailer    ports.Mailer
	renderer  ports.DocumentRenderer
	passwords ports.PasswordHasher
	logger    *zap.Logger
	config    Config
	schedule  domain.DuesSchedule
	mail      *mailTemplates

	now     func() time.Time
	newCode func() string
}

func New(deps Dependencies, config Config) (*Service, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("new service: repository is nil")
	}
	if deps.Telemetry == nil {
		return nil, fmt.Errorf("new service: telemetry is nil")
	}
	if deps.Importer == nil {
		return nil, fmt.Errorf("new service: import/export is nil")
	}
	if deps.Mailer == nil {
		return nil, fmt.Errorf("new service: mailer is nil")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("new service: document renderer is nil")
	}
	if deps.Passwords == nil {
		return nil, fmt.Errorf("new service: password hasher is nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	config = withDefaults(config)
	mail, err := loadMailTemplates()
	if err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}

	return &Service{
		repo:      deps.Repository,
		telemetry: deps.Telemetry,
		importer:  deps.Importer,
		mailer:    deps.Mailer,
		renderer:  deps.Renderer,
		passwords: deps.Passwords,
		logger:    logger.Named("service"),
		config:    config,
		schedule:  domain.NewDuesSchedule(config.AnnualDues),
		mail:      mail,
		now:       time.Now,
		newCode:   newCode,
	}, nil
}

func withDefaults(config Config) Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(config.OrganisationName) == "" {
		config.OrganisationName = defaults.OrganisationName
	}
	config.BaseURL = strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.MaxShares <= 0 {
		config.MaxShares = defaults.MaxShares
	}
	if config.MinimumAge <= 0 {
		config.MinimumAge = defaults.MinimumAge
	}
	if !config.SharePrice.IsPositive() {
		config.SharePrice = defaults.SharePrice
	}
	if !config.AnnualDues.IsPositive() {
		config.AnnualDues = defaults.AnnualDues
	}
	if strings.TrimSpace(config.InvoicePrefix) == "" {
		config.InvoicePrefix = defaults.InvoicePrefix
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.CertificateTTL <= 0 {
		config.CertificateTTL = defaults.CertificateTTL
	}
	return config
}

func (s *Service) Config() Config {
	return s.config
}

func (s *Service) today() string {
	return s.now().Format(domain.DateLayout)
}

// newCode returns a random upper case code of 12 hex digits, short enough to
// type from a printed form.
func newCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
