// Package config loads the backend configuration from an optional YAML file
// and the environment.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type AuthConfig struct {
	JWTSigningKey string        `mapstructure:"jwt_signing_key" yaml:"jwt_signing_key"`
	TokenTTL      time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	DevUserID     string        `mapstructure:"dev_user_id" yaml:"dev_user_id"`
	DevRoles      string        `mapstructure:"dev_roles" yaml:"dev_roles"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type MailConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Username     string `mapstructure:"username" yaml:"username"`
	Password     string `mapstructure:"password" yaml:"password"`
	From         string `mapstructure:"from" yaml:"from"`
	StaffAddress string `mapstructure:"staff_address" yaml:"staff_address"`
}

type PDFConfig struct {
	LatexBinary string        `mapstructure:"latex_binary" yaml:"latex_binary"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DuesConfig struct {
	AnnualAmount  string `mapstructure:"annual_amount" yaml:"annual_amount"`
	InvoicePrefix string `mapstructure:"invoice_prefix" yaml:"invoice_prefix"`
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency"`
}

type MembershipConfig struct {
	OrganisationName string        `mapstructure:"organisation_name" yaml:"organisation_name"`
	MaxShares        int           `mapstructure:"max_shares" yaml:"max_shares"`
	MinimumAge       int           `mapstructure:"minimum_age" yaml:"minimum_age"`
	SharePrice       string        `mapstructure:"share_price" yaml:"share_price"`
	CertificateTTL   time.Duration `mapstructure:"certificate_ttl" yaml:"certificate_ttl"`
}

type Config struct {
	DevMode        bool             `mapstructure:"dev_mode" yaml:"dev_mode"`
	ProductionMode bool             `mapstructure:"production_mode" yaml:"production_mode"`
	ListenAddr     string           `mapstructure:"listen_addr" yaml:"listen_addr"`
	BaseURL        string           `mapstructure:"base_url" yaml:"base_url"`
	Log            LogConfig        `mapstructure:"log" yaml:"log"`
	Database       DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Auth           AuthConfig       `mapstructure:"auth" yaml:"auth"`
	CORS           CORSConfig       `mapstructure:"cors" yaml:"cors"`
	Mail           MailConfig       `mapstructure:"mail" yaml:"mail"`
	PDF            PDFConfig        `mapstructure:"pdf" yaml:"pdf"`
	Dues           DuesConfig       `mapstructure:"dues" yaml:"dues"`
	Membership     MembershipConfig `mapstructure:"membership" yaml:"membership"`
}

var defaults = map[string]any{
	"base_url":                     "http://localhost:8070",
	"log.level":                    "info",
	"database.driver":              "sqlite",
	"database.dsn":                 "file:memberdesk.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
	"auth.token_ttl":               "12h",
	"auth.dev_user_id":             "dev-user",
	"auth.dev_roles":               "accountant,admin",
	"mail.port":                    587,
	"mail.from":                    "office@example.org",
	"pdf.latex_binary":             "pdflatex",
	"pdf.timeout":                  "60s",
	"dues.annual_amount":           "50",
	"dues.invoice_prefix":          "COOP",
	"dues.concurrency":             4,
	"membership.organisation_name": "Cooperative",
	"membership.max_shares":        60,
	"membership.minimum_age":       18,
	"membership.share_price":       "50",
	"membership.certificate_ttl":   "336h",
}

// envBindings maps config keys to environment variables. The first name is
// preferred; later names are accepted for compatibility.
var envBindings = map[string][]string{
	"dev_mode":                     {"MEMBERDESK_DEV_MODE", "DEV_MODE"},
	"production_mode":              {"MEMBERDESK_PRODUCTION_MODE", "PRODUCTION_MODE"},
	"listen_addr":                  {"MEMBERDESK_ADDR"},
	"base_url":                     {"MEMBERDESK_BASE_URL"},
	"log.level":                    {"MEMBERDESK_LOG_LEVEL"},
	"database.driver":              {"MEMBERDESK_DB_DRIVER"},
	"database.dsn":                 {"MEMBERDESK_DB_DSN", "DATABASE_URL"},
	"auth.jwt_signing_key":         {"MEMBERDESK_AUTH_JWT_HS256_SIGNING_KEY"},
	"auth.token_ttl":               {"MEMBERDESK_AUTH_TOKEN_TTL"},
	"auth.dev_user_id":             {"MEMBERDESK_DEV_USER_ID"},
	"auth.dev_roles":               {"MEMBERDESK_DEV_ROLES"},
	"cors.allowed_origins":         {"MEMBERDESK_CORS_ALLOWED_ORIGINS"},
	"mail.enabled":                 {"MEMBERDESK_MAIL_ENABLED"},
	"mail.host":                    {"MEMBERDESK_SMTP_HOST"},
	"mail.port":                    {"MEMBERDESK_SMTP_PORT"},
	"mail.username":                {"MEMBERDESK_SMTP_USERNAME"},
	"mail.password":                {"MEMBERDESK_SMTP_PASSWORD"},
	"mail.from":                    {"MEMBERDESK_MAIL_FROM"},
	"mail.staff_address":           {"MEMBERDESK_MAIL_STAFF_ADDRESS"},
	"pdf.latex_binary":             {"MEMBERDESK_LATEX_BINARY"},
	"pdf.timeout":                  {"MEMBERDESK_LATEX_TIMEOUT"},
	"dues.annual_amount":           {"MEMBERDESK_DUES_ANNUAL_AMOUNT"},
	"dues.invoice_prefix":          {"MEMBERDESK_DUES_INVOICE_PREFIX"},
	"dues.concurrency":             {"MEMBERDESK_DUES_CONCURRENCY"},
	"membership.organisation_name": {"MEMBERDESK_ORGANISATION_NAME"},
	"membership.max_shares":        {"MEMBERDESK_MAX_SHARES"},
	"membership.minimum_age":       {"MEMBERDESK_MINIMUM_AGE"},
	"membership.share_price":       {"MEMBERDESK_SHARE_PRICE"},
	"membership.certificate_ttl":   {"MEMBERDESK_CERTIFICATE_TTL"},
}

// Load reads filePath when given and overlays environment variables.
func Load(filePath string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if err := bindEnvs(v); err != nil {
		return Config{}, err
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", filePath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)
		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}
	return nil
}
