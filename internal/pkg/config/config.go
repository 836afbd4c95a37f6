package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	envparse "github.com/caarlos0/env/v10"

	"github.com/videogen-ai/videogen/internal/pkg/env"
)

const minJWTSecretLength = 32

type Config struct {
	App         App
	Log         Log
	Database    Database `envPrefix:"DB_"`
	Cache       Cache    `envPrefix:"CACHE_"`
	Auth        Auth
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	Workflow    Workflow
	Payments    Payments
	Link        Link    `envPrefix:"LINK_"`
	Stripe      Stripe  `envPrefix:"STRIPE_"`
	SMTP        SMTP    `envPrefix:"SMTP_"`
	S3          S3      `envPrefix:"S3_"`
	Metrics     Metrics `envPrefix:"METRICS_"`
}

type App struct {
	Env  string `env:"APP_ENV" envDefault:"prod"`
	Host string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"APP_PORT" envDefault:"5000"`
	Name string `env:"APP_NAME" envDefault:"VideoGenerator AI"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

type Database struct {
	Driver     string `env:"DRIVER" envDefault:"mysql"`
	User       string `env:"USER"`
	Password   string `env:"PASSWORD"`
	Host       string `env:"HOST" envDefault:"127.0.0.1"`
	Port       string `env:"PORT" envDefault:"3306"`
	Name       string `env:"NAME"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"videogen.db"`
}

type Cache struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Workflow struct {
	BaseURL        string        `env:"N8N_WEBHOOK_URL" envDefault:"http://localhost:5678"`
	Timeout        time.Duration `env:"N8N_TIMEOUT" envDefault:"30s"`
	CallbackSecret string        `env:"WORKFLOW_CALLBACK_SECRET"`
	RefundOnFail   bool          `env:"REFUND_ON_DELEGATION_FAILURE" envDefault:"true"`
}

type Payments struct {
	Provider string `env:"PAYMENT_PROVIDER" envDefault:"link"`
}

type Link struct {
	APIKey        string        `env:"API_KEY"`
	APIURL        string        `env:"API_URL" envDefault:"https://api.link.com"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	Sender   string `env:"SENDER" envDefault:"VideoGenerator AI <noreply@videogenerator.ai>"`
}

type S3 struct {
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
	BucketName      string `env:"BUCKET_NAME"`
	EndpointURL     string `env:"ENDPOINT_URL"`
}

type Metrics struct {
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
}

// Load parses the configuration from the .env values and the process
// environment and validates it.
func Load() (*Config, error) {
	return LoadFrom(env.Merged())
}

func LoadFrom(values map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := envparse.ParseWithOptions(cfg, envparse.Options{Environment: values}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required for the mysql driver"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	switch c.Payments.Provider {
	case "link":
		if c.Link.APIKey == "" {
			errs = append(errs, errors.New("LINK_API_KEY is required when PAYMENT_PROVIDER=link"))
		}
	case "stripe":
		if c.Stripe.SecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported PAYMENT_PROVIDER %q", c.Payments.Provider))
	}
	if c.Workflow.BaseURL == "" {
		errs = append(errs, errors.New("N8N_WEBHOOK_URL is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDev() bool {
	return c.App.Env == "dev"
}

func (c *Config) S3Enabled() bool {
	return c.S3.BucketName != ""
}

func (c *Config) MetricsEnabled() bool {
	return c.Metrics.User != "" && c.Metrics.Password != ""
}

// FrontendLink joins a path onto FRONTEND_URL.
func (c *Config) FrontendLink(path string) string {
	return strings.TrimRight(c.FrontendURL, "/") + "/" + strings.TrimLeft(path, "/")
}
