package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Redis struct {
		Addr   string `yaml:"addr"`
		DB     int    `yaml:"db"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`

	Rate struct {
		// memory | redis
		Backend      string `yaml:"backend"`
		MaxRequests  int    `yaml:"max_requests"`
		RateInterval string `yaml:"rate_interval"`
	} `yaml:"rate"`

	Token struct {
		Issuer            string   `yaml:"issuer"`
		AcceptedAudiences []string `yaml:"accepted_audiences"`
		APIAudience       []string `yaml:"api_audience"`
		APITokenDuration  string   `yaml:"api_token_duration"`
	} `yaml:"token"`

	Signer struct {
		KID     string `yaml:"kid"`
		KeyPath string `yaml:"key_path"`
	} `yaml:"signer"`

	Audit struct {
		Stream      string `yaml:"stream"`
		FallbackDir string `yaml:"fallback_dir"`
	} `yaml:"audit"`

	Consumer struct {
		AgreementStream string `yaml:"agreement_stream"`
		CatalogStream   string `yaml:"catalog_stream"`
		PurposeStream   string `yaml:"purpose_stream"`
		Group           string `yaml:"group"`
		Workers         int    `yaml:"workers"`
	} `yaml:"consumer"`
}

func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 100
	}
	if c.Rate.RateInterval == "" {
		c.Rate.RateInterval = "1s"
	}
	if c.Token.APITokenDuration == "" {
		c.Token.APITokenDuration = "10m"
	}
	if c.Audit.Stream == "" {
		c.Audit.Stream = "generated-jwt-audit"
	}
	if c.Audit.FallbackDir == "" {
		c.Audit.FallbackDir = "./data/audit-fallback"
	}
	if c.Consumer.AgreementStream == "" {
		c.Consumer.AgreementStream = "agreement-events"
	}
	if c.Consumer.CatalogStream == "" {
		c.Consumer.CatalogStream = "catalog-events"
	}
	if c.Consumer.PurposeStream == "" {
		c.Consumer.PurposeStream = "purpose-events"
	}
	if c.Consumer.Group == "" {
		c.Consumer.Group = "token-states-writer"
	}
	if c.Consumer.Workers == 0 {
		c.Consumer.Workers = 4
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}

	// RATE
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("RATE_INTERVAL"); ok {
		c.Rate.RateInterval = v
	}

	// TOKEN
	if v, ok := getEnvStr("TOKEN_ISSUER"); ok {
		c.Token.Issuer = v
	}
	if v, ok := getEnvCSV("TOKEN_ACCEPTED_AUDIENCES"); ok {
		c.Token.AcceptedAudiences = v
	}
	if v, ok := getEnvCSV("TOKEN_API_AUDIENCE"); ok {
		c.Token.APIAudience = v
	}
	if v, ok := getEnvStr("TOKEN_API_DURATION"); ok {
		c.Token.APITokenDuration = v
	}

	// SIGNER
	if v, ok := getEnvStr("SIGNER_KID"); ok {
		c.Signer.KID = v
	}
	if v, ok := getEnvStr("SIGNER_KEY_PATH"); ok {
		c.Signer.KeyPath = v
	}

	// AUDIT
	if v, ok := getEnvStr("AUDIT_STREAM"); ok {
		c.Audit.Stream = v
	}
	if v, ok := getEnvStr("AUDIT_FALLBACK_DIR"); ok {
		c.Audit.FallbackDir = v
	}

	// CONSUMER
	if v, ok := getEnvStr("CONSUMER_GROUP"); ok {
		c.Consumer.Group = v
	}
	if v, ok := getEnvInt("CONSUMER_WORKERS"); ok {
		c.Consumer.Workers = v
	}
}

func (c *Config) Validate() error {
	if c.Storage.Driver != "memory" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("storage.driver inválido: %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn requerido con driver postgres")
	}
	if c.Rate.Backend != "memory" && c.Rate.Backend != "redis" {
		return fmt.Errorf("rate.backend inválido: %q", c.Rate.Backend)
	}
	if _, err := time.ParseDuration(c.Rate.RateInterval); err != nil {
		return fmt.Errorf("rate.rate_interval inválido: %w", err)
	}
	if _, err := time.ParseDuration(c.Token.APITokenDuration); err != nil {
		return fmt.Errorf("token.api_token_duration inválido: %w", err)
	}
	return nil
}

// RateInterval parsea la ventana ya validada.
func (c *Config) RateInterval() time.Duration {
	d, _ := time.ParseDuration(c.Rate.RateInterval)
	return d
}

// APITokenDuration parsea el TTL ya validado.
func (c *Config) APITokenDuration() time.Duration {
	d, _ := time.ParseDuration(c.Token.APITokenDuration)
	return d
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvCSV(key string) ([]string, bool) {
	v := os.Getenv(key)
	if v == "" {
		return nil, false
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, len(out) > 0
}
