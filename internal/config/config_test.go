package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a config that passes Validate. Tests mutate one field.
func validConfig() *Config {
	return &Config{
		Provider:          ProviderGemini,
		ModelName:         "gemini-2.5-flash",
		Temperature:       0.7,
		MaxOutputTokens:   1024,
		EmbedderModel:     DefaultEmbedderModel,
		EmbedderDimension: DefaultEmbedderDimension,
		VectorBackend:     VectorBackendMemory,
		Namespace:         DefaultNamespace,
		MaxPromptChars:    12000,
		PostgresHost:      "localhost",
		PostgresPort:      5432,
		PostgresUser:      "lumen",
		PostgresPassword:  "secret",
		PostgresDBName:    "lumen",
		PostgresSSLMode:   "disable",
		RedisAddr:         "localhost:6379",
		SessionBackend:    SessionBackendFile,
		SessionPath:       "/tmp/lumen-test",
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }, ErrInvalidProvider},
		{"empty model", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"temperature too high", func(c *Config) { c.Temperature = 3.5 }, ErrInvalidTemperature},
		{"temperature negative", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"zero output tokens", func(c *Config) { c.MaxOutputTokens = 0 }, ErrInvalidMaxOutputTokens},
		{"zero embedder dimension", func(c *Config) { c.EmbedderDimension = 0 }, ErrInvalidEmbedderDimension},
		{"empty namespace", func(c *Config) { c.Namespace = "" }, ErrInvalidNamespace},
		{"unknown vector backend", func(c *Config) { c.VectorBackend = "weaviate" }, ErrInvalidVectorBackend},
		{"postgres without host", func(c *Config) {
			c.VectorBackend = VectorBackendPostgres
			c.PostgresHost = ""
		}, ErrInvalidPostgresHost},
		{"postgres bad port", func(c *Config) {
			c.VectorBackend = VectorBackendPostgres
			c.PostgresPort = 0
		}, ErrInvalidPostgresPort},
		{"redis without addr", func(c *Config) {
			c.VectorBackend = VectorBackendRedis
			c.RedisAddr = ""
		}, ErrInvalidRedisAddr},
		{"unknown session backend", func(c *Config) { c.SessionBackend = "etcd" }, ErrInvalidSessionBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarshalJSONMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "super_secret_password"
	cfg.RedisPassword = "another_secret_value"

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}

	out := string(data)
	if strings.Contains(out, "super_secret_password") {
		t.Error("postgres password leaked in JSON output")
	}
	if strings.Contains(out, "another_secret_value") {
		t.Error("redis password leaked in JSON output")
	}
	if !strings.Contains(out, maskedValue) {
		t.Error("expected masked placeholder in JSON output")
	}
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "super_secret_password"
	if strings.Contains(cfg.String(), "super_secret_password") {
		t.Error("String() leaked postgres password")
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"googleai/gemini-2.5-pro", "googleai/gemini-2.5-pro"},
	}
	for _, tt := range tests {
		cfg := validConfig()
		cfg.ModelName = tt.model
		if got := cfg.FullModelName(); got != tt.want {
			t.Errorf("FullModelName(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestPostgresConnectionStringQuotesPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "has space's"

	dsn := cfg.PostgresConnectionString()
	if !strings.Contains(dsn, `password='has space\'s'`) {
		t.Errorf("password not quoted in DSN: %q", dsn)
	}
}

func TestPostgresURLEncodesCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresUser = "user@corp"
	cfg.PostgresPassword = "p@ss/word"

	u := cfg.PostgresURL()
	if !strings.HasPrefix(u, "postgres://") {
		t.Errorf("unexpected scheme: %q", u)
	}
	if strings.Contains(u, "p@ss/word") {
		t.Errorf("password not URL-encoded: %q", u)
	}
}
