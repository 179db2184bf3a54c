package config

import "fmt"

// Temperature and token limits accepted by the generation backends.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0

	MinOutputTokens = 1
	MaxOutputTokens = 65536

	// MaxEmbedderDimension is a sanity bound; pgvector indexes degrade well
	// before this.
	MaxEmbedderDimension = 4096
)

// Validate checks the configuration for obviously broken values.
// It returns the first sentinel error found, wrapped with context.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (expected gemini or googleai)", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}

	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return fmt.Errorf("%w: %v (expected %v..%v)", ErrInvalidTemperature, c.Temperature, MinTemperature, MaxTemperature)
	}

	if c.MaxOutputTokens < MinOutputTokens || c.MaxOutputTokens > MaxOutputTokens {
		return fmt.Errorf("%w: %d (expected %d..%d)", ErrInvalidMaxOutputTokens, c.MaxOutputTokens, MinOutputTokens, MaxOutputTokens)
	}

	if c.EmbedderDimension < 1 || c.EmbedderDimension > MaxEmbedderDimension {
		return fmt.Errorf("%w: %d (expected 1..%d)", ErrInvalidEmbedderDimension, c.EmbedderDimension, MaxEmbedderDimension)
	}

	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace must not be empty", ErrInvalidNamespace)
	}

	switch c.VectorBackend {
	case VectorBackendPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
	case VectorBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: address must not be empty", ErrInvalidRedisAddr)
		}
	case VectorBackendMemory:
	default:
		return fmt.Errorf("%w: %q (expected postgres, redis, or memory)", ErrInvalidVectorBackend, c.VectorBackend)
	}

	switch c.SessionBackend {
	case SessionBackendSQLite, SessionBackendFile:
	default:
		return fmt.Errorf("%w: %q (expected sqlite or file)", ErrInvalidSessionBackend, c.SessionBackend)
	}

	return nil
}
