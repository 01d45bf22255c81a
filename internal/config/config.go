package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	AWS       AWSConfig
	STT       STTConfig
	TTS       TTSConfig
	Email     EmailConfig
	Interview InterviewConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadBytes int64
}

type SessionConfig struct {
	Backend    string // "memory" or "redis"
	Secret     string // empty: random key per process
	CookieName string
	TTL        time.Duration
	Secure     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type LLMConfig struct {
	OpenAIKey        string
	OpenAIBaseURL    string // OpenAI-compatible endpoint; empty for api.openai.com
	AnthropicKey     string
	BedrockModel     string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
	Timeout          time.Duration
}

type AWSConfig struct {
	Region string
}

type STTConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	LocalBaseURL  string // default: "http://localhost:8178/v1"
	Language      string
	Timeout       time.Duration
}

type TTSConfig struct {
	Backend       string // "openai" or "" (disabled)
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	Voice         string
}

type EmailConfig struct {
	Backend        string // "log", "smtp" or "ses"
	From           string
	FallbackDomain string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPTLS        bool
	Timeout        time.Duration
}

type InterviewConfig struct {
	QuestionsFile string
	UploadDir     string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	maxUpload, err := getEnvInt("MAX_UPLOAD_BYTES", 25<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	sessionTTL, err := getEnvDuration("SESSION_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	secure, err := getEnvBool("SESSION_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_COOKIE_SECURE: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	llmTimeout, err := getEnvDuration("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TIMEOUT: %w", err)
	}

	sttTimeout, err := getEnvDuration("STT_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid STT_TIMEOUT: %w", err)
	}

	smtpPort, err := getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	smtpTLS, err := getEnvBool("SMTP_TLS", false)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_TLS: %w", err)
	}

	emailTimeout, err := getEnvDuration("EMAIL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid EMAIL_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
			MaxUploadBytes: int64(maxUpload),
		},
		Session: SessionConfig{
			Backend:    getEnv("SESSION_BACKEND", "memory"),
			Secret:     getEnv("SESSION_SECRET", ""),
			CookieName: getEnv("SESSION_COOKIE_NAME", "visa_session"),
			TTL:        sessionTTL,
			Secure:     secure,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("LLM_OPENAI_BASE_URL", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			BedrockModel:     getEnv("BEDROCK_MODEL_ID", "ai21.j2-ultra-v1"),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", ""),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
			Timeout:          llmTimeout,
		},
		AWS: AWSConfig{
			Region: getEnv("AWS_REGION", "us-east-1"),
		},
		STT: STTConfig{
			Backend:       getEnv("STT_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("STT_OPENAI_MODEL", ""),
			LocalBaseURL:  getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178/v1"),
			Language:      getEnv("STT_LANGUAGE", ""),
			Timeout:       sttTimeout,
		},
		TTS: TTSConfig{
			Backend:       getEnv("TTS_BACKEND", ""),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", ""),
			Voice:         getEnv("TTS_VOICE", "alloy"),
		},
		Email: EmailConfig{
			Backend:        getEnv("EMAIL_BACKEND", "log"),
			From:           getEnv("EMAIL_FROM", "your-email@example.com"),
			FallbackDomain: getEnv("EMAIL_FALLBACK_DOMAIN", "example.com"),
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       smtpPort,
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
			SMTPTLS:        smtpTLS,
			Timeout:        emailTimeout,
		},
		Interview: InterviewConfig{
			QuestionsFile: getEnv("QUESTIONS_FILE", ""),
			UploadDir:     getEnv("UPLOAD_DIR", os.TempDir()),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks that the selected backends are known and have their credentials.
func (c *Config) Validate() error {
	var problems []string

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("unknown SESSION_BACKEND %q", c.Session.Backend))
	}

	switch c.LLM.DefaultProvider {
	case "openai":
		if c.LLM.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY required for openai provider")
		}
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			problems = append(problems, "ANTHROPIC_API_KEY required for anthropic provider")
		}
	case "bedrock":
	default:
		problems = append(problems, fmt.Sprintf("unknown LLM_DEFAULT_PROVIDER %q", c.LLM.DefaultProvider))
	}

	switch c.STT.Backend {
	case "openai":
		if c.STT.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY required for openai STT backend")
		}
	case "local":
	default:
		problems = append(problems, fmt.Sprintf("unknown STT_BACKEND %q", c.STT.Backend))
	}

	switch c.TTS.Backend {
	case "", "openai":
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_BACKEND %q", c.TTS.Backend))
	}

	switch c.Email.Backend {
	case "log", "ses":
	case "smtp":
		if c.Email.SMTPHost == "" {
			problems = append(problems, "SMTP_HOST required for smtp email backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown EMAIL_BACKEND %q", c.Email.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
