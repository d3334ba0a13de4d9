package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Auth      AuthSettings      `mapstructure:"auth"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	SMTP      SMTPSettings      `mapstructure:"smtp"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	CORS      CORSSettings      `mapstructure:"cors"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// JWTSettings configures the symmetric signing secret and token lifetimes.
// Every token kind (access, refresh, email-proof) is signed with the same
// secret and algorithm; claims carry all state.
type JWTSettings struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	EmailProofTTL   time.Duration `mapstructure:"email_proof_ttl"`
}

// AuthSettings configures the email verification flow and timing defenses.
type AuthSettings struct {
	TimingFloor       time.Duration `mapstructure:"timing_floor"`
	CodeTTL           time.Duration `mapstructure:"code_ttl"`
	MaxCodeAttempts   int           `mapstructure:"max_code_attempts"`
	PasswordMinLength int           `mapstructure:"password_min_length"`
	PurgeInterval     time.Duration `mapstructure:"purge_interval"`
}

// RateLimitSettings configures sliding-window limits per endpoint.
// Limits are enforced in-process; a multi-instance deployment needs a
// shared counter store to make them cluster-wide.
type RateLimitSettings struct {
	Window           time.Duration `mapstructure:"window"`
	StartIPLimit     int           `mapstructure:"start_ip_limit"`
	StartEmailLimit  int           `mapstructure:"start_email_limit"`
	VerifyIPLimit    int           `mapstructure:"verify_ip_limit"`
	VerifyEmailLimit int           `mapstructure:"verify_email_limit"`
	LoginIPLimit     int           `mapstructure:"login_ip_limit"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// SMTPSettings configures the verification code mailer. An empty host
// selects the logging notifier.
type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// KafkaSettings configures the event producer. No brokers selects the
// logging stub publisher.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("BOARD")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"jwt.secret",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"jwt.email_proof_ttl",
		"auth.timing_floor",
		"auth.code_ttl",
		"auth.max_code_attempts",
		"auth.password_min_length",
		"auth.purge_interval",
		"rate_limit.window",
		"rate_limit.start_ip_limit",
		"rate_limit.start_email_limit",
		"rate_limit.verify_ip_limit",
		"rate_limit.verify_email_limit",
		"rate_limit.login_ip_limit",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"smtp.host",
		"smtp.port",
		"smtp.username",
		"smtp.password",
		"smtp.from",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"cors.allowed_origins",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "board-app")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "board")
	v.SetDefault("postgres.password", "board_password")
	v.SetDefault("postgres.database", "board")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("jwt.secret", "dev-secret-change-me")
	v.SetDefault("jwt.access_token_ttl", "60m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")
	v.SetDefault("jwt.email_proof_ttl", "15m")

	v.SetDefault("auth.timing_floor", "280ms")
	v.SetDefault("auth.code_ttl", "10m")
	v.SetDefault("auth.max_code_attempts", 6)
	v.SetDefault("auth.password_min_length", 1)
	v.SetDefault("auth.purge_interval", "5m")

	v.SetDefault("rate_limit.window", "10m")
	v.SetDefault("rate_limit.start_ip_limit", 30)
	v.SetDefault("rate_limit.start_email_limit", 5)
	v.SetDefault("rate_limit.verify_ip_limit", 60)
	v.SetDefault("rate_limit.verify_email_limit", 10)
	v.SetDefault("rate_limit.login_ip_limit", 30)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "board")
	v.SetDefault("kafka.async", true)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "BOARD_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
