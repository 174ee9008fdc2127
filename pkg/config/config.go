package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// FileName is the optional YAML config file read from the working directory.
const FileName = "config.yaml"

// Config holds all configuration for ekaya-macro.
// Values come from config.yaml when present; environment variables always win.
// Secrets (database password, DATABASE_URL) should only come from the environment.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Version  string `yaml:"-"`

	// Status server
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3000" validate:"required,numeric"`

	// ReportDir is where validation reports are written.
	ReportDir string `yaml:"report_dir" env:"REPORT_DIR" env-default:"reports"`

	Database   DatabaseConfig   `yaml:"database"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Validation ValidationConfig `yaml:"validation"`
}

// DatabaseConfig holds PostgreSQL connection settings.
// URL takes precedence over the individual PG* fields.
type DatabaseConfig struct {
	URL             string        `yaml:"-" env:"DATABASE_URL"`
	Host            string        `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"PGPORT" env-default:"5432"`
	User            string        `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password        string        `yaml:"-" env:"PGPASSWORD"`
	Database        string        `yaml:"database" env:"PGDATABASE" env-default:"ekaya_macro"`
	SSLMode         string        `yaml:"ssl_mode" env:"PGSSLMODE" env-default:""`
	MaxConnections  int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10" validate:"gte=1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"PGMAX_CONN_IDLE_TIME" env-default:"30s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT" env-default:"15s"`
}

// IngestConfig holds download and pipeline settings.
type IngestConfig struct {
	DownloadTimeout  time.Duration `yaml:"download_timeout" env:"DOWNLOAD_TIMEOUT" env-default:"15m" validate:"gt=0"`
	MaxRedirects     int           `yaml:"max_redirects" env:"MAX_REDIRECTS" env-default:"10" validate:"gte=0"`
	UserAgent        string        `yaml:"user_agent" env:"USER_AGENT" env-default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"`
	BatchSize        int           `yaml:"batch_size" env:"BATCH_SIZE" env-default:"1000" validate:"gte=1,lte=5000"`
	ProgressInterval int           `yaml:"progress_interval" env:"PROGRESS_INTERVAL" env-default:"50000" validate:"gte=1"`

	WBAPIBaseURL string  `yaml:"wb_api_base_url" env:"WB_API_BASE_URL" env-default:"https://api.worldbank.org/v2" validate:"url"`
	WBAPIRPS     float64 `yaml:"wb_api_rps" env:"WB_API_RPS" env-default:"10" validate:"gt=0"`
	WBAPIPerPage int     `yaml:"wb_api_per_page" env:"WB_API_PER_PAGE" env-default:"1000" validate:"gte=1"`
	WBAPIFrom    int     `yaml:"wb_api_from" env:"WB_API_FROM" env-default:"1990"`
	WBAPITo      int     `yaml:"wb_api_to" env:"WB_API_TO" env-default:"2024" validate:"gtefield=WBAPIFrom"`
	MaxRetries   int     `yaml:"max_retries" env:"INGEST_MAX_RETRIES" env-default:"3" validate:"gte=0"`
}

// ValidationConfig holds the validation engine's policy values.
// Zero expected counts mean "use the previous run as baseline".
type ValidationConfig struct {
	CountVarianceThreshold    float64 `yaml:"count_variance_threshold" env:"VALIDATION_COUNT_VARIANCE" env-default:"0.05" validate:"gte=0"`
	ZScoreThreshold           float64 `yaml:"z_score_threshold" env:"VALIDATION_Z_SCORE" env-default:"3.0" validate:"gt=0"`
	WeightCompleteness        float64 `yaml:"weight_completeness" env:"VALIDATION_WEIGHT_COMPLETENESS" env-default:"0.30" validate:"gte=0"`
	WeightConsistency         float64 `yaml:"weight_consistency" env:"VALIDATION_WEIGHT_CONSISTENCY" env-default:"0.25" validate:"gte=0"`
	WeightCoverage            float64 `yaml:"weight_coverage" env:"VALIDATION_WEIGHT_COVERAGE" env-default:"0.25" validate:"gte=0"`
	WeightAccuracy            float64 `yaml:"weight_accuracy" env:"VALIDATION_WEIGHT_ACCURACY" env-default:"0.20" validate:"gte=0"`
	PageSize                  int     `yaml:"page_size" env:"VALIDATION_PAGE_SIZE" env-default:"50000" validate:"gte=1"`
	MinYear                   int     `yaml:"min_year" env:"VALIDATION_MIN_YEAR" env-default:"1980"`
	MaxYear                   int     `yaml:"max_year" env:"VALIDATION_MAX_YEAR" env-default:"2030" validate:"gtefield=MinYear"`
	MaxInconsistencies        int     `yaml:"max_inconsistencies" env:"VALIDATION_MAX_INCONSISTENCIES" env-default:"1000" validate:"gte=1"`
	MaxAnomalies              int     `yaml:"max_anomalies" env:"VALIDATION_MAX_ANOMALIES" env-default:"100" validate:"gte=1"`
	ConsistencyPenaltyDivisor float64 `yaml:"consistency_penalty_divisor" env:"VALIDATION_CONSISTENCY_DIVISOR" env-default:"100" validate:"gt=0"`
	AccuracyPenaltyDivisor    float64 `yaml:"accuracy_penalty_divisor" env:"VALIDATION_ACCURACY_DIVISOR" env-default:"1000" validate:"gt=0"`
	ExpectedWB                int64   `yaml:"expected_wb" env:"VALIDATION_EXPECTED_WB" env-default:"0" validate:"gte=0"`
	ExpectedOECD              int64   `yaml:"expected_oecd" env:"VALIDATION_EXPECTED_OECD" env-default:"0" validate:"gte=0"`
	ExpectedIMF               int64   `yaml:"expected_imf" env:"VALIDATION_EXPECTED_IMF" env-default:"0" validate:"gte=0"`
	MinScore                  float64 `yaml:"min_score" env:"VALIDATION_MIN_SCORE" env-default:"0" validate:"gte=0,lte=100"`
}

// Load reads configuration from config.yaml (if present) with environment overrides.
// The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	var err error
	if _, statErr := os.Stat(FileName); statErr == nil {
		err = cleanenv.ReadConfig(FileName, cfg)
	} else if errors.Is(statErr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(cfg)
	} else {
		err = statErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the environment flag selects production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// EffectiveSSLMode returns the sslmode to use when none is given explicitly.
// Production connects over TLS without certificate verification; other
// environments connect without TLS.
func (c *Config) EffectiveSSLMode() string {
	if c.Database.SSLMode != "" {
		return c.Database.SSLMode
	}
	if c.IsProduction() {
		return "require"
	}
	return "disable"
}

// ConnectionString returns the PostgreSQL connection string.
// DATABASE_URL is used as-is unless it lacks an sslmode, in which case the
// environment's default is appended.
func (c *Config) ConnectionString() string {
	sslMode := c.EffectiveSSLMode()

	if c.Database.URL != "" {
		return withSSLMode(ResolveURLForDocker(c.Database.URL), sslMode)
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Database.Host), c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Database, sslMode,
	)
}

func withSSLMode(dsn, sslMode string) string {
	if strings.Contains(dsn, "sslmode=") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		// key=value form
		return strings.TrimSpace(dsn) + " sslmode=" + sslMode
	}
	q := u.Query()
	q.Set("sslmode", sslMode)
	u.RawQuery = q.Encode()
	return u.String()
}
