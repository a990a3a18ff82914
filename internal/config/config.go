package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/fpl-live-engine/internal/platform/logging"
)

// Config stores runtime configuration for the engine.
type Config struct {
	AppEnv                     string
	ServiceName                string
	ServiceVersion             string
	HTTPAddr                   string
	ReadTimeout                time.Duration
	WriteTimeout               time.Duration
	CORSAllowedOrigins         []string
	DBURL                      string
	DBDisablePreparedBinary    bool
	RedisEnabled               bool
	RedisAddr                  string
	RedisPassword              string
	RedisDB                    int
	RedisTimeout               time.Duration
	FPLBaseURL                 string
	FPLTimeout                 time.Duration
	FPLMaxRetries              int
	FPLMaxConcurrent           int
	FPLCircuitEnabled          bool
	FPLCircuitFailureCount     int
	FPLCircuitOpenTimeout      time.Duration
	FPLCircuitHalfOpenMaxReq   int
	PayoutEnabled              bool
	PayoutBaseURL              string
	PayoutToken                string
	PayoutTimeout              time.Duration
	PayoutMaxRetries           int
	ScoreUpdateInterval        time.Duration
	LifecycleInterval          time.Duration
	LeagueThrottleWindow       time.Duration
	SeedGameweek               int
	InternalJobToken           string
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
	PprofEnabled               bool
	PprofAddr                  string
	LogLevel                   logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	redisEnabled, err := strconv.ParseBool(getEnv("REDIS_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REDIS_ENABLED: %w", err)
	}
	redisAddr := strings.TrimSpace(getEnv("REDIS_ADDR", "localhost:6379"))
	if redisEnabled && redisAddr == "" {
		return Config{}, fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse REDIS_DB: %w", err)
	}
	redisTimeout, err := time.ParseDuration(getEnv("REDIS_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REDIS_TIMEOUT: %w", err)
	}
	if redisTimeout <= 0 {
		return Config{}, fmt.Errorf("REDIS_TIMEOUT must be > 0")
	}

	fplTimeout, err := time.ParseDuration(getEnv("FPL_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_TIMEOUT: %w", err)
	}
	if fplTimeout <= 0 {
		return Config{}, fmt.Errorf("FPL_TIMEOUT must be > 0")
	}
	fplMaxRetries, err := getEnvAsInt("FPL_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_MAX_RETRIES: %w", err)
	}
	if fplMaxRetries < 1 {
		return Config{}, fmt.Errorf("FPL_MAX_RETRIES must be >= 1")
	}
	fplMaxConcurrent, err := getEnvAsInt("FPL_MAX_CONCURRENT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_MAX_CONCURRENT: %w", err)
	}
	if fplMaxConcurrent < 1 {
		return Config{}, fmt.Errorf("FPL_MAX_CONCURRENT must be >= 1")
	}
	fplCircuitEnabled, err := strconv.ParseBool(getEnv("FPL_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_CIRCUIT_ENABLED: %w", err)
	}
	fplCircuitFailureCount, err := getEnvAsInt("FPL_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if fplCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("FPL_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	fplCircuitOpenTimeout, err := time.ParseDuration(getEnv("FPL_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if fplCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("FPL_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	fplCircuitHalfOpenMaxReq, err := getEnvAsInt("FPL_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse FPL_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if fplCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("FPL_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	payoutEnabled, err := strconv.ParseBool(getEnv("PAYOUT_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PAYOUT_ENABLED: %w", err)
	}
	payoutBaseURL := strings.TrimSpace(getEnv("PAYOUT_BASE_URL", ""))
	if payoutEnabled && payoutBaseURL == "" {
		return Config{}, fmt.Errorf("PAYOUT_BASE_URL is required when PAYOUT_ENABLED=true")
	}
	payoutTimeout, err := time.ParseDuration(getEnv("PAYOUT_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PAYOUT_TIMEOUT: %w", err)
	}
	if payoutTimeout <= 0 {
		return Config{}, fmt.Errorf("PAYOUT_TIMEOUT must be > 0")
	}
	payoutMaxRetries, err := getEnvAsInt("PAYOUT_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse PAYOUT_MAX_RETRIES: %w", err)
	}
	if payoutMaxRetries < 1 {
		return Config{}, fmt.Errorf("PAYOUT_MAX_RETRIES must be >= 1")
	}

	scoreUpdateInterval, err := time.ParseDuration(getEnv("SCORE_UPDATE_INTERVAL", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse SCORE_UPDATE_INTERVAL: %w", err)
	}
	if scoreUpdateInterval <= 0 {
		return Config{}, fmt.Errorf("SCORE_UPDATE_INTERVAL must be > 0")
	}
	lifecycleInterval, err := time.ParseDuration(getEnv("LIFECYCLE_INTERVAL", "2m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LIFECYCLE_INTERVAL: %w", err)
	}
	if lifecycleInterval <= 0 {
		return Config{}, fmt.Errorf("LIFECYCLE_INTERVAL must be > 0")
	}
	leagueThrottleWindow, err := time.ParseDuration(getEnv("LEAGUE_THROTTLE_WINDOW", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LEAGUE_THROTTLE_WINDOW: %w", err)
	}
	if leagueThrottleWindow <= 0 {
		return Config{}, fmt.Errorf("LEAGUE_THROTTLE_WINDOW must be > 0")
	}

	seedGameweek, err := getEnvAsInt("SEED_GAMEWEEK", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse SEED_GAMEWEEK: %w", err)
	}
	if seedGameweek < 1 {
		return Config{}, fmt.Errorf("SEED_GAMEWEEK must be >= 1")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	cfg := Config{
		AppEnv:                     appEnv,
		ServiceName:                getEnv("APP_SERVICE_NAME", "fpl-live-engine"),
		ServiceVersion:             getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                   getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:                readTimeout,
		WriteTimeout:               writeTimeout,
		CORSAllowedOrigins:         splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DBURL:                      strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary:    dbDisablePreparedBinary,
		RedisEnabled:               redisEnabled,
		RedisAddr:                  redisAddr,
		RedisPassword:              strings.TrimSpace(getEnv("REDIS_PASSWORD", "")),
		RedisDB:                    redisDB,
		RedisTimeout:               redisTimeout,
		FPLBaseURL:                 strings.TrimSpace(getEnv("FPL_BASE_URL", "https://fantasy.premierleague.com/api")),
		FPLTimeout:                 fplTimeout,
		FPLMaxRetries:              fplMaxRetries,
		FPLMaxConcurrent:           fplMaxConcurrent,
		FPLCircuitEnabled:          fplCircuitEnabled,
		FPLCircuitFailureCount:     fplCircuitFailureCount,
		FPLCircuitOpenTimeout:      fplCircuitOpenTimeout,
		FPLCircuitHalfOpenMaxReq:   fplCircuitHalfOpenMaxReq,
		PayoutEnabled:              payoutEnabled,
		PayoutBaseURL:              payoutBaseURL,
		PayoutToken:                strings.TrimSpace(getEnv("PAYOUT_TOKEN", "")),
		PayoutTimeout:              payoutTimeout,
		PayoutMaxRetries:           payoutMaxRetries,
		ScoreUpdateInterval:        scoreUpdateInterval,
		LifecycleInterval:          lifecycleInterval,
		LeagueThrottleWindow:       leagueThrottleWindow,
		SeedGameweek:               seedGameweek,
		InternalJobToken:           strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		UptraceEnabled:             uptraceEnabled,
		UptraceDSN:                 uptraceDSN,
		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
		PprofEnabled:               pprofEnabled,
		PprofAddr:                  pprofAddr,
		LogLevel:                   logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
