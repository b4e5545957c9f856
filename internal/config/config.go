// Package config defines the environment configuration contract for the bot
// and handles loading and validating it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken     = "TELEGRAM_TOKEN"
	KeyAdminIDs          = "ADMIN_IDS"
	KeyMongoURI          = "MONGO_URI"
	KeyMongoDB           = "MONGO_DB"
	KeyAppEnv            = "APP_ENV"
	KeyLogLevel          = "LOG_LEVEL"
	KeyHTTPPort          = "HTTP_PORT"
	KeyOpenRouterAPIKey  = "OPENROUTER_API_KEY"
	KeyOpenRouterBaseURL = "OPENROUTER_BASE_URL"
	KeyOpenRouterModel   = "OPENROUTER_MODEL"
	KeyGeminiAPIKey      = "GEMINI_API_KEY"
	KeyGeminiBaseURL     = "GEMINI_BASE_URL"
	KeyGeminiModel       = "GEMINI_MODEL"
	KeyAITimeoutSeconds  = "AI_TIMEOUT_SECONDS"
	KeyMaxFileSize       = "MAX_FILE_SIZE"
	KeyAllowedExtensions = "ALLOWED_EXTENSIONS"
	KeyEnableStatistics  = "ENABLE_STATISTICS"
	KeySnapshotSchedule  = "SNAPSHOT_SCHEDULE"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv            = EnvProduction
	DefaultLogLevel          = "info"
	DefaultHTTPPort          = 8080
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel   = "anthropic/claude-3.5-sonnet"
	DefaultGeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel       = "gemini-2.0-flash-exp"
	DefaultAITimeoutSeconds  = 30
	DefaultMaxFileSizeMB     = 50
	DefaultAllowedExtensions = ".jpg,.jpeg,.png,.gif,.mp4,.pdf,.doc,.docx"
	DefaultSnapshotSchedule  = "0 0 * * *"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyAdminIDs,
		Example:     "123456789,987654321",
		Required:    true,
		Description: "Comma-separated Telegram user_ids allowed to use admin commands.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     "chatbot_becks",
		Required:    true,
		Description: "MongoDB database name.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
	{
		Key:         KeyOpenRouterAPIKey,
		Example:     "sk-or-v1-...",
		Description: "OpenRouter API key for text completions; replies degrade without it.",
	},
	{
		Key:         KeyOpenRouterBaseURL,
		Example:     DefaultOpenRouterBaseURL,
		Default:     DefaultOpenRouterBaseURL,
		Description: "OpenRouter API base URL.",
	},
	{
		Key:         KeyOpenRouterModel,
		Example:     DefaultOpenRouterModel,
		Default:     DefaultOpenRouterModel,
		Description: "Model identifier for text completions.",
	},
	{
		Key:         KeyGeminiAPIKey,
		Example:     "AIza...",
		Description: "Gemini API key for image analysis; photo replies degrade without it.",
	},
	{
		Key:         KeyGeminiBaseURL,
		Example:     DefaultGeminiBaseURL,
		Default:     DefaultGeminiBaseURL,
		Description: "Gemini API base URL.",
	},
	{
		Key:         KeyGeminiModel,
		Example:     DefaultGeminiModel,
		Default:     DefaultGeminiModel,
		Description: "Model identifier for image analysis.",
	},
	{
		Key:         KeyAITimeoutSeconds,
		Example:     strconv.Itoa(DefaultAITimeoutSeconds),
		Default:     strconv.Itoa(DefaultAITimeoutSeconds),
		Description: "Upper bound in seconds for a single AI provider call.",
	},
	{
		Key:         KeyMaxFileSize,
		Example:     strconv.Itoa(DefaultMaxFileSizeMB),
		Default:     strconv.Itoa(DefaultMaxFileSizeMB),
		Description: "Maximum accepted media size in megabytes.",
	},
	{
		Key:         KeyAllowedExtensions,
		Example:     DefaultAllowedExtensions,
		Default:     DefaultAllowedExtensions,
		Description: "Comma-separated list of accepted document file extensions.",
	},
	{
		Key:         KeyEnableStatistics,
		Example:     "true",
		Default:     "true",
		Description: "Enables the daily statistics snapshot job.",
	},
	{
		Key:         KeySnapshotSchedule,
		Example:     DefaultSnapshotSchedule,
		Default:     DefaultSnapshotSchedule,
		Description: "Cron schedule for the statistics snapshot job.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken     string
	AdminIDs          []int64
	MongoURI          string
	MongoDB           string
	AppEnv            string
	LogLevel          string
	HTTPPort          int
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterModel   string
	GeminiAPIKey      string
	GeminiBaseURL     string
	GeminiModel       string
	AITimeout         time.Duration
	MaxFileSizeMB     int64
	AllowedExtensions []string
	EnableStatistics  bool
	SnapshotSchedule  string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:            firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:     strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		MongoURI:          strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:           strings.TrimSpace(os.Getenv(KeyMongoDB)),
		LogLevel:          firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:          DefaultHTTPPort,
		OpenRouterAPIKey:  strings.TrimSpace(os.Getenv(KeyOpenRouterAPIKey)),
		OpenRouterBaseURL: firstNonEmpty(strings.TrimSpace(os.Getenv(KeyOpenRouterBaseURL)), DefaultOpenRouterBaseURL),
		OpenRouterModel:   firstNonEmpty(strings.TrimSpace(os.Getenv(KeyOpenRouterModel)), DefaultOpenRouterModel),
		GeminiAPIKey:      strings.TrimSpace(os.Getenv(KeyGeminiAPIKey)),
		GeminiBaseURL:     firstNonEmpty(strings.TrimSpace(os.Getenv(KeyGeminiBaseURL)), DefaultGeminiBaseURL),
		GeminiModel:       firstNonEmpty(strings.TrimSpace(os.Getenv(KeyGeminiModel)), DefaultGeminiModel),
		AITimeout:         DefaultAITimeoutSeconds * time.Second,
		MaxFileSizeMB:     DefaultMaxFileSizeMB,
		SnapshotSchedule:  firstNonEmpty(strings.TrimSpace(os.Getenv(KeySnapshotSchedule)), DefaultSnapshotSchedule),
		EnableStatistics:  true,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	adminRaw := strings.TrimSpace(os.Getenv(KeyAdminIDs))
	if adminRaw == "" {
		missing = append(missing, KeyAdminIDs)
	} else {
		ids, parseErr := parseAdminIDs(adminRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAdminIDs, parseErr)
		}
		cfg.AdminIDs = ids
	}

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	} else if !strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if raw := strings.TrimSpace(os.Getenv(KeyHTTPPort)); raw != "" {
		port, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	if raw := strings.TrimSpace(os.Getenv(KeyAITimeoutSeconds)); raw != "" {
		seconds, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAITimeoutSeconds, parseErr)
		}
		if seconds <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyAITimeoutSeconds)
		}
		cfg.AITimeout = time.Duration(seconds) * time.Second
	}

	if raw := strings.TrimSpace(os.Getenv(KeyMaxFileSize)); raw != "" {
		megabytes, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyMaxFileSize, parseErr)
		}
		if megabytes <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyMaxFileSize)
		}
		cfg.MaxFileSizeMB = megabytes
	}

	extRaw := firstNonEmpty(strings.TrimSpace(os.Getenv(KeyAllowedExtensions)), DefaultAllowedExtensions)
	exts, err := parseExtensions(extRaw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyAllowedExtensions, err)
	}
	cfg.AllowedExtensions = exts

	if raw := strings.TrimSpace(os.Getenv(KeyEnableStatistics)); raw != "" {
		enabled, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyEnableStatistics, parseErr)
		}
		cfg.EnableStatistics = enabled
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// IsAdmin reports membership of the given user_id in the configured admin list.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// MaxFileSizeBytes returns the configured media size limit in bytes.
func (c Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// FormatRedacted renders the resolved configuration with secrets masked, for
// startup diagnostics.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
		"telegram_token: " + maskSecret(cfg.TelegramToken),
		"admin_ids: " + strconv.Itoa(len(cfg.AdminIDs)) + " configured",
		"mongo_uri: " + redactMongoURI(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"openrouter_base_url: " + cfg.OpenRouterBaseURL,
		"openrouter_model: " + cfg.OpenRouterModel,
		"openrouter_api_key: " + maskSecret(cfg.OpenRouterAPIKey),
		"gemini_base_url: " + cfg.GeminiBaseURL,
		"gemini_model: " + cfg.GeminiModel,
		"gemini_api_key: " + maskSecret(cfg.GeminiAPIKey),
		"ai_timeout: " + cfg.AITimeout.String(),
		"max_file_size_mb: " + strconv.FormatInt(cfg.MaxFileSizeMB, 10),
		"allowed_extensions: " + strings.Join(cfg.AllowedExtensions, ","),
		"enable_statistics: " + strconv.FormatBool(cfg.EnableStatistics),
		"snapshot_schedule: " + cfg.SnapshotSchedule,
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 4 {
		return "...redacted"
	}
	return value[:4] + "...redacted"
}

func redactMongoURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.User == nil {
		return uri
	}

	parsed.User = nil
	return parsed.String()
}

func parseAdminIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse admin id %q: %w", part, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, errors.New("no admin ids provided")
	}

	return ids, nil
}

func parseExtensions(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	exts := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, part := range parts {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, dup := seen[ext]; dup {
			continue
		}

		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}

	if len(exts) == 0 {
		return nil, errors.New("no extensions provided")
	}

	sort.Strings(exts)
	return exts, nil
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
