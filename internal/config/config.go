// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken    = "TELEGRAM_TOKEN"
	KeyBotOwner         = "BOT_OWNER"
	KeyChatsFile        = "CHATS_FILE"
	KeyAppEnv           = "APP_ENV"
	KeyLogLevel         = "LOG_LEVEL"
	KeyHTTPPort         = "HTTP_PORT"
	KeyBroadcastRate    = "BROADCAST_RATE"
	KeyBroadcastWorkers = "BROADCAST_WORKERS"
	KeyAutoUnregister   = "AUTO_UNREGISTER"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv           = EnvProduction
	DefaultLogLevel         = "info"
	DefaultHTTPPort         = 8080
	DefaultChatsFile        = "bot_chats.json"
	DefaultBroadcastRate    = 20.0
	DefaultBroadcastWorkers = 4
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
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
		Notes:       "The numeric prefix is the bot's own user id, used for admin checks.",
	},
	{
		Key:         KeyBotOwner,
		Example:     "123456789",
		Required:    true,
		Description: "Telegram user_id of the operator allowed to compose and send broadcasts.",
	},
	{
		Key:         KeyChatsFile,
		Example:     DefaultChatsFile,
		Default:     DefaultChatsFile,
		Description: "Path of the JSON document tracking chats the bot was added to.",
		Notes:       "The file is created on first registration; an unparseable file blocks startup.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
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
		Key:         KeyBroadcastRate,
		Example:     "20",
		Default:     strconv.FormatFloat(DefaultBroadcastRate, 'f', -1, 64),
		Description: "Maximum send attempts per second during a broadcast run.",
		Notes:       "Keep below Telegram's global bot limit of ~30 messages/second.",
	},
	{
		Key:         KeyBroadcastWorkers,
		Example:     strconv.Itoa(DefaultBroadcastWorkers),
		Default:     strconv.Itoa(DefaultBroadcastWorkers),
		Description: "Concurrent send workers within a single broadcast run.",
	},
	{
		Key:         KeyAutoUnregister,
		Example:     "true",
		Default:     "true",
		Description: "Drop a chat from the registry when a broadcast reports the bot was removed.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken    string
	BotOwnerID       int64
	ChatsFile        string
	AppEnv           string
	LogLevel         string
	HTTPPort         int
	BroadcastRate    float64
	BroadcastWorkers int
	AutoUnregister   bool
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
		AppEnv:           firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:    strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		ChatsFile:        firstNonEmpty(strings.TrimSpace(os.Getenv(KeyChatsFile)), DefaultChatsFile),
		LogLevel:         firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:         DefaultHTTPPort,
		BroadcastRate:    DefaultBroadcastRate,
		BroadcastWorkers: DefaultBroadcastWorkers,
		AutoUnregister:   true,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	ownerRaw := strings.TrimSpace(os.Getenv(KeyBotOwner))
	if ownerRaw == "" {
		missing = append(missing, KeyBotOwner)
	} else {
		ownerID, parseErr := strconv.ParseInt(ownerRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBotOwner, parseErr)
		}
		cfg.BotOwnerID = ownerID
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	rateRaw := strings.TrimSpace(os.Getenv(KeyBroadcastRate))
	if rateRaw != "" {
		rate, parseErr := strconv.ParseFloat(rateRaw, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBroadcastRate, parseErr)
		}
		if rate <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyBroadcastRate)
		}
		cfg.BroadcastRate = rate
	}

	workersRaw := strings.TrimSpace(os.Getenv(KeyBroadcastWorkers))
	if workersRaw != "" {
		workers, parseErr := strconv.Atoi(workersRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBroadcastWorkers, parseErr)
		}
		if workers <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyBroadcastWorkers)
		}
		cfg.BroadcastWorkers = workers
	}

	unregisterRaw := strings.TrimSpace(os.Getenv(KeyAutoUnregister))
	if unregisterRaw != "" {
		unregister, parseErr := strconv.ParseBool(unregisterRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAutoUnregister, parseErr)
		}
		cfg.AutoUnregister = unregister
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
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
