package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment keys.
const (
	KeyModel               = "MODEL"
	KeyDataDir             = "DATA_DIR"
	KeyModelProvider       = "MODEL_PROVIDER"
	KeyOpenAIAPIKey        = "OPENAI_API_KEY"
	KeyOpenAIChatCompURL   = "OPENAI_CHAT_COMPLETIONS_URL"
	KeyModelTimeoutSeconds = "MODEL_TIMEOUT_SECONDS"
	KeyListenAddr          = "LISTEN_ADDR"
	KeyDBPath              = "CSAST_DB_PATH"
	KeyDummyScript         = "DUMMY_PROVIDER_SCRIPT"
	KeyLogLevel            = "LOG_LEVEL"
	KeySessionIdleMinutes  = "SESSION_IDLE_MINUTES"
	KeyInstructionsFile    = "CSAST_INSTRUCTIONS_FILE"
)

// Config holds configuration for every csast command.
type Config struct {
	Model             string
	DataDir           string
	ModelProvider     string
	OpenAIAPIKey      string
	OpenAIChatCompURL string
	ModelTimeout      time.Duration
	ListenAddr        string
	DBPath            string
	DummyScript       string
	LogLevel          string
	SessionIdle       time.Duration
	InstructionsFile  string
	EnvFile           string
}

// New returns a viper instance with defaults registered and the environment
// bound. Commands bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDataDir, "data.xlsx")
	v.SetDefault(KeyModelProvider, "openai")
	v.SetDefault(KeyOpenAIChatCompURL, "https://api.openai.com/v1/chat/completions")
	v.SetDefault(KeyModelTimeoutSeconds, 0)
	v.SetDefault(KeyListenAddr, ":8501")
	v.SetDefault(KeyDBPath, "")
	v.SetDefault(KeyDummyScript, "ok")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySessionIdleMinutes, 120)
	v.SetDefault(KeyInstructionsFile, "")
	v.SetDefault(KeyModel, "")
	v.SetDefault(KeyOpenAIAPIKey, "")
	v.AutomaticEnv()
	return v
}

// Load reads an optional .env file and validates the result. Real
// environment variables win over the file.
func Load(v *viper.Viper) (Config, error) {
	envFile, err := ReadEnvFile(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Model:             strings.TrimSpace(v.GetString(KeyModel)),
		DataDir:           v.GetString(KeyDataDir),
		ModelProvider:     strings.ToLower(strings.TrimSpace(v.GetString(KeyModelProvider))),
		OpenAIAPIKey:      v.GetString(KeyOpenAIAPIKey),
		OpenAIChatCompURL: v.GetString(KeyOpenAIChatCompURL),
		ListenAddr:        v.GetString(KeyListenAddr),
		DBPath:            v.GetString(KeyDBPath),
		DummyScript:       v.GetString(KeyDummyScript),
		LogLevel:          v.GetString(KeyLogLevel),
		InstructionsFile:  v.GetString(KeyInstructionsFile),
		EnvFile:           envFile,
	}

	timeout := v.GetInt(KeyModelTimeoutSeconds)
	if timeout < 0 {
		return Config{}, fmt.Errorf("%s must be >= 0, got %d", KeyModelTimeoutSeconds, timeout)
	}
	cfg.ModelTimeout = time.Duration(timeout) * time.Second

	idle := v.GetInt(KeySessionIdleMinutes)
	if idle < 0 {
		return Config{}, fmt.Errorf("%s must be >= 0, got %d", KeySessionIdleMinutes, idle)
	}
	cfg.SessionIdle = time.Duration(idle) * time.Minute

	if cfg.Model == "" {
		return Config{}, fmt.Errorf("%s is required in environment", KeyModel)
	}
	switch cfg.ModelProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("%s is required in environment when %s=openai", KeyOpenAIAPIKey, KeyModelProvider)
		}
	case "dummy":
	default:
		return Config{}, fmt.Errorf("unsupported %s: %s", KeyModelProvider, cfg.ModelProvider)
	}
	if cfg.DataDir == "" {
		return Config{}, fmt.Errorf("%s must not be empty", KeyDataDir)
	}
	return cfg, nil
}

// ReadEnvFile merges the first .env found next to the executable or in the
// working directory. It returns the path used, or "" when there is none.
func ReadEnvFile(v *viper.Viper) (string, error) {
	for _, path := range envFileCandidates() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

func envFileCandidates() []string {
	var out []string
	if exe, err := os.Executable(); err == nil {
		out = append(out, filepath.Join(filepath.Dir(exe), ".env"))
	}
	if wd, err := os.Getwd(); err == nil {
		out = append(out, filepath.Join(wd, ".env"))
	}
	return out
}
