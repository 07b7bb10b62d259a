package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"livescribe/internal/logging"
)

const appName = "livescribe"

// Config stores runtime configuration for the dictation app.
type Config struct {
	// Language is the recognition language used until the user picks another.
	Language string         `mapstructure:"language" validate:"required"`
	Deepgram DeepgramConfig `mapstructure:"deepgram"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Session  SessionConfig  `mapstructure:"session"`
	Export   ExportConfig   `mapstructure:"export"`
	Log      logging.Config `mapstructure:"log"`
}

type DeepgramConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	APIBaseURL  string        `mapstructure:"api_base" validate:"required,url"`
	Model       string        `mapstructure:"model" validate:"required"`
	SmartFormat bool          `mapstructure:"smart_format"`
	KeepAlive   time.Duration `mapstructure:"keep_alive" validate:"gte=0"`
}

type AudioConfig struct {
	RecorderCommand string `mapstructure:"recorder_command" validate:"required"`
	InputFormat     string `mapstructure:"input_format" validate:"required"`
	InputDevice     string `mapstructure:"input_device" validate:"required"`
	SampleRate      int    `mapstructure:"sample_rate" validate:"min=8000,max=48000"`
	Channels        int    `mapstructure:"channels" validate:"min=1,max=2"`
}

type SessionConfig struct {
	ChunkSize       int           `mapstructure:"chunk_size" validate:"min=256"`
	NoSpeechTimeout time.Duration `mapstructure:"no_speech_timeout" validate:"gte=0"`
	DrainTimeout    time.Duration `mapstructure:"drain_timeout" validate:"gte=0"`
}

type ExportConfig struct {
	// Dir is where downloads are written. Empty means ~/Downloads.
	Dir string `mapstructure:"dir"`
}

// envBindings maps config keys to environment variables in priority order.
// The unprefixed names are the conventional Deepgram variables.
var envBindings = map[string][]string{
	"language":                  {"LIVESCRIBE_LANGUAGE", "DEEPGRAM_LANGUAGE"},
	"deepgram.api_key":          {"LIVESCRIBE_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY"},
	"deepgram.api_base":         {"LIVESCRIBE_DEEPGRAM_API_BASE", "DEEPGRAM_API_BASE"},
	"deepgram.model":            {"LIVESCRIBE_DEEPGRAM_MODEL", "DEEPGRAM_MODEL"},
	"deepgram.smart_format":     {"LIVESCRIBE_DEEPGRAM_SMART_FORMAT", "DEEPGRAM_SMART_FORMAT"},
	"deepgram.keep_alive":       {"LIVESCRIBE_DEEPGRAM_KEEP_ALIVE"},
	"audio.recorder_command":    {"LIVESCRIBE_AUDIO_RECORDER_COMMAND"},
	"audio.input_format":        {"LIVESCRIBE_AUDIO_INPUT_FORMAT"},
	"audio.input_device":        {"LIVESCRIBE_AUDIO_INPUT_DEVICE", "DEEPGRAM_PULSE_SOURCE"},
	"audio.sample_rate":         {"LIVESCRIBE_AUDIO_SAMPLE_RATE"},
	"audio.channels":            {"LIVESCRIBE_AUDIO_CHANNELS"},
	"session.chunk_size":        {"LIVESCRIBE_SESSION_CHUNK_SIZE"},
	"session.no_speech_timeout": {"LIVESCRIBE_SESSION_NO_SPEECH_TIMEOUT"},
	"session.drain_timeout":     {"LIVESCRIBE_SESSION_DRAIN_TIMEOUT"},
	"export.dir":                {"LIVESCRIBE_EXPORT_DIR"},
	"log.level":                 {"LIVESCRIBE_LOG_LEVEL"},
	"log.format":                {"LIVESCRIBE_LOG_FORMAT"},
	"log.output":                {"LIVESCRIBE_LOG_OUTPUT"},
	"log.no_color":              {"LIVESCRIBE_LOG_NO_COLOR"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("language", "en-US")
	v.SetDefault("deepgram.api_key", "")
	v.SetDefault("deepgram.api_base", "https://api.deepgram.com/v1")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.smart_format", true)
	v.SetDefault("deepgram.keep_alive", 8*time.Second)
	v.SetDefault("audio.recorder_command", "ffmpeg")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("session.chunk_size", 4096)
	v.SetDefault("session.no_speech_timeout", 8*time.Second)
	v.SetDefault("session.drain_timeout", 5*time.Second)
	v.SetDefault("export.dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.no_color", false)
}

// loaderConfig holds optional file overrides.
type loaderConfig struct {
	configFile  string
	envFile     string
	searchPaths []string
}

// Option customizes Load.
type Option func(*loaderConfig)

// WithConfigFile sets an explicit YAML config path.
func WithConfigFile(path string) Option {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile sets an explicit .env path.
func WithEnvFile(path string) Option {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// WithSearchPaths replaces the directories searched for livescribe.yaml
// and .env.
func WithSearchPaths(paths ...string) Option {
	return func(lc *loaderConfig) { lc.searchPaths = paths }
}

// Load resolves configuration from defaults, an optional livescribe.yaml,
// an optional .env file and the environment, in increasing priority.
func Load(opts ...Option) (Config, error) {
	lc := loaderConfig{
		configFile: strings.TrimSpace(os.Getenv("LIVESCRIBE_CONFIG")),
	}
	if home, err := os.UserHomeDir(); err == nil {
		lc.searchPaths = []string{".", filepath.Join(home, ".config", appName)}
	} else {
		lc.searchPaths = []string{"."}
	}
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v, lc); err != nil {
		return Config{}, err
	}

	for _, key := range sortedKeys(envBindings) {
		if err := v.BindEnv(append([]string{key}, envBindings[key]...)...); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := applyDotEnv(v, lc); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.normalize()

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, lc loaderConfig) error {
	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", lc.configFile, err)
		}
		return nil
	}

	v.SetConfigName(appName)
	v.SetConfigType("yaml")
	for _, path := range lc.searchPaths {
		v.AddConfigPath(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// applyDotEnv fills keys from a .env file when the real environment does
// not set them. The process environment is left untouched.
func applyDotEnv(v *viper.Viper, lc loaderConfig) error {
	path := lc.envFile
	if path == "" {
		for _, dir := range lc.searchPaths {
			candidate := filepath.Join(dir, ".env")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	for _, key := range sortedKeys(envBindings) {
		names := envBindings[key]
		if envSet(names) {
			continue
		}
		for _, name := range names {
			if value, ok := values[name]; ok && value != "" {
				v.Set(key, value)
				break
			}
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Language = strings.TrimSpace(c.Language)
	c.Deepgram.APIKey = strings.TrimSpace(c.Deepgram.APIKey)
	c.Deepgram.APIBaseURL = strings.TrimSpace(c.Deepgram.APIBaseURL)
	c.Audio.InputDevice = strings.TrimSpace(c.Audio.InputDevice)
	c.Export.Dir = expandHome(strings.TrimSpace(c.Export.Dir))
	c.Log.ApplyDefaults()
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func envSet(names []string) bool {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
