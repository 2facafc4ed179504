package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: FOCUS_SOUND__VOLUME=70 sets sound.volume.
const EnvPrefix = "FOCUS_"

// Sound player names, duplicated from the sound package to keep config free
// of runtime dependencies.
var soundPlayers = []string{"auto", "beep", "paplay", "afplay", "ffplay"}

type Config struct {
	Store   StoreConfig   `koanf:"store"`
	Sound   SoundConfig   `koanf:"sound"`
	Notify  NotifyConfig  `koanf:"notify"`
	Control ControlConfig `koanf:"control"`
	UI      UIConfig      `koanf:"ui"`
	Log     LogConfig     `koanf:"log"`
}

type StoreConfig struct {
	Path string `koanf:"path"`
}

// SoundConfig seeds the stored sound settings on first run and selects how
// sound is played.
type SoundConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Volume        int    `koanf:"volume"`
	File          string `koanf:"file"`   // Sound file; empty uses the system beep
	Player        string `koanf:"player"` // auto, beep, paplay, afplay, ffplay
	RepeatSeconds int    `koanf:"repeat_seconds"`
}

type NotifyConfig struct {
	Enabled  bool           `koanf:"enabled"`
	Title    string         `koanf:"title"`
	Icon     string         `koanf:"icon"`
	Telegram TelegramConfig `koanf:"telegram"`
}

// TelegramConfig mirrors notifications to a chat when both fields are set.
type TelegramConfig struct {
	BotToken string `koanf:"bot_token"`
	ChatID   string `koanf:"chat_id"`
	BaseURL  string `koanf:"base_url"`
}

// Enabled reports whether a chat is configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type ControlConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"` // Loopback address of the MCP endpoint
}

type UIConfig struct {
	Headless      bool `koanf:"headless"`
	ColoredOutput bool `koanf:"colored_output"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"` // Used while the overlay host owns the terminal
}

// Load layers defaults, the YAML file at configPath, the dotenv file at
// envFile and FOCUS_ environment variables, later layers winning. Missing
// files are skipped.
func Load(configPath, envFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if envFile != "" {
		envFile = expandPath(envFile)

		if _, err := os.Stat(envFile); err == nil {
			// Variables already set in the environment are not overwritten.
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load env file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Path = expandPath(cfg.Store.Path)
	cfg.Sound.File = expandPath(cfg.Sound.File)
	cfg.Log.File = expandPath(cfg.Log.File)

	return &cfg, nil
}

// envKey maps FOCUS_NOTIFY__TELEGRAM__CHAT_ID to notify.telegram.chat_id.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}

	if c.Sound.Volume < 0 || c.Sound.Volume > 100 {
		return fmt.Errorf("sound volume must be between 0 and 100")
	}

	known := false
	for _, p := range soundPlayers {
		if c.Sound.Player == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown sound player: %s (supported: %s)",
			c.Sound.Player, strings.Join(soundPlayers, ", "))
	}

	if c.Sound.RepeatSeconds <= 0 {
		return fmt.Errorf("sound repeat_seconds must be positive")
	}

	if (c.Notify.Telegram.BotToken == "") != (c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("telegram needs both bot_token and chat_id")
	}

	if c.Control.Enabled && c.Control.Addr == "" {
		return fmt.Errorf("control addr is required when the control server is enabled")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	return nil
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
