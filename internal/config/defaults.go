package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"store": map[string]interface{}{
			"path": "~/.focus-reminder/reminders.db",
		},
		"sound": map[string]interface{}{
			"enabled":        true,
			"volume":         50,
			"file":           "",
			"player":         "auto",
			"repeat_seconds": 5,
		},
		"notify": map[string]interface{}{
			"enabled": true,
			"title":   "Focus Reminder",
			"icon":    "",
			"telegram": map[string]interface{}{
				"bot_token": "",
				"chat_id":   "",
				"base_url":  "https://api.telegram.org",
			},
		},
		"control": map[string]interface{}{
			"enabled": true,
			"addr":    "127.0.0.1:8765",
		},
		"ui": map[string]interface{}{
			"headless":       false,
			"colored_output": true,
		},
		"log": map[string]interface{}{
			"level": "info",
			"file":  "~/.focus-reminder/focus-reminder.log",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.focus-reminder/config.yaml"
}

func GetDefaultEnvPath() string {
	return ".env"
}
