package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// appConfig is the process configuration: YAML file values first, then
// TSUNADE__* environment variables on top (env wins).
type appConfig struct {
	DBPath     string `yaml:"db_path"`
	Headless   bool   `yaml:"headless"`
	ProfileDir string `yaml:"profile_dir"`
	ChromeBin  string `yaml:"chrome_binary"`

	VTB struct {
		HistoryURL    string `yaml:"history_url"`
		Phone         string `yaml:"phone"`
		PIN           string `yaml:"pin"`
		GetCodeURL    string `yaml:"get_code_url"`
		DeleteCodeURL string `yaml:"delete_code_url"`
	} `yaml:"vtb"`

	Alfa struct {
		HistoryURL string `yaml:"history_url"`
	} `yaml:"alfa"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
}

func loadConfig(path string) (*appConfig, error) {
	cfg := &appConfig{
		DBPath:   "data/operations.db",
		Headless: true,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	overlay(&cfg.DBPath, "TSUNADE__DB_PATH")
	overlay(&cfg.ProfileDir, "TSUNADE__CHROME_USER_DATA_DIR")
	overlay(&cfg.ChromeBin, "TSUNADE__CHROME_BINARY_PATH")
	if v := os.Getenv("TSUNADE__HEADLESS"); v != "" {
		cfg.Headless = v != "0" && v != "false"
	}

	overlay(&cfg.VTB.HistoryURL, "TSUNADE__VTB_HISTORY_URL")
	overlay(&cfg.VTB.Phone, "TSUNADE__VTB_PHONE")
	overlay(&cfg.VTB.PIN, "TSUNADE__VTB_PIN")
	overlay(&cfg.VTB.GetCodeURL, "TSUNADE__VTB_GET_CODE_URL")
	overlay(&cfg.VTB.DeleteCodeURL, "TSUNADE__VTB_DELETE_CODE_URL")

	overlay(&cfg.Alfa.HistoryURL, "TSUNADE__ALFA_HISTORY_URL")

	overlay(&cfg.Telegram.BotToken, "TSUNADE__TELEGRAM_BOT_TOKEN")
	overlay(&cfg.Telegram.ChatID, "TSUNADE__TELEGRAM_CHAT_ID")

	return cfg, nil
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
