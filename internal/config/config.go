// Package config holds the viper-backed configuration singleton shared by the
// server and the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config search paths, in order of precedence:
	// 1. Walk up from CWD to find a project .slate/ directory, so commands
	//    work from subdirectories of a workspace.
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			slateDir := filepath.Join(dir, ".slate")
			if info, err := os.Stat(slateDir); err == nil && info.IsDir() {
				v.AddConfigPath(slateDir)
				break
			}
		}
	}

	// 2. User config directory (~/.config/slate/)
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "slate"))
	}

	// 3. Home directory (~/.slate/)
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".slate"))
	}

	// Environment variables take precedence over config file values.
	// E.g. SLATE_LISTEN, SLATE_DB, SLATE_LOG_FILE.
	v.SetEnvPrefix("SLATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", "127.0.0.1:7333")
	v.SetDefault("server-url", "http://127.0.0.1:7333")
	v.SetDefault("db", "")
	v.SetDefault("attachments-dir", "")
	v.SetDefault("log-file", "")
	v.SetDefault("log-max-size-mb", 10)
	v.SetDefault("log-max-backups", 3)
	v.SetDefault("log-max-age-days", 28)
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("shutdown-timeout", 10*time.Second)
	v.SetDefault("search-limit", 50)
	v.SetDefault("json", false)

	// Read config file if it exists; absence is fine, defaults apply.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// DBPath resolves the database path: explicit setting first, then the
// project's .slate directory, then the home fallback.
func DBPath() string {
	if p := GetString("db"); p != "" {
		return p
	}
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			slateDir := filepath.Join(dir, ".slate")
			if info, err := os.Stat(slateDir); err == nil && info.IsDir() {
				return filepath.Join(slateDir, "slate.db")
			}
		}
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "slate.db"
	}
	return filepath.Join(homeDir, ".slate", "slate.db")
}

// AttachmentsDir resolves where attachment files are stored, defaulting to an
// attachments directory next to the database.
func AttachmentsDir() string {
	if d := GetString("attachments-dir"); d != "" {
		return d
	}
	return filepath.Join(filepath.Dir(DBPath()), "attachments")
}
