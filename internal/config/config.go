// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads Markbook settings from markbook.yaml, MARKBOOK_*
// environment variables (optionally read from a .env file) and CLI flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Language string         `mapstructure:"language" yaml:"language"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DatabaseConfig selects the backend and how to reach it. An explicit DSN
// wins over the individual connection fields.
type DatabaseConfig struct {
	Type     string `mapstructure:"type" yaml:"type"`
	Dsn      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host,omitempty"`
	Name     string `mapstructure:"name" yaml:"name,omitempty"`
	User     string `mapstructure:"user" yaml:"user,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	Port     int    `mapstructure:"port" yaml:"port,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
}

// LogConfig controls the console logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// ErrIncompleteDatabase is returned by DSN when no DSN is set and the
// connection fields are not all present.
var ErrIncompleteDatabase = errors.New("incomplete database configuration")

// DefaultSQLitePath is used for sqlite when no DSN is configured.
const DefaultSQLitePath = "./markbook.db"

// Defaults returns the built-in settings keyed by their viper path.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":     "sqlite",
		"database.dsn":      "",
		"database.host":     "",
		"database.name":     "",
		"database.user":     "",
		"database.password": "",
		"database.port":     0,
		"database.sslmode":  "disable",
		"language":          "en",
		"log.level":         "info",
	}
}

// DSN returns the driver DSN for the configured backend. SQLite falls back
// to DefaultSQLitePath. For postgres and mysql without an explicit DSN it is
// assembled from host, name, user, password and port, all of which are then
// required.
func (c DatabaseConfig) DSN() (string, error) {
	if c.Dsn != "" {
		return c.Dsn, nil
	}
	switch c.Type {
	case "sqlite", "":
		return DefaultSQLitePath, nil
	case "postgres", "mysql":
	default:
		return "", fmt.Errorf("%w: unknown database type %q", ErrIncompleteDatabase, c.Type)
	}

	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"host", c.Host != ""},
		{"name", c.Name != ""},
		{"user", c.User != ""},
		{"password", c.Password != ""},
		{"port", c.Port > 0},
	} {
		if !f.ok {
			missing = append(missing, "database."+f.name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", ErrIncompleteDatabase, strings.Join(missing, ", "))
	}

	if c.Type == "mysql" {
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		mc.DBName = c.Name
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	}
	return postgresURL(c), nil
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Markbook")
		default: // Linux, macOS, etc.
			configDir = "/etc/markbook"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "markbook")
	}

	return filepath.Join(configDir, "markbook.yaml"), nil
}

// GetConfigPath is the exported form of getConfigPath.
func GetConfigPath(system bool) (string, error) { return getConfigPath(system) }

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("env file path '%s' is not a regular file", path)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig reads configuration into T. configFile, when non-nil, is read
// instead of searching the standard locations. Flags on cmd whose names
// match config keys (for example "database.type") take precedence.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFile *string) (T, error) {
	var c T
	v := viper.New()

	// 1. Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. File search
	v.SetConfigType("yaml")
	if configFile == nil {
		configFile = findConfigFile(configSearchDirs())
	}
	if configFile != nil {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}

	// 3. Environment
	v.SetEnvPrefix("markbook")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Flags
	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// configNames are the file names looked up in each search directory. Other
// markbook.* files (for example markbook.env) are never read as config.
var configNames = []string{"markbook.yaml", "markbook.yml"}

// configSearchDirs lists the user, system and working directories in
// lookup order.
func configSearchDirs() []string {
	var dirs []string
	if userConfigPath, err := getConfigPath(false); err == nil {
		dirs = append(dirs, filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		dirs = append(dirs, filepath.Dir(systemConfigPath))
	}
	return append(dirs, ".")
}

// findConfigFile returns the first regular YAML config file in dirs, or nil.
func findConfigFile(dirs []string) *string {
	for _, dir := range dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return &path
			}
		}
	}
	return nil
}

// WriteConfigFile persists c as YAML to the user or system config path and
// returns the path written.
func WriteConfigFile[T any](c *T, system bool) (string, error) {
	path, err := getConfigPath(system)
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the file may hold a database password.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
