package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/omnisync/pkg/constants"
	"github.com/agentstation/omnisync/pkg/errors"
)

// envFiles are loaded from the working directory in order; later files
// override earlier ones and both override the process environment.
var envFiles = []string{".env", ".env.local"}

// Config holds the application configuration loaded from the config file,
// environment variables, .env files and flags.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Debug   bool
	Format  string

	// Config file
	ConfigFile string

	// Omni connection
	BaseURL  string
	APIKey   string
	PageSize int
	Timeout  time.Duration

	// Logging configuration. LogLevel comes from --log-level; EnvLogLevel
	// from LOG_LEVEL, which ranks below -v and -q.
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string

	// EnvFiles lists the .env files that were loaded.
	EnvFiles []string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (handled by cobra)
//  2. .env.local, then .env (overriding the process environment)
//  3. Environment variables
//  4. Config file (configFile, else ~/.omnisync.yaml or ./.omnisync.yaml)
//  5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loaded, err := loadEnvFiles()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("omni_page_size", constants.DefaultPageSize)
	v.SetDefault("omni_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".omnisync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "failed to read config file: "+err.Error(), err)
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("output"),

		ConfigFile: v.ConfigFileUsed(),

		BaseURL:  strings.TrimSpace(v.GetString("omni_base_url")),
		APIKey:   strings.TrimSpace(v.GetString("omni_api_key")),
		PageSize: v.GetInt("omni_page_size"),
		Timeout:  v.GetDuration("omni_timeout"),

		EnvLogLevel: v.GetString("log_level"),
		LogFormat:   v.GetString("log_format"),
		LogOutput:   v.GetString("log_output"),

		EnvFiles: loaded,
	}

	if config.PageSize <= 0 {
		config.PageSize = constants.DefaultPageSize
	}
	if config.Timeout <= 0 {
		config.Timeout = constants.DefaultHTTPTimeout
	}

	return config, nil
}

// reload re-reads the file based settings from an explicit config file,
// keeping the values set by flags.
func (c *Config) reload(configFile string) error {
	fresh, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	c.ConfigFile = fresh.ConfigFile
	c.BaseURL = fresh.BaseURL
	c.APIKey = fresh.APIKey
	c.PageSize = fresh.PageSize
	c.Timeout = fresh.Timeout
	c.EnvLogLevel = fresh.EnvLogLevel
	c.LogFormat = fresh.LogFormat
	c.LogOutput = fresh.LogOutput
	c.EnvFiles = fresh.EnvFiles
	return nil
}

// loadEnvFiles loads the .env files that exist, returning their paths.
func loadEnvFiles() ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Overload(name); err != nil {
			return nil, errors.NewConfigError("env", "failed to load "+name+": "+err.Error(), err)
		}
		abs, err := filepath.Abs(name)
		if err != nil {
			abs = name
		}
		loaded = append(loaded, abs)
	}
	return loaded, nil
}
