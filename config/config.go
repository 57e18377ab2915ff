package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-code/globals"
)

const (
	defaultHistorySize      = 100
	defaultActiveWindowMs   = 4000
	minActiveWindowMs       = 3000
	maxActiveWindowMs       = 5000
	defaultTypingTimeoutMs  = 2000
	defaultLineFocusMs      = 10000
	defaultCompileTimeoutMs = 30000
	defaultSuggestTimeoutMs = 15000

	defaultJDoodleUrl = "https://api.jdoodle.com/v1/execute"
	defaultJudge0Url  = "https://ce.judge0.com/submissions/?base64_encoded=false&wait=true"
)

// Config is the global configuration object which is filled via the configuration file
type Config struct {
	HistoryConfig  HistoryConfig  `mapstructure:"history"`
	PresenceConfig PresenceConfig `mapstructure:"presence"`
	CompileConfig  CompileConfig  `mapstructure:"compile"`
	SuggestConfig  SuggestConfig  `mapstructure:"suggest"`
	LogLevel       string         `mapstructure:"log_level"`
}

// HistoryConfig configures the size of the per-room activity log that is kept in memory in a
// ring buffer and sent to clients on a sync request
type HistoryConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

// PresenceConfig configures the expiry windows of the derived presence state. All values are
// in milliseconds. The active window is clamped to 3000-5000ms.
type PresenceConfig struct {
	ActiveWindowMs  int `mapstructure:"active_window_ms"`
	TypingTimeoutMs int `mapstructure:"typing_timeout_ms"`
	LineFocusMs     int `mapstructure:"line_focus_ms"`
}

// CompileConfig configures the outbound code execution service. Both the JDoodle and the
// Judge0 backend are supported, the client picks one per request.
type CompileConfig struct {
	JDoodleUrl          string `mapstructure:"jdoodle_url"`
	JDoodleClientId     string `mapstructure:"jdoodle_client_id"`
	JDoodleClientSecret string `mapstructure:"jdoodle_client_secret"`
	Judge0Url           string `mapstructure:"judge0_url"`
	TimeoutMs           int    `mapstructure:"timeout_ms"`
}

// SuggestConfig configures the outbound AI suggestion service. An empty url disables the
// upstream call, requests are then answered with the built-in placeholder suggestion.
type SuggestConfig struct {
	Url       string `mapstructure:"url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

func (c *Config) HistorySize() int {
	if c.HistoryConfig.HistorySize > 0 {
		return c.HistoryConfig.HistorySize
	}
	return defaultHistorySize
}

func (c *Config) ActiveWindow() time.Duration {
	ms := c.PresenceConfig.ActiveWindowMs
	if ms == 0 {
		ms = defaultActiveWindowMs
	}
	if ms < minActiveWindowMs {
		ms = minActiveWindowMs
	}
	if ms > maxActiveWindowMs {
		ms = maxActiveWindowMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Config) TypingTimeout() time.Duration {
	if c.PresenceConfig.TypingTimeoutMs > 0 {
		return time.Duration(c.PresenceConfig.TypingTimeoutMs) * time.Millisecond
	}
	return defaultTypingTimeoutMs * time.Millisecond
}

func (c *Config) LineFocusTimeout() time.Duration {
	if c.PresenceConfig.LineFocusMs > 0 {
		return time.Duration(c.PresenceConfig.LineFocusMs) * time.Millisecond
	}
	return defaultLineFocusMs * time.Millisecond
}

func (c *Config) CompileTimeout() time.Duration {
	if c.CompileConfig.TimeoutMs > 0 {
		return time.Duration(c.CompileConfig.TimeoutMs) * time.Millisecond
	}
	return defaultCompileTimeoutMs * time.Millisecond
}

func (c *Config) SuggestTimeout() time.Duration {
	if c.SuggestConfig.TimeoutMs > 0 {
		return time.Duration(c.SuggestConfig.TimeoutMs) * time.Millisecond
	}
	return defaultSuggestTimeoutMs * time.Millisecond
}

func (c *Config) JDoodleUrl() string {
	if c.CompileConfig.JDoodleUrl != "" {
		return c.CompileConfig.JDoodleUrl
	}
	return defaultJDoodleUrl
}

func (c *Config) Judge0Url() string {
	if c.CompileConfig.Judge0Url != "" {
		return c.CompileConfig.Judge0Url
	}
	return defaultJudge0Url
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", "INFO")
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSCODE")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg)
	return &cfg, nil
}
