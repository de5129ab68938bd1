package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/berrythewa/snipsave-daemon/internal/heuristics"
)

// ConfigPaths holds the platform-specific locations used by the daemon.
type ConfigPaths struct {
	BaseDir    string // Base directory for configuration
	ConfigFile string // Path to the active config file
	DataDir    string // Directory for runtime data (journal, lock file)
	LogDir     string // Directory for log files
}

// Config holds all application configuration.
type Config struct {
	Save       SaveConfig       `yaml:"save"`
	Heuristics HeuristicsConfig `yaml:"heuristics"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Log        LogConfig        `yaml:"log"`
	Journal    JournalConfig    `yaml:"journal"`
}

// SaveConfig configures where and under what name screenshots are written.
type SaveConfig struct {
	// Directory receives the saved PNG files.
	Directory string `yaml:"directory"`
	// Pattern derives the filename. Supported tokens: {timestamp} (local
	// time, 20060102_150405), {date}, {time}, {counter}.
	Pattern string `yaml:"pattern"`
}

// HeuristicsConfig tunes the classification chain.
type HeuristicsConfig struct {
	AllowedProcesses []string `yaml:"allowed_processes"`
	MinWidth         int      `yaml:"min_width"`
	MinHeight        int      `yaml:"min_height"`
}

// Policy converts the config section into an engine policy.
func (h HeuristicsConfig) Policy() heuristics.Policy {
	return heuristics.Policy{
		AllowedProcesses: h.AllowedProcesses,
		MinWidth:         h.MinWidth,
		MinHeight:        h.MinHeight,
	}
}

// MonitorConfig tunes the clipboard monitor loop.
type MonitorConfig struct {
	// DebounceMs coalesces repeated notifications for the same clipboard
	// sequence number arriving within this window.
	DebounceMs int64 `yaml:"debounce_ms"`
	// SettleDelayMs is how long to wait after a change notification before
	// opening the clipboard, so the capture overlay can release it.
	SettleDelayMs int64 `yaml:"settle_delay_ms"`
}

// LogConfig holds logging-related configuration.
type LogConfig struct {
	Level             string `yaml:"level"`
	EnableFileLogging bool   `yaml:"enable_file_logging"`
}

// JournalConfig configures the saved-capture journal backing the tray menu.
type JournalConfig struct {
	Enabled     bool `yaml:"enabled"`
	KeepEntries int  `yaml:"keep_entries"`
}

// GetConfigPaths returns the platform-specific paths, creating the
// directories if needed.
func GetConfigPaths() (*ConfigPaths, error) {
	baseDir := os.Getenv("SNIPSAVE_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		switch runtime.GOOS {
		case "windows":
			baseDir = filepath.Join(configDir, "Snipsave")
		default:
			baseDir = filepath.Join(configDir, "snipsave")
		}
	}

	dataDir := os.Getenv("SNIPSAVE_DATA_DIR")
	if dataDir == "" {
		dataDir = filepath.Join(baseDir, "data")
	}

	paths := &ConfigPaths{
		BaseDir:    baseDir,
		ConfigFile: filepath.Join(baseDir, "config.yaml"),
		DataDir:    dataDir,
		LogDir:     filepath.Join(dataDir, "logs"),
	}

	for _, dir := range []string{paths.BaseDir, paths.DataDir, paths.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// DefaultScreenshotDir is where captures land when the user has not picked a
// directory: the Screenshots folder under the user's picture library.
func DefaultScreenshotDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Screenshots"
	}
	return filepath.Join(home, "Pictures", "Screenshots")
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Save: SaveConfig{
			Directory: DefaultScreenshotDir(),
			Pattern:   "Screenshot_{timestamp}",
		},
		Heuristics: HeuristicsConfig{
			AllowedProcesses: append([]string(nil), heuristics.DefaultAllowedProcesses...),
			MinWidth:         heuristics.DefaultMinWidth,
			MinHeight:        heuristics.DefaultMinHeight,
		},
		Monitor: MonitorConfig{
			DebounceMs:    75,
			SettleDelayMs: 100,
		},
		Log: LogConfig{
			Level:             "info",
			EnableFileLogging: true,
		},
		Journal: JournalConfig{
			Enabled:     true,
			KeepEntries: 50,
		},
	}
}

// Load reads the configuration from configPath, creating a default file when
// none exists yet. Environment variables override file values.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		paths, err := GetConfigPaths()
		if err != nil {
			return nil, err
		}
		configPath = paths.ConfigFile
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if err := cfg.SaveTo(configPath); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
			overrideFromEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	overrideFromEnv(cfg)
	return cfg, nil
}

// SaveTo writes the configuration to configPath.
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// overrideFromEnv overrides configuration values from environment variables.
func overrideFromEnv(cfg *Config) {
	if val := os.Getenv("SNIPSAVE_SAVE_DIR"); val != "" {
		cfg.Save.Directory = val
	}
	if val := os.Getenv("SNIPSAVE_SAVE_PATTERN"); val != "" {
		cfg.Save.Pattern = val
	}
	if val := os.Getenv("SNIPSAVE_ALLOWED_PROCESSES"); val != "" {
		cfg.Heuristics.AllowedProcesses = splitList(val)
	}
	if val := os.Getenv("SNIPSAVE_MIN_WIDTH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Heuristics.MinWidth = n
		}
	}
	if val := os.Getenv("SNIPSAVE_MIN_HEIGHT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Heuristics.MinHeight = n
		}
	}
	if val := os.Getenv("SNIPSAVE_DEBOUNCE_MS"); val != "" {
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Monitor.DebounceMs = ms
		}
	}
	if val := os.Getenv("SNIPSAVE_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
