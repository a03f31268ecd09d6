// Package util provides common utilities for nsmon.
package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"github.com/user/nsmon/internal/model"
)

// Config holds all application configuration.
type Config struct {
	DetectionMethod string `mapstructure:"detection_method"`
	ScanInterval    int    `mapstructure:"scan_interval"`
	Port            int    `mapstructure:"port"`
	NetworkAdapter  string `mapstructure:"network_adapter"`

	// Event log
	Logging          bool `mapstructure:"logging"`
	LogBufferSize    int  `mapstructure:"log_buffer_size"`
	LogFlushInterval int  `mapstructure:"log_flush_interval"`

	// Alerts
	SilentMode        bool `mapstructure:"silent_mode"`
	ShowNotifications bool `mapstructure:"show_notifications"`

	// Presentation only
	AutoStart bool   `mapstructure:"auto_start"`
	Language  string `mapstructure:"language"`

	LogLevel             string `mapstructure:"log_level"`
	WebPort              int    `mapstructure:"web_port"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days"`

	// DataDir is where the config, status, stats and history files live.
	// It is not persisted.
	DataDir string `mapstructure:"-"`
}

// Default values.
const (
	DefaultPort           = 5405
	DefaultScanInterval   = 2
	DefaultAdapter        = "all"
	DefaultBufferSize     = 10
	DefaultFlushInterval  = 30
	DefaultWebPort        = 8080
	DefaultRetentionDays  = 90
	MinScanInterval       = 1
	MaxScanInterval       = 10
	ConfigFileName        = "config.json"
	StatusFileName        = "status.json"
	StatsFileName         = "stats.json"
	EventLogFileName      = "connections.log"
	OperatorLogFileName   = "nsmon.log"
	defaultDataDirName    = ".nsmon"
	defaultLogLevel       = "info"
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DetectionMethod:      string(model.MethodProcess),
		ScanInterval:         DefaultScanInterval,
		Port:                 DefaultPort,
		NetworkAdapter:       DefaultAdapter,
		Logging:              false,
		LogBufferSize:        DefaultBufferSize,
		LogFlushInterval:     DefaultFlushInterval,
		SilentMode:           false,
		ShowNotifications:    true,
		AutoStart:            false,
		Language:             "en",
		LogLevel:             defaultLogLevel,
		WebPort:              DefaultWebPort,
		HistoryRetentionDays: DefaultRetentionDays,
		DataDir:              DefaultDataDir(),
	}
}

// DefaultDataDir returns $HOME/.nsmon, falling back to the working directory.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirName
	}
	return filepath.Join(homeDir, defaultDataDirName)
}

// Method returns the configured detection method. Normalized configs
// always carry a valid method.
func (c *Config) Method() model.Method {
	m, err := model.ParseMethod(c.DetectionMethod)
	if err != nil {
		return model.MethodProcess
	}
	return m
}

// ScanEvery returns the scan interval as a duration.
func (c *Config) ScanEvery() time.Duration {
	return time.Duration(c.ScanInterval) * time.Second
}

// FlushEvery returns the log flush interval as a duration.
func (c *Config) FlushEvery() time.Duration {
	return time.Duration(c.LogFlushInterval) * time.Second
}

// NotificationsEnabled reports whether status changes should be announced.
func (c *Config) NotificationsEnabled() bool {
	return c.ShowNotifications && !c.SilentMode
}

// Path helpers.
func (c *Config) StatusFile() string   { return filepath.Join(c.DataDir, StatusFileName) }
func (c *Config) StatsFile() string    { return filepath.Join(c.DataDir, StatsFileName) }
func (c *Config) EventLogFile() string { return filepath.Join(c.DataDir, EventLogFileName) }
func (c *Config) LogFile() string      { return filepath.Join(c.DataDir, OperatorLogFileName) }

// normalize replaces invalid values with defaults and returns a warning per fix.
func (c *Config) normalize() []string {
	def := DefaultConfig()
	var warnings []string

	if m, err := model.ParseMethod(c.DetectionMethod); err != nil {
		warnings = append(warnings, fmt.Sprintf("%v, using %s", err, def.DetectionMethod))
		c.DetectionMethod = def.DetectionMethod
	} else {
		c.DetectionMethod = string(m)
	}
	fixInt := func(name string, v *int, fallback int) {
		if *v <= 0 {
			warnings = append(warnings, fmt.Sprintf("invalid %s %d, using %d", name, *v, fallback))
			*v = fallback
		}
	}
	fixInt("scan_interval", &c.ScanInterval, def.ScanInterval)
	fixInt("port", &c.Port, def.Port)
	fixInt("log_buffer_size", &c.LogBufferSize, def.LogBufferSize)
	fixInt("log_flush_interval", &c.LogFlushInterval, def.LogFlushInterval)
	fixInt("web_port", &c.WebPort, def.WebPort)
	fixInt("history_retention_days", &c.HistoryRetentionDays, def.HistoryRetentionDays)

	if strings.TrimSpace(c.NetworkAdapter) == "" {
		c.NetworkAdapter = def.NetworkAdapter
	}
	return warnings
}

// setDefaults registers every known key so AllSettings is defaults merged
// with whatever the file contained.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("detection_method", def.DetectionMethod)
	v.SetDefault("scan_interval", def.ScanInterval)
	v.SetDefault("port", def.Port)
	v.SetDefault("network_adapter", def.NetworkAdapter)
	v.SetDefault("logging", def.Logging)
	v.SetDefault("log_buffer_size", def.LogBufferSize)
	v.SetDefault("log_flush_interval", def.LogFlushInterval)
	v.SetDefault("silent_mode", def.SilentMode)
	v.SetDefault("show_notifications", def.ShowNotifications)
	v.SetDefault("auto_start", def.AutoStart)
	v.SetDefault("language", def.Language)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("web_port", def.WebPort)
	v.SetDefault("history_retention_days", def.HistoryRetentionDays)
}

// ConfigStore loads and persists the JSON configuration file.
// Readers use Current, which returns an immutable snapshot.
type ConfigStore struct {
	mu      sync.Mutex
	v       *viper.Viper
	path    string
	dataDir string
	current atomic.Pointer[Config]
}

// NewConfigStore creates a store for the given data directory. An empty
// path selects config.json inside dataDir.
func NewConfigStore(dataDir, path string) *ConfigStore {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if path == "" {
		path = filepath.Join(dataDir, ConfigFileName)
	}
	s := &ConfigStore{path: path, dataDir: dataDir}
	cfg := DefaultConfig()
	cfg.DataDir = dataDir
	s.current.Store(cfg)
	return s
}

// Path returns the config file path.
func (s *ConfigStore) Path() string {
	return s.path
}

// Current returns the latest loaded configuration snapshot.
func (s *ConfigStore) Current() *Config {
	return s.current.Load()
}

// Load reads the config file and publishes a new snapshot. A missing or
// malformed file yields defaults; the returned warnings describe what was
// ignored. Only a failure to create the data directory is an error.
func (s *ConfigStore) Load() (*Config, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := EnsureDir(s.dataDir); err != nil {
		return s.Current(), nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	cfg, warnings := s.read()
	s.current.Store(cfg)
	return cfg, warnings, nil
}

// Reload re-reads the file and returns the previous and new snapshots.
func (s *ConfigStore) Reload() (old, cur *Config, warnings []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old = s.Current()
	cur, warnings = s.read()
	s.current.Store(cur)
	return old, cur, warnings
}

func (s *ConfigStore) read() (*Config, []string) {
	def := DefaultConfig()
	def.DataDir = s.dataDir

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	setDefaults(v, def)

	var warnings []string
	if _, err := os.Stat(s.path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to read config %s, using defaults: %v", s.path, err))
			v = viper.New()
			v.SetConfigType("json")
			setDefaults(v, def)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		warnings = append(warnings, fmt.Sprintf("failed to stat config %s: %v", s.path, err))
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		warnings = append(warnings, fmt.Sprintf("failed to decode config, using defaults: %v", err))
		cfg = DefaultConfig()
	}
	cfg.DataDir = s.dataDir
	warnings = append(warnings, cfg.normalize()...)

	s.v = v
	return cfg, warnings
}

// Save writes defaults merged with the loaded values back to disk.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *ConfigStore) save() error {
	if s.v == nil {
		s.read()
	}
	if err := EnsureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := marshalSettings(s.v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Set validates and stores a single key, then persists the file.
func (s *ConfigStore) Set(key, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := parseSetting(key, raw)
	if err != nil {
		return err
	}
	if s.v == nil {
		s.read()
	}
	s.v.Set(key, value)

	cfg := DefaultConfig()
	if err := s.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DataDir = s.dataDir
	cfg.normalize()

	if err := s.save(); err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}

// Settings returns every persisted key with its effective value.
func (s *ConfigStore) Settings() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v == nil {
		s.read()
	}
	return s.v.AllSettings()
}

func parseSetting(key, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch key {
	case "detection_method":
		m, err := model.ParseMethod(raw)
		if err != nil {
			return nil, err
		}
		return string(m), nil
	case "scan_interval":
		n, err := strconv.Atoi(raw)
		if err != nil || n < MinScanInterval || n > MaxScanInterval {
			return nil, fmt.Errorf("scan_interval must be between %d and %d seconds", MinScanInterval, MaxScanInterval)
		}
		return n, nil
	case "port":
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("port must be between 1 and 65535")
		}
		return n, nil
	case "log_buffer_size", "log_flush_interval", "web_port", "history_retention_days":
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return n, nil
	case "logging", "silent_mode", "show_notifications", "auto_start":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return b, nil
	case "network_adapter", "language", "log_level":
		if raw == "" {
			return nil, fmt.Errorf("%s must not be empty", key)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown setting %q", key)
	}
}

func marshalSettings(settings map[string]any) ([]byte, error) {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// SettingKeys lists the keys accepted by ConfigStore.Set.
func SettingKeys() []string {
	return []string{
		"detection_method", "scan_interval", "port", "network_adapter",
		"logging", "log_buffer_size", "log_flush_interval",
		"silent_mode", "show_notifications", "auto_start", "language",
		"log_level", "web_port", "history_retention_days",
	}
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// WriteFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
