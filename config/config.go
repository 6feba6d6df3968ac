package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/ini.v1"
)

// Progress modes accepted by the Progress key.
const (
	ProgressAuto = "auto" // bar when stdout is a terminal, plain lines otherwise
	ProgressBar  = "bar"  // always draw the bar
	ProgressNone = "none" // plain lines only
)

const (
	DefaultConfigDir        = "/etc/wget2"
	ConfigFileName          = "wget2.ini"
	DefaultProgressInterval = 125 * time.Millisecond
	DefaultTimeout          = 60 * time.Second
	DefaultUserAgent        = "wget2-go"
	MaxDefaultWorkers       = 16
)

// Config holds wget2 configuration
type Config struct {
	Profile   string
	BaseDir   string
	OutputDir string
	LogsPath  string

	MaxWorkers int
	SlowStart  int

	Progress         string
	ProgressEngine   string
	ProgressInterval time.Duration

	LimitRate int64 // bytes per second, 0 = unlimited
	UserAgent string
	Timeout   time.Duration

	NoClobber        bool
	ThrottleDisabled bool
	Debug            bool

	// Database settings
	Database struct {
		Path string // Default: ${BaseDir}/history.db
	}
}

var globalConfig *Config

// GetConfig returns the global configuration
func GetConfig() *Config {
	return globalConfig
}

// SetConfig sets the global configuration
func SetConfig(cfg *Config) {
	globalConfig = cfg
}

// DefaultWorkers returns the CPU count capped at MaxDefaultWorkers.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > MaxDefaultWorkers {
		n = MaxDefaultWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// DefaultBaseDir is where logs and the history database live unless
// configured otherwise.
func DefaultBaseDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "wget2")
	}
	return filepath.Join(os.TempDir(), "wget2")
}

// LoadConfig loads configuration from configDir/wget2.ini. A missing file is
// not an error; defaults are used.
func LoadConfig(configDir, profile string) (*Config, error) {
	cfg := &Config{
		Profile:          profile,
		MaxWorkers:       DefaultWorkers(),
		Progress:         ProgressAuto,
		ProgressEngine:   "classic",
		ProgressInterval: DefaultProgressInterval,
		UserAgent:        DefaultUserAgent,
		Timeout:          DefaultTimeout,
	}

	if configDir == "" {
		configDir = DefaultConfigDir
	}
	configFile := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configFile); err == nil {
		iniFile, err := ini.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}

		globalSec := iniFile.Section("Global Configuration")

		// If no profile specified, read from global section
		if cfg.Profile == "" || cfg.Profile == "default" {
			cfg.Profile = globalSec.Key("profile_selected").String()
		}

		var profileSec *ini.Section
		if cfg.Profile != "" && iniFile.HasSection(cfg.Profile) {
			profileSec = iniFile.Section(cfg.Profile)
			if err := cfg.loadFromSection(profileSec, nil); err != nil {
				return nil, fmt.Errorf("profile %s: %w", cfg.Profile, err)
			}
		}

		// Profile values win; the global section fills what is left.
		if err := cfg.loadFromSection(globalSec, profileSec); err != nil {
			return nil, fmt.Errorf("global configuration: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.BaseDir == "" {
		cfg.BaseDir = DefaultBaseDir()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.LogsPath == "" {
		cfg.LogsPath = filepath.Join(cfg.BaseDir, "logs")
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.BaseDir, "history.db")
	}
	if cfg.SlowStart <= 0 || cfg.SlowStart > cfg.MaxWorkers {
		cfg.SlowStart = cfg.MaxWorkers
	}
}

// Validate checks values that cannot be defaulted.
func (cfg *Config) Validate() error {
	switch cfg.Progress {
	case ProgressAuto, ProgressBar, ProgressNone:
	default:
		return fmt.Errorf("invalid Progress %q (want auto, bar or none)", cfg.Progress)
	}
	if cfg.MaxWorkers < 1 {
		return fmt.Errorf("Number_of_workers must be at least 1")
	}
	if cfg.ProgressInterval <= 0 {
		return fmt.Errorf("Progress_interval_ms must be positive")
	}
	if cfg.LimitRate < 0 {
		return fmt.Errorf("Limit_rate must not be negative")
	}
	return nil
}

// loadFromSection loads config values from an INI section. Keys present in
// shadow are skipped.
func (cfg *Config) loadFromSection(sec, shadow *ini.Section) error {
	set := func(name string) (string, bool) {
		if !sec.HasKey(name) || (shadow != nil && shadow.HasKey(name)) {
			return "", false
		}
		v := strings.TrimSpace(sec.Key(name).String())
		return v, v != ""
	}

	str := func(name string, dst *string) {
		if v, ok := set(name); ok {
			*dst = v
		}
	}

	// Directory paths
	str("Directory_base", &cfg.BaseDir)
	str("Directory_output", &cfg.OutputDir)
	str("Directory_logs", &cfg.LogsPath)
	str("Database_path", &cfg.Database.Path)

	str("Progress", &cfg.Progress)
	cfg.Progress = strings.ToLower(cfg.Progress)
	str("Progress_engine", &cfg.ProgressEngine)
	str("User_agent", &cfg.UserAgent)

	// Worker settings
	if v, ok := set("Number_of_workers"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid Number_of_workers %q", v)
		}
		cfg.MaxWorkers = n
	}
	if v, ok := set("Slow_start"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid Slow_start %q", v)
		}
		cfg.SlowStart = n
	}
	if v, ok := set("Progress_interval_ms"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("invalid Progress_interval_ms %q", v)
		}
		cfg.ProgressInterval = time.Duration(ms) * time.Millisecond
	}
	if v, ok := set("Timeout_seconds"); ok {
		s, err := strconv.Atoi(v)
		if err != nil || s < 0 {
			return fmt.Errorf("invalid Timeout_seconds %q", v)
		}
		cfg.Timeout = time.Duration(s) * time.Second
	}
	if v, ok := set("Limit_rate"); ok {
		rate, err := ParseRate(v)
		if err != nil {
			return err
		}
		cfg.LimitRate = rate
	}

	// Boolean options
	if v, ok := set("No_clobber"); ok {
		cfg.NoClobber = parseBool(v)
	}
	if v, ok := set("Throttle_disabled"); ok {
		cfg.ThrottleDisabled = parseBool(v)
	}
	return nil
}

// ParseRate parses a byte rate such as "500k", "2MB" or "1MiB". A plain
// number is bytes per second; "0" disables the limit.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return int64(n), nil
}

func parseBool(s string) bool {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	switch strings.ToLower(s) {
	case "yes", "on":
		return true
	}
	return false
}
