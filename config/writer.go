package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/ini.v1"
)

// ErrConfigExists is returned by SaveConfig when the file is already there
// and overwrite is not set.
var ErrConfigExists = errors.New("config file already exists")

// SaveConfig writes cfg to configDir/wget2.ini as the selected profile and
// returns the file path. The profile name defaults to "default".
func SaveConfig(configDir string, cfg *Config, overwrite bool) (string, error) {
	if configDir == "" {
		configDir = DefaultConfigDir
	}
	path := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(path); err == nil && !overwrite {
		return path, ErrConfigExists
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return path, fmt.Errorf("failed to create config directory: %w", err)
	}

	profile := cfg.Profile
	if profile == "" {
		profile = "default"
	}

	f := ini.Empty()
	global, err := f.NewSection("Global Configuration")
	if err != nil {
		return path, err
	}
	global.Key("profile_selected").SetValue(profile)

	sec, err := f.NewSection(profile)
	if err != nil {
		return path, err
	}
	for _, kv := range [][2]string{
		{"Directory_base", cfg.BaseDir},
		{"Directory_output", cfg.OutputDir},
		{"Directory_logs", cfg.LogsPath},
		{"Database_path", cfg.Database.Path},
		{"Number_of_workers", strconv.Itoa(cfg.MaxWorkers)},
		{"Slow_start", strconv.Itoa(cfg.SlowStart)},
		{"Progress", cfg.Progress},
		{"Progress_engine", cfg.ProgressEngine},
		{"Progress_interval_ms", strconv.FormatInt(cfg.ProgressInterval.Milliseconds(), 10)},
		{"Limit_rate", strconv.FormatInt(cfg.LimitRate, 10)},
		{"User_agent", cfg.UserAgent},
		{"Timeout_seconds", strconv.Itoa(int(cfg.Timeout.Seconds()))},
		{"No_clobber", strconv.FormatBool(cfg.NoClobber)},
		{"Throttle_disabled", strconv.FormatBool(cfg.ThrottleDisabled)},
	} {
		if kv[1] == "" {
			continue
		}
		sec.Key(kv[0]).SetValue(kv[1])
	}

	if err := f.SaveTo(path); err != nil {
		return path, fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
