// Package config loads client settings from an optional YAML file, a
// .env file, and MOCKVOX_* environment variables, in that order of
// increasing precedence. Command-line flags override everything.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mockvox/interview"
)

type Config struct {
	// BackendURL is the interview service base URL.
	BackendURL string `yaml:"backend_url"`
	// Mode selects the transport: poll or stream.
	Mode string `yaml:"mode"`
	// ModelName is forwarded to the backend on start; empty lets the
	// backend pick.
	ModelName string `yaml:"model_name"`
	// Video enables webcam snapshots alongside each answer.
	Video bool `yaml:"video"`
	// ArchiveDir, when set, keeps FLAC copies of submitted answers.
	ArchiveDir string `yaml:"archive_dir"`
	// Device is the capture device name substring to prefer.
	Device string `yaml:"device"`
	// Beep disables audio cues when false.
	Beep *bool `yaml:"beep"`
}

func Default() *Config {
	beep := true
	return &Config{
		BackendURL: "http://127.0.0.1:8000",
		Mode:       string(interview.ModePoll),
		Beep:       &beep,
	}
}

// Load reads path (when non-empty), then applies .env and environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	// .env is optional; ignore a missing file.
	godotenv.Load()
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MOCKVOX_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("MOCKVOX_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("MOCKVOX_MODEL"); v != "" {
		cfg.ModelName = v
	}
	if v := os.Getenv("MOCKVOX_VIDEO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Video = b
		}
	}
	if v := os.Getenv("MOCKVOX_ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}
	if v := os.Getenv("MOCKVOX_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := os.Getenv("MOCKVOX_BEEP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Beep = &b
		}
	}
}

func Validate(cfg *Config) error {
	if cfg.BackendURL == "" {
		return fmt.Errorf("backend_url must be set")
	}
	switch interview.Mode(cfg.Mode) {
	case interview.ModePoll, interview.ModeStream:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q",
			interview.ModePoll, interview.ModeStream, cfg.Mode)
	}
	return nil
}

// BeepEnabled resolves the optional beep setting.
func (c *Config) BeepEnabled() bool {
	return c.Beep == nil || *c.Beep
}
