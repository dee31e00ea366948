package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.campusd/config.toml.
type Config struct {
	DefaultProfile string    `toml:"default_profile"`
	Firestore      Firestore `toml:"firestore"`
	Sync           Sync      `toml:"sync"`
	Notify         Notify    `toml:"notify"`
	Metrics        Metrics   `toml:"metrics"`
}

// Firestore configures the remote document store.
type Firestore struct {
	ProjectID       string `toml:"project_id"`
	CredentialsFile string `toml:"credentials_file"`
	Tasks           string `toml:"tasks_collection"`
	Announcements   string `toml:"announcements_collection"`
	Wall            string `toml:"wall_collection"`
}

// Sync configures the connectivity probe and the wall posting cooldown.
type Sync struct {
	CooldownSeconds      int    `toml:"cooldown_seconds"`
	ProbeEndpoint        string `toml:"probe_endpoint"`
	ProbeIntervalSeconds int    `toml:"probe_interval_seconds"`
}

// Notify configures push delivery. With an empty device token the daemon
// falls back to log-only notifications.
type Notify struct {
	DeviceToken string `toml:"device_token"`
}

// Metrics configures the local observability endpoint.
type Metrics struct {
	ListenAddr string `toml:"listen_addr"`
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		Firestore: Firestore{
			Tasks:         "tasks",
			Announcements: "announcements",
			Wall:          "freedom_wall",
		},
		Sync: Sync{
			CooldownSeconds:      90,
			ProbeEndpoint:        "firestore.googleapis.com:443",
			ProbeIntervalSeconds: 15,
		},
		Metrics: Metrics{
			ListenAddr: "127.0.0.1:9474",
		},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// applyDefaults fills fields a partial config file left unset.
func (c *Config) applyDefaults() {
	def := Default()
	if c.DefaultProfile == "" {
		c.DefaultProfile = def.DefaultProfile
	}
	if c.Firestore.Tasks == "" {
		c.Firestore.Tasks = def.Firestore.Tasks
	}
	if c.Firestore.Announcements == "" {
		c.Firestore.Announcements = def.Firestore.Announcements
	}
	if c.Firestore.Wall == "" {
		c.Firestore.Wall = def.Firestore.Wall
	}
	if c.Sync.CooldownSeconds <= 0 {
		c.Sync.CooldownSeconds = def.Sync.CooldownSeconds
	}
	if c.Sync.ProbeEndpoint == "" {
		c.Sync.ProbeEndpoint = def.Sync.ProbeEndpoint
	}
	if c.Sync.ProbeIntervalSeconds <= 0 {
		c.Sync.ProbeIntervalSeconds = def.Sync.ProbeIntervalSeconds
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = def.Metrics.ListenAddr
	}
}
