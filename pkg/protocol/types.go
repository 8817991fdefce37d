package protocol

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the root configuration of an appkit hosted program.
type Config struct {
	Version       string              `yaml:"version"`
	App           AppConfig           `yaml:"app"`
	Mode          consts.RunMode      `yaml:"mode"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type AppConfig struct {
	Name           string `yaml:"name"`
	UUID           string `yaml:"uuid"`            // Stable identity, used for the single-instance lock
	SingleInstance bool   `yaml:"single_instance"` // Refuse to start when another copy holds the lock
	LockDir        string `yaml:"lock_dir"`
	ControlSocket  string `yaml:"control_socket"` // Unix socket answering status and stop requests
}

type ServerConfig struct {
	ServiceName string `yaml:"service_name"` // Windows SCM name
	Foreground  bool   `yaml:"foreground"`   // Skip detaching (systemd Type=notify)
	LogFile     string `yaml:"log_file"`
}

type ObservabilityConfig struct {
	MetricsPort string `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "Load", "read config", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "Parse", "decode yaml", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = consts.ModeCommon
	}
	if c.App.Name == "" {
		c.App.Name = "appkit"
	}
	if c.Server.ServiceName == "" {
		c.Server.ServiceName = c.App.Name
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
}

// Validate checks the mode and the application identity.
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return errors.New(errors.ErrCodeConfigInvalid, "Validate", fmt.Sprintf("unknown mode %q", c.Mode), nil)
	}
	if c.App.UUID != "" {
		if _, err := uuid.Parse(c.App.UUID); err != nil {
			return errors.New(errors.ErrCodeConfigInvalid, "Validate", "app.uuid is not a UUID", err)
		}
	}
	return nil
}

// AppID returns the configured UUID, or one derived from the application
// name so that every copy of the same program agrees on it.
func (c *Config) AppID() uuid.UUID {
	if id, err := uuid.Parse(c.App.UUID); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("appkit:"+c.App.Name))
}

// Personal.AI order the ending
