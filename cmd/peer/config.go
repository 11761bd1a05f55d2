package peer

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.miragespace.co/filering/spec/chord"

	"gopkg.in/yaml.v3"
)

const configVersion = 1

type Config struct {
	path         string
	Version      int           `yaml:"version"`
	ID           *int          `yaml:"id,omitempty"`
	Rendezvous   string        `yaml:"rendezvous"`
	Listen       string        `yaml:"listen"`
	Advertise    string        `yaml:"advertise,omitempty"`
	Debug        string        `yaml:"debug,omitempty"`
	DialAttempts uint          `yaml:"dialAttempts,omitempty"`
	DialTimeout  time.Duration `yaml:"dialTimeout,omitempty"`
}

// NewConfig loads a config file. It is validated once flags are applied.
func NewConfig(path string) (*Config, error) {
	cfg := &Config{
		path: path,
	}
	if err := cfg.readFile(); err != nil {
		return nil, err
	}
	if err := cfg.checkVersion(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) checkVersion() error {
	if c.Version != configVersion {
		return fmt.Errorf("expecting config version %d, got %v", configVersion, c.Version)
	}
	return nil
}

func (c *Config) validate() error {
	// derived from the bound address later when absent
	if c.ID != nil && !chord.ValidID(*c.ID) {
		return fmt.Errorf("node id must be between 0 and %d, got %d", chord.RingSize-1, *c.ID)
	}
	if c.Rendezvous == "" {
		return errors.New("rendezvous address is required")
	}
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.DialAttempts == 0 {
		c.DialAttempts = 1
	}
	return nil
}

func (c *Config) readFile() error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("error opening config file for reading: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("error decoding config file: %w", err)
	}
	return nil
}
