package client

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// Config holds what the CLI needs to reach a planner API server.
type Config struct {
	Service Service `json:"service"`
}

type Service struct {
	// Server is the URL of the API server, the part before /api/v1.
	Server string `json:"server"`
	// User is sent in the operator header when the server uses header authentication.
	User string `json:"user,omitempty"`
}

// DefaultConfigPath is ~/.wave-planner/client.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".wave-planner", "client.yaml")
}

func ParseConfigFile(filename string) (*Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config := &Config{}
	if err := yaml.Unmarshal(contents, config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewFromConfigFile returns a client for the server named in filename.
func NewFromConfigFile(filename string) (*Client, error) {
	config, err := ParseConfigFile(filename)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(config), nil
}

func WriteConfig(filename string, server, user string) error {
	config := &Config{Service: Service{Server: server, User: user}}
	if err := config.Validate(); err != nil {
		return err
	}
	return config.Persist(filename)
}

func (c *Config) Persist(filename string) error {
	contents, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.WriteFile(filename, contents, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Service.Server == "" {
		return errors.New("invalid configuration: no server found")
	}
	u, err := url.Parse(c.Service.Server)
	if err != nil {
		return fmt.Errorf("invalid configuration: invalid server format %q: %w", c.Service.Server, err)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("invalid configuration: invalid server format %q: no hostname", c.Service.Server)
	}
	return nil
}
