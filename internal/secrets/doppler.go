// Package secrets resolves sensitive configuration values.
package secrets

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Source looks up secrets by key
type Source interface {
	GetSecretWithFallback(key, fallback string) string
}

// EnvSource reads secrets from the process environment only
type EnvSource struct{}

// GetSecretWithFallback returns the environment value or fallback
func (EnvSource) GetSecretWithFallback(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// DopplerClient reads secrets through the Doppler CLI when it is installed.
// Values already present in the environment (doppler run) win.
type DopplerClient struct {
	Project string
	Config  string

	once      sync.Once
	available bool
	lookPath  func(string) (string, error)
	run       func(name string, args ...string) ([]byte, error)
}

// NewDopplerClient creates a new Doppler client
func NewDopplerClient(project, config string) *DopplerClient {
	return &DopplerClient{
		Project:  project,
		Config:   config,
		lookPath: exec.LookPath,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		},
	}
}

func (d *DopplerClient) cliAvailable() bool {
	d.once.Do(func() {
		_, err := d.lookPath("doppler")
		d.available = err == nil
	})
	return d.available
}

// GetSecret retrieves a secret from the environment or Doppler
func (d *DopplerClient) GetSecret(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	if !d.cliAvailable() {
		return "", fmt.Errorf("doppler CLI not found")
	}

	output, err := d.run("doppler", "secrets", "get", key,
		"--project", d.Project,
		"--config", d.Config,
		"--plain")
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", key, err)
	}

	return strings.TrimSpace(string(output)), nil
}

// GetSecretWithFallback gets a secret with a fallback value
func (d *DopplerClient) GetSecretWithFallback(key, fallback string) string {
	value, err := d.GetSecret(key)
	if err != nil || value == "" {
		return fallback
	}
	return value
}
