// Package config loads the YAML configuration that drives a substrate
// session: where it persists, the artifact size ceiling, which built-in
// agents to wire into the Dispatcher, and the control-plane listen
// address. Config search
// and environment-variable expansion follow the same shape the teacher
// uses for its agent configs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AgentConfig selects a built-in agent by name to register with the
// Dispatcher at startup.
type AgentConfig struct {
	Name string `yaml:"name"`
}

// SessionConfig is the top-level YAML-serializable configuration for one
// substrate session.
type SessionConfig struct {
	SessionID       string        `yaml:"session_id,omitempty"`
	SchemaVersion   int           `yaml:"schema_version,omitempty"`
	MaxArtifactSize int64         `yaml:"max_artifact_size,omitempty"`
	PersistencePath string        `yaml:"persistence_path,omitempty"`
	Agents          []AgentConfig `yaml:"agents,omitempty"`
	ListenAddr      string        `yaml:"listen_addr,omitempty"`
}

// DefaultPersistencePath is used when a config omits persistence_path.
const DefaultPersistencePath = "session.db"

// Load parses a YAML session config. Search order when path is empty:
// .substrate/session.yaml, .substrate/session.yml, session.yaml,
// session.yml, then the same names under the user's home directory.
// Every string field is run through os.ExpandEnv, so ${VAR} references
// in persistence_path or listen_addr resolve at load time.
func Load(path string) (*SessionConfig, error) {
	data, resolved, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SessionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", resolved, err)
	}

	expandEnvInConfig(&cfg)

	if cfg.PersistencePath == "" {
		cfg.PersistencePath = DefaultPersistencePath
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, string, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{
			".substrate/session.yaml",
			".substrate/session.yml",
			"session.yaml",
			"session.yml",
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates,
				filepath.Join(home, ".substrate", "session.yaml"),
				filepath.Join(home, ".substrate", "session.yml"),
			)
		}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
	}

	if path != "" {
		return nil, path, fmt.Errorf("config file not found: %s", path)
	}
	return nil, "", fmt.Errorf("no session config found (looked in: %s)", strings.Join(candidates, ", "))
}

func expandEnvInConfig(cfg *SessionConfig) {
	cfg.SessionID = os.ExpandEnv(cfg.SessionID)
	cfg.PersistencePath = os.ExpandEnv(cfg.PersistencePath)
	cfg.ListenAddr = os.ExpandEnv(cfg.ListenAddr)
	for i := range cfg.Agents {
		cfg.Agents[i].Name = os.ExpandEnv(cfg.Agents[i].Name)
	}
}
