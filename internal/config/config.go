// Package config loads and validates the toolkit settings, and implements
// the environment-check collaborator.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Port  int
	Token string

	// BackendURL and APIKey reach the n8n instance.
	BackendURL string
	APIKey     string

	// WorkflowsDir holds exported workflow JSON; RepoPath is the git
	// repository versioning it (usually the same directory).
	WorkflowsDir string
	RepoPath     string

	DBPath     string
	CatalogDir string

	HandlerTimeout   time.Duration
	SnapshotInterval time.Duration

	ConfigPath string
	PrintToken bool
}

func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	cfg := &Config{
		Port:             8788,
		BackendURL:       "http://127.0.0.1:5678",
		WorkflowsDir:     filepath.Join(homeDir, "n8n-workflows"),
		DBPath:           filepath.Join(homeDir, ".local", "share", "n8nops", "n8nops.db"),
		HandlerTimeout:   30 * time.Second,
		SnapshotInterval: 10 * time.Minute,
	}
	cfg.ConfigPath = filepath.Join(homeDir, ".config", "n8nops", "config")

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "server port (1-65535)")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "authentication token (auto-generated if empty)")
	flag.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "n8n backend base URL")
	flag.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "n8n API key")
	flag.StringVar(&cfg.WorkflowsDir, "workflows-dir", cfg.WorkflowsDir, "directory for exported workflow JSON")
	flag.StringVar(&cfg.RepoPath, "repo", cfg.RepoPath, "git repository path (defaults to the workflows dir)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	flag.StringVar(&cfg.CatalogDir, "catalog-dir", cfg.CatalogDir, "optional pattern catalog override directory")
	flag.DurationVar(&cfg.HandlerTimeout, "handler-timeout", cfg.HandlerTimeout, "deadline for one collaborator call")
	flag.DurationVar(&cfg.SnapshotInterval, "snapshot-interval", cfg.SnapshotInterval, "workflow snapshot interval (0 disables)")
	flag.BoolVar(&cfg.PrintToken, "print-token", false, "print token to stdout (for local debugging)")
	flag.Parse()

	if cfg.RepoPath == "" {
		cfg.RepoPath = cfg.WorkflowsDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks the invariants that must hold before anything is wired.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("backend URL is required")
	}
	if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
		return fmt.Errorf("invalid backend URL %q: must start with http:// or https://", c.BackendURL)
	}
	if strings.TrimSpace(c.WorkflowsDir) == "" {
		return fmt.Errorf("workflows directory is required")
	}
	if c.HandlerTimeout <= 0 {
		return fmt.Errorf("handler timeout must be positive")
	}
	return nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		switch key {
		case "Token":
			c.Token = value
		case "Port":
			var port int
			if _, err := fmt.Sscanf(value, "%d", &port); err != nil {
				return fmt.Errorf("invalid Port value %q: %w", value, err)
			}
			c.Port = port
		case "BackendURL":
			c.BackendURL = value
		case "APIKey":
			c.APIKey = value
		case "WorkflowsDir":
			c.WorkflowsDir = value
		case "RepoPath":
			c.RepoPath = value
		case "DBPath":
			c.DBPath = value
		case "CatalogDir":
			c.CatalogDir = value
		case "HandlerTimeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid HandlerTimeout value %q: %w", value, err)
			}
			c.HandlerTimeout = d
		case "SnapshotInterval":
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid SnapshotInterval value %q: %w", value, err)
			}
			c.SnapshotInterval = d
		}
	}
	return nil
}

func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data := fmt.Sprintf("Port=%d\nBackendURL=%s\nWorkflowsDir=%s\nToken=%s\n",
		c.Port, c.BackendURL, c.WorkflowsDir, c.Token)
	return os.WriteFile(c.ConfigPath, []byte(data), 0o600)
}

func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
