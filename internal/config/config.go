// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken          string        `env:"DISCORD_TOKEN"`
	Prefix                string        `env:"COMMAND_PREFIX" envDefault:"r!"`
	OwnerID               string        `env:"BOT_OWNER_ID"`
	ModeratorRoles        []string      `env:"MODERATOR_ROLES" envSeparator:","`
	StoragePath           string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	LogLevel              string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile               string        `env:"LOG_FILE"`
	Verbose               bool          `env:"VERBOSE"`
	MetricsAddr           string        `env:"METRICS_ADDR"`
	CooldownSweepInterval time.Duration `env:"COOLDOWN_SWEEP_INTERVAL" envDefault:"1m"`
	PolicyFile            string        `env:"COMMAND_POLICY_FILE"`
}

// RoleSeed is one server/role pair from MODERATOR_ROLES.
type RoleSeed struct {
	ServerID string
	RoleID   string
}

// New loads .env (if any) and parses the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] Failed to load .env: %v", err)
	} else if err != nil {
		log.Println("[INFO] No .env file found, falling back to system environment variables")
	}
	return Parse()
}

// Parse reads the config from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" {
		return nil, errors.New("COMMAND_PREFIX must not be empty")
	}
	if _, err := cfg.ModeratorRoleSeeds(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks what the Discord binary needs on top of Parse.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	return nil
}

// ModeratorRoleSeeds parses MODERATOR_ROLES entries of the form serverID:roleID.
func (c *Config) ModeratorRoleSeeds() ([]RoleSeed, error) {
	seeds := make([]RoleSeed, 0, len(c.ModeratorRoles))
	for _, raw := range c.ModeratorRoles {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		server, role, ok := strings.Cut(raw, ":")
		if !ok || server == "" || role == "" {
			return nil, fmt.Errorf("MODERATOR_ROLES: %q is not serverID:roleID", raw)
		}
		seeds = append(seeds, RoleSeed{ServerID: server, RoleID: role})
	}
	return seeds, nil
}
