package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"autokami/internal/domain/kami"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

type DatabaseConfig struct {
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrations_dir"`
	AutoMigrate   bool   `yaml:"auto_migrate"`
}

type SchedulerConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	CraftAttempts int           `yaml:"craft_attempts"`
	CraftDelay    time.Duration `yaml:"craft_delay"`
	// RoomPolicy is "advisory" or "strict".
	RoomPolicy    string        `yaml:"room_policy"`
}

type LedgerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	APIBase  string `yaml:"api_base"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds the service's runtime configuration.
type Config struct {
	ListenAddr  string          `yaml:"listen_addr"`
	Database    DatabaseConfig  `yaml:"database"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Ledger      LedgerConfig    `yaml:"ledger"`
	Telegram    TelegramConfig  `yaml:"telegram"`
	MasterKey   string          `yaml:"master_key"`
	APIToken    string          `yaml:"api_token"`
	RecipesFile string          `yaml:"recipes_file"`
	Log         LogConfig       `yaml:"log"`
}

// Load reads an optional YAML file, applies AUTOKAMI_* environment
// overrides, fills defaults and validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var problems []string
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("AUTOKAMI_LISTEN_ADDR", &c.ListenAddr)
	str("AUTOKAMI_DB_DSN", &c.Database.DSN)
	str("AUTOKAMI_MIGRATIONS_DIR", &c.Database.MigrationsDir)
	str("AUTOKAMI_ROOM_POLICY", &c.Scheduler.RoomPolicy)
	str("AUTOKAMI_LEDGER_URL", &c.Ledger.BaseURL)
	str("AUTOKAMI_TELEGRAM_TOKEN", &c.Telegram.BotToken)
	str("AUTOKAMI_TELEGRAM_API", &c.Telegram.APIBase)
	str("AUTOKAMI_MASTER_KEY", &c.MasterKey)
	str("AUTOKAMI_API_TOKEN", &c.APIToken)
	str("AUTOKAMI_RECIPES_FILE", &c.RecipesFile)
	str("AUTOKAMI_LOG_LEVEL", &c.Log.Level)
	str("AUTOKAMI_LOG_FORMAT", &c.Log.Format)

	if err := boolEnv("AUTOKAMI_AUTO_MIGRATE", &c.Database.AutoMigrate); err != nil {
		problems = append(problems, err.Error())
	}
	if err := intEnv("AUTOKAMI_CRAFT_ATTEMPTS", &c.Scheduler.CraftAttempts); err != nil {
		problems = append(problems, err.Error())
	}
	for key, dst := range map[string]*time.Duration{
		"AUTOKAMI_TICK_INTERVAL":  &c.Scheduler.TickInterval,
		"AUTOKAMI_CRAFT_DELAY":    &c.Scheduler.CraftDelay,
		"AUTOKAMI_LEDGER_TIMEOUT": &c.Ledger.Timeout,
	} {
		if err := durationEnv(key, dst); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "./migrations"
	}
	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = 60 * time.Second
	}
	if c.Scheduler.CraftAttempts == 0 {
		c.Scheduler.CraftAttempts = 3
	}
	if c.Scheduler.CraftDelay == 0 {
		c.Scheduler.CraftDelay = 60 * time.Second
	}
	if c.Scheduler.RoomPolicy == "" {
		c.Scheduler.RoomPolicy = "advisory"
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = 30 * time.Second
	}
	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	if c.RecipesFile == "" {
		c.RecipesFile = "./configs/recipes.yaml"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.Ledger.BaseURL == "" {
		problems = append(problems, "ledger.base_url is required")
	}
	if c.MasterKey == "" {
		problems = append(problems, "master_key is required")
	}
	if c.Scheduler.TickInterval < time.Second {
		problems = append(problems, "scheduler.tick_interval must be at least 1s")
	}
	if c.Scheduler.CraftAttempts < 1 {
		problems = append(problems, "scheduler.craft_attempts must be positive")
	}
	if c.Scheduler.CraftDelay < 0 {
		problems = append(problems, "scheduler.craft_delay must not be negative")
	}
	if c.Ledger.Timeout < 0 {
		problems = append(problems, "ledger.timeout must not be negative")
	}
	switch c.Scheduler.RoomPolicy {
	case "advisory", "strict":
	default:
		problems = append(problems, fmt.Sprintf("scheduler.room_policy %q must be advisory or strict", c.Scheduler.RoomPolicy))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

type recipeFile struct {
	Recipes []kami.Recipe `yaml:"recipes"`
}

// LoadRecipes reads the static recipe catalog.
func LoadRecipes(path string) (kami.RecipeCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return kami.RecipeCatalog{}, fmt.Errorf("read recipes file: %w", err)
	}
	var f recipeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return kami.RecipeCatalog{}, fmt.Errorf("parse recipes YAML: %w", err)
	}
	return kami.NewRecipeCatalog(f.Recipes)
}

func intEnv(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func durationEnv(key string, dst *time.Duration) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a duration", key, v)
	}
	*dst = d
	return nil
}

func boolEnv(key string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	*dst = b
	return nil
}
