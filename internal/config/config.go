// Package config loads proposalgen settings from a YAML file, a .env file
// and PROPOSAL_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds everything the generator, store and CLI need.
type Config struct {
	TemplatesDir      string `mapstructure:"templates_dir"`
	OutputDir         string `mapstructure:"output_dir"`
	WorkDir           string `mapstructure:"work_dir"`
	MembersDir        string `mapstructure:"members_dir"`
	ImagesDir         string `mapstructure:"images_dir"`
	FrontPageTemplate string `mapstructure:"front_page_template"`
	BaseURL           string `mapstructure:"base_url"`
	CreatedBy         string `mapstructure:"created_by"`
	LogFile           string `mapstructure:"log_file"`
	Debug             bool   `mapstructure:"debug"`

	Cover     CoverConfig     `mapstructure:"cover"`
	Watermark WatermarkConfig `mapstructure:"watermark"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// CoverConfig controls the generated front page.
type CoverConfig struct {
	Code     string `mapstructure:"code"` // "none", "qr" or "pdf417"
	Subtitle string `mapstructure:"subtitle"`
	Layout   string `mapstructure:"layout"` // optional JSON layout for the fallback cover
}

// WatermarkConfig adds a diagonal text over every page when Text is set.
type WatermarkConfig struct {
	Text    string  `mapstructure:"text"`
	Color   string  `mapstructure:"color"`   // #rrggbb
	Opacity float64 `mapstructure:"opacity"` // 0 < opacity <= 1
}

// DatabaseConfig selects the proposal store.
type DatabaseConfig struct {
	DSN        string `mapstructure:"dsn"`
	Debug      bool   `mapstructure:"debug"`
	Migrations bool   `mapstructure:"migrations"`
}

// RedisConfig enables the cross-process version lock when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// Sentinel errors for configuration loading.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("config file could not be parsed")
)

// EnvPrefix is prepended to every environment override, e.g.
// PROPOSAL_TEMPLATES_DIR or PROPOSAL_DATABASE_DSN.
const EnvPrefix = "PROPOSAL"

// New returns a viper instance with defaults and environment binding but no
// file loaded. Callers may bind flags to it before calling Decode.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("templates_dir", "templates")
	v.SetDefault("output_dir", "output")
	v.SetDefault("work_dir", "")
	v.SetDefault("members_dir", "images/members")
	v.SetDefault("images_dir", "images")
	v.SetDefault("front_page_template", "front_page.pdf")
	v.SetDefault("base_url", "/downloads")
	v.SetDefault("created_by", "system")
	v.SetDefault("log_file", "")
	v.SetDefault("debug", false)
	v.SetDefault("cover.code", "none")
	v.SetDefault("cover.subtitle", "Business Proposal")
	v.SetDefault("cover.layout", "")
	v.SetDefault("watermark.text", "")
	v.SetDefault("watermark.color", "#c8c8c8")
	v.SetDefault("watermark.opacity", 0.3)
	v.SetDefault("database.dsn", "proposals.db")
	v.SetDefault("database.debug", false)
	v.SetDefault("database.migrations", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present), then path (if non-empty), then the
// environment, and decodes the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// LoadFlags is Load with command-line overrides. Each entry of keys maps a
// flag name in fs to a config key; a flag the user set wins over the file
// and the environment.
func LoadFlags(path string, fs *pflag.FlagSet, keys map[string]string) (*Config, error) {
	_ = godotenv.Load()

	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("%w: binding --%s: %v", ErrConfigParse, name, err)
		}
	}
	return Decode(v)
}

// ReadFile loads the YAML file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	return nil
}

// Decode unmarshals v into a Config.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	cfg.Cover.Code = strings.ToLower(strings.TrimSpace(cfg.Cover.Code))
	switch cfg.Cover.Code {
	case "", "none", "qr", "pdf417":
	default:
		return nil, fmt.Errorf("%w: cover.code must be none, qr or pdf417, got %q", ErrConfigParse, cfg.Cover.Code)
	}
	if o := cfg.Watermark.Opacity; o < 0 || o > 1 {
		return nil, fmt.Errorf("%w: watermark.opacity must be between 0 and 1, got %g", ErrConfigParse, o)
	}
	return &cfg, nil
}
