// Package config loads the pdfbot configuration on top of the shared core sections.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	coreconfig "github.com/m3rciful/pdfbot/core/config"
	coredatabase "github.com/m3rciful/pdfbot/core/database"
	"github.com/m3rciful/pdfbot/internal/language"
	"github.com/m3rciful/pdfbot/internal/payment"
)

// FlowConfig tunes the conversation engine.
type FlowConfig struct {
	// SessionTTL drops conversations idle for longer than this.
	SessionTTL  time.Duration `yaml:"session_ttl" envconfig:"FLOW_SESSION_TTL"`
	StepTimeout time.Duration `yaml:"step_timeout" envconfig:"FLOW_STEP_TIMEOUT"`
	ActorIdle   time.Duration `yaml:"actor_idle" envconfig:"FLOW_ACTOR_IDLE"`
	// LockTTL bounds the per-user redis lock; it must outlive a whole step.
	LockTTL time.Duration `yaml:"lock_ttl" envconfig:"FLOW_LOCK_TTL"`
}

// lockMargin is added on top of step_timeout for the session write and unlock.
const lockMargin = 30 * time.Second

// PDFConfig bounds document work.
type PDFConfig struct {
	Workers   int           `yaml:"workers" envconfig:"PDF_WORKERS"`
	OpTimeout time.Duration `yaml:"op_timeout" envconfig:"PDF_OP_TIMEOUT"`
	WorkDir   string        `yaml:"work_dir" envconfig:"PDF_WORK_DIR"`
	// MaxFileMB rejects uploads the platform will not let the bot download.
	MaxFileMB int `yaml:"max_file_mb" envconfig:"PDF_MAX_FILE_MB"`
}

// LanguageConfig selects the fallback interface language.
type LanguageConfig struct {
	Default   string        `yaml:"default" envconfig:"LANGUAGE_DEFAULT"`
	CacheSize int           `yaml:"cache_size" envconfig:"LANGUAGE_CACHE_SIZE"`
	CacheTTL  time.Duration `yaml:"cache_ttl" envconfig:"LANGUAGE_CACHE_TTL"`
}

// Config is the full pdfbot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Flow     FlowConfig          `yaml:"flow"`
	PDF      PDFConfig           `yaml:"pdf"`
	Payment  payment.Config      `yaml:"payment"`
	Language LanguageConfig      `yaml:"language"`
}

// CoreConfig exposes the shared sections to the core runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the configuration and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if err := c.Payment.Normalize(); err != nil {
		return err
	}

	if c.Flow.SessionTTL <= 0 {
		c.Flow.SessionTTL = 30 * time.Minute
	}
	if c.Flow.StepTimeout <= 0 {
		c.Flow.StepTimeout = 3 * time.Minute
	}
	if c.Flow.ActorIdle <= 0 {
		c.Flow.ActorIdle = time.Minute
	}
	if c.Flow.LockTTL <= 0 {
		c.Flow.LockTTL = c.Flow.StepTimeout + lockMargin
	}
	if c.Flow.LockTTL <= c.Flow.StepTimeout {
		return fmt.Errorf("flow.lock_ttl (%s) must be longer than flow.step_timeout (%s)", c.Flow.LockTTL, c.Flow.StepTimeout)
	}

	if c.PDF.Workers <= 0 {
		c.PDF.Workers = 4
	}
	if c.PDF.OpTimeout <= 0 {
		c.PDF.OpTimeout = 2 * time.Minute
	}
	if c.PDF.OpTimeout >= c.Flow.StepTimeout {
		return fmt.Errorf("pdf.op_timeout (%s) must be shorter than flow.step_timeout (%s)", c.PDF.OpTimeout, c.Flow.StepTimeout)
	}
	if c.PDF.WorkDir == "" {
		c.PDF.WorkDir = filepath.Join(os.TempDir(), "pdfbot")
	}
	if c.PDF.MaxFileMB <= 0 {
		c.PDF.MaxFileMB = 20
	}

	if c.Language.Default == "" {
		c.Language.Default = language.DefaultCode
	}
	if !language.IsCode(c.Language.Default) {
		return fmt.Errorf("language.default %q is not a supported code", c.Language.Default)
	}
	if c.Language.CacheSize <= 0 {
		c.Language.CacheSize = 10_000
	}
	if c.Language.CacheTTL <= 0 {
		c.Language.CacheTTL = time.Hour
	}
	return nil
}
