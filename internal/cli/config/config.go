// Package config loads contexted.yml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/curiosum-dev/contexted/internal/tracer"
)

// FileName is the configuration file written by init
const FileName = "contexted.yml"

// DefaultDelegateOutput is the file a delegation job writes when no output is given
const DefaultDelegateOutput = "delegates_gen.go"

var (
	// ErrInvalidConfig is returned when validation fails
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrOutsideModule is returned for an import path the module does not contain
	ErrOutsideModule = errors.New("package is outside the module")

	// ErrNoRoot is returned when no contexted.yml or go.mod is found
	ErrNoRoot = errors.New("not in a Go module (no contexted.yml or go.mod found)")
)

// Config represents the contexted configuration
type Config struct {
	App                 string           `mapstructure:"app" yaml:"app,omitempty"`
	Contexts            []string         `mapstructure:"contexts" yaml:"contexts"`
	ExcludePaths        []string         `mapstructure:"exclude_paths" yaml:"exclude_paths,omitempty"`
	EnableRecompilation bool             `mapstructure:"enable_recompilation" yaml:"enable_recompilation"`
	Build               BuildConfig      `mapstructure:"build" yaml:"build,omitempty"`
	Delegates           []DelegateConfig `mapstructure:"delegates" yaml:"delegates,omitempty"`
	Database            DatabaseConfig   `mapstructure:"database" yaml:"database,omitempty"`

	// Root is the directory the configuration was loaded from
	Root string `mapstructure:"-" yaml:"-"`
	// Module is the module path declared in Root/go.mod, if any
	Module string `mapstructure:"-" yaml:"-"`
}

// BuildConfig represents build configuration
type BuildConfig struct {
	ArtifactDir string `mapstructure:"artifact_dir" yaml:"artifact_dir,omitempty"`
}

// DelegateConfig is one delegation job: the exported functions of Sources
// are forwarded from Target
type DelegateConfig struct {
	Target  string   `mapstructure:"target" yaml:"target"`
	Package string   `mapstructure:"package" yaml:"package,omitempty"`
	Sources []string `mapstructure:"sources" yaml:"sources"`
	Output  string   `mapstructure:"output" yaml:"output,omitempty"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL    string `mapstructure:"url" yaml:"url,omitempty"`
	Driver string `mapstructure:"driver" yaml:"driver,omitempty"`
}

// Load reads contexted.yml or contexted.yaml from dir. A missing file is
// not an error. Environment variables prefixed CONTEXTED_ override file
// values, e.g. CONTEXTED_DATABASE_URL.
func Load(dir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app", "")
	v.SetDefault("contexts", []string{})
	v.SetDefault("exclude_paths", []string{})
	v.SetDefault("enable_recompilation", false)
	v.SetDefault("build.artifact_dir", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", "postgres")

	v.SetConfigName("contexted")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("CONTEXTED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Root = dir
	if modulePath, err := tracer.ReadModulePath(dir); err == nil {
		cfg.Module = modulePath
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App == "" {
		switch {
		case c.Module != "":
			c.App = path.Base(c.Module)
		default:
			c.App = filepath.Base(c.Root)
		}
	}
	if c.Build.ArtifactDir == "" {
		c.Build.ArtifactDir = filepath.Join("build", c.App, "contexted")
	}
}

// Validate checks contexts and delegation jobs
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, ctx := range c.Contexts {
		if ctx == "" {
			return fmt.Errorf("%w: contexts must not contain empty entries", ErrInvalidConfig)
		}
		if err := module.CheckImportPath(ctx); err != nil {
			return fmt.Errorf("%w: context %q: %v", ErrInvalidConfig, ctx, err)
		}
		if seen[ctx] {
			return fmt.Errorf("%w: context %q is listed twice", ErrInvalidConfig, ctx)
		}
		seen[ctx] = true
	}

	for _, p := range c.ExcludePaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: exclude_paths must not contain empty entries", ErrInvalidConfig)
		}
	}

	for i, job := range c.Delegates {
		if err := module.CheckImportPath(job.Target); err != nil {
			return fmt.Errorf("%w: delegates[%d].target %q: %v", ErrInvalidConfig, i, job.Target, err)
		}
		if len(job.Sources) == 0 {
			return fmt.Errorf("%w: delegates[%d] has no sources", ErrInvalidConfig, i)
		}
		for _, src := range job.Sources {
			if err := module.CheckImportPath(src); err != nil {
				return fmt.Errorf("%w: delegates[%d] source %q: %v", ErrInvalidConfig, i, src, err)
			}
			if src == job.Target {
				return fmt.Errorf("%w: delegates[%d] target %q delegates to itself", ErrInvalidConfig, i, src)
			}
		}
	}

	switch c.Database.Driver {
	case "", "postgres", "pgx", "sqlite3", "sqlite":
	default:
		return fmt.Errorf("%w: unsupported database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	return nil
}

// ArtifactDir returns the absolute interface-description directory
func (c *Config) ArtifactDir() string {
	if filepath.IsAbs(c.Build.ArtifactDir) {
		return c.Build.ArtifactDir
	}
	return filepath.Join(c.Root, c.Build.ArtifactDir)
}

// PackageDir maps an import path inside the module to its directory
func (c *Config) PackageDir(importPath string) (string, error) {
	switch {
	case c.Module == "":
		return "", fmt.Errorf("%w: %s (no go.mod in %s)", ErrOutsideModule, importPath, c.Root)
	case importPath == c.Module:
		return c.Root, nil
	case strings.HasPrefix(importPath, c.Module+"/"):
		rel := strings.TrimPrefix(importPath, c.Module+"/")
		return filepath.Join(c.Root, filepath.FromSlash(rel)), nil
	default:
		return "", fmt.Errorf("%w: %s is not in %s", ErrOutsideModule, importPath, c.Module)
	}
}

// OutputPath returns the file a delegation job writes
func (c *Config) OutputPath(job DelegateConfig) (string, error) {
	if job.Output != "" {
		if filepath.IsAbs(job.Output) {
			return job.Output, nil
		}
		return filepath.Join(c.Root, job.Output), nil
	}
	dir, err := c.PackageDir(job.Target)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultDelegateOutput), nil
}

// Write saves cfg as YAML to path
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// FindRoot walks up from dir to the first directory holding contexted.yml,
// contexted.yaml or go.mod
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"contexted.yml", "contexted.yaml", "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRoot
		}
		dir = parent
	}
}
