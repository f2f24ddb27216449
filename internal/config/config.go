package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"blockd/pkg/blocks"
	"blockd/pkg/format"
)

type Config struct {
	Env      string   `yaml:"env"      env:"APP_ENV" env-default:"dev"`
	Server   Server   `yaml:"server"`
	Blocks   Blocks   `yaml:"blocks"`
	Cache    Cache    `yaml:"cache"`
	Format   Format   `yaml:"format"`
	Includes []string `yaml:"includes"`
}

type Server struct {
	Address            string `yaml:"address"              env:"SERVER_ADDR"              env-default:":8080"`
	ReadTimeoutSec     int    `yaml:"read_timeout_sec"     env:"SERVER_READ_TIMEOUT"      env-default:"15"`
	WriteTimeoutSec    int    `yaml:"write_timeout_sec"    env:"SERVER_WRITE_TIMEOUT"     env-default:"15"`
	IdleTimeoutSec     int    `yaml:"idle_timeout_sec"     env:"SERVER_IDLE_TIMEOUT"      env-default:"60"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec" env:"SERVER_SHUTDOWN_TIMEOUT"  env-default:"15"`
}

type Blocks struct {
	APIURL            string            `yaml:"api_url"             env:"BLOCKS_API_URL"`
	Version           string            `yaml:"version"             env:"BLOCKS_VERSION"`
	Languages         []string          `yaml:"languages"           env:"BLOCKS_LANGUAGES" env-separator:"," env-default:"en,sv"`
	IDs               map[string]string `yaml:"ids"`
	SkipCookieScripts bool              `yaml:"skip_cookie_scripts" env:"BLOCKS_SKIP_COOKIE_SCRIPTS"`
	Timeout           string            `yaml:"timeout"             env:"BLOCKS_TIMEOUT"          env-default:"5s"`
	MaxConcurrency    int               `yaml:"max_concurrency"     env:"BLOCKS_MAX_CONCURRENCY"  env-default:"0"`
}

type Cache struct {
	Driver    string `yaml:"driver"     env:"CACHE_DRIVER"     env-default:"memory"`
	Host      string `yaml:"host"       env:"CACHE_HOST"       env-default:"localhost"`
	Port      int    `yaml:"port"       env:"CACHE_PORT"       env-default:"6379"`
	Db        int    `yaml:"db"         env:"CACHE_DB"         env-default:"0"`
	Pass      string `yaml:"password"   env:"CACHE_PASSWORD"   env-default:""`
	TTL       string `yaml:"ttl"        env:"CACHE_TTL"        env-default:"600s"`
	KeyPrefix string `yaml:"key_prefix" env:"CACHE_KEY_PREFIX"`
	Debug     bool   `yaml:"debug"      env:"CACHE_DEBUG"`
}

// Addr is host:port of the Redis server.
func (c Cache) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Format enables HTML post-processing of the blocks.
type Format struct {
	Enabled       bool `yaml:"enabled" env:"FORMAT_ENABLED"`
	format.Config `yaml:",inline"`
}

const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var ErrInvalid = errors.New("invalid config")

type FinalConfig struct {
	Env    string
	Server Server
	Blocks Blocks
	Cache  Cache
	Format Format

	FetchTimeout time.Duration `yaml:"-"`
	CacheTTL     time.Duration `yaml:"-"`
}

func Load(pathOrContent string) (*Config, error) {
	var cfg Config

	// Если указанный путь существует как файл, читаем его
	if fi, err := os.Stat(pathOrContent); err == nil && !fi.IsDir() {
		if err := cleanenv.ReadConfig(pathOrContent, &cfg); err != nil {
			return nil, fmt.Errorf("read config %q: %w", pathOrContent, err)
		}
	} else {
		// иначе считаем, что передана сама YAML-конфигурация в строке
		maybeContent := pathOrContent
		if strings.Contains(maybeContent, "\n") || strings.Contains(maybeContent, "blocks:") {
			if err := yaml.Unmarshal([]byte(maybeContent), &cfg); err != nil {
				return nil, fmt.Errorf("parse config content: %w", err)
			}
			if err := cleanenv.ReadEnv(&cfg); err != nil {
				return nil, fmt.Errorf("read env: %w", err)
			}
			return &cfg, nil
		}
		abs := pathOrContent
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(".", abs)
		}
		if err := cleanenv.ReadConfig(abs, &cfg); err != nil {
			return nil, fmt.Errorf("read config %q: %w", pathOrContent, err)
		}
	}

	return &cfg, nil
}

// Build loads the config, merges block ids from includes and validates the result.
func Build(configPath string) (*FinalConfig, error) {
	raw, err := Load(configPath)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(raw.Blocks.IDs))
	for name, id := range raw.Blocks.IDs {
		ids[name] = id
	}
	if len(raw.Includes) > 0 {
		inc, err := loadIncludes(configPath, raw.Env, raw.Includes)
		if err != nil {
			return nil, err
		}
		for name, id := range inc {
			ids[name] = id
		}
	}

	fc := &FinalConfig{
		Env:    raw.Env,
		Server: raw.Server,
		Blocks: raw.Blocks,
		Cache:  raw.Cache,
		Format: raw.Format,
	}
	fc.Blocks.IDs = ids

	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return fc, nil
}

// Validate checks required fields and resolves durations.
func (fc *FinalConfig) Validate() error {
	if strings.TrimSpace(fc.Blocks.APIURL) == "" {
		return fmt.Errorf("%w: blocks.api_url is required", ErrInvalid)
	}
	if len(fc.Blocks.Languages) == 0 {
		return fmt.Errorf("%w: blocks.languages must not be empty", ErrInvalid)
	}

	switch fc.Cache.Driver {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("%w: unknown cache driver %q", ErrInvalid, fc.Cache.Driver)
	}
	if fc.Cache.KeyPrefix != "" && fc.Cache.Driver != CacheRedis {
		return fmt.Errorf("%w: cache.key_prefix requires the redis driver", ErrInvalid)
	}

	timeout, err := time.ParseDuration(fc.Blocks.Timeout)
	if err != nil {
		return fmt.Errorf("%w: blocks.timeout: %v", ErrInvalid, err)
	}
	fc.FetchTimeout = timeout

	ttl := blocks.DefaultCacheTTL
	if fc.Cache.TTL != "" {
		if ttl, err = time.ParseDuration(fc.Cache.TTL); err != nil {
			return fmt.Errorf("%w: cache.ttl: %v", ErrInvalid, err)
		}
	}
	fc.CacheTTL = ttl
	return nil
}

// loadIncludes reads block id overrides from the include patterns, {env} is
// replaced with the current environment.
func loadIncludes(mainPath, env string, patterns []string) (map[string]string, error) {
	baseDir := filepath.Dir(mainPath)
	if env == "" {
		env = "dev"
	}

	ids := map[string]string{}
	for _, pat := range patterns {
		pat = strings.ReplaceAll(pat, "{env}", env)

		glob := pat
		if !filepath.IsAbs(glob) {
			glob = filepath.Join(baseDir, glob)
		}

		matches, err := filepath.Glob(glob)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pat, err)
		}

		for _, file := range matches {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("read included %q: %w", file, err)
			}

			var partial struct {
				IDs map[string]string `yaml:"ids"`
			}
			if err := yaml.Unmarshal(data, &partial); err != nil {
				return nil, fmt.Errorf("parse included %q: %w", file, err)
			}
			for name, id := range partial.IDs {
				ids[name] = id
			}
		}
	}
	return ids, nil
}

// Pretty возвращает YAML-представление FinalConfig для простого логирования.
func (fc *FinalConfig) Pretty() (string, error) {
	out := *fc
	if out.Cache.Pass != "" {
		out.Cache.Pass = "***"
	}
	b, err := yaml.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(b), nil
}
