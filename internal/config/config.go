// Package config loads the teller configuration from an optional YAML
// file and the environment. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/teller/pkg/auth/google"
	"github.com/aretw0/teller/pkg/llm"
	"github.com/aretw0/teller/pkg/search"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Log    LogConfig           `mapstructure:"log" yaml:"log"`
	Engine EngineConfig        `mapstructure:"engine" yaml:"engine"`
	Store  StoreConfig         `mapstructure:"store" yaml:"store"`
	LLM    llm.OllamaConfig    `mapstructure:"llm" yaml:"llm"`
	Search search.TavilyConfig `mapstructure:"search" yaml:"search"`
	Router RouterConfig        `mapstructure:"router" yaml:"router"`
	HTTP   HTTPConfig          `mapstructure:"http" yaml:"http"`
	MCP    MCPConfig           `mapstructure:"mcp" yaml:"mcp"`
	Google GoogleConfig        `mapstructure:"google" yaml:"google"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type EngineConfig struct {
	MaxSteps     int `mapstructure:"max_steps" yaml:"max_steps"`
	MaxInputSize int `mapstructure:"max_input_size" yaml:"max_input_size"`
}

// StoreConfig selects where accounts live.
type StoreConfig struct {
	Driver string      `mapstructure:"driver" yaml:"driver"`
	Path   string      `mapstructure:"path" yaml:"path"`
	Redis  RedisConfig `mapstructure:"redis" yaml:"redis"`
	// EncryptionKey is a base64 or hex AES-256 key. Empty disables encryption.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
	// MaskPII masks SIN-like values before they are written.
	MaskPII bool          `mapstructure:"mask_pii" yaml:"mask_pii"`
	LockTTL time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type RouterConfig struct {
	Default string `mapstructure:"default" yaml:"default"`
	// UseModel asks the language model before falling back to keywords.
	UseModel bool `mapstructure:"use_model" yaml:"use_model"`
}

type HTTPConfig struct {
	Addr                   string        `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins         []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ContributionsPerMinute int           `mapstructure:"contributions_per_minute" yaml:"contributions_per_minute"`
	ShutdownTimeout        time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type MCPConfig struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

type GoogleConfig struct {
	Desktop google.DesktopConfig `mapstructure:"desktop" yaml:"desktop"`
	Web     google.WebConfig     `mapstructure:"web" yaml:"web"`
	WebAddr string               `mapstructure:"web_addr" yaml:"web_addr"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{MaxSteps: 64, MaxInputSize: 4096},
		Store: StoreConfig{
			Driver:  DriverMemory,
			Path:    ".teller/accounts",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "teller:"},
			LockTTL: 10 * time.Second,
		},
		LLM: llm.OllamaConfig{
			Host:        llm.DefaultOllamaHost,
			Model:       llm.DefaultOllamaModel,
			Temperature: 0,
			Timeout:     2 * time.Minute,
			MaxRetries:  2,
		},
		Search: search.TavilyConfig{
			Endpoint:   search.DefaultTavilyEndpoint,
			MaxResults: 3,
			Depth:      "advanced",
		},
		Router: RouterConfig{Default: "tfsa", UseModel: true},
		HTTP: HTTPConfig{
			Addr:                   ":8000",
			AllowedOrigins:         []string{"*"},
			ContributionsPerMinute: 5,
			ShutdownTimeout:        10 * time.Second,
		},
		MCP: MCPConfig{Addr: ":8001"},
		Google: GoogleConfig{
			Desktop: google.DesktopConfig{
				RedirectURL: "http://localhost:8080/callback",
				DeepLink:    "teller://auth",
			},
			Web:     google.WebConfig{SessionTTL: 8 * time.Hour},
			WebAddr: ":5000",
		},
	}
}

// envBindings maps environment variables to config paths.
var envBindings = map[string]string{
	"TELLER_LOG_LEVEL":                "log.level",
	"TELLER_LOG_FORMAT":               "log.format",
	"TELLER_MAX_STEPS":                "engine.max_steps",
	"TELLER_MAX_INPUT_SIZE":           "engine.max_input_size",
	"TELLER_STORE":                    "store.driver",
	"TELLER_STORE_PATH":               "store.path",
	"TELLER_REDIS_ADDR":               "store.redis.addr",
	"TELLER_REDIS_PASSWORD":           "store.redis.password",
	"TELLER_REDIS_DB":                 "store.redis.db",
	"TELLER_REDIS_TTL":                "store.redis.ttl",
	"TELLER_ENCRYPTION_KEY":           "store.encryption_key",
	"TELLER_ENCRYPTION_FALLBACK_KEYS": "store.fallback_keys",
	"TELLER_MASK_PII":                 "store.mask_pii",
	"TELLER_OLLAMA_HOST":              "llm.host",
	"TELLER_OLLAMA_MODEL":             "llm.model",
	"TELLER_OLLAMA_TIMEOUT":           "llm.timeout",
	"TELLER_ROUTER_DEFAULT":           "router.default",
	"TELLER_ROUTER_USE_MODEL":         "router.use_model",
	"TELLER_HTTP_ADDR":                "http.addr",
	"TELLER_HTTP_ALLOWED_ORIGINS":     "http.allowed_origins",
	"TELLER_MCP_ADDR":                 "mcp.addr",
	"TELLER_MCP_BASE_URL":             "mcp.base_url",
	"TAVILY_API_KEY":                  "search.api_key",

	"GOOGLE_OAUTH_DESKTOP_APP_CLIENT_ID":        "google.desktop.client_id",
	"GOOGLE_OAUTH_DESKTOP_APP_REDIRECT_URI":     "google.desktop.redirect_url",
	"GOOGLE_OAUTH_DESKTOP_APP_DEEP_LINK_SCHEME": "google.desktop.deep_link",
	"GOOGLE_OAUTH_WEB_APP_CLIENT_ID":            "google.web.client_id",
	"GOOGLE_OAUTH_WEB_APP_CLIENT_SECRET":        "google.web.client_secret",
	"GOOGLE_OAUTH_WEB_APP_REDIRECT_URI":         "google.web.redirect_url",
	"GOOGLE_OAUTH_WEB_APP_SESSION_KEY":          "google.web.session_key",
}

// Load reads path (optional, may be empty) and overlays the process
// environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		raw := map[string]any{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := decode(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	env := map[string]any{}
	for name, key := range envBindings {
		if v, ok := lookup(name); ok && v != "" {
			set(env, strings.Split(key, "."), v)
		}
	}
	if err := decode(env, &cfg); err != nil {
		return cfg, fmt.Errorf("decode environment: %w", err)
	}

	return cfg, cfg.Validate()
}

func decode(input map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func set(m map[string]any, path []string, v string) {
	for _, k := range path[:len(path)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// Validate checks the values that would otherwise fail deep inside a
// constructor.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory, DriverFile, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if c.Store.Driver == DriverFile && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path: required for the file driver"))
	}
	if c.Engine.MaxSteps < 0 {
		errs = append(errs, errors.New("engine.max_steps: must not be negative"))
	}
	if c.HTTP.ContributionsPerMinute <= 0 {
		errs = append(errs, errors.New("http.contributions_per_minute: must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
