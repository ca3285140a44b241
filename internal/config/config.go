// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	PlatformTeacher = "teacher"
	PlatformStudent = "student"
)

type Config struct {
	App           AppConfig           `koanf:"app"`
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Redis         RedisConfig         `koanf:"redis"`
	JWT           JWTConfig           `koanf:"jwt"`
	SessionCookie SessionCookieConfig `koanf:"session_cookie"`
	Reset         ResetConfig         `koanf:"reset"`
	SSO           SSOConfig           `koanf:"sso"`
	Gate          GateConfig          `koanf:"gate"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	CORS          CORSConfig          `koanf:"cors"`
	Log           LogConfig           `koanf:"log"`
	Otel          OtelConfig          `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	// Platform is the application this process serves: teacher or student.
	Platform string `koanf:"platform"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	// AutoMigrate applies pending schema migrations before serving.
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath string        `koanf:"private_key_path"`
	PublicKeyPath  string        `koanf:"public_key_path"`
	SessionExpire  time.Duration `koanf:"session_expire"`
	Issuer         string        `koanf:"issuer"`
	Audience       string        `koanf:"audience"`
}

type SessionCookieConfig struct {
	Name     string `koanf:"name"`
	Domain   string `koanf:"domain"`
	Path     string `koanf:"path"`
	Secure   bool   `koanf:"secure"`
	SameSite string `koanf:"same_site"`
}

type ResetConfig struct {
	TokenTTL time.Duration `koanf:"token_ttl"`
	// URLBase is the page the emailed link points at; the secret is
	// appended as the token query parameter.
	URLBase string `koanf:"url_base"`
	// Requests per hour per client IP on forgot/reset endpoints.
	RateLimit int `koanf:"rate_limit"`
	// ResponseFloor pads forgot-password so timing does not reveal
	// whether the account exists.
	ResponseFloor time.Duration `koanf:"response_floor"`
}

type SSOConfig struct {
	TokenTTL     time.Duration     `koanf:"token_ttl"`
	ReceiverPath string            `koanf:"receiver_path"`
	SuccessPath  string            `koanf:"success_path"`
	AppURLs      map[string]string `koanf:"app_urls"`
	LoginURLs    map[string]string `koanf:"login_urls"`
}

type GateConfig struct {
	LoginPath           string   `koanf:"login_path"`
	UpgradePath         string   `koanf:"upgrade_path"`
	PendingApprovalPath string   `koanf:"pending_approval_path"`
	PublicPrefixes      []string `koanf:"public_prefixes"`
	PremiumPrefixes     []string `koanf:"premium_prefixes"`
	ApprovalPrefixes    []string `koanf:"approval_prefixes"`
	// UpstreamURL is the application UI the gate fronts. Empty means gated
	// paths answer 404 after the gate has run.
	UpstreamURL         string   `koanf:"upstream_url"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads defaults, then the YAML file, then the environment. The result
// is cached for the life of the process.
func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Edu Auth",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.platform":    PlatformStudent,

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       false,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.session_expire":   "24h",
		"jwt.issuer":           "edu-auth",
		"jwt.audience":         "edu-platform",
		"jwt.private_key_path": "keys/private.pem",
		"jwt.public_key_path":  "keys/public.pem",

		"session_cookie.name":      "session",
		"session_cookie.path":      "/",
		"session_cookie.secure":    true,
		"session_cookie.same_site": "lax",

		"reset.token_ttl":      "1h",
		"reset.url_base":       "http://localhost:3000/reset-password",
		"reset.rate_limit":     10,
		"reset.response_floor": "250ms",

		"sso.token_ttl":     "5m",
		"sso.receiver_path": "/sso",
		"sso.success_path":  "/dashboard",
		"sso.app_urls": map[string]any{
			PlatformTeacher: "http://localhost:3002",
			PlatformStudent: "http://localhost:3001",
		},
		"sso.login_urls": map[string]any{
			PlatformTeacher: "http://localhost:3002/login",
			PlatformStudent: "http://localhost:3001/login",
		},

		"gate.login_path":            "/login",
		"gate.upgrade_path":          "/pricing",
		"gate.pending_approval_path": "/pending-approval",
		"gate.public_prefixes": []string{
			"/login",
			"/sso",
			"/static",
			"/assets",
			"/v1",
			"/healthz",
			"/livez",
			"/readyz",
			"/.well-known",
			"/pricing",
			"/pending-approval",
			"/reset-password",
			"/forgot-password",
		},
		"gate.premium_prefixes":  []string{"/premium"},
		"gate.approval_prefixes": []string{},

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"cors.allowed_origins": []string{
			"http://localhost:3000",
			"http://localhost:3001",
			"http://localhost:3002",
		},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "edu-auth",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"PLATFORM":                    "app.platform",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_SESSION_EXPIRE":          "jwt.session_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"SESSION_COOKIE_DOMAIN":       "session_cookie.domain",
	"SESSION_COOKIE_SECURE":       "session_cookie.secure",
	"RESET_TOKEN_TTL":             "reset.token_ttl",
	"RESET_URL_BASE":              "reset.url_base",
	"RESET_RESPONSE_FLOOR":        "reset.response_floor",
	"SSO_TOKEN_TTL":               "sso.token_ttl",
	"SSO_TEACHER_APP_URL":         "sso.app_urls.teacher",
	"SSO_STUDENT_APP_URL":         "sso.app_urls.student",
	"SSO_TEACHER_LOGIN_URL":       "sso.login_urls.teacher",
	"SSO_STUDENT_LOGIN_URL":       "sso.login_urls.student",
	"GATE_UPSTREAM_URL":           "gate.upstream_url",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.App.Platform != PlatformTeacher && c.App.Platform != PlatformStudent {
		return fmt.Errorf(
			"app.platform must be %q or %q, got %q",
			PlatformTeacher,
			PlatformStudent,
			c.App.Platform,
		)
	}

	for _, platform := range []string{PlatformTeacher, PlatformStudent} {
		if c.SSO.AppURLs[platform] == "" {
			return fmt.Errorf("sso.app_urls.%s is required", platform)
		}
		if c.SSO.LoginURLs[platform] == "" {
			return fmt.Errorf("sso.login_urls.%s is required", platform)
		}
	}

	if c.Reset.TokenTTL <= 0 {
		return fmt.Errorf("reset.token_ttl must be positive")
	}

	if c.SSO.TokenTTL <= 0 {
		return fmt.Errorf("sso.token_ttl must be positive")
	}

	if c.JWT.SessionExpire <= 0 {
		return fmt.Errorf("jwt.session_expire must be positive")
	}

	if !strings.HasPrefix(c.SSO.ReceiverPath, "/") {
		return fmt.Errorf("sso.receiver_path must start with '/'")
	}

	if !hasPrefixEntry(c.Gate.PublicPrefixes, c.SSO.ReceiverPath) {
		return fmt.Errorf(
			"gate.public_prefixes must include the sso receiver path %q",
			c.SSO.ReceiverPath,
		)
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if !c.SessionCookie.Secure {
			return fmt.Errorf("SESSION_COOKIE_SECURE must be true in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func hasPrefixEntry(prefixes []string, path string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// OriginPlatform is the sibling application that issues handoff tokens to
// this one.
func (c *Config) OriginPlatform() string {
	if c.App.Platform == PlatformTeacher {
		return PlatformStudent
	}
	return PlatformTeacher
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
