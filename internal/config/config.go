package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the inbox daemon.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	API      APIConfig
	Session  SessionConfig
	Meta     MetaConfig
	Events   EventsConfig
	Media    MediaConfig
	Realtime RealtimeConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// APIConfig describes the remote CRM backend.
type APIConfig struct {
	// BaseURLs are tried in rotation; more than one enables failover.
	BaseURLs []string
	// Prefix is prepended to every endpoint path (e.g. "/api").
	Prefix        string
	Timeout       time.Duration
	FailThreshold int
	Cooldown      time.Duration

	// LogoutRoute is where the client navigates after a 401.
	LogoutRoute string
}

// SessionConfig selects the durable token store.
// Accepts: memory, file, redis, postgres
type SessionConfig struct {
	Backend     string
	FilePath    string
	RedisAddr   string
	PostgresDSN string
}

// MetaConfig drives the WhatsApp embedded-signup login.
type MetaConfig struct {
	AppID        string
	ConfigID     string
	GraphVersion string
	Scope        string
	// CallbackAddr is the local listener receiving the OAuth redirect.
	CallbackAddr string
	RedirectURL  string
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type MediaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type RealtimeConfig struct {
	Enabled bool
}

const (
	defaultAPIPrefix    = "/api"
	defaultLogoutRoute  = "/logout"
	defaultGraphVersion = "v21.0"
	defaultScope        = "whatsapp_business_management,whatsapp_business_messaging,business_management"
	defaultCallbackAddr = "127.0.0.1:8765"
	defaultExchange     = "estate.events"
	defaultBucket       = "inbox-media"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.API.BaseURLs = splitList(os.Getenv("API_BASE_URL"))
	c.API.Prefix = envOr("API_PREFIX", defaultAPIPrefix)
	c.API.Timeout = mustDuration("API_TIMEOUT")
	c.API.FailThreshold = optionalInt("API_FAIL_THRESHOLD")
	c.API.Cooldown = mustDuration("API_COOLDOWN")
	c.API.LogoutRoute = envOr("LOGOUT_ROUTE", defaultLogoutRoute)

	c.Session.Backend = strings.ToLower(envOr("SESSION_BACKEND", "memory"))
	c.Session.FilePath = strings.TrimSpace(os.Getenv("SESSION_FILE"))
	c.Session.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	c.Session.PostgresDSN = os.Getenv("DATABASE_URL")

	c.Meta.AppID = strings.TrimSpace(os.Getenv("META_APP_ID"))
	c.Meta.ConfigID = strings.TrimSpace(os.Getenv("META_CONFIG_ID"))
	c.Meta.GraphVersion = envOr("META_GRAPH_VERSION", defaultGraphVersion)
	c.Meta.Scope = envOr("META_SCOPE", defaultScope)
	c.Meta.CallbackAddr = envOr("META_CALLBACK_ADDR", defaultCallbackAddr)
	c.Meta.RedirectURL = strings.TrimSpace(os.Getenv("META_REDIRECT_URL"))

	c.Events.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	c.Events.Exchange = envOr("AMQP_EXCHANGE", defaultExchange)

	c.Media.Endpoint = strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	c.Media.AccessKey = strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	c.Media.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	c.Media.Bucket = envOr("MINIO_BUCKET", defaultBucket)
	c.Media.UseSSL = envBool("MINIO_USE_SSL")

	c.Realtime.Enabled = envBool("REALTIME_ENABLED")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration and fills defaults for optional values.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if len(c.API.BaseURLs) == 0 {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	}
	for _, raw := range c.API.BaseURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("API_BASE_URL entries must be absolute http(s) URLs, got %q", raw))
			continue
		}
		if c.IsProduction() && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("API_BASE_URL must use https in production, got %q", raw))
		}
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.LogoutRoute == "" {
		c.API.LogoutRoute = defaultLogoutRoute
	}

	switch c.Session.Backend {
	case "", "memory":
		c.Session.Backend = "memory"
	case "file":
		if c.Session.FilePath == "" {
			errs = append(errs, errors.New("SESSION_FILE is required when SESSION_BACKEND=file"))
		}
	case "redis":
		if c.Session.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when SESSION_BACKEND=redis"))
		}
	case "postgres":
		if strings.TrimSpace(c.Session.PostgresDSN) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when SESSION_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND must be one of memory, file, redis, postgres, got %q", c.Session.Backend))
	}

	if c.IsProduction() && c.Session.Backend == "memory" {
		errs = append(errs, errors.New("SESSION_BACKEND=memory is not allowed in production"))
	}

	if c.Meta.AppID != "" && c.Meta.CallbackAddr == "" {
		errs = append(errs, errors.New("META_CALLBACK_ADDR is required when META_APP_ID is set"))
	}
	if c.Meta.RedirectURL == "" && c.Meta.CallbackAddr != "" {
		c.Meta.RedirectURL = "http://" + c.Meta.CallbackAddr + "/oauth/callback"
	}

	if c.Media.Endpoint != "" && (c.Media.AccessKey == "" || c.Media.SecretKey == "") {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// LinkingEnabled reports whether the WhatsApp login flow can run.
func (c Config) LinkingEnabled() bool {
	return c.Meta.AppID != ""
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
