// Package config handles CLI, environment and TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// DefaultUpstreamURL is the VWorld WFS endpoint.
const DefaultUpstreamURL = "https://api.vworld.kr/req/wfs"

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/wfs-proxy/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config            string           `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host              string           `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port              int              `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	APIKey            string           `kong:"help='VWorld API key (overrides config).',env='VWORLD_API_KEY'"`
	Domain            string           `kong:"help='Domain registered with the VWorld key (overrides config).',env='VWORLD_DOMAIN'"`
	AllowClientDomain bool             `kong:"help='Let callers supply their own domain parameter.',env='ALLOW_CLIENT_DOMAIN'"`
	StaticRoot        string           `kong:"help='Directory served for non-API paths (overrides config).',env='STATIC_ROOT'"`
	LogLevel          string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Version           kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	VWorld   VWorldConfig   `toml:"vworld"`
	Upstream UpstreamConfig `toml:"upstream"`
	Static   StaticConfig   `toml:"static"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"` // 0 means "use default" (5173); TOML cannot distinguish 0 from unset
	BodyMaxBytes  int64  `toml:"body_max_bytes"`
	ProxyProtocol bool   `toml:"proxy_protocol"`
}

// VWorldConfig is the server-held credential context. It is never sent to clients.
type VWorldConfig struct {
	APIKey            string `toml:"api_key"`
	Domain            string `toml:"domain"`
	AllowClientDomain bool   `toml:"allow_client_domain"`
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
	MaxBodyBytes    int64  `toml:"max_body_bytes"`
	UserAgent       string `toml:"user_agent"`
}

// StaticConfig controls the static front-end responder.
type StaticConfig struct {
	Root  string `toml:"root"`
	Index string `toml:"index"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// reservedRoutes cannot be shadowed by the metrics endpoint.
var reservedRoutes = []string{"/proxy/wfs", "/proxy/status", "/api/config", "/healthz"}

// Load reads the optional TOML config file and applies CLI/env overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/wfs-proxy/config.toml then configs/config.toml; finding neither is fine,
// the proxy then runs on defaults plus environment.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.APIKey != "" {
		c.VWorld.APIKey = cli.APIKey
	}
	if cli.Domain != "" {
		c.VWorld.Domain = cli.Domain
	}
	if cli.AllowClientDomain {
		c.VWorld.AllowClientDomain = true
	}
	if cli.StaticRoot != "" {
		c.Static.Root = cli.StaticRoot
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

// validate reports every problem at once rather than stopping at the first.
func (c *Config) validate() error {
	var errs error

	if strings.EqualFold(c.VWorld.APIKey, "YOUR_API_KEY_HERE") {
		errs = multierr.Append(errs, errors.New("vworld.api_key contains placeholder value; set a real key or leave it empty"))
	}

	// Upstream URL: must be HTTPS so the key never travels in plaintext.
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("upstream.base_url is not a valid URL: %w", err))
	} else if u.Scheme != "https" {
		errs = multierr.Append(errs, fmt.Errorf("upstream.base_url must use HTTPS; got %q", c.Upstream.BaseURL))
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port))
	}
	if c.Server.BodyMaxBytes < 0 {
		errs = multierr.Append(errs, fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes))
	}
	if c.Upstream.TimeoutSeconds < 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds))
	}
	if c.Upstream.IdleConnections < 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections))
	}
	if c.Upstream.MaxBodyBytes < 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream.max_body_bytes must be non-negative; got %d", c.Upstream.MaxBodyBytes))
	}

	if c.filePath != "" && within(c.Static.Root, c.filePath) {
		errs = multierr.Append(errs, fmt.Errorf("static.root %q contains the config file %q; it would be served to clients", c.Static.Root, c.filePath))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format))
	}

	if c.Metrics.Enabled {
		p := c.Metrics.Path
		if p[0] != '/' {
			errs = multierr.Append(errs, fmt.Errorf("metrics.path must start with '/'; got %q", p))
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				errs = multierr.Append(errs, fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved))
			}
		}
	}

	return errs
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5173
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamURL
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.MaxBodyBytes == 0 {
		c.Upstream.MaxBodyBytes = 32 << 20
	}
	if c.Upstream.UserAgent == "" {
		c.Upstream.UserAgent = "WindregViewer/1.0"
	}
	if c.Static.Root == "" {
		c.Static.Root = "web"
	}
	if c.Static.Index == "" {
		c.Static.Index = "index.html"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// within reports whether path lies inside dir once both are made absolute.
func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the upstream request bound.
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Configured reports whether an API key is present.
func (c *VWorldConfig) Configured() bool {
	return c.APIKey != ""
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}

// WarnCredentials logs when the proxy would forward requests VWorld will reject.
func (c *Config) WarnCredentials(logger *slog.Logger) {
	if !c.VWorld.Configured() {
		logger.Warn("VWORLD_API_KEY is not set; upstream requests will be rejected")
	}
	if c.VWorld.Domain == "" && !c.VWorld.AllowClientDomain {
		logger.Warn("VWORLD_DOMAIN is not set; upstream requests carry an empty domain")
	}
}
