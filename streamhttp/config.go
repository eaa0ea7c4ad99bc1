package streamhttp

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Config describes one HTTP listener. Env names follow the FORGE_MCP_
// prefix and every field can be overridden by a flag in cmd.
type Config struct {
	// BindHost and Port form the listen address.
	BindHost string `env:"FORGE_MCP_HTTP_HOST,default=127.0.0.1"`
	Port     int    `env:"FORGE_MCP_HTTP_PORT,default=8090"`

	// EndpointPath is the primary MCP endpoint.
	EndpointPath string `env:"FORGE_MCP_HTTP_PATH,default=/mcp"`

	// CutoverPath is an optional second MCP endpoint used to migrate
	// clients during credential or path rollovers. Sessions are bound
	// to the endpoint that created them.
	CutoverPath string `env:"FORGE_MCP_HTTP_CUTOVER_PATH"`

	// Token guards the primary endpoint. Empty disables auth there.
	Token string `env:"FORGE_MCP_HTTP_TOKEN"`

	// CutoverToken guards the cutover endpoint. Empty falls back to
	// Token; a cutover endpoint with neither is a startup error.
	CutoverToken string `env:"FORGE_MCP_HTTP_CUTOVER_TOKEN"`

	// RequireAuth makes a non-loopback bind without a token a startup
	// error instead of a loud warning.
	RequireAuth bool `env:"FORGE_MCP_HTTP_REQUIRE_AUTH,default=false"`

	TLSCertFile string `env:"FORGE_MCP_HTTP_TLS_CERT"`
	TLSKeyFile  string `env:"FORGE_MCP_HTTP_TLS_KEY"`

	// AllowedOrigins restricts browser-originated requests. Empty
	// allows any Origin. Entries match the full Origin value.
	AllowedOrigins []string `env:"FORGE_MCP_HTTP_ALLOWED_ORIGINS"`

	// AllowedHosts restricts the Host header. Empty allows any.
	AllowedHosts []string `env:"FORGE_MCP_HTTP_ALLOWED_HOSTS"`

	// MaxSessions bounds the session table. Zero means the default.
	MaxSessions int `env:"FORGE_MCP_HTTP_MAX_SESSIONS,default=50"`

	// IdleTimeout reaps sessions with no traffic. Zero disables the
	// sweeper.
	IdleTimeout time.Duration `env:"FORGE_MCP_HTTP_IDLE_TIMEOUT"`

	// MetadataPath serves the protected-resource-metadata document
	// locally when set.
	MetadataPath string `env:"FORGE_MCP_HTTP_METADATA_PATH"`

	// ResourceMetadataURL is advertised in bearer challenges. When
	// empty and MetadataPath is set, the URL is derived per request.
	ResourceMetadataURL string `env:"FORGE_MCP_HTTP_RESOURCE_METADATA_URL"`

	// AuthServers and Scopes populate the metadata document. Nothing
	// is synthesized from them; token issuance stays external.
	AuthServers []string `env:"FORGE_MCP_HTTP_AUTH_SERVERS"`
	Scopes      []string `env:"FORGE_MCP_HTTP_SCOPES"`
}

const defaultMaxSessions = 50

// Validate normalizes defaults and rejects configurations that must
// not reach the listener.
func (c *Config) Validate() error {
	if c.BindHost == "" {
		c.BindHost = "127.0.0.1"
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("streamhttp: port %d out of range", c.Port)
	}

	if c.EndpointPath == "" {
		c.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(c.EndpointPath, "/") {
		return fmt.Errorf("streamhttp: endpoint path %q must start with /", c.EndpointPath)
	}
	if c.EndpointPath == "/" {
		return fmt.Errorf("streamhttp: endpoint path must not be the root path")
	}

	if c.CutoverPath != "" {
		if !strings.HasPrefix(c.CutoverPath, "/") || c.CutoverPath == "/" {
			return fmt.Errorf("streamhttp: cutover path %q must be a non-root path", c.CutoverPath)
		}
		if c.CutoverPath == c.EndpointPath {
			return fmt.Errorf("streamhttp: cutover path must differ from endpoint path %q", c.EndpointPath)
		}
		if c.CutoverToken == "" && c.Token == "" {
			return fmt.Errorf("streamhttp: cutover endpoint requires a token (its own or the primary's)")
		}
	} else if c.CutoverToken != "" {
		return fmt.Errorf("streamhttp: cutover token set without a cutover path")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("streamhttp: TLS requires both a certificate and a key file")
	}

	if c.MetadataPath != "" {
		if !strings.HasPrefix(c.MetadataPath, "/") || c.MetadataPath == "/" {
			return fmt.Errorf("streamhttp: metadata path %q must be a non-root path", c.MetadataPath)
		}
		if c.MetadataPath == c.EndpointPath || c.MetadataPath == c.CutoverPath {
			return fmt.Errorf("streamhttp: metadata path %q collides with an MCP endpoint", c.MetadataPath)
		}
	}

	if c.MaxSessions < 0 {
		return fmt.Errorf("streamhttp: max sessions must not be negative")
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = defaultMaxSessions
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("streamhttp: idle timeout must not be negative")
	}

	if c.RequireAuth && c.Token == "" && !c.loopback() {
		return fmt.Errorf("streamhttp: refusing public bind %s without a token", c.BindHost)
	}
	return nil
}

// PublicWithoutAuth reports whether the listener accepts unauthorized
// traffic from beyond loopback. Callers log this loudly at startup.
func (c *Config) PublicWithoutAuth() bool {
	return c.Token == "" && !c.loopback()
}

func (c *Config) loopback() bool {
	host := c.BindHost
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindHost, fmt.Sprintf("%d", c.Port))
}

// TLSEnabled reports whether the listener terminates TLS itself.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// endpointToken resolves the bearer token guarding an endpoint.
func (c *Config) endpointToken(kind endpointKind) string {
	if kind == endpointCutover && c.CutoverToken != "" {
		return c.CutoverToken
	}
	return c.Token
}
