package streamhttp

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "port out of range", cfg: Config{Port: 70000}, wantErr: true},
		{name: "relative endpoint path", cfg: Config{EndpointPath: "mcp"}, wantErr: true},
		{name: "root endpoint path", cfg: Config{EndpointPath: "/"}, wantErr: true},
		{name: "cutover equals primary", cfg: Config{EndpointPath: "/mcp", CutoverPath: "/mcp", Token: "x"}, wantErr: true},
		{name: "cutover without any token", cfg: Config{CutoverPath: "/mcp2"}, wantErr: true},
		{name: "cutover with own token", cfg: Config{CutoverPath: "/mcp2", CutoverToken: "y"}},
		{name: "cutover inherits primary token", cfg: Config{CutoverPath: "/mcp2", Token: "x"}},
		{name: "cutover token without path", cfg: Config{CutoverToken: "y"}, wantErr: true},
		{name: "cert without key", cfg: Config{TLSCertFile: "cert.pem"}, wantErr: true},
		{name: "key without cert", cfg: Config{TLSKeyFile: "key.pem"}, wantErr: true},
		{name: "cert and key", cfg: Config{TLSCertFile: "cert.pem", TLSKeyFile: "key.pem"}},
		{name: "relative metadata path", cfg: Config{MetadataPath: "meta"}, wantErr: true},
		{name: "metadata collides with endpoint", cfg: Config{EndpointPath: "/mcp", MetadataPath: "/mcp"}, wantErr: true},
		{name: "negative max sessions", cfg: Config{MaxSessions: -1}, wantErr: true},
		{name: "negative idle timeout", cfg: Config{IdleTimeout: -time.Second}, wantErr: true},
		{name: "require auth on public bind", cfg: Config{BindHost: "0.0.0.0", RequireAuth: true}, wantErr: true},
		{name: "require auth on loopback", cfg: Config{BindHost: "127.0.0.1", RequireAuth: true}},
		{name: "require auth with token", cfg: Config{BindHost: "0.0.0.0", RequireAuth: true, Token: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestConfigValidate_Defaults(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if cfg.EndpointPath != "/mcp" {
		t.Errorf("EndpointPath = %q, want /mcp", cfg.EndpointPath)
	}
	if cfg.MaxSessions != defaultMaxSessions {
		t.Errorf("MaxSessions = %d, want %d", cfg.MaxSessions, defaultMaxSessions)
	}
	if cfg.BindHost != "127.0.0.1" {
		t.Errorf("BindHost = %q, want 127.0.0.1", cfg.BindHost)
	}
}

func TestConfigPublicWithoutAuth(t *testing.T) {
	tests := []struct {
		host  string
		token string
		want  bool
	}{
		{host: "127.0.0.1", token: "", want: false},
		{host: "localhost", token: "", want: false},
		{host: "::1", token: "", want: false},
		{host: "0.0.0.0", token: "", want: true},
		{host: "0.0.0.0", token: "x", want: false},
		{host: "10.1.2.3", token: "", want: true},
	}
	for _, tt := range tests {
		cfg := Config{BindHost: tt.host, Token: tt.token}
		if got := cfg.PublicWithoutAuth(); got != tt.want {
			t.Errorf("PublicWithoutAuth() with bind %q token %q = %v, want %v", tt.host, tt.token, got, tt.want)
		}
	}
}

func TestEndpointToken(t *testing.T) {
	cfg := Config{Token: "primary", CutoverPath: "/v2", CutoverToken: "rotated"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if got := cfg.endpointToken(endpointPrimary); got != "primary" {
		t.Errorf("endpointToken(primary) = %q", got)
	}
	if got := cfg.endpointToken(endpointCutover); got != "rotated" {
		t.Errorf("endpointToken(cutover) = %q", got)
	}

	inherit := Config{Token: "primary", CutoverPath: "/v2"}
	if err := inherit.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if got := inherit.endpointToken(endpointCutover); got != "primary" {
		t.Errorf("endpointToken(cutover) without own token = %q, want primary", got)
	}
}
