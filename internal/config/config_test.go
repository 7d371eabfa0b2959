package config

import (
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("storage:\n  root: /srv/bulgur\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Log.Level != "info" {
		t.Errorf("log level = %q, want info", c.Log.Level)
	}
	if c.KV.Backend != "sqlite" {
		t.Errorf("kv backend = %q, want sqlite", c.KV.Backend)
	}
	if c.KV.Path == "" {
		t.Error("kv path default missing")
	}
	if c.HTTP.Port != 8000 {
		t.Errorf("port = %d, want 8000", c.HTTP.Port)
	}
	if c.Auth.LoginRatePerMinute != 10 || c.Auth.LoginBurst != 10 {
		t.Errorf("login throttle defaults = %d/%d", c.Auth.LoginRatePerMinute, c.Auth.LoginBurst)
	}
}

func TestParseFull(t *testing.T) {
	src := `
log:
  level: debug
  json: true
storage:
  root: /srv/data
kv:
  backend: badger
  path: /srv/kv
http:
  bind: 0.0.0.0
  port: 9000
  max_upload_mb: 64
  trusted_proxy_header: X-Forwarded-For
auth:
  login_rate_per_minute: 5
  login_burst: 3
`
	c, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.KV.Backend != "badger" || c.KV.Path != "/srv/kv" {
		t.Errorf("kv = %+v", c.KV)
	}
	if c.HTTP.TrustedProxyHeader != "X-Forwarded-For" {
		t.Errorf("proxy header = %q", c.HTTP.TrustedProxyHeader)
	}
	if c.Auth.LoginBurst != 3 {
		t.Errorf("burst = %d", c.Auth.LoginBurst)
	}
}

func TestParseRejectsBadBackend(t *testing.T) {
	_, err := Parse([]byte("storage:\n  root: /srv\nkv:\n  backend: redis\n"))
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "Backend") {
		t.Errorf("error = %v", err)
	}
}

func TestParseRejectsBadPort(t *testing.T) {
	_, err := Parse([]byte("storage:\n  root: /srv\nhttp:\n  port: 70000\n"))
	if err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestMemoryBackendNeedsNoPath(t *testing.T) {
	c, err := Parse([]byte("storage:\n  root: /srv\nkv:\n  backend: memory\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.KV.Path != "" {
		t.Errorf("memory backend got path %q", c.KV.Path)
	}
}
