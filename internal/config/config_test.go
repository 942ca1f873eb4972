package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPathAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "env: dev\n")

	cfg, err := LoadPath(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":5000", cfg.HTTP.Address)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, int64(10<<20), cfg.Uploads.MaxSize)
	assert.Equal(t, 256, cfg.Relay.SendBuffer)
	assert.Equal(t, 60*time.Second, cfg.Relay.PongWait)
	assert.Equal(t, 54*time.Second, cfg.Relay.PingPeriod)
	assert.NotEmpty(t, cfg.WebRTC.STUNServers)
}

func TestLoadPathReadsYAML(t *testing.T) {
	path := writeConfig(t, `
env: prod
http:
  address: ":9000"
  allowed_origins: ["*"]
database:
  driver: sqlite
  dsn: "file::memory:"
relay:
  pong_wait: 30s
  ping_period: 40s
webrtc:
  turn_servers:
    - urls: ["turn:turn.example.com:3478"]
      username: alice
      credential: secret
`)

	cfg, err := LoadPath(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Relay.PongWait)
	assert.Equal(t, 27*time.Second, cfg.Relay.PingPeriod, "ping period must stay below pong wait")
	assert.Empty(t, cfg.WebRTC.STUNServers)
}

func TestLoadPathEnvOverride(t *testing.T) {
	path := writeConfig(t, "http:\n  address: \":9000\"\n")
	t.Setenv("HTTP_ADDRESS", ":7000")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadPath(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Address)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadPathMissingFile(t *testing.T) {
	_, err := LoadPath(filepath.Join(t.TempDir(), "missing.yaml"))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), "does not exist")
}

func TestMustLoadPathPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() {
		MustLoadPath(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}

func TestICEServers(t *testing.T) {
	cfg := WebRTCConfig{
		STUNServers: []string{"stun:a", "stun:b"},
		TURNServers: []TURNServer{
			{URLs: []string{"turn:c"}, Username: "u", Credential: "p"},
			{},
		},
	}

	servers := cfg.ICEServers()
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:a", "stun:b"}, servers[0].URLs)
	assert.Equal(t, []string{"turn:c"}, servers[1].URLs)
	assert.Equal(t, "u", servers[1].Username)
	assert.Equal(t, webrtc.ICECredentialTypePassword, servers[1].CredentialType)
}
