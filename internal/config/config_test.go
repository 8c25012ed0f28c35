package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaults()
	cfg.Remote.URL = "https://store.example.com"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeBoth, cfg.Mode)
	assert.Equal(t, 5555, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Remote.PollInterval)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 576, cfg.Printer.WidthPx)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5555, cfg.Server.Port)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: local
server:
  port: 8900
printer:
  name: "Kitchen"
  address: 192.168.1.50
queue:
  max_retries: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, 8900, cfg.Server.Port)
	assert.Equal(t, "Kitchen", cfg.Printer.Name)
	assert.Equal(t, "192.168.1.50", cfg.Printer.Address)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Remote.PollInterval)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PRINTD_MODE", "remote")
	t.Setenv("PRINTD_PORT", "7000")
	t.Setenv("PRINTD_REMOTE_URL", "https://store.example.com")

	cfg := defaults()
	cfg.ApplyEnv()

	assert.Equal(t, ModeRemote, cfg.Mode)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "https://store.example.com", cfg.Remote.URL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"bad mode":           func(c *Config) { c.Mode = "offline" },
		"bad port":           func(c *Config) { c.Server.Port = 0 },
		"no printer address": func(c *Config) { c.Printer.Address = "" },
		"tiny width":         func(c *Config) { c.Printer.WidthPx = 4 },
		"no queue path":      func(c *Config) { c.Queue.Path = "" },
		"negative retries":   func(c *Config) { c.Queue.MaxRetries = -1 },
		"zero poll interval": func(c *Config) { c.Remote.PollInterval = 0 },
		"bad log level":      func(c *Config) { c.Logging.Level = "verbose" },
		"remote without url": func(c *Config) { c.Mode = ModeRemote; c.Remote.URL = "" },
		"zero recent limit":  func(c *Config) { c.History.RecentLimit = 0 },
	}

	for name, mutate := range cases {
		cfg := defaults()
		cfg.Remote.URL = "https://store.example.com"
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestModeSwitches(t *testing.T) {
	cfg := defaults()

	cfg.Mode = ModeRemote
	assert.True(t, cfg.RemoteEnabled())
	assert.False(t, cfg.LocalEnabled())

	cfg.Mode = ModeLocal
	assert.False(t, cfg.RemoteEnabled())
	assert.True(t, cfg.LocalEnabled())

	cfg.Mode = ModeBoth
	assert.True(t, cfg.RemoteEnabled())
	assert.True(t, cfg.LocalEnabled())
}
