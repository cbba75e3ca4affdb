package am

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConfigWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lintd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 3000\n"), 0o644))

	cw, err := NewConfigWatcher(path, func() (*Config, error) { return LoadFromFile(path) },
		zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	cw.SetDebouncePeriod(20 * time.Millisecond)

	reloaded := make(chan *Config, 4)
	cw.OnReload(func(cfg *Config) error {
		reloaded <- cfg
		return nil
	})
	cw.Start()
	defer cw.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 4000\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 4000, cfg.Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestConfigWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lintd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 3000\n"), 0o644))

	cw, err := NewConfigWatcher(path, func() (*Config, error) { return LoadFromFile(path) },
		zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	cw.SetDebouncePeriod(10 * time.Millisecond)

	reloaded := make(chan *Config, 4)
	cw.OnReload(func(cfg *Config) error {
		reloaded <- cfg
		return nil
	})
	cw.Start()
	defer cw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path+".back1", []byte("x"), 0o644))

	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestOwnWriteFlagIsConsumedOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lintd.toml")
	cw, err := NewConfigWatcher(path, nil, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer cw.Stop()

	assert.False(t, cw.checkOwnWrite())
	cw.MarkOwnWrite()
	assert.True(t, cw.checkOwnWrite())
	assert.False(t, cw.checkOwnWrite())
}

func TestIntrospectReportsSources(t *testing.T) {
	home, _ := isolate(t)
	writeFile(t, filepath.Join(home, ".lintd", "am.toml"), "[daemon]\nwarmup_ms = 250\n")

	_, err := Load()
	require.NoError(t, err)

	settings := Introspect()
	byKey := make(map[string]SettingInfo, len(settings))
	for _, s := range settings {
		byKey[s.Key] = s
	}

	require.Contains(t, byKey, "daemon.warmup_ms")
	assert.Equal(t, SourceUser, byKey["daemon.warmup_ms"].Source)
	assert.EqualValues(t, 250, byKey["daemon.warmup_ms"].Value)
	assert.Equal(t, SourceDefault, byKey["server.port"].Source)
}
