package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/lintd/errors"
)

func TestRenderDefaults(t *testing.T) {
	data, err := Render(Defaults())
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, "port = 2222")
	assert.Contains(t, out, "[supervisor]")

	var back Config
	require.NoError(t, toml.Unmarshal(data, &back))
	assert.Equal(t, *Defaults(), back)
}

func TestSetValueWritesAndRotatesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lintd", "am.toml")

	require.NoError(t, SetValue(path, "server.port", "3000"))
	require.NoError(t, SetValue(path, "daemon.auto_start", "false"))
	require.NoError(t, SetValue(path, "engine.command", "lintserver {port}"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string]interface{}
	require.NoError(t, toml.Unmarshal(data, &raw))
	assert.EqualValues(t, 3000, raw["server"]["port"])
	assert.Equal(t, false, raw["daemon"]["auto_start"])
	assert.Equal(t, "lintserver {port}", raw["engine"]["command"])

	// Three writes after the first leave two backups
	assert.FileExists(t, path+".back1")
	assert.FileExists(t, path+".back2")
	assert.NoFileExists(t, path+".back3")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.False(t, cfg.Daemon.AutoStart)
}

func TestSetValueRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")

	err := SetValue(path, "server.colour", "blue")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.NotEmpty(t, errors.GetAllHints(err))

	err = SetValue(path, "port", "1")
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestSetValueEngineEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, SetValue(path, "engine.env.JULIA_NUM_THREADS", "4"))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "4", cfg.EngineEnv()["JULIA_NUM_THREADS"])
}

func TestIsBackupFile(t *testing.T) {
	assert.True(t, isBackupFile("/x/am.toml.back1"))
	assert.True(t, isBackupFile("lintd.toml.back3"))
	assert.False(t, isBackupFile("am.toml"))
	assert.False(t, isBackupFile("am.toml.backup"))
}
