package settings_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
startup_blend_state: hidden
use_switch_callbacks: false
tick_interval: 5ms
log_level: debug
scenes_dir: scenes
scenes:
  - identifier: Menu
    units: [MenuRoot]
    parameter_allow_null: true
  - identifier: Game
    units: [World, HUD]
    parameter_type: game.Session
parameter_initial_data:
  game.Session:
    lives: 3
store:
  backend: file
  path: ./state
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "stagehand.yaml", sample)

	s, err := settings.Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.BlendHidden, s.StartupBlendState)
	assert.True(t, s.UseBlendCallbacks, "defaults survive")
	assert.False(t, s.UseSwitchCallbacks)
	assert.Equal(t, 5*time.Millisecond, s.TickInterval)
	assert.Equal(t, domain.DefaultReadyThreshold, s.ReadyThreshold)
	require.Len(t, s.Scenes, 2)
	assert.Equal(t, []string{"World", "HUD"}, s.Scenes[1].Units)
	assert.Equal(t, "game.Session", s.Scenes[1].ParameterType)
	assert.Equal(t, 3, s.ParameterInitialData["game.Session"]["lives"])
	assert.Equal(t, filepath.Join(filepath.Dir(path), "scenes"), s.ScenesDir)
	assert.Equal(t, "file", s.Store.Backend)
}

func TestLoad_JSON(t *testing.T) {
	path := write(t, "stagehand.json", `{"ready_threshold": 0.8, "scenes": [{"identifier": "Menu", "units": ["MenuRoot"]}]}`)

	s, err := settings.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.8, s.ReadyThreshold)
	assert.Len(t, s.Scenes, 1)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := write(t, "stagehand.yaml", sample)
	t.Setenv("STAGEHAND_LOG_LEVEL", "warn")
	t.Setenv("STAGEHAND_STORE_BACKEND", "redis")
	t.Setenv("STAGEHAND_STORE_REDIS_ADDR", "cache:6379")
	t.Setenv("STAGEHAND_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("STAGEHAND_TICK_INTERVAL", "20ms")

	s, err := settings.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", s.LogLevel)
	assert.Equal(t, "redis", s.Store.Backend)
	assert.Equal(t, "cache:6379", s.Store.Redis.Addr)
	assert.Equal(t, "tcp://broker:1883", s.MQTT.Broker)
	assert.Equal(t, 20*time.Millisecond, s.TickInterval)
}

func TestLoad_Defaults(t *testing.T) {
	s, err := settings.Load("")
	require.NoError(t, err)
	assert.True(t, s.UseSystem)
	assert.Equal(t, "memory", s.Store.Backend)
	assert.Equal(t, ":8080", s.HTTP.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := settings.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = settings.Load(write(t, "stagehand.toml", "use_system = true"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = settings.Load(write(t, "bad.yaml", "ready_threshold: 2\nstartup_blend_state: sideways\nlog_level: loud\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "ready_threshold")
	assert.ErrorContains(t, err, "startup_blend_state")
	assert.ErrorContains(t, err, "log_level")
}

func TestValidate_StoreBackends(t *testing.T) {
	s := settings.Default()
	s.Store.Backend = "file"
	assert.ErrorContains(t, s.Validate(), "store.path")

	s.Store.Backend = "etcd"
	assert.ErrorContains(t, s.Validate(), "unknown store backend")
}

func TestValidate_StoreMiddlewares(t *testing.T) {
	s := settings.Default()
	s.Store.FallbackKeys = []string{"b2xk"}
	assert.ErrorContains(t, s.Validate(), "fallback_keys requires")

	s = settings.Default()
	s.Store.MaskKeys = []string{"("}
	assert.ErrorContains(t, s.Validate(), "mask_keys")
}

func TestLoad_StoreMiddlewareEnv(t *testing.T) {
	t.Setenv("STAGEHAND_STORE_MASK_KEYS", "password,token")
	t.Setenv("STAGEHAND_STORE_ENCRYPTION_KEY", "a2V5")

	s, err := settings.Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"password", "token"}, s.Store.MaskKeys)
	assert.Equal(t, "a2V5", s.Store.EncryptionKey)
}

func TestValidate_LogFormat(t *testing.T) {
	s := settings.Default()
	s.LogFormat = "json"
	assert.NoError(t, s.Validate())

	s.LogFormat = "xml"
	assert.ErrorContains(t, s.Validate(), "log_format")
}
