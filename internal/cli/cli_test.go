package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/internal/testutils"
	"github.com/aretw0/stagehand/pkg/adapters/file"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/persistence/middleware"
	"github.com/aretw0/stagehand/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return m.Called(ctx, topic, payload).Error(0)
}

func testSettings(t *testing.T) *settings.Settings {
	t.Helper()
	s := settings.Default()
	s.TickInterval = time.Millisecond
	s.Simulation.Step = 0.5
	s.Simulation.BlendTicks = 1
	s.Scenes = []domain.SceneEntry{
		{Identifier: "Menu", Units: []string{"MenuRoot"}, ParameterAllowNull: true},
		{Identifier: "Game", Units: []string{"World", "HUD"}, ParameterType: "game.Session"},
	}
	s.ParameterInitialData = map[string]map[string]any{"game.Session": {"lives": 3}}
	return s
}

func build(t *testing.T, s *settings.Settings, opts BuildOptions) *App {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	app, err := Build(context.Background(), s, opts)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestBuild_SystemDisabled(t *testing.T) {
	s := testSettings(t)
	s.UseSystem = false
	_, err := Build(context.Background(), s, BuildOptions{Logger: logging.NewNop()})
	assert.ErrorIs(t, err, ErrSystemDisabled)
}

func TestRun_Steps(t *testing.T) {
	s := testSettings(t)
	s.InitialState = "Menu"
	app := build(t, s, BuildOptions{})

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := Run(ctx, app, RunOptions{
		Out: &out,
		Steps: []Step{
			{Identifier: "Game", ParameterType: "game.Session", Parameters: map[string]any{"level": 2}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Game", app.Engine.CurrentState())
	assert.Contains(t, out.String(), "Menu committed")
	assert.Contains(t, out.String(), "Game committed")

	rec, err := app.Engine.Parameters().GetOrCreate("game.Session")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Snapshot()["lives"])
	assert.Equal(t, "World", app.Host.ActiveUnit())
}

func TestRun_StopsAtFailure(t *testing.T) {
	app := build(t, testSettings(t), BuildOptions{})

	var out bytes.Buffer
	err := Run(context.Background(), app, RunOptions{
		Out:   &out,
		Steps: []Step{{Identifier: "Nowhere"}, {Identifier: "Menu"}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, app.Engine.CurrentState())
	assert.Contains(t, out.String(), "Nowhere failed")
}

func TestBoot_ResumesFromFileStore(t *testing.T) {
	s := testSettings(t)
	s.Store.Backend = "file"
	s.Store.Path = t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := build(t, s, BuildOptions{})
	require.NoError(t, Run(ctx, first, RunOptions{
		Out:   &bytes.Buffer{},
		Steps: []Step{{Identifier: "Game", ParameterType: "game.Session", Parameters: map[string]any{"level": 7}}},
	}))

	s.InitialState = "Menu"
	second := build(t, s, BuildOptions{})
	target, finished, err := second.Boot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Game", target, "the persisted state wins over initial_state")

	stop := second.Start(ctx)
	require.NoError(t, Await(ctx, finished))
	cancel()
	stop()

	assert.Equal(t, "Game", second.Engine.CurrentState())
	rec, err := second.Engine.Parameters().GetOrCreate("game.Session")
	require.NoError(t, err)
	assert.EqualValues(t, 7, rec.Snapshot()["level"])
}

func TestBoot_ResumesFromEncryptedStore(t *testing.T) {
	s := testSettings(t)
	s.Store.Backend = "file"
	s.Store.Path = t.TempDir()
	s.Store.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	s.Store.MaskKeys = []string{"password"}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := build(t, s, BuildOptions{})
	require.NoError(t, Run(ctx, first, RunOptions{
		Out: &bytes.Buffer{},
		Steps: []Step{{
			Identifier:    "Game",
			ParameterType: "game.Session",
			Parameters:    map[string]any{"level": 4, "password": "hunter2"},
		}},
	}))

	raw, err := file.New(s.Store.Path).Load(ctx, s.Store.Key)
	require.NoError(t, err)
	assert.Equal(t, middleware.EnvelopeCurrent, raw.Current)

	second := build(t, s, BuildOptions{})
	target, finished, err := second.Boot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Game", target)

	stop := second.Start(ctx)
	require.NoError(t, Await(ctx, finished))
	cancel()
	stop()

	rec, err := second.Engine.Parameters().GetOrCreate("game.Session")
	require.NoError(t, err)
	assert.EqualValues(t, 4, rec.Snapshot()["level"])
	assert.Equal(t, middleware.Masked, rec.Snapshot()["password"])
}

func TestBuild_InvalidEncryptionKey(t *testing.T) {
	s := testSettings(t)
	s.Store.EncryptionKey = "c2hvcnQ="
	_, err := Build(context.Background(), s, BuildOptions{Logger: logging.NewNop()})
	assert.Error(t, err)
}

func TestBuild_ForwardsEventsToPublisher(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := testSettings(t)
	s.MQTT.TopicPrefix = "arcade"
	app := build(t, s, BuildOptions{Publisher: pub})
	require.NotNil(t, app.Forwarder)

	require.NoError(t, Run(context.Background(), app, RunOptions{
		Out:   &bytes.Buffer{},
		Steps: []Step{{Identifier: "Menu"}},
	}))

	pub.AssertCalled(t, "Publish", mock.Anything, "arcade/commit", mock.Anything)
}

func TestBuild_LoamScenes(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"Credits.md": "---\nunits: [CreditsRoll]\n---\nRoll the credits",
	})

	s := testSettings(t)
	s.ScenesDir = dir
	app := build(t, s, BuildOptions{})

	assert.True(t, app.Engine.Registry().Exists("Credits"))
	assert.True(t, app.Engine.Registry().Exists("Menu"))
}

func TestValidate(t *testing.T) {
	s := testSettings(t)
	s.Scenes = append(s.Scenes,
		domain.SceneEntry{Identifier: "Menu", Units: []string{"Other"}},
		domain.SceneEntry{Identifier: "Empty"},
	)
	s.InitialState = "Title"
	s.ParameterInitialData["shop.Cart"] = map[string]any{}

	problems, err := Validate(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, problems, 4)
	assert.ErrorIs(t, problems[0], domain.ErrRegistryConflict)

	clean, err := Validate(context.Background(), testSettings(t))
	require.NoError(t, err)
	assert.Empty(t, clean)
}
