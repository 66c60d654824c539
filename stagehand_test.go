package stagehand_test

import (
	"context"
	"testing"

	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScenes = []domain.SceneEntry{
	{Identifier: "Menu", Units: []string{"MenuRoot"}, ParameterAllowNull: true},
	{Identifier: "Game", Units: []string{"World", "HUD"}, ParameterType: "game.Session"},
}

func drive(t *testing.T, eng *stagehand.Engine, host *memory.Host) {
	t.Helper()
	for i := 0; i < 200 && eng.Busy(); i++ {
		host.Tick()
		eng.Tick()
	}
	require.False(t, eng.Busy(), "transition stuck in %s", eng.State())
}

func TestNew_RequiresHost(t *testing.T) {
	_, err := stagehand.New(nil)
	assert.Error(t, err)
}

func TestEngine_TransitionWithParameters(t *testing.T) {
	host := memory.NewHost()
	eng, err := stagehand.New(host,
		stagehand.WithScenes(testScenes...),
		stagehand.WithInitialData("game.Session", params.InitialMap(map[string]any{"lives": 3})),
	)
	require.NoError(t, err)

	var finished error = assert.AnError
	err = eng.Transition(context.Background(), "Game",
		params.FromMap("game.Session", map[string]any{"level": 4}),
		stagehand.OnFinished(func(err error) { finished = err }),
	)
	require.NoError(t, err)
	drive(t, eng, host)

	assert.NoError(t, finished)
	assert.Equal(t, "Game", eng.CurrentState())
	assert.Equal(t, 1.0, eng.Progress())

	rec, err := eng.Parameters().GetOrCreate("game.Session")
	require.NoError(t, err)
	level, err := params.Get[int](rec, "level", true)
	require.NoError(t, err)
	assert.Equal(t, 4, level)
	assert.True(t, eng.Parameters().Has("game.Session"))
}

func TestEngine_OverwriteFalseRejectsDuplicates(t *testing.T) {
	host := memory.NewHost()
	eng, err := stagehand.New(host,
		stagehand.WithScenes(testScenes...),
		stagehand.WithInitialData("game.Session", params.InitialMap(map[string]any{"level": 1})),
	)
	require.NoError(t, err)

	err = eng.Transition(context.Background(), "Game",
		params.FromMap("game.Session", map[string]any{"level": 2}),
		stagehand.Overwrite(false),
	)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.Empty(t, host.Calls())
}

func TestEngine_PersistAndResume(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	host := memory.NewHost()
	eng, err := stagehand.New(host, stagehand.WithScenes(testScenes...), stagehand.WithStateStore(store, "slot-1"))
	require.NoError(t, err)

	resumed, err := eng.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, resumed, "nothing persisted yet")

	require.NoError(t, eng.Transition(ctx, "Game", params.FromMap("game.Session", map[string]any{"level": 7})))
	drive(t, eng, host)

	snap, err := store.Load(ctx, "slot-1")
	require.NoError(t, err)
	assert.Equal(t, "Game", snap.Current)
	assert.Equal(t, 7, snap.Parameters["game.Session"]["level"])

	// A fresh process resumes where the previous one committed.
	host2 := memory.NewHost()
	eng2, err := stagehand.New(host2, stagehand.WithScenes(testScenes...), stagehand.WithStateStore(store, "slot-1"))
	require.NoError(t, err)

	resumed, err = eng2.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)
	drive(t, eng2, host2)

	assert.Equal(t, "Game", eng2.CurrentState())
	assert.Equal(t, []string{"World", "HUD"}, host2.LoadedUnits())
	rec, err := eng2.Parameters().GetOrCreate("game.Session")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level": 7}, rec.Snapshot())
}

func TestEngine_ResumeWithoutStore(t *testing.T) {
	eng, err := stagehand.New(memory.NewHost(), stagehand.WithScenes(testScenes...))
	require.NoError(t, err)
	_, err = eng.Resume(context.Background())
	assert.Error(t, err)
}

func TestEngine_SceneSourceAndToggles(t *testing.T) {
	host := memory.NewHost()
	eng, err := stagehand.New(host,
		stagehand.WithSceneSource(memory.NewSource(testScenes...)),
		stagehand.WithBlendCallbacks(false),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, eng.Registry().Len())

	called := false
	require.NoError(t, eng.Dispatch().RegisterBlendHandler(domain.PreShowBlend, func(string, func()) { called = true }))

	require.NoError(t, eng.Transition(context.Background(), "Menu", nil))
	drive(t, eng, host)
	assert.False(t, called, "blend callbacks are disabled")
	assert.Equal(t, "Menu", eng.CurrentState())

	_, err = eng.Watch(context.Background())
	assert.Error(t, err, "memory source does not watch")
}
