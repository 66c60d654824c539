package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/pkg/adapters/memory"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*stagehand.Engine, *memory.Host, *memory.Effect) {
	t.Helper()
	host := memory.NewHost(memory.WithStep(0.5))
	fx := memory.NewEffect(1)
	eng, err := stagehand.New(host,
		stagehand.WithEffect(fx),
		stagehand.WithScenes(
			domain.SceneEntry{Identifier: "Menu", Units: []string{"MenuRoot"}, ParameterAllowNull: true},
			domain.SceneEntry{Identifier: "Game", Units: []string{"World", "HUD"}, ParameterAllowNull: true},
		),
	)
	require.NoError(t, err)
	return eng, host, fx
}

func start(t *testing.T, r *runner.Runner) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	require.Eventually(t, r.Running, time.Second, time.Millisecond)
	return func() {
		cancel()
		<-done
	}
}

func TestRunner_TransitionBlocksUntilCommit(t *testing.T) {
	eng, host, fx := setup(t)
	r := runner.New(eng, runner.WithTickables(host, fx), runner.WithTickInterval(time.Millisecond))
	stop := start(t, r)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, r.Transition(ctx, stagehand.Request("Menu", nil)))
	assert.Equal(t, "Menu", eng.CurrentState())
	assert.Greater(t, r.Frames(), uint64(0))
}

func TestRunner_QueuesConcurrentRequests(t *testing.T) {
	eng, host, fx := setup(t)
	r := runner.New(eng, runner.WithTickables(host, fx), runner.WithTickInterval(time.Millisecond))
	stop := start(t, r)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	for _, id := range []string{"Menu", "Game"} {
		done, err := r.Submit(ctx, stagehand.Request(id, nil, stagehand.OnFinished(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, id)
		})))
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, <-done)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"Menu", "Game"}, order)
	assert.Equal(t, "Game", eng.CurrentState())
}

func TestRunner_RejectionIsReported(t *testing.T) {
	eng, host, fx := setup(t)
	r := runner.New(eng, runner.WithTickables(host, fx), runner.WithTickInterval(time.Millisecond))
	stop := start(t, r)
	defer stop()

	err := r.Transition(context.Background(), stagehand.Request("Credits", nil))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunner_NotRunning(t *testing.T) {
	eng, _, _ := setup(t)
	r := runner.New(eng)
	_, err := r.Submit(context.Background(), stagehand.Request("Menu", nil))
	assert.ErrorIs(t, err, runner.ErrStopped)
}

func TestRunner_SubmitRacingStopReturns(t *testing.T) {
	for i := 0; i < 200; i++ {
		eng, host, fx := setup(t)
		r := runner.New(eng, runner.WithTickables(host, fx), runner.WithTickInterval(time.Millisecond))
		stop := start(t, r)

		results := make(chan error, 1)
		go func() {
			results <- r.Transition(context.Background(), stagehand.Request("Menu", nil))
		}()
		stop()

		select {
		case err := <-results:
			if err != nil {
				assert.ErrorIs(t, err, runner.ErrStopped)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Transition did not return after the runner stopped", i)
		}
	}
}

func TestRunner_StopReleasesTransitionInFlight(t *testing.T) {
	eng, host, fx := setup(t)
	require.NoError(t, eng.Dispatch().RegisterBlendHandler(domain.PreShowBlend, func(string, func()) {}))
	r := runner.New(eng, runner.WithTickables(host, fx), runner.WithTickInterval(time.Millisecond))
	stop := start(t, r)

	results := make(chan error, 1)
	go func() {
		results <- r.Transition(context.Background(), stagehand.Request("Menu", nil))
	}()
	require.Eventually(t, eng.Busy, time.Second, time.Millisecond)
	stop()

	select {
	case err := <-results:
		assert.ErrorIs(t, err, runner.ErrStopped)
	case <-time.After(5 * time.Second):
		t.Fatal("Transition did not return after the runner stopped")
	}
	assert.Empty(t, eng.CurrentState())
}

func TestRunner_RestartIgnoresAbandonedRequests(t *testing.T) {
	eng, host, fx := setup(t)
	r := runner.New(eng, runner.WithTickables(host, fx), runner.WithTickInterval(time.Millisecond))
	stop := start(t, r)
	stop()

	stop = start(t, r)
	defer stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Transition(ctx, stagehand.Request("Game", nil)))
	assert.Equal(t, "Game", eng.CurrentState())
}
