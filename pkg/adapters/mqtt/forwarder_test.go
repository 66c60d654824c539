package mqtt_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/stagehand/pkg/adapters/mqtt"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.EventPublisher = (*mqtt.Client)(nil)
	_ ports.EventPublisher = (*MockPublisher)(nil)
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

func base(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, TransitionID: "t-1", Identifier: "Game"}
}

func runUntilDrained(t *testing.T, f *mqtt.Forwarder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled context makes Run flush the queue and return.
	f.Run(ctx)
}

func TestForwarder_PublishesCommit(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "scenes/commit", mock.MatchedBy(func(p []byte) bool {
		var body map[string]any
		return json.Unmarshal(p, &body) == nil && body["identifier"] == "Game" && body["previous"] == "Menu"
	})).Return(nil).Once()

	f := mqtt.NewForwarder(pub, mqtt.WithTopicPrefix("scenes/"))
	f.Hooks().OnCommit(context.Background(), &domain.OutcomeEvent{EventBase: base(domain.EventCommit), Previous: "Menu"})

	runUntilDrained(t, f)
	pub.AssertExpectations(t)
}

func TestForwarder_FailureCarriesErrorText(t *testing.T) {
	pub := new(MockPublisher)
	var got map[string]any
	pub.On("Publish", mock.Anything, "stagehand/failure", mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, json.Unmarshal(args.Get(2).([]byte), &got))
		}).
		Return(nil).Once()

	f := mqtt.NewForwarder(pub)
	f.Hooks().OnFailure(context.Background(), &domain.OutcomeEvent{
		EventBase: base(domain.EventFailure),
		Err:       errors.New("unit World failed"),
	})

	runUntilDrained(t, f)
	pub.AssertExpectations(t)
	assert.Equal(t, "unit World failed", got["error"])
}

func TestForwarder_OrderAndTopics(t *testing.T) {
	pub := new(MockPublisher)
	var topics []string
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { topics = append(topics, args.String(1)) }).
		Return(nil)

	f := mqtt.NewForwarder(pub)
	hooks := f.Hooks()
	ctx := context.Background()
	hooks.OnStateEnter(ctx, &domain.StateEvent{EventBase: base(domain.EventStateEnter), State: domain.StateSwitching})
	hooks.OnUnitUnload(ctx, &domain.UnitEvent{EventBase: base(domain.EventUnitUnload), Unit: "MenuRoot"})
	hooks.OnUnitLoad(ctx, &domain.UnitEvent{EventBase: base(domain.EventUnitLoad), Unit: "World", Mode: domain.LoadExclusive})
	hooks.OnProgress(ctx, &domain.ProgressEvent{EventBase: base(domain.EventProgress), Progress: 1})

	runUntilDrained(t, f)
	assert.Equal(t, []string{
		"stagehand/state_enter",
		"stagehand/unit_unload",
		"stagehand/unit_load",
		"stagehand/progress",
	}, topics)
}

func TestForwarder_DropsWhenFull(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f := mqtt.NewForwarder(pub, mqtt.WithQueueSize(1))
	hooks := f.Hooks()
	for i := 0; i < 3; i++ {
		hooks.OnProgress(context.Background(), &domain.ProgressEvent{EventBase: base(domain.EventProgress)})
	}

	assert.Equal(t, 2, f.Dropped())
	runUntilDrained(t, f)
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestForwarder_PublishErrorIsLogged(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	f := mqtt.NewForwarder(pub)
	f.Hooks().OnCommit(context.Background(), &domain.OutcomeEvent{EventBase: base(domain.EventCommit)})

	assert.NotPanics(t, func() { runUntilDrained(t, f) })
	pub.AssertExpectations(t)
}
