package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunCycleSkipsWithoutConnections(t *testing.T) {
	snapshots := &stubSnapshots{counts: map[string]int{"u1": 1}}
	publisher, err := NewPublisher(PublisherConfig{Registry: NewRegistry(RegistryConfig{}), Snapshots: snapshots})
	require.NoError(t, err)

	assert.Equal(t, CycleIdle, publisher.RunCycle(context.Background()))
	assert.Equal(t, 0, snapshots.callCount())
}

func TestRunCycleBroadcastsSnapshotWithDistinctUsers(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	aliceTab := &fakeChannel{}
	anonymous := &fakeChannel{}
	registry.Connect(aliceTab, "alice")
	registry.Connect(&fakeChannel{}, "alice")
	registry.Connect(&fakeChannel{}, "bob")
	registry.Connect(anonymous, "")

	snapshots := &stubSnapshots{counts: map[string]int{"alice": 3, "bob": 0}}
	publisher, err := NewPublisher(PublisherConfig{
		Registry:  registry,
		Snapshots: snapshots,
		Clock:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	assert.Equal(t, CyclePublished, publisher.RunCycle(context.Background()))

	for _, channel := range []*fakeChannel{aliceTab, anonymous} {
		messages := channel.messages(t)
		require.Len(t, messages, 1)
		assert.Equal(t, TypePeriodicUpdate, messages[0]["type"])
		assert.Equal(t, float64(2), messages[0]["active_users"])
		assert.Equal(t, map[string]any{"alice": float64(3), "bob": float64(0)}, messages[0]["data"])
	}
}

func TestRunCycleFailureDoesNotStopLaterCycles(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	registry := NewRegistry(RegistryConfig{})
	channel := &fakeChannel{}
	registry.Connect(channel, "alice")

	snapshots := &stubSnapshots{
		counts: map[string]int{"alice": 1},
		errs:   []error{errors.New("database is locked")},
	}
	publisher, err := NewPublisher(PublisherConfig{Registry: registry, Snapshots: snapshots, Logger: zap.New(core)})
	require.NoError(t, err)

	assert.Equal(t, CycleFailed, publisher.RunCycle(context.Background()))
	assert.Empty(t, channel.messages(t))
	assert.Equal(t, 1, logs.FilterMessage("periodic like snapshot failed").Len())

	assert.Equal(t, CyclePublished, publisher.RunCycle(context.Background()))
	assert.Len(t, channel.messages(t), 1)
}

func TestRunCycleSkipsWhilePreviousCycleRuns(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	registry.Connect(&fakeChannel{}, "alice")
	snapshots := &stubSnapshots{counts: map[string]int{}, block: make(chan struct{})}
	publisher, err := NewPublisher(PublisherConfig{Registry: registry, Snapshots: snapshots})
	require.NoError(t, err)

	first := make(chan CycleOutcome, 1)
	go func() {
		first <- publisher.RunCycle(context.Background())
	}()
	require.Eventually(t, func() bool { return snapshots.callCount() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, CycleBusy, publisher.RunCycle(context.Background()))
	close(snapshots.block)
	assert.Equal(t, CyclePublished, <-first)
	assert.Equal(t, 1, snapshots.callCount())
}

func TestStartRunsOnScheduleAndRejectsSecondStart(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	channel := &fakeChannel{}
	registry.Connect(channel, "alice")
	publisher, err := NewPublisher(PublisherConfig{
		Registry:  registry,
		Snapshots: &stubSnapshots{counts: map[string]int{"alice": 1}},
		Interval:  time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, publisher.Start(ctx))
	assert.ErrorIs(t, publisher.Start(ctx), ErrPublisherStarted)

	require.Eventually(t, func() bool {
		return len(channel.messages(t)) > 0
	}, 3*time.Second, 20*time.Millisecond)
	cancel()
}

func TestNewPublisherRequiresCollaborators(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{Snapshots: &stubSnapshots{}})
	assert.Error(t, err)
	_, err = NewPublisher(PublisherConfig{Registry: NewRegistry(RegistryConfig{})})
	assert.Error(t, err)
}
