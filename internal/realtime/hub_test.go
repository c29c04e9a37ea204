package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type versionLoader struct {
	version atomic.Int64
	calls   atomic.Int64
	fail    atomic.Bool
}

func (l *versionLoader) load(_ context.Context, topic string) (any, error) {
	l.calls.Add(1)
	if l.fail.Load() {
		return nil, errors.New("store unavailable")
	}
	return map[string]any{"topic": topic, "version": l.version.Load()}, nil
}

func receive(t *testing.T, sub *Subscription) (Snapshot, bool) {
	t.Helper()
	select {
	case snapshot, ok := <-sub.C():
		return snapshot, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}, false
	}
}

func TestParseTopic(t *testing.T) {
	for _, raw := range []string{"pages", "resume", "messages", "pages/about/blocks", "/pages/about/blocks/"} {
		_, err := ParseTopic(raw)
		assert.NoError(t, err, raw)
	}
	for _, raw := range []string{"", "users", "pages//blocks", "pages/about", "pages/about/blocks/extra"} {
		_, err := ParseTopic(raw)
		assert.ErrorIs(t, err, ErrUnknownTopic, raw)
	}
	pageID, ok := PageIDOf(BlocksTopic("about"))
	assert.True(t, ok)
	assert.Equal(t, "about", pageID)
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)
	loader := &versionLoader{}
	hub := NewHub(loader.load, nil)

	sub, err := hub.Subscribe(context.Background(), TopicPages)
	require.NoError(t, err)
	defer sub.Close()

	snapshot, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, TopicPages, snapshot.Topic)
	assert.NoError(t, snapshot.Err)
	assert.Equal(t, 1, hub.Subscribers(TopicPages))
}

func TestChangedKeepsOnlyNewestSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)
	loader := &versionLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, TopicResume)
	require.NoError(t, err)
	defer sub.Close()

	for i := 1; i <= 3; i++ {
		loader.version.Store(int64(i))
		hub.Changed(ctx, TopicResume)
	}

	snapshot, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, int64(3), snapshot.Data.(map[string]any)["version"])
	select {
	case extra := <-sub.C():
		t.Fatalf("expected a single pending snapshot, got another: %+v", extra)
	default:
	}
}

func TestChangedSkipsTopicsWithoutSubscribers(t *testing.T) {
	loader := &versionLoader{}
	hub := NewHub(loader.load, nil)

	hub.Changed(context.Background(), TopicPages, BlocksTopic("about"), TopicPages)
	assert.Zero(t, loader.calls.Load())
}

func TestChangedLoadsEachTopicOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	loader := &versionLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	first, err := hub.Subscribe(ctx, TopicPages)
	require.NoError(t, err)
	defer first.Close()
	second, err := hub.Subscribe(ctx, TopicPages)
	require.NoError(t, err)
	defer second.Close()
	loader.calls.Store(0)

	hub.Changed(ctx, TopicPages, TopicPages)
	assert.Equal(t, int64(1), loader.calls.Load())
}

func TestFailedLoadEndsSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)
	loader := &versionLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, BlocksTopic("about"))
	require.NoError(t, err)
	_, _ = receive(t, sub)

	loader.fail.Store(true)
	hub.Changed(ctx, BlocksTopic("about"))

	snapshot, ok := receive(t, sub)
	require.True(t, ok)
	assert.Error(t, snapshot.Err)
	_, ok = receive(t, sub)
	assert.False(t, ok, "subscription should be closed after a failed load")
	assert.Zero(t, hub.Subscribers(BlocksTopic("about")))
}

func TestSubscribeFailsWhenInitialLoadFails(t *testing.T) {
	loader := &versionLoader{}
	loader.fail.Store(true)
	hub := NewHub(loader.load, nil)

	_, err := hub.Subscribe(context.Background(), TopicMessages)
	assert.Error(t, err)
	assert.Zero(t, hub.Subscribers(TopicMessages))
}

func TestCancelledContextClosesSubscription(t *testing.T) {
	defer goleak.VerifyNone(t)
	loader := &versionLoader{}
	hub := NewHub(loader.load, nil)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := hub.Subscribe(ctx, TopicPages)
	require.NoError(t, err)
	_, _ = receive(t, sub)

	cancel()
	_, ok := receive(t, sub)
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return hub.Subscribers(TopicPages) == 0 }, time.Second, 10*time.Millisecond)
}

func TestChangeDuringInitialLoadIsDelivered(t *testing.T) {
	defer goleak.VerifyNone(t)
	var (
		version atomic.Int64
		calls   atomic.Int64
		hub     *Hub
	)
	hub = NewHub(func(ctx context.Context, topic string) (any, error) {
		seen := version.Load()
		if calls.Add(1) == 1 {
			// A write commits and notifies after this load has read the store.
			version.Store(1)
			hub.Changed(ctx, topic)
		}
		return seen, nil
	}, nil)

	sub, err := hub.Subscribe(context.Background(), TopicPages)
	require.NoError(t, err)
	defer sub.Close()

	snapshot, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, int64(1), snapshot.Data)
	select {
	case extra := <-sub.C():
		t.Fatalf("stale snapshot delivered after the newer one: %+v", extra)
	default:
	}
}

func TestSlowLoadDoesNotReplaceNewerSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)
	var (
		version atomic.Int64
		calls   atomic.Int64
	)
	started := make(chan struct{})
	release := make(chan struct{})
	hub := NewHub(func(_ context.Context, _ string) (any, error) {
		seen := version.Load()
		if calls.Add(1) == 2 {
			close(started)
			<-release
		}
		return seen, nil
	}, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, TopicResume)
	require.NoError(t, err)
	defer sub.Close()
	_, _ = receive(t, sub)

	version.Store(1)
	slow := make(chan struct{})
	go func() {
		defer close(slow)
		hub.Changed(ctx, TopicResume)
	}()
	<-started

	version.Store(2)
	hub.Changed(ctx, TopicResume)
	close(release)
	<-slow

	snapshot, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, int64(2), snapshot.Data)
	select {
	case extra := <-sub.C():
		t.Fatalf("older load delivered last: %+v", extra)
	default:
	}
}
