package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRelayFansOutAcrossHubs(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	loader := &versionLoader{}
	local := NewHub(loader.load, nil)
	remote := NewHub(loader.load, nil)
	sender := NewRedisRelay(client, "portfolio:changes", local, nil)
	receiver := NewRedisRelay(client, "portfolio:changes", remote, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 2)
	go func() { done <- sender.Run(ctx) }()
	go func() { done <- receiver.Run(ctx) }()
	require.Eventually(t, func() bool {
		return s.PubSubNumSub("portfolio:changes")["portfolio:changes"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	localSub, err := local.Subscribe(ctx, TopicPages)
	require.NoError(t, err)
	_, _ = receive(t, localSub)
	remoteSub, err := remote.Subscribe(ctx, TopicPages)
	require.NoError(t, err)
	_, _ = receive(t, remoteSub)

	loader.version.Store(7)
	loader.calls.Store(0)
	sender.Changed(context.Background(), TopicPages)

	for _, sub := range []*Subscription{localSub, remoteSub} {
		snapshot, ok := receive(t, sub)
		require.True(t, ok)
		assert.Equal(t, int64(7), snapshot.Data.(map[string]any)["version"])
	}
	// The sender skips its own message: one load per hub.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(2), loader.calls.Load())

	cancel()
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("relay did not stop")
		}
	}
}

func TestRedisRelayUpdatesLocalHubWithoutRun(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	loader := &versionLoader{}
	hub := NewHub(loader.load, nil)
	relay := NewRedisRelay(client, "portfolio:changes", hub, nil)

	sub, err := hub.Subscribe(context.Background(), TopicPages)
	require.NoError(t, err)
	defer sub.Close()
	_, _ = receive(t, sub)

	loader.version.Store(3)
	relay.Changed(context.Background(), TopicPages)

	snapshot, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, int64(3), snapshot.Data.(map[string]any)["version"])
}

func TestRedisRelayFallsBackToLocalHub(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	loader := &versionLoader{}
	hub := NewHub(loader.load, nil)
	relay := NewRedisRelay(client, "portfolio:changes", hub, nil)

	sub, err := hub.Subscribe(context.Background(), TopicResume)
	require.NoError(t, err)
	defer sub.Close()
	_, _ = receive(t, sub)

	s.Close()
	loader.version.Store(2)
	relay.Changed(context.Background(), TopicResume)

	snapshot, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, int64(2), snapshot.Data.(map[string]any)["version"])
}
