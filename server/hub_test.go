package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/phylo/phylogeny"
)

type gauge struct{ v chan float64 }

func (g *gauge) Set(v float64) { g.v <- v }

func startHub(t *testing.T) (*Hub, *gauge, context.CancelFunc) {
	t.Helper()
	g := &gauge{v: make(chan float64, 16)}
	h := NewHub(zaptest.NewLogger(t).Sugar(), g)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, g, cancel
}

func TestHubBroadcastsRebuild(t *testing.T) {
	h, g, _ := startHub(t)
	c := &Client{hub: h, send: make(chan interface{}, 1), id: "a"}
	require.True(t, h.Register(c))
	assert.Equal(t, 1.0, <-g.v)

	wm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.NotifyRebuilt(phylogeny.RebuildEvent{Watermark: wm, NodeCount: 3, Duration: 5 * time.Millisecond})

	select {
	case msg := <-c.send:
		assert.Equal(t, RebuiltMessage{Type: MessageRebuilt, Watermark: wm, NodeCount: 3, DurationMS: 5}, msg)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h, g, _ := startHub(t)
	slow := &Client{hub: h, send: make(chan interface{}), id: "slow"}
	require.True(t, h.Register(slow))
	<-g.v

	h.Broadcast("hello")
	assert.Equal(t, 0.0, <-g.v)

	_, open := <-slow.send
	assert.False(t, open, "slow client's channel should be closed")

	// Unregistering an already dropped client is a no-op
	h.Unregister(slow)
}

func TestHubStopClosesClients(t *testing.T) {
	h, g, cancel := startHub(t)
	c := &Client{hub: h, send: make(chan interface{}, 1), id: "a"}
	require.True(t, h.Register(c))
	<-g.v

	cancel()
	<-h.done
	_, open := <-c.send
	assert.False(t, open)

	// A stopped hub refuses new clients without blocking
	assert.False(t, h.Register(&Client{hub: h, send: make(chan interface{}, 1)}))
}
