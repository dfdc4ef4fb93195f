package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

func receive(t *testing.T, ch <-chan attendance.Change) attendance.Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return c
	case <-time.After(time.Second):
		t.Fatal("no change received")
		return attendance.Change{}
	}
}

func TestHub_DeliversMatchingPrefixInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()

	scans, err := hub.Subscribe(ctx, attendance.ScansPrefix)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, attendance.Change{Path: "scans/s1"}))
	require.NoError(t, hub.Publish(ctx, attendance.Change{Path: "employees/e1"}))
	require.NoError(t, hub.Publish(ctx, attendance.Change{Path: "scans/s2"}))

	assert.Equal(t, "scans/s1", receive(t, scans).Path)
	assert.Equal(t, "scans/s2", receive(t, scans).Path)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	_, err := hub.Subscribe(ctx, "")
	require.NoError(t, err)

	// Nobody reads; publishing must still return
	for i := 0; i < 1000; i++ {
		require.NoError(t, hub.Publish(ctx, attendance.Change{Path: "scans/x"}))
	}
}

func TestHub_SubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	ch, err := hub.Subscribe(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Subscribers())

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.Subscribers())
}

func TestStore_PublishesWritesAndDeletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	s := Wrap(store.NewMemory(), hub, nil)
	changes, err := hub.Subscribe(ctx, attendance.ScansPrefix)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "scans/s1", []byte(`{"subjectId":"e1"}`)))
	require.NoError(t, s.Delete(ctx, "scans/s1"))

	w := receive(t, changes)
	assert.Equal(t, "scans/s1", w.Path)
	assert.JSONEq(t, `{"subjectId":"e1"}`, string(w.Value))
	assert.False(t, w.Deleted)

	d := receive(t, changes)
	assert.True(t, d.Deleted)
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, attendance.Change) error {
	p.calls++
	return errors.New("broker down")
}

func TestStore_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	pub := &failingPublisher{}
	mem := store.NewMemory()
	s := Wrap(mem, pub, nil)

	require.NoError(t, s.Write(ctx, "scans/s1", []byte("{}")))

	assert.Equal(t, 1, pub.calls)
	_, ok, err := mem.Read(ctx, "scans/s1")
	require.NoError(t, err)
	assert.True(t, ok)
}

type refusingStore struct{ attendance.Store }

func (refusingStore) Write(context.Context, string, []byte) error { return errors.New("disk full") }

func TestStore_FailedWriteIsNotPublished(t *testing.T) {
	pub := &failingPublisher{}
	s := Wrap(refusingStore{store.NewMemory()}, pub, nil)

	assert.Error(t, s.Write(context.Background(), "scans/s1", []byte("{}")))
	assert.Zero(t, pub.calls)
}

func TestDecodeChange(t *testing.T) {
	ch, err := decodeChange(`{"path":"scans/s1","value":"e30="}`)
	require.NoError(t, err)
	assert.Equal(t, "scans/s1", ch.Path)
	assert.Equal(t, "{}", string(ch.Value))

	_, err = decodeChange(`{"value":"e30="}`)
	assert.Error(t, err)
	_, err = decodeChange(`not json`)
	assert.Error(t, err)
}

func TestConnect_AcceptsURLAndAddress(t *testing.T) {
	c, err := Connect(context.Background(), "redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Options().DB)
	_ = c.Close()

	c, err = Connect(context.Background(), "cache:6380")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", c.Options().Addr)
	_ = c.Close()
}
