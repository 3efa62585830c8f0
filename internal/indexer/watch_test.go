package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dropsearch/internal/source"
)

func runWatch(t *testing.T, h *harness) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.syncer.Watch(ctx) }()
	return cancel, done
}

func TestWatchRunsIncrementalSyncOnChanges(t *testing.T) {
	h := newHarness(t, Config{}, true)
	h.source.content["/new.txt"] = "fresh content"
	h.source.pushDelta(textFile("/new.txt", "fresh content", t0))
	h.source.polls <- source.Signal{Changes: true}

	cancel, done := runWatch(t, h)

	require.Eventually(t, func() bool {
		_, found, err := h.index.FindBySourcePath(context.Background(), "/new.txt")
		return err == nil && found
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
	assert.Equal(t, 1, h.source.count("continue"))
}

func TestWatchBacksOffOnErrors(t *testing.T) {
	h := newHarness(t, Config{PollBackoff: 5 * time.Millisecond}, true)
	h.source.pollErr = source.NewProviderError("list_folder_longpoll", source.KindUnavailable, errors.New("503"))

	cancel, done := runWatch(t, h)
	require.Eventually(t, func() bool {
		return h.source.count("poll") >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchReplacesResetCursor(t *testing.T) {
	h := newHarness(t, Config{PollBackoff: 5 * time.Millisecond}, true)
	h.source.addFile("/a.txt", "alpha", t0)
	h.source.mu.Lock()
	h.source.pollErrOnce = source.NewProviderError("list_folder_longpoll", source.KindCursorReset, errors.New("reset"))
	h.source.mu.Unlock()

	cancel, done := runWatch(t, h)

	require.Eventually(t, func() bool {
		_, found, err := h.index.FindBySourcePath(context.Background(), "/a.txt")
		return err == nil && found && h.source.count("poll") >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, h.source.count("latest"), "the reset cursor is replaced once")
	assert.Equal(t, 1, h.source.count("list"), "recovery runs a full sync")
	assert.True(t, h.syncer.Status().HasCursor)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchRetriesCursorAcquisition(t *testing.T) {
	h := newHarness(t, Config{PollBackoff: 5 * time.Millisecond}, true)
	h.source.mu.Lock()
	h.source.cursorErr = source.NewProviderError("get_latest_cursor", source.KindAuth, errors.New("401"))
	h.source.mu.Unlock()

	cancel, done := runWatch(t, h)
	require.Eventually(t, func() bool {
		return h.source.count("latest") >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, h.source.count("poll"))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNotifyCoalesces(t *testing.T) {
	h := newHarness(t, Config{}, true)
	h.syncer.Notify()
	h.syncer.Notify()
	h.syncer.Notify()
	assert.Len(t, h.syncer.notify, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.syncer.RunNotifications(ctx)

	require.Eventually(t, func() bool {
		return h.source.count("latest") == 1 && len(h.syncer.notify) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScheduleRunsFullSyncs(t *testing.T) {
	h := newHarness(t, Config{}, true)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		h.syncer.Schedule(ctx, 5*time.Millisecond)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		return h.source.count("list") >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-stopped
}

func TestScheduleDisabled(t *testing.T) {
	h := newHarness(t, Config{}, true)
	h.syncer.Schedule(context.Background(), 0)
	assert.Zero(t, h.source.count("list"))
}

func TestIndexLock(t *testing.T) {
	var l IndexLock
	assert.True(t, l.TryAcquire())
	assert.True(t, l.Held())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
}
