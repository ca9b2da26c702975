package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
	"github.com/roboricindustries/raycon-micbridge/pkg/permission"
	bridge "github.com/roboricindustries/raycon-micbridge/pkg/schemas/bridge/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{Gate: &fakeGate{}})
	assert.Error(t, err)
	_, err = New(Config{Gate: &fakeGate{}, Device: &fakeDevice{}})
	assert.Error(t, err)
}

func TestStartStopHappyPath(t *testing.T) {
	ctx := context.Background()
	c := &fakeCapture{uri: "file:///recordings/recording-1.wav"}
	h := newHarness(c)

	require.NoError(t, h.m.Start(ctx))
	s := h.m.Snapshot()
	assert.Equal(t, Recording, s.State)
	assert.NotEmpty(t, s.ID)
	assert.True(t, h.m.Recording())
	assert.Equal(t, capture.HighQuality, c.prepared)

	uri, err := h.m.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.uri, uri)
	assert.True(t, c.stopped)
	assert.Zero(t, c.released)

	assert.Equal(t, []State{RequestingPermission, Recording, Finalizing, Idle}, h.states.seen())
	sent := h.out.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, bridge.RecordingCompleted, sent[0].Type)
	assert.NotEmpty(t, sent[0].URI)

	s = h.m.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.Empty(t, s.ID)
	assert.Equal(t, c.uri, s.LastArtifact)
	assert.Nil(t, h.m.session.handle)
}

func TestLocatorDeliveredVerbatim(t *testing.T) {
	weird := "file:///var/mobile/Containers/Data/rec%20ording&x=<1>/café.m4a?v=1#frag"
	h := newHarness(&fakeCapture{uri: weird})

	require.NoError(t, h.m.Start(context.Background()))
	_, err := h.m.Stop(context.Background())
	require.NoError(t, err)

	sent := h.out.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, weird, sent[0].URI)
}

func TestPermissionDeniedNeverAllocates(t *testing.T) {
	for _, tc := range []struct {
		name   string
		status permission.Status
		err    error
	}{
		{"denied", permission.Denied, nil},
		{"undetermined", permission.Undetermined, nil},
		{"query error", permission.Undetermined, errors.New("os said no")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(&fakeCapture{uri: "file:///x.wav"})
			h.gate.status, h.gate.err = tc.status, tc.err

			for i := 0; i < 3; i++ {
				err := h.m.Start(context.Background())
				assert.ErrorIs(t, err, ErrPermissionDenied)
				code, ok := CodeOf(err)
				assert.True(t, ok)
				assert.Equal(t, bridge.CodePermissionDenied, code)
			}

			assert.Zero(t, h.device.allocs)
			assert.Equal(t, 3, h.gate.calls)
			assert.Equal(t, Idle, h.m.Snapshot().State)
			assert.Empty(t, h.out.sent())
		})
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	h := newHarness()

	uri, err := h.m.Stop(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, uri)
	assert.Empty(t, h.states.seen())
	assert.Empty(t, h.out.sent())
	assert.Equal(t, Idle, h.m.Snapshot().State)
}

func TestAllocationFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(&fakeCapture{uri: "file:///ok.wav"})
	h.device.allocErr = errors.New("device busy")

	err := h.m.Start(ctx)
	assert.ErrorIs(t, err, ErrRecordingStartFailed)
	assert.Nil(t, h.m.session.handle)
	assert.Equal(t, Idle, h.m.Snapshot().State)

	h.device.allocErr = nil
	require.NoError(t, h.m.Start(ctx))
	assert.Equal(t, Recording, h.m.Snapshot().State)
}

func TestConfigureAndBeginFailuresReleaseHandle(t *testing.T) {
	for _, tc := range []struct {
		name string
		c    *fakeCapture
	}{
		{"configure", &fakeCapture{prepareErr: errors.New("bad preset")}},
		{"begin", &fakeCapture{startErr: errors.New("input in use")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(tc.c)

			err := h.m.Start(context.Background())
			assert.ErrorIs(t, err, ErrRecordingStartFailed)
			assert.Equal(t, 1, tc.c.released)
			assert.Nil(t, h.m.session.handle)
			assert.Equal(t, []State{RequestingPermission, Idle}, h.states.seen())
		})
	}
}

func TestStopFailureClearsHandle(t *testing.T) {
	for _, tc := range []struct {
		name string
		c    *fakeCapture
	}{
		{"unload", &fakeCapture{uri: "file:///x.wav", stopErr: errors.New("unload failed")}},
		{"locator", &fakeCapture{uriErr: errors.New("no file")}},
		{"empty locator", &fakeCapture{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(tc.c, &fakeCapture{uri: "file:///next.wav"})
			require.NoError(t, h.m.Start(ctx))

			uri, err := h.m.Stop(ctx)
			assert.ErrorIs(t, err, ErrRecordingStopFailed)
			assert.Empty(t, uri)
			assert.Equal(t, 1, tc.c.released)
			assert.Nil(t, h.m.session.handle)
			assert.Equal(t, Idle, h.m.Snapshot().State)
			assert.Empty(t, h.out.sent())

			// a stale handle never blocks the next recording
			require.NoError(t, h.m.Start(ctx))
		})
	}
}

func TestPanickingCaptureStartLeavesManagerIdle(t *testing.T) {
	ctx := context.Background()
	broken := &fakeCapture{startPanic: "native capture crashed"}
	h := newHarness(broken, &fakeCapture{uri: "file:///after.wav"})

	err := h.m.Start(ctx)
	assert.ErrorIs(t, err, ErrRecordingStartFailed)
	assert.Contains(t, err.Error(), "native capture crashed")
	assert.Equal(t, 1, broken.released)
	assert.Nil(t, h.m.session.handle)
	assert.Equal(t, Idle, h.m.Snapshot().State)

	// neither stop nor the next start is wedged
	uri, err := h.m.Stop(ctx)
	require.NoError(t, err)
	assert.Empty(t, uri)
	require.NoError(t, h.m.Start(ctx))
	uri, err = h.m.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file:///after.wav", uri)
}

func TestPanickingGateLeavesManagerIdle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(&fakeCapture{uri: "file:///ok.wav"})
	h.gate.panics = true

	assert.ErrorIs(t, h.m.Start(ctx), ErrRecordingStartFailed)
	assert.Equal(t, Idle, h.m.Snapshot().State)
	assert.Zero(t, h.device.allocs)

	require.NoError(t, h.m.Start(ctx))
	assert.Equal(t, Recording, h.m.Snapshot().State)
}

func TestPanickingCaptureStopClearsHandle(t *testing.T) {
	ctx := context.Background()
	broken := &fakeCapture{uri: "file:///x.wav", stopPanic: "unload crashed"}
	h := newHarness(broken, &fakeCapture{uri: "file:///next.wav"})
	require.NoError(t, h.m.Start(ctx))

	uri, err := h.m.Stop(ctx)
	assert.ErrorIs(t, err, ErrRecordingStopFailed)
	assert.Empty(t, uri)
	assert.Equal(t, 1, broken.released)
	assert.Nil(t, h.m.session.handle)
	assert.Equal(t, Idle, h.m.Snapshot().State)
	assert.Empty(t, h.out.sent())

	require.NoError(t, h.m.Start(ctx))
}

func TestStartWhileRecordingIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(&fakeCapture{uri: "file:///a.wav"}, &fakeCapture{uri: "file:///b.wav"})
	require.NoError(t, h.m.Start(ctx))
	id := h.m.Snapshot().ID

	err := h.m.Start(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRecording)
	assert.Equal(t, 1, h.device.allocs)
	assert.Equal(t, id, h.m.Snapshot().ID)

	uri, err := h.m.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file:///a.wav", uri)
}

func TestStopDuringSuspendedStartIsQueued(t *testing.T) {
	ctx := context.Background()
	c := &fakeCapture{
		uri:       "file:///race.wav",
		startGate: make(chan struct{}),
		started:   make(chan struct{}),
	}
	h := newHarness(c)

	var wg sync.WaitGroup
	var startErr, stopErr error
	var uri string
	wg.Add(1)
	go func() {
		defer wg.Done()
		startErr = h.m.Start(ctx)
	}()
	<-c.started // start is suspended inside the capture call

	stopIssued := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(stopIssued)
		uri, stopErr = h.m.Stop(ctx)
	}()
	<-stopIssued
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.out.sent(), "stop must wait for start")

	close(c.startGate)
	wg.Wait()

	require.NoError(t, startErr)
	require.NoError(t, stopErr)
	assert.Equal(t, "file:///race.wav", uri)
	assert.Equal(t, Idle, h.m.Snapshot().State)
	assert.Nil(t, h.m.session.handle)
	require.Len(t, h.out.sent(), 1)
	assert.Equal(t, []State{RequestingPermission, Recording, Finalizing, Idle}, h.states.seen())
}

func TestStopGivesUpWhenContextEnds(t *testing.T) {
	c := &fakeCapture{
		uri:       "file:///slow.wav",
		startGate: make(chan struct{}),
		started:   make(chan struct{}),
	}
	h := newHarness(c)

	done := make(chan error, 1)
	go func() { done <- h.m.Start(context.Background()) }()
	<-c.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.m.Stop(ctx)
	assert.ErrorIs(t, err, ErrRecordingStopFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(c.startGate)
	require.NoError(t, <-done)
	assert.Equal(t, Recording, h.m.Snapshot().State)
}
