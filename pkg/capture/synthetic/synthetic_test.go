package synthetic

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilentRecordingLength(t *testing.T) {
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d := New(fsys, "/recordings")
	d.Now = func() time.Time { return now }

	c, err := d.NewCapture(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Prepare(ctx, capture.HighQuality))
	require.NoError(t, c.Start(ctx))

	now = now.Add(500 * time.Millisecond)
	require.NoError(t, c.Stop(ctx))

	uri, err := c.URI()
	require.NoError(t, err)
	assert.Contains(t, uri, "file:///recordings/recording-")

	path := c.(*recording).path
	fi, err := fsys.Stat(path)
	require.NoError(t, err)
	// 22050 frames of 4 bytes
	assert.Equal(t, int64(capture.WAVHeaderSize+22050*4), fi.Size())
}

func TestURIBeforeStopFails(t *testing.T) {
	ctx := context.Background()
	c, err := New(afero.NewMemMapFs(), "/r").NewCapture(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Prepare(ctx, capture.HighQuality))
	require.NoError(t, c.Start(ctx))

	_, err = c.URI()
	assert.Error(t, err)
	assert.NoError(t, c.Release())
}

func TestStopWithoutStart(t *testing.T) {
	ctx := context.Background()
	c, err := New(afero.NewMemMapFs(), "/r").NewCapture(ctx)
	require.NoError(t, err)
	assert.Error(t, c.Stop(ctx))
	assert.Error(t, c.Start(ctx))
}

func TestDataLengthFitsRIFFHeader(t *testing.T) {
	p := capture.HighQuality
	assert.Equal(t, int64(22050*4), dataLength(500*time.Millisecond, p))
	assert.Zero(t, dataLength(-time.Second, p))

	long := dataLength(7*time.Hour, p)
	assert.LessOrEqual(t, long, int64(math.MaxUint32-36))
	assert.Zero(t, long%4, "whole frames only")
	assert.Equal(t, long, dataLength(48*time.Hour, p))
}
