// Package synthetic is a capture device for hosts without a microphone.
// It produces a silent WAV file as long as the recording lasted.
package synthetic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
	"github.com/spf13/afero"
)

const chunkSize = 32 << 10

type Device struct {
	Fs  afero.Fs
	Dir string
	Now func() time.Time
}

func New(fsys afero.Fs, dir string) *Device {
	return &Device{Fs: fsys, Dir: dir, Now: time.Now}
}

func (d *Device) NewCapture(ctx context.Context) (capture.Capture, error) {
	if err := d.Fs.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &recording{dev: d}, nil
}

type recording struct {
	dev     *Device
	preset  capture.Preset
	path    string
	started time.Time
	stopped bool
}

func (r *recording) Prepare(ctx context.Context, p capture.Preset) error {
	if p.BitDepth%8 != 0 || p.BitDepth == 0 || p.Channels <= 0 || p.SampleRate <= 0 {
		return fmt.Errorf("invalid preset %q", p.Name)
	}
	r.preset = p
	r.path = capture.ArtifactPath(r.dev.Dir, p.Extension)
	return nil
}

func (r *recording) Start(ctx context.Context) error {
	if r.path == "" {
		return errors.New("capture not prepared")
	}
	if !r.started.IsZero() {
		return errors.New("capture already started")
	}
	r.started = r.dev.Now()
	return nil
}

func (r *recording) Stop(ctx context.Context) error {
	if r.started.IsZero() {
		return errors.New("capture not started")
	}
	if r.stopped {
		return nil
	}
	r.stopped = true

	dataLen := dataLength(r.dev.Now().Sub(r.started), r.preset)

	f, err := r.dev.Fs.Create(r.path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()
	if err := capture.WriteWAVHeader(f, r.preset, uint32(dataLen)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	silence := make([]byte, chunkSize)
	for left := dataLen; left > 0; {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(left, int64(len(silence)))
		if _, err := f.Write(silence[:n]); err != nil {
			return fmt.Errorf("write samples: %w", err)
		}
		left -= n
	}
	return nil
}

// maxDataLen is the largest sample chunk a RIFF header can describe.
const maxDataLen = math.MaxUint32 - (capture.WAVHeaderSize - 8)

// dataLength is the size of elapsed worth of samples in p, capped to whole
// frames below maxDataLen.
func dataLength(elapsed time.Duration, p capture.Preset) int64 {
	if elapsed < 0 {
		elapsed = 0
	}
	frameSize := int64(p.Channels * p.BitDepth / 8)
	frames := int64(elapsed.Seconds() * float64(p.SampleRate))
	if limit := int64(maxDataLen) / frameSize; frames > limit {
		frames = limit
	}
	return frames * frameSize
}

func (r *recording) URI() (string, error) {
	return capture.Resolve(r.dev.Fs, r.path)
}

func (r *recording) Release() error {
	return capture.Discard(r.dev.Fs, r.path)
}
