// Package arecord captures from the default ALSA input by running arecord.
package arecord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/roboricindustries/raycon-micbridge/pkg/capture"
	"github.com/spf13/afero"
)

const DefaultBinary = "arecord"

type Device struct {
	Binary string
	Dir    string
	Fs     afero.Fs
	Log    *slog.Logger
}

func New(binary, dir string, fsys afero.Fs, logger *slog.Logger) *Device {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Device{
		Binary: binary,
		Dir:    dir,
		Fs:     fsys,
		Log:    logger.With("op", "capture.arecord"),
	}
}

func (d *Device) NewCapture(ctx context.Context) (capture.Capture, error) {
	bin, err := exec.LookPath(d.Binary)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", d.Binary, err)
	}
	if err := d.Fs.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &recording{dev: d, bin: bin}, nil
}

type recording struct {
	dev  *Device
	bin  string
	path string
	args []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

func sampleFormat(bits int) (string, bool) {
	switch bits {
	case 8:
		return "U8", true
	case 16:
		return "S16_LE", true
	case 24:
		return "S24_LE", true
	case 32:
		return "S32_LE", true
	}
	return "", false
}

func (r *recording) Prepare(ctx context.Context, p capture.Preset) error {
	format, ok := sampleFormat(p.BitDepth)
	if !ok {
		return fmt.Errorf("unsupported bit depth %d", p.BitDepth)
	}
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return fmt.Errorf("invalid preset %q", p.Name)
	}
	r.path = capture.ArtifactPath(r.dev.Dir, p.Extension)
	r.args = []string{
		"-q",
		"-t", "wav",
		"-f", format,
		"-r", strconv.Itoa(p.SampleRate),
		"-c", strconv.Itoa(p.Channels),
		r.path,
	}
	return nil
}

func (r *recording) Start(ctx context.Context) error {
	if r.args == nil {
		return errors.New("capture not prepared")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return errors.New("capture already started")
	}
	// not CommandContext: the recording outlives the start request
	cmd := exec.Command(r.bin, r.args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.dev.Binary, err)
	}
	r.cmd = cmd
	r.exited = make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(r.exited)
	}()
	r.dev.Log.Debug("capture started", slog.String("path", r.path), slog.Int("pid", cmd.Process.Pid))
	return nil
}

func (r *recording) Stop(ctx context.Context) error {
	r.mu.Lock()
	cmd, exited := r.cmd, r.exited
	r.mu.Unlock()
	if cmd == nil {
		return errors.New("capture not started")
	}
	// SIGINT lets arecord flush and close the WAV header properly.
	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = cmd.Process.Kill()
	}
	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-exited
		return fmt.Errorf("stop %s: %w", r.dev.Binary, ctx.Err())
	}
}

func (r *recording) URI() (string, error) {
	return capture.Resolve(r.dev.Fs, r.path)
}

func (r *recording) Release() error {
	r.mu.Lock()
	cmd, exited := r.cmd, r.exited
	r.cmd = nil
	r.mu.Unlock()
	if cmd != nil {
		_ = cmd.Process.Kill()
		<-exited
	}
	return capture.Discard(r.dev.Fs, r.path)
}
