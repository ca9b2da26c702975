package permission

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

const DefaultDeviceDir = "/dev/snd"

// DeviceAuthorizer derives the status from the ALSA device nodes visible to
// the process. Linux has no interactive prompt, so Request only re-reads.
type DeviceAuthorizer struct {
	Fs  afero.Fs
	Dir string
}

func NewDeviceAuthorizer(fsys afero.Fs, dir string) *DeviceAuthorizer {
	if dir == "" {
		dir = DefaultDeviceDir
	}
	return &DeviceAuthorizer{Fs: fsys, Dir: dir}
}

func (a *DeviceAuthorizer) Status(ctx context.Context) (Status, error) {
	if _, err := a.Fs.Stat(a.Dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Undetermined, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return Denied, nil
		}
		return Undetermined, err
	}
	// capture nodes are pcmC<card>D<device>c
	nodes, err := afero.Glob(a.Fs, filepath.Join(a.Dir, "pcmC*D*c"))
	if err != nil {
		return Undetermined, err
	}
	if len(nodes) == 0 {
		return Denied, nil
	}
	return Granted, nil
}

func (a *DeviceAuthorizer) Request(ctx context.Context) (Status, error) {
	st, err := a.Status(ctx)
	if err != nil {
		return st, err
	}
	if st == Undetermined {
		return Denied, nil
	}
	return st, nil
}

// Static always answers with the same status.
type Static Status

func (s Static) Status(context.Context) (Status, error)  { return Status(s), nil }
func (s Static) Request(context.Context) (Status, error) { return Status(s), nil }
