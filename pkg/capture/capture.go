// Package capture describes the host audio subsystem as seen by the
// recording session manager: a device that allocates capture handles.
package capture

import "context"

// Preset is a fixed capture configuration. The embedded content never
// chooses one.
type Preset struct {
	Name       string
	SampleRate int
	Channels   int
	BitDepth   int
	Extension  string
}

var HighQuality = Preset{
	Name:       "high_quality",
	SampleRate: 44100,
	Channels:   2,
	BitDepth:   16,
	Extension:  ".wav",
}

// Device allocates capture handles.
type Device interface {
	NewCapture(ctx context.Context) (Capture, error)
}

// Capture is one microphone recording. A handle is used once:
// Prepare, Start, Stop, then URI.
type Capture interface {
	Prepare(ctx context.Context, p Preset) error
	Start(ctx context.Context) error
	// Stop ends capture and unloads the handle.
	Stop(ctx context.Context) error
	// URI resolves the artifact locator after Stop.
	URI() (string, error)
	// Release discards the handle and anything it produced. Only failure
	// paths call it; it is safe at any point and more than once.
	Release() error
}
