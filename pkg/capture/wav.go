package capture

import (
	"encoding/binary"
	"io"
)

// WAVHeaderSize is the size of a canonical PCM RIFF header.
const WAVHeaderSize = 44

// WriteWAVHeader writes a canonical 44 byte PCM header for dataLen bytes of
// samples in format p.
func WriteWAVHeader(w io.Writer, p Preset, dataLen uint32) error {
	blockAlign := uint16(p.Channels * p.BitDepth / 8)
	byteRate := uint32(p.SampleRate) * uint32(blockAlign)

	var h [WAVHeaderSize]byte
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataLen)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(p.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(p.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], uint16(p.BitDepth))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataLen)

	_, err := w.Write(h[:])
	return err
}
