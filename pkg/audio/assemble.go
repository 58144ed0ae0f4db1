package audio

import "time"

// Assembler re-buffers an arbitrary byte stream into frames of an exact
// sample count. Capture backends deliver whatever block size the hardware
// produced; detectors require a fixed frame length, so the assembler carries
// the remainder between pushes. No sample is dropped or duplicated.
//
// One assembler serves one stream; it is not safe for concurrent use.
type Assembler struct {
	frameBytes int
	sampleRate int
	buf        []byte
}

// NewAssembler creates an assembler emitting frames of frameSamples 16-bit
// samples at the given rate.
func NewAssembler(frameSamples, sampleRate int) *Assembler {
	return &Assembler{
		frameBytes: frameSamples * 2,
		sampleRate: sampleRate,
	}
}

// Push appends raw little-endian 16-bit PCM and returns every complete frame
// now available, in order. The timestamp is applied to each emitted frame.
func (a *Assembler) Push(data []byte, ts time.Time) []Frame {
	a.buf = append(a.buf, data...)
	if len(a.buf) < a.frameBytes {
		return nil
	}
	n := len(a.buf) / a.frameBytes
	frames := make([]Frame, 0, n)
	for i := range n {
		chunk := make([]byte, a.frameBytes)
		copy(chunk, a.buf[i*a.frameBytes:(i+1)*a.frameBytes])
		frames = append(frames, Frame{
			Data:       chunk,
			SampleRate: a.sampleRate,
			Timestamp:  ts,
		})
	}
	a.buf = a.buf[:copy(a.buf, a.buf[n*a.frameBytes:])]
	return frames
}

// Pending reports how many buffered bytes are waiting for the next frame
// boundary.
func (a *Assembler) Pending() int {
	return len(a.buf)
}
