package audio

import "time"

// Frame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the input
// device, inspected by the wake detector and the voice activity gate, and
// accumulated into utterances.
type Frame struct {
	// PCM audio data: 16-bit signed little-endian samples, mono.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for wake word and STT input).
	SampleRate int

	// Timestamp marks when this frame was captured.
	Timestamp time.Time
}

// Samples returns the number of 16-bit samples in the frame.
func (f Frame) Samples() int {
	return len(f.Data) / 2
}

// Duration returns the play length of the frame at its sample rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}

// DeviceInfo describes one capture device visible to the audio backend.
type DeviceInfo struct {
	// Name is the backend-reported device name.
	Name string

	// IsDefault marks the system default capture device.
	IsDefault bool
}
