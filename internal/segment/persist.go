package segment

import (
	"errors"
	"fmt"
	"time"

	"github.com/auriclehq/auricle/pkg/audio/wav"
)

// ErrPersist marks a failure to write a finalized utterance to disk. Persist
// failures are logged and never interrupt the dialogue.
var ErrPersist = errors.New("utterance persistence failure")

// Persister writes a finalized utterance somewhere for later inspection.
type Persister interface {
	// Persist stores the utterance and returns a human-readable location.
	Persist(u *Utterance) (string, error)
}

// WAVPersister writes each utterance as a timestamped mono WAV file. Two
// utterances finalized within the same second overwrite each other, which is
// acceptable for a debugging aid.
type WAVPersister struct {
	w   *wav.Writer
	now func() time.Time
}

// NewWAVPersister constructs a persister over the given WAV writer.
func NewWAVPersister(w *wav.Writer) *WAVPersister {
	return &WAVPersister{w: w, now: time.Now}
}

// Persist implements Persister.
func (p *WAVPersister) Persist(u *Utterance) (string, error) {
	name := fmt.Sprintf("utterance_%s.wav", p.now().Format("20060102_150405"))
	path, err := p.w.Write(name, u.PCM, u.SampleRate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return path, nil
}

// Ensure WAVPersister implements Persister at compile time.
var _ Persister = (*WAVPersister)(nil)
