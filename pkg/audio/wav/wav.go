// Package wav writes mono 16-bit PCM audio as WAV files.
//
// The filesystem is abstracted behind [afero.Fs] so tests can write to
// memory; production callers pass afero.NewOsFs().
package wav

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	wave "github.com/zenwerk/go-wave"

	"github.com/auriclehq/auricle/pkg/audio"
)

// Writer persists PCM buffers as WAV files under a fixed directory.
type Writer struct {
	fs  afero.Fs
	dir string
}

// NewWriter creates a writer rooted at dir on fs. The directory is created
// on first use.
func NewWriter(fs afero.Fs, dir string) *Writer {
	return &Writer{fs: fs, dir: dir}
}

// Dir returns the directory files are written to.
func (w *Writer) Dir() string {
	return w.dir
}

// Write stores pcm (little-endian 16-bit mono samples) as a WAV file named
// name under the writer's directory, overwriting any existing file. It
// returns the full path of the written file.
func (w *Writer) Write(name string, pcm []byte, sampleRate int) (string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("wav: create dir %q: %w", w.dir, err)
	}
	path := filepath.Join(w.dir, name)
	f, err := w.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("wav: create %q: %w", path, err)
	}

	param := wave.WriterParam{
		Out:           f,
		Channel:       1,
		SampleRate:    sampleRate,
		BitsPerSample: 16,
	}
	ww, err := wave.NewWriter(param)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("wav: init writer for %q: %w", path, err)
	}
	if _, err := ww.WriteSample16(audio.BytesToInt16(pcm)); err != nil {
		ww.Close()
		return "", fmt.Errorf("wav: write samples to %q: %w", path, err)
	}
	if err := ww.Close(); err != nil {
		return "", fmt.Errorf("wav: finalize %q: %w", path, err)
	}
	return path, nil
}
