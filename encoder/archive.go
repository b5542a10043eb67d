package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileArchive records a session's PCM stream to a FLAC file. Samples are
// buffered into full blocks; the final partial block is written on Close.
type FileArchive struct {
	mu      sync.Mutex
	file    *os.File
	enc     *FlacEncoder
	pending []int16
	odd     []byte
	closed  bool
}

// seekWriter hides Close from the flac encoder so the file is closed
// exactly once, by FileArchive.
type seekWriter struct {
	f *os.File
}

func (w seekWriter) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w seekWriter) Seek(offset int64, whence int) (int64, error) {
	return w.f.Seek(offset, whence)
}

var _ io.WriteSeeker = seekWriter{}

func NewFileArchive(path string, sampleRate uint32) (*FileArchive, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("create audio archive: %w", err)
	}
	enc, err := NewFlac(seekWriter{f}, sampleRate)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &FileArchive{file: f, enc: enc, pending: make([]int16, 0, BlockSize)}, nil
}

// Write appends little-endian 16-bit samples. A trailing odd byte is kept
// for the next call.
func (a *FileArchive) Write(pcm []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("audio archive is closed")
	}
	if len(a.odd) > 0 {
		pcm = append(a.odd, pcm...)
		a.odd = nil
	}
	n := len(pcm) &^ 1
	for i := 0; i < n; i += 2 {
		a.pending = append(a.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
		if len(a.pending) == BlockSize {
			if err := a.enc.EncodeBlock(a.pending); err != nil {
				return err
			}
			a.pending = a.pending[:0]
		}
	}
	if n < len(pcm) {
		a.odd = []byte{pcm[n]}
	}
	return nil
}

func (a *FileArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if err := a.enc.EncodeBlock(a.pending); err != nil {
		errs = append(errs, err)
	}
	a.pending = nil
	if err := a.enc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finish flac stream: %w", err))
	}
	if err := a.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *FileArchive) Samples() uint64 {
	return a.enc.TotalFrames()
}
