// Package transcript assembles finalized recognition fragments into
// utterances and persists a session's utterances to disk.
package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrExists = errors.New("transcript file already exists")

// Buffer holds the fragments of the utterance being assembled and the
// utterances completed so far in the session. Safe for concurrent use.
type Buffer struct {
	mu         sync.Mutex
	pending    []string
	utterances []string
}

func (b *Buffer) AddFragment(text string) {
	b.mu.Lock()
	b.pending = append(b.pending, text)
	b.mu.Unlock()
}

// Flush joins the pending fragments into one utterance and clears them.
// The utterance is recorded and returned only when it is non-empty.
func (b *Buffer) Flush() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	utterance := strings.TrimSpace(strings.Join(b.pending, " "))
	b.pending = nil
	if utterance == "" {
		return "", false
	}
	b.utterances = append(b.utterances, utterance)
	return utterance, true
}

func (b *Buffer) PendingLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Utterances returns a copy of the completed utterances.
func (b *Buffer) Utterances() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.utterances...)
}

// Text is the file form of a transcript: one utterance per line, trimmed.
func Text(utterances []string) string {
	return strings.TrimSpace(strings.Join(utterances, "\n"))
}

// Save writes the utterances to path and reports whether anything was
// written. Empty transcripts produce no file. The file appears atomically
// and an existing file is never replaced.
func Save(path string, utterances []string) (bool, error) {
	text := Text(utterances)
	if text == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err == nil {
		return false, fmt.Errorf("%s: %w", path, ErrExists)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".transcript-*.tmp")
	if err != nil {
		return false, fmt.Errorf("create temp transcript: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return false, fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close transcript: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fmt.Errorf("rename transcript: %w", err)
	}
	return true, nil
}

// UniquePath returns dir/prefix_id.ext, adding _2, _3... when that file exists.
func UniquePath(dir, prefix, id, ext string) string {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s%s", prefix, id, ext))
	for n := 2; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", prefix, id, n, ext))
	}
}
