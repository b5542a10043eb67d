package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
)

func sine(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func pcmBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestFlacEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewFlac(&buf, 16000)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	samples := sine(BlockSize*2 + 100)
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}
	if out := buf.Bytes(); len(out) < 4 || string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderRejectsOversizedBlock(t *testing.T) {
	enc, err := NewFlac(io.Discard, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.EncodeBlock(make([]int16, BlockSize+1)); err == nil {
		t.Error("expected error for oversized block")
	}
}

func TestFileArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript_20261019_093000.flac")
	a, err := NewFileArchive(path, 16000)
	if err != nil {
		t.Fatalf("NewFileArchive: %v", err)
	}

	samples := sine(BlockSize + 1000)
	data := pcmBytes(samples)
	// Odd-sized chunks split samples across writes.
	for i := 0; i < len(data); i += 1023 {
		end := min(i+1023, len(data))
		if err := a.Write(data[i:end]); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if a.Samples() != uint64(len(samples)) {
		t.Errorf("Samples = %d, want %d", a.Samples(), len(samples))
	}

	stream, err := flac.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	defer stream.Close()

	var decoded []int32
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ParseNext: %v", err)
		}
		decoded = append(decoded, f.Subframes[0].Samples...)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if decoded[i] != int32(samples[i]) {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestFileArchiveRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taken.flac")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileArchive(path, 16000); err == nil {
		t.Error("expected error for existing file")
	}
}

func TestFileArchiveWriteAfterClose(t *testing.T) {
	a, err := NewFileArchive(filepath.Join(t.TempDir(), "a.flac"), 16000)
	if err != nil {
		t.Fatal(err)
	}
	a.Close()
	if err := a.Write([]byte{0, 0}); err == nil {
		t.Error("expected error writing to closed archive")
	}
}
