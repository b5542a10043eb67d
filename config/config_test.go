package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DEEPGRAM_API_KEY", "DEEPGRAM_URL", "DEEPGRAM_MODEL", "DEEPGRAM_LANGUAGE",
		"VOXTYPE_HOTKEY", "VOXTYPE_LOG_DIR", "VOXTYPE_TRANSCRIPT_DIR", "VOXTYPE_DEVICE",
		"VOXTYPE_SILENCE_LIMIT", "VOXTYPE_TYPE_DELAY", "VOXTYPE_ARCHIVE_AUDIO",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Hotkey != `ctrl+alt+\` {
		t.Errorf("Hotkey = %q", cfg.Hotkey)
	}
	if cfg.SilenceLimit != 20*time.Second {
		t.Errorf("SilenceLimit = %s, want 20s", cfg.SilenceLimit)
	}
	if cfg.LogDir != "logs" || cfg.TranscriptDir != "transcripts" {
		t.Errorf("dirs = %q, %q", cfg.LogDir, cfg.TranscriptDir)
	}
	dg := cfg.Deepgram
	if dg.Model != "nova-3" || dg.Language != "en-US" || dg.SampleRate != 16000 || dg.Channels != 1 {
		t.Errorf("unexpected deepgram defaults: %+v", dg)
	}
	if dg.UtteranceEnd != time.Second || dg.Endpointing != 300*time.Millisecond {
		t.Errorf("utterance_end=%s endpointing=%s", dg.UtteranceEnd, dg.Endpointing)
	}
	if !dg.InterimResults || !dg.VADEvents || !dg.NoDelay || !dg.SmartFormat {
		t.Error("expected interim results, vad events, smart format and no_delay enabled")
	}
}

func TestLoadFromDotenv(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "DEEPGRAM_API_KEY=dg-secret\nVOXTYPE_SILENCE_LIMIT=45\nVOXTYPE_HOTKEY=ctrl+shift+d\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv sets variables process-wide; restore them after the test.
	t.Cleanup(func() {
		os.Unsetenv("DEEPGRAM_API_KEY")
		os.Unsetenv("VOXTYPE_SILENCE_LIMIT")
		os.Unsetenv("VOXTYPE_HOTKEY")
	})
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("VOXTYPE_SILENCE_LIMIT")
	os.Unsetenv("VOXTYPE_HOTKEY")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Deepgram.APIKey != "dg-secret" {
		t.Errorf("APIKey = %q", cfg.Deepgram.APIKey)
	}
	if cfg.SilenceLimit != 45*time.Second {
		t.Errorf("SilenceLimit = %s, want 45s", cfg.SilenceLimit)
	}
	if cfg.Hotkey != "ctrl+shift+d" {
		t.Errorf("Hotkey = %q", cfg.Hotkey)
	}
}

func TestLoadMissingDotenvIsFine(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPGRAM_API_KEY", "k")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Deepgram.APIKey != "k" {
		t.Errorf("APIKey = %q", cfg.Deepgram.APIKey)
	}
}

func TestLoadDurationFormats(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOXTYPE_SILENCE_LIMIT", "1500ms")
	t.Setenv("VOXTYPE_TYPE_DELAY", "0")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SilenceLimit != 1500*time.Millisecond {
		t.Errorf("SilenceLimit = %s", cfg.SilenceLimit)
	}
	if cfg.TypeDelay != 0 {
		t.Errorf("TypeDelay = %s", cfg.TypeDelay)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("VOXTYPE_SILENCE_LIMIT", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Error("expected error for invalid duration")
	}

	clearEnv(t)
	t.Setenv("VOXTYPE_ARCHIVE_AUDIO", "maybe")
	if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Error("expected error for invalid boolean")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate without key = %v, want ErrMissingAPIKey", err)
	}
	cfg.Deepgram.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	cfg.SilenceLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero silence limit")
	}
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.LogDir = filepath.Join(root, "a", "logs")
	cfg.TranscriptDir = filepath.Join(root, "b", "transcripts")
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{cfg.LogDir, cfg.TranscriptDir} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("%s not created: %v", d, err)
		}
	}
}
