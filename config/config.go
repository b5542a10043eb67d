package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not set")

// Deepgram holds the live-listen options sent as query parameters.
type Deepgram struct {
	APIKey         string
	URL            string
	Model          string
	Language       string
	Encoding       string
	SampleRate     int
	Channels       int
	InterimResults bool
	UtteranceEnd   time.Duration
	VADEvents      bool
	Endpointing    time.Duration
	SmartFormat    bool
	NoDelay        bool
	KeepAlive      time.Duration
}

type Config struct {
	Hotkey        string
	SilenceLimit  time.Duration
	LogDir        string
	TranscriptDir string
	TypeDelay     time.Duration
	ArchiveAudio  bool
	Device        string
	Deepgram      Deepgram
}

func Default() Config {
	return Config{
		Hotkey:        `ctrl+alt+\`,
		SilenceLimit:  20 * time.Second,
		LogDir:        "logs",
		TranscriptDir: "transcripts",
		TypeDelay:     10 * time.Millisecond,
		Deepgram: Deepgram{
			URL:            "wss://api.deepgram.com/v1/listen",
			Model:          "nova-3",
			Language:       "en-US",
			Encoding:       "linear16",
			SampleRate:     16000,
			Channels:       1,
			InterimResults: true,
			UtteranceEnd:   1000 * time.Millisecond,
			VADEvents:      true,
			Endpointing:    300 * time.Millisecond,
			SmartFormat:    true,
			NoDelay:        true,
			KeepAlive:      5 * time.Second,
		},
	}
}

// Load reads the given dotenv files (".env" when none are named) and applies
// environment overrides on top of Default. Missing dotenv files are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	cfg.Deepgram.APIKey = strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY"))
	cfg.Deepgram.URL = envOrDefault("DEEPGRAM_URL", cfg.Deepgram.URL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	cfg.Hotkey = envOrDefault("VOXTYPE_HOTKEY", cfg.Hotkey)
	cfg.LogDir = envOrDefault("VOXTYPE_LOG_DIR", cfg.LogDir)
	cfg.TranscriptDir = envOrDefault("VOXTYPE_TRANSCRIPT_DIR", cfg.TranscriptDir)
	cfg.Device = envOrDefault("VOXTYPE_DEVICE", cfg.Device)

	var err error
	if cfg.SilenceLimit, err = envOrDefaultDuration("VOXTYPE_SILENCE_LIMIT", cfg.SilenceLimit); err != nil {
		return Config{}, err
	}
	if cfg.TypeDelay, err = envOrDefaultDuration("VOXTYPE_TYPE_DELAY", cfg.TypeDelay); err != nil {
		return Config{}, err
	}
	if cfg.ArchiveAudio, err = envOrDefaultBool("VOXTYPE_ARCHIVE_AUDIO", cfg.ArchiveAudio); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Deepgram.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.SilenceLimit <= 0 {
		return fmt.Errorf("silence limit must be positive, got %s", c.SilenceLimit)
	}
	if c.TypeDelay < 0 {
		return fmt.Errorf("type delay must not be negative, got %s", c.TypeDelay)
	}
	if c.Deepgram.SampleRate <= 0 || c.Deepgram.Channels <= 0 {
		return fmt.Errorf("invalid audio format %d Hz / %d ch", c.Deepgram.SampleRate, c.Deepgram.Channels)
	}
	if c.LogDir == "" || c.TranscriptDir == "" {
		return errors.New("log and transcript directories must be set")
	}
	return nil
}

// EnsureDirs creates the log and transcript directories if absent.
func (c Config) EnsureDirs() error {
	for _, d := range []string{c.LogDir, c.TranscriptDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envOrDefaultDuration accepts Go durations ("1500ms") or plain seconds ("20").
func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func envOrDefaultBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}
