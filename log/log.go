package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02 15:04:05"

var (
	diagLog        = zerolog.Nop()
	diagFile       *os.File
	sessionFile    *os.File
	transcribeFile *os.File
	console        io.Writer
	logMu          sync.Mutex
	pid            = os.Getpid()
	dir            string
)

// ResolveDir picks the log directory: flag, then VOXTYPE_LOG_DIR, then fallback.
// Relative paths are resolved against the working directory.
func ResolveDir(flagPath, fallback string) (string, error) {
	p := flagPath
	if p == "" {
		p = os.Getenv("VOXTYPE_LOG_DIR")
	}
	if p == "" {
		p = fallback
	}
	if p == "" {
		return "", fmt.Errorf("no log directory configured")
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// SetConsole mirrors log output to w (nil disables). Safe to call before Init.
func SetConsole(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	console = w
	rebuild()
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	transcribeFile, err = os.OpenFile(filepath.Join(dir, "transcribe_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		diagFile = nil
		return err
	}
	rebuild()
	return nil
}

// AttachSession starts teeing log output into a per-session file at path,
// replacing any previously attached session file.
func AttachSession(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	logMu.Lock()
	defer logMu.Unlock()
	if sessionFile != nil {
		sessionFile.Close()
	}
	sessionFile = f
	rebuild()
	return nil
}

func DetachSession() {
	logMu.Lock()
	defer logMu.Unlock()
	if sessionFile == nil {
		return
	}
	sessionFile.Close()
	sessionFile = nil
	rebuild()
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	for _, f := range []**os.File{&diagFile, &sessionFile, &transcribeFile} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
	rebuild()
}

// rebuild must be called with logMu held.
func rebuild() {
	var writers []io.Writer
	for _, f := range []*os.File{diagFile, sessionFile} {
		if f != nil {
			writers = append(writers, zerolog.ConsoleWriter{Out: f, TimeFormat: timeFormat, NoColor: true})
		}
	}
	if console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: timeFormat, NoColor: true})
	}
	if len(writers) == 0 {
		diagLog = zerolog.Nop()
		return
	}
	diagLog = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Int("pid", pid).Logger()
}

func logger() *zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	l := diagLog
	return &l
}

func Debugf(format string, args ...any) {
	logger().Debug().Msg(fmt.Sprintf(format, args...))
}

func Info(msg string) {
	logger().Info().Msg(msg)
}

func Infof(format string, args ...any) {
	logger().Info().Msg(fmt.Sprintf(format, args...))
}

func Warn(msg string) {
	logger().Warn().Msg(msg)
}

func Warnf(format string, args ...any) {
	logger().Warn().Msg(fmt.Sprintf(format, args...))
}

func Error(msg string) {
	logger().Error().Msg(msg)
}

func Errorf(format string, args ...any) {
	logger().Error().Msg(fmt.Sprintf(format, args...))
}

func SessionStart(id, transcriptPath string) {
	logger().Info().
		Str("session", id).
		Str("transcript", transcriptPath).
		Msg("session_start")
}

func SessionEnd(id string, utterances int, saved bool, dur time.Duration) {
	logger().Info().
		Str("session", id).
		Int("utterances", utterances).
		Bool("saved", saved).
		Float64("duration_s", dur.Seconds()).
		Msg("session_end")
}

// Utterance appends one typed utterance to transcribe_log.txt.
func Utterance(text string) {
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format(timeFormat), pid, text)
	transcribeFile.WriteString(line)
}
