package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagFileName     = "diagnostics_log.txt"
	capturesFileName = "captures_log.txt"
)

var (
	diagLog      zerolog.Logger
	diagFile     *os.File
	capturesFile *os.File
	logMu        sync.Mutex
	logReady     bool
	pid          int
	dir          string
)

// ResolveDir picks the log directory: the -logpath flag, then
// SHUTTER_LOG_PATH, then the per-OS default.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("SHUTTER_LOG_PATH")} {
		if p != "" {
			return absPath(p)
		}
	}
	return getDefaultDir()
}

func absPath(p string) (string, error) {
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

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Init opens both log files. Every helper is a no-op until it succeeds.
func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	diag, err := openAppend(diagFileName)
	if err != nil {
		return err
	}
	captures, err := openAppend(capturesFileName)
	if err != nil {
		diag.Close()
		return err
	}

	pid = os.Getpid()
	diagFile, capturesFile = diag, captures
	diagLog = zerolog.New(zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    true,
	}).With().Timestamp().Int("pid", pid).Logger()
	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady = false
	for _, f := range []**os.File{&diagFile, &capturesFile} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
}

func ready() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logReady
}

func Info(msg string) {
	if ready() {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if ready() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if ready() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if ready() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if ready() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(version, device string, threshold float64, cooldown time.Duration) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("version", version).
		Str("device", device).
		Float64("threshold", threshold).
		Dur("cooldown", cooldown).
		Msg("session_start")
}

func SessionEnd(photos int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Int("photos", photos).
		Msg("session_end")
}

func GateEnabled(threshold float64, cooldown time.Duration, device string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Float64("threshold", threshold).
		Dur("cooldown", cooldown).
		Str("device", device).
		Msg("gate_enabled")
}

func GateDisabled(reason string) {
	if !ready() {
		return
	}
	diagLog.Info().Str("reason", reason).Msg("gate_disabled")
}

func Trigger(level float64) {
	if !ready() {
		return
	}
	diagLog.Info().Float64("level", level).Msg("sound_trigger")
}

// Capture records a saved photo in the captures log and the diagnostics log.
func Capture(path, source string, took time.Duration) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("path", path).
		Str("source", source).
		Float64("took_ms", float64(took.Microseconds())/1000).
		Msg("capture")

	logMu.Lock()
	defer logMu.Unlock()
	if capturesFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, source, path)
	capturesFile.WriteString(line)
}
