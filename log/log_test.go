package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(wd, "logs"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("SHUTTER_LOG_PATH", "/tmp/shutter-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/shutter-env-log" {
		t.Errorf("got %q, want /tmp/shutter-env-log", got)
	}
}

func TestResolveDirFlagBeatsEnv(t *testing.T) {
	t.Setenv("SHUTTER_LOG_PATH", "/tmp/from-env")
	got, err := ResolveDir("/tmp/from-flag")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/from-flag" {
		t.Errorf("got %q, want /tmp/from-flag", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("SHUTTER_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "shutter") {
		t.Errorf("default dir %q should be app specific", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{diagFileName, capturesFileName} {
		if _, err := os.Stat(filepath.Join(tmp, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestCaptureLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Capture("/photos/shutter-1.png", "sound", 12*time.Millisecond)

	data, err := os.ReadFile(filepath.Join(tmp, capturesFileName))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "/photos/shutter-1.png") || !strings.Contains(line, "\tsound\t") {
		t.Errorf("unexpected captures line: %q", line)
	}

	diag, err := os.ReadFile(filepath.Join(tmp, diagFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(diag), "capture") {
		t.Errorf("diagnostics log missing capture event: %q", diag)
	}
}

func TestGateEvents(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}

	GateEnabled(0.3, time.Second, "Built-in Microphone")
	Trigger(0.42)
	GateDisabled("disable")

	data, err := os.ReadFile(filepath.Join(tmp, diagFileName))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"gate_enabled", "sound_trigger", "gate_disabled", "Built-in Microphone"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("diagnostics log missing %q", want)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	// None of these may panic or create files.
	Info("x")
	Warnf("y %d", 1)
	Capture("p", "manual", 0)
	entries, _ := os.ReadDir(Dir())
	if len(entries) != 0 {
		t.Fatalf("expected no files before Init, got %d", len(entries))
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
