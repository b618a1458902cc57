package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, name string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		_ = SetLevel(LevelInfo)
		SetGlobalDebug(false)
	})
	return ForService(name), buf
}

func TestPrefixAndLevel(t *testing.T) {
	l, buf := newTestLogger(t, "prefix_test")

	l.Infof("hello %s", "frame")
	out := buf.String()
	if !strings.Contains(out, "INFO [prefix_test>] hello frame") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDebugPerService(t *testing.T) {
	const name = "debug_service_specific"
	DisableDebugFor(name)
	l, buf := newTestLogger(t, name)

	l.Debugf("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug message printed while disabled")
	}

	EnableDebugFor(name)
	defer DisableDebugFor(name)
	l.Debugf("visible now")
	if !strings.Contains(buf.String(), "DEBUG [debug_service_specific>] visible now") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}

func TestSetLevelFiltersInfo(t *testing.T) {
	l, buf := newTestLogger(t, "level_test")

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	l.Infof("dropped")
	l.Warnf("kept")
	l.Errorf("also kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "also kept") {
		t.Fatalf("warn/error lines missing: %q", out)
	}
}

func TestSetLevelDebugEnablesGlobalDebug(t *testing.T) {
	l, buf := newTestLogger(t, "level_debug_test")

	if err := SetLevel("DEBUG"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	l.Debugf("debug on")
	if !strings.Contains(buf.String(), "debug on") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}

func TestSetLevelUnknown(t *testing.T) {
	if err := SetLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestTeeToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordframe.log")
	closer, err := TeeToFile(path)
	if err != nil {
		t.Fatalf("TeeToFile: %v", err)
	}
	t.Cleanup(func() { SetOutput(os.Stderr) })

	ForService("tee_test").Infof("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "[tee_test>] to file") {
		t.Fatalf("log file missing line: %q", data)
	}
}
