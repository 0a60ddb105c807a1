package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestHelpersAreNilSafe(t *testing.T) {
	saved := Logger
	Logger = nil
	defer func() { Logger = saved }()

	Debug("d")
	Info("i", "k", 1)
	Warn("w")
	Error("e", "err", "boom")
}

func TestHelpersWriteKeyValues(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()

	var buf bytes.Buffer
	Logger = New(&buf, log.DebugLevel)

	Info("watering started", "target", "20%")
	Debug("moisture read", "percent", 15)

	out := buf.String()
	for _, want := range []string{"watering started", "target=20%", "moisture read", "percent=15", "plant-nanny"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()

	var buf bytes.Buffer
	Logger = New(&buf, log.WarnLevel)

	Info("hidden")
	Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("info should be filtered at warn level:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn missing:\n%s", buf.String())
	}
}

func TestInitWritesLogFile(t *testing.T) {
	saved := Logger
	defer func() { Logger = saved }()

	dir := filepath.Join(t.TempDir(), "logs")
	if err := Init(Config{Dir: dir}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("hello file")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "plant-nanny.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file missing message:\n%s", data)
	}
}
