package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesDebugToFileOnly(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var console, file bytes.Buffer
	Setup(Options{
		Console: slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}),
		File:    &file,
	})

	slog.Debug("detail", "number", 1)
	slog.Info("summary", "count", 2)

	if strings.Contains(console.String(), "detail") {
		t.Errorf("Expected debug record to stay out of the console: %q", console.String())
	}
	if !strings.Contains(console.String(), "summary") {
		t.Errorf("Expected info record on the console: %q", console.String())
	}
	for _, want := range []string{"detail", "number=1", "summary", "count=2"} {
		if !strings.Contains(file.String(), want) {
			t.Errorf("Expected %q in log file: %q", want, file.String())
		}
	}
}

func TestFanoutHandlerWithAttrs(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(NewFanoutHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	)).With("repo", "o/r")

	logger.Info("hello")

	for _, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, "repo=o/r") || !strings.Contains(out, "msg=hello") {
			t.Errorf("unexpected output %q", out)
		}
	}
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	for _, line := range []string{"one\n", "two\n"} {
		f, err := OpenFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("unexpected file content %q", data)
	}
}
