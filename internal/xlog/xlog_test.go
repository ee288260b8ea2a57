package xlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestHandleWritesFormattedLine(t *testing.T) {
	var out bytes.Buffer
	h := New(&out, slog.LevelInfo, false)
	logger := slog.New(h)
	logger.Info("hart started", "pc", "0x80000000")

	got := out.String()
	if !strings.Contains(got, "INFO:") || !strings.Contains(got, "hart started") || !strings.Contains(got, "pc=0x80000000") {
		t.Fatalf("got %q, missing expected fields", got)
	}
}

func TestDebugFalseSuppressesInfoOnStderr(t *testing.T) {
	// Below warn level with debug off: out gets it, stderr does not.
	// We can't intercept the real os.Stderr easily, so we confirm the
	// Handle contract instead: Enabled reflects the configured level.
	var out bytes.Buffer
	h := New(&out, slog.LevelWarn, false)
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Fatal("expected info level disabled when the handler's floor is warn")
	}
	if !h.Enabled(ctx, slog.LevelWarn) {
		t.Fatal("expected warn level enabled when the handler's floor is warn")
	}
}

func TestSetDebugIsMutable(t *testing.T) {
	var out bytes.Buffer
	h := New(&out, slog.LevelInfo, false)
	h.SetDebug(true)
	logger := slog.New(h)
	logger.Info("hello")
	if out.Len() == 0 {
		t.Fatal("expected output written to the configured sink regardless of debug flag")
	}
}

func TestWithAttrsPreservesOutputAndDebugFlag(t *testing.T) {
	var out bytes.Buffer
	h := New(&out, slog.LevelInfo, true)
	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")})
	logger := slog.New(h2)
	logger.Info("tagged")
	if !strings.Contains(out.String(), "k=v") {
		t.Fatalf("got %q, want it to contain k=v", out.String())
	}
}
