package debug

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTracefSuppressedWithoutMaskBit(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.New(slog.NewTextHandler(&buf, nil)), Decode)
	Tracef(Trap, "should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestTracefEmitsWhenMaskMatches(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), Decode|Trap)
	Tracef(Trap, "pc=0x%x", 0x1000)
	if !strings.Contains(buf.String(), "pc=0x1000") {
		t.Fatalf("got %q, want it to contain the formatted message", buf.String())
	}
}

func TestTracefSuppressedWithNilLogger(t *testing.T) {
	Init(nil, Decode|Trap|MMU|Bus|HostIO|Exec)
	// Must not panic even though every mask bit is enabled.
	Tracef(Exec, "unreachable sink")
}

func TestMaskBitsAreDistinct(t *testing.T) {
	bits := []int{Decode, Exec, Trap, MMU, Bus, HostIO}
	seen := map[int]bool{}
	for _, b := range bits {
		if seen[b] {
			t.Fatalf("duplicate mask bit %d", b)
		}
		seen[b] = true
	}
}
