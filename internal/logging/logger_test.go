package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) must return a usable logger")
	}
	var nilPtr *componentLogger
	if logger := OrNop(nilPtr); logger == nil {
		t.Fatal("OrNop must catch typed nil pointers")
	} else {
		// Must not panic.
		logger.Info("ignored")
	}

	real := NewComponentLoggerTo("test", &bytes.Buffer{})
	if OrNop(real) != real {
		t.Fatal("OrNop must pass real loggers through")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
		{"  error  ", LevelError},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentLoggerFormatAndThreshold(t *testing.T) {
	SetDefaultLevel(LevelInfo)
	t.Cleanup(func() { SetDefaultLevel(LevelInfo) })

	var buf bytes.Buffer
	logger := NewComponentLoggerTo("engine", &buf)

	logger.Debug("hidden %d", 1)
	logger.Info("started task %s", "t1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line emitted below threshold")
	}
	if !strings.Contains(out, "[INFO] [engine] started task t1") {
		t.Errorf("unexpected line format: %q", out)
	}

	SetDefaultLevel(LevelDebug)
	logger.Debug("now visible")
	if !strings.Contains(buf.String(), "[DEBUG] [engine] now visible") {
		t.Error("debug line missing after lowering the threshold")
	}
}

func TestMultiFansOutAndFlattens(t *testing.T) {
	SetDefaultLevel(LevelInfo)

	var a, b bytes.Buffer
	inner := Multi(NewComponentLoggerTo("a", &a), nil)
	outer := Multi(inner, NewComponentLoggerTo("b", &b))

	outer.Warn("attention")

	if !strings.Contains(a.String(), "attention") || !strings.Contains(b.String(), "attention") {
		t.Fatalf("fan-out incomplete: a=%q b=%q", a.String(), b.String())
	}

	if Multi() != Nop() {
		t.Error("empty Multi should collapse to Nop")
	}
	single := NewComponentLoggerTo("only", &bytes.Buffer{})
	if Multi(single, nil) != single {
		t.Error("single-logger Multi should return the logger itself")
	}
}
