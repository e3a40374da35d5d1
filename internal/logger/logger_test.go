package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLogger(t *testing.T) {
	old := Output()
	defer SetOutput(old)

	var buf bytes.Buffer
	SetOutput(&buf)
	ctx := context.Background()

	t.Run("Info", func(t *testing.T) {
		buf.Reset()
		Info(ctx, "cache replaced")
		if !strings.Contains(buf.String(), "level=INFO") || !strings.Contains(buf.String(), `msg="cache replaced"`) {
			t.Errorf("unexpected Info record: %s", buf.String())
		}
	})

	t.Run("Error with error", func(t *testing.T) {
		buf.Reset()
		Error(ctx, errors.New("boom"), "refresh failed")
		out := buf.String()
		if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "err=boom") {
			t.Errorf("unexpected Error record: %s", out)
		}
	})

	t.Run("Error without error", func(t *testing.T) {
		buf.Reset()
		Error(ctx, nil, "plain")
		if strings.Contains(buf.String(), "err=") {
			t.Errorf("nil error must not be attached: %s", buf.String())
		}
	})

	t.Run("Debug with level", func(t *testing.T) {
		buf.Reset()
		SetLevel(LevelDebug)
		defer SetLevel(LevelInfo)

		Debug(ctx, "tick")
		if !strings.Contains(buf.String(), "level=DEBUG") {
			t.Errorf("expected debug record: %s", buf.String())
		}
	})

	t.Run("Debug without level", func(t *testing.T) {
		buf.Reset()
		SetLevel(LevelInfo)

		Debug(ctx, "hidden")
		if buf.String() != "" {
			t.Errorf("debug must be filtered at info level: %s", buf.String())
		}
	})
}

func TestLoggerWithFields(t *testing.T) {
	old := Output()
	defer SetOutput(old)

	var buf bytes.Buffer
	SetOutput(&buf)

	Info(context.Background(), "toggle", "task", 42, "state", "stale")
	out := buf.String()
	if !strings.Contains(out, "task=42") || !strings.Contains(out, "state=stale") {
		t.Errorf("fields missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
