package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandlerFansOut(t *testing.T) {
	var info, errOnly bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&errOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	logger := slog.New(h).With("collection", "messages")

	logger.Info("item created", "item_id", "i1")
	logger.Error("create item failed", "error", "boom")

	if n := strings.Count(info.String(), "\n"); n != 2 {
		t.Errorf("info sink got %d lines", n)
	}
	if n := strings.Count(errOnly.String(), "\n"); n != 1 {
		t.Errorf("error sink got %d lines", n)
	}
	if !strings.Contains(errOnly.String(), `"collection":"messages"`) {
		t.Errorf("attrs not propagated: %s", errOnly.String())
	}
}

func TestMultiHandlerKeepsGoingOnFailure(t *testing.T) {
	var buf bytes.Buffer
	ok := slog.NewJSONHandler(&buf, nil)
	h := NewMultiHandler(failingHandler{ok}, ok)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0))
	if err == nil {
		t.Error("failure was swallowed")
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Error("healthy handler skipped")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
