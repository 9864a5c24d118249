package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// resetLogger resets the logger to default state for test isolation
func resetLogger() {
	Init(Options{})
}

// --- Init Tests ---

func TestInit_DefaultLevel_Info(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	Info("pipeline started", "estado", "GO")
	if !strings.Contains(buf.String(), "pipeline started") {
		t.Error("Info message should be logged at default level")
	}

	buf.Reset()

	Debug("chromedp action")
	if strings.Contains(buf.String(), "chromedp action") {
		t.Error("Debug message should not be logged at default level")
	}
}

func TestInit_Levels(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug flag", Options{Debug: true}, true, true, true},
		{"quiet flag", Options{Quiet: true}, false, false, false},
		{"quiet overrides debug", Options{Debug: true, Quiet: true}, false, false, false},
		{"level string warn", Options{Level: "warn"}, false, false, true},
		{"level string debug", Options{Level: "DEBUG"}, true, true, true},
		{"debug flag overrides level", Options{Level: "error", Debug: true}, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			opts := tt.opts
			opts.Output = buf
			Init(opts)
			defer resetLogger()

			Debug("debug-line")
			Info("info-line")
			Warn("warn-line")
			Error("error-line")

			out := buf.String()
			if got := strings.Contains(out, "debug-line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "info-line"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(out, "warn-line"); got != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.wantWarn)
			}
			if !strings.Contains(out, "error-line") {
				t.Error("error should always be logged")
			}
		})
	}
}

func TestInit_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("analysis complete", "imovel", "1444409748105", "nota", 7.5)

	out := buf.String()
	for _, want := range []string{`"msg":"analysis complete"`, `"imovel":"1444409748105"`, `"nota":7.5`, `"level":"INFO"`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON output missing %s: %s", want, out)
		}
	}
}

func TestInit_CustomLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	custom := slog.New(slog.NewTextHandler(buf, nil))
	Init(Options{Logger: custom, JSON: true})
	defer resetLogger()

	if Logger() != custom {
		t.Fatal("Logger() should return the custom logger")
	}
	Info("custom")
	if !strings.Contains(buf.String(), "msg=custom") {
		t.Errorf("expected text output from custom logger, got %q", buf.String())
	}
}

// --- ParseLevel ---

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" Info ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// --- With / Context ---

func TestWith_ReturnsLoggerWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	l := With("task", "abc-123")
	l.Info("task running")

	out := buf.String()
	if !strings.Contains(out, "task running") || !strings.Contains(out, "task=abc-123") {
		t.Errorf("expected message and attributes, got %q", out)
	}
}

func TestContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	ctx := context.Background()
	DebugContext(ctx, "ctx-debug")
	InfoContext(ctx, "ctx-info")
	WarnContext(ctx, "ctx-warn")
	ErrorContext(ctx, "ctx-error")

	out := buf.String()
	for _, want := range []string{"ctx-debug", "ctx-info", "ctx-warn", "ctx-error"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}
