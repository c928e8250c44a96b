package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected silent logger when no level is configured")
	}
}

func TestInitializeRejectsUnknownLevel(t *testing.T) {
	if err := Initialize("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSessionEventFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogSessionEvent("devices", "01J0", "finished", zap.Int("devices", 3))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["scope"] != "devices" || ctx["event"] != "finished" {
		t.Errorf("unexpected fields: %v", ctx)
	}
	if ctx["devices"] != int64(3) {
		t.Errorf("devices = %v, want 3", ctx["devices"])
	}
}

func TestDumps(t *testing.T) {
	data := []byte{0x41, 0x00, 0x7f, 0x42}
	if got := hexDump(data); got != "41007f42" {
		t.Errorf("hexDump = %q", got)
	}
	if got := asciiDump(data); got != "A..B" {
		t.Errorf("asciiDump = %q", got)
	}
	long := make([]byte, 100)
	if got := hexDump(long); len(got) != 128+3 {
		t.Errorf("hexDump should truncate, got len %d", len(got))
	}
}

func TestParseLevelIsCaseInsensitive(t *testing.T) {
	got, err := ParseLevel("DEBUG")
	if err != nil || got != zapcore.DebugLevel {
		t.Errorf("ParseLevel(DEBUG) = %v, %v", got, err)
	}
	if _, err := ParseLevel("fatal"); err == nil {
		t.Error("fatal should not be accepted")
	}
}
