package bt

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIsByKind(t *testing.T) {
	err := NewError(KindPoweredOff, "start classic scan", errors.New("hci0 down"))
	wrapped := fmt.Errorf("scan: %w", err)

	if !errors.Is(wrapped, ErrPoweredOff) {
		t.Error("errors.Is(wrapped, ErrPoweredOff) = false, want true")
	}
	if errors.Is(wrapped, ErrInputOutput) {
		t.Error("errors.Is(wrapped, ErrInputOutput) = true, want false")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error", err: errors.New("boom"), want: KindUnknown},
		{name: "typed", err: NewError(KindMissingPermissions, "", nil), want: KindMissingPermissions},
		{name: "wrapped typed", err: fmt.Errorf("outer: %w", NewError(KindInputOutput, "query", nil)), want: KindInputOutput},
		{name: "nil", err: nil, want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyKeepsExistingKind(t *testing.T) {
	orig := NewError(KindMissingPermissions, "start le scan", nil)
	got := Classify(fmt.Errorf("wrapped: %w", orig), KindInputOutput, "start")
	if got.Kind != KindMissingPermissions {
		t.Errorf("Classify() kind = %v, want %v", got.Kind, KindMissingPermissions)
	}

	plain := Classify(errors.New("rejected"), KindInputOutput, "start le scan")
	if plain.Kind != KindInputOutput || plain.Op != "start le scan" {
		t.Errorf("Classify() = %+v", plain)
	}

	if Classify(nil, KindInputOutput, "x") != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewDeviceError(KindInputOutput, "query services", MustParseAddress("00:11:22:33:44:55"), errors.New("host is down"))
	msg := err.Error()
	for _, want := range []string{"query services", "Input/Output Error", "00:11:22:33:44:55", "host is down"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
