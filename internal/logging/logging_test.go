package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	prod, err := New(false)
	if err != nil {
		t.Fatalf("production logger: %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Error("production logger should not log debug")
	}

	dev, err := New(true)
	if err != nil {
		t.Fatalf("debug logger: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should log debug")
	}
}
