package logger

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	entry := WithComponent("cache")
	if entry == nil {
		t.Fatal("expected non-nil entry")
	}
	if val, ok := entry.Data["component"]; !ok {
		t.Error("expected component field to be set")
	} else if val != "cache" {
		t.Errorf("expected component 'cache', got '%v'", val)
	}
}

func TestLoggerInit(t *testing.T) {
	if Logger == nil {
		t.Fatal("expected Logger to be initialized")
	}
	if Logger.Out != os.Stdout {
		t.Error("expected Logger output to be os.Stdout")
	}
}

func TestSetLevel(t *testing.T) {
	origLevel := Logger.GetLevel()
	t.Cleanup(func() { Logger.SetLevel(origLevel) })
	t.Setenv("LOG_LEVEL", "")

	tests := []struct {
		name          string
		level         string
		expectedLevel logrus.Level
		wantErr       bool
	}{
		{"debug level", "debug", logrus.DebugLevel, false},
		{"warn level", "warn", logrus.WarnLevel, false},
		{"uppercase", "ERROR", logrus.ErrorLevel, false},
		{"empty keeps current", "", logrus.InfoLevel, false},
		{"invalid level", "verbose", logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger.SetLevel(logrus.InfoLevel)
			err := SetLevel(tt.level)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if Logger.GetLevel() != tt.expectedLevel {
				t.Errorf("expected level %v, got %v", tt.expectedLevel, Logger.GetLevel())
			}
		})
	}
}

func TestSetLevel_EnvOverridesConfig(t *testing.T) {
	origLevel := Logger.GetLevel()
	t.Cleanup(func() { Logger.SetLevel(origLevel) })

	t.Setenv("LOG_LEVEL", "debug")
	if err := SetLevel("error"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected LOG_LEVEL to win, got %v", Logger.GetLevel())
	}
}
