package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/mikey/phish-scanner/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for name, want := range tests {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestInitLogger(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("logging.level", "error")
	logger, err := InitLogger(config.NewFromViper(v))
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be disabled at error level")
	}

	console, err := InitConsoleLogger(true, false)
	if err != nil {
		t.Fatal(err)
	}
	if !console.Core().Enabled(zapcore.DebugLevel) {
		t.Error("verbose console logger should log debug")
	}
}
