package logging

import (
	"strings"
	"testing"
)

func TestNewWithDestWritesName(t *testing.T) {
	var sb strings.Builder
	logger := NewWithDest(&sb, "test")
	logger.Info("hello")
	if !strings.Contains(sb.String(), "test") {
		t.Errorf("expected logger name in output, got: %s", sb.String())
	}
	if !strings.Contains(sb.String(), "hello") {
		t.Errorf("expected message in output, got: %s", sb.String())
	}
}

func TestSetLogLevelFilters(t *testing.T) {
	SetLogLevel("error")
	defer SetLogLevel("info")

	var sb strings.Builder
	logger := NewWithDest(&sb, "test")
	logger.Info("should not appear")
	if sb.Len() != 0 {
		t.Errorf("expected no output at error level, got: %s", sb.String())
	}
}

func TestParseLevelPanicsOnGarbage(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid log level")
		}
	}()
	SetLogLevel("verbose")
}
