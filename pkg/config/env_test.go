package config

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("PAYMASTER_TEST_KEY", "value")
	if got := GetEnv("PAYMASTER_TEST_KEY", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := GetEnv("PAYMASTER_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("PAYMASTER_TEST_INT", "42")
	if got := GetEnvInt("PAYMASTER_TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("PAYMASTER_TEST_INT", "not-a-number")
	if got := GetEnvInt("PAYMASTER_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if got := GetLogLevel(); got != logrus.DebugLevel {
		t.Fatalf("expected debug, got %v", got)
	}
	t.Setenv("LOG_LEVEL", "")
	if got := GetLogLevel(); got != logrus.InfoLevel {
		t.Fatalf("expected info default, got %v", got)
	}
}
