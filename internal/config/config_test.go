package config

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("YTFETCH_TEST_STR", "value")
	if got := GetEnv("YTFETCH_TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnv = %q, want %q", got, "value")
	}
	if got := GetEnv("YTFETCH_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("GetEnv unset = %q, want fallback", got)
	}
	t.Setenv("YTFETCH_TEST_EMPTY", "")
	if got := GetEnv("YTFETCH_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("GetEnv empty = %q, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("YTFETCH_TEST_INT", "42")
	if got := GetEnvInt("YTFETCH_TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}
	t.Setenv("YTFETCH_TEST_BAD", "not-a-number")
	if got := GetEnvInt("YTFETCH_TEST_BAD", 7); got != 7 {
		t.Errorf("GetEnvInt unparsable = %d, want fallback 7", got)
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("YTFETCH_TEST_SIZE", "9437184")
	if got := GetEnvInt64("YTFETCH_TEST_SIZE", 1); got != 9437184 {
		t.Errorf("GetEnvInt64 = %d, want 9437184", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("YTFETCH_TEST_BOOL", "true")
	if !GetEnvBool("YTFETCH_TEST_BOOL", false) {
		t.Error("GetEnvBool = false, want true")
	}
	if GetEnvBool("YTFETCH_TEST_BOOL_UNSET", false) {
		t.Error("GetEnvBool unset = true, want fallback false")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("YTFETCH_TEST_DUR", "1500ms")
	if got := GetEnvDuration("YTFETCH_TEST_DUR", time.Second); got != 1500*time.Millisecond {
		t.Errorf("GetEnvDuration = %v, want 1.5s", got)
	}
	if got := GetEnvDuration("YTFETCH_TEST_DUR_UNSET", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration unset = %v, want fallback 1s", got)
	}
}
