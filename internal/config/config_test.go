package config

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_BOOL", "yes")
	t.Setenv("T_BOOL_BAD", "maybe")
	t.Setenv("T_INT", "42")
	t.Setenv("T_INT_BAD", "forty")
	t.Setenv("T_DUR", "90s")
	t.Setenv("T_STR", "hello")

	if !envBool("T_BOOL", false) {
		t.Error(`envBool("yes") = false`)
	}
	if envBool("T_BOOL_BAD", false) {
		t.Error("unparseable bool should fall back to the default")
	}
	if !envBool("T_MISSING", true) {
		t.Error("missing bool should fall back to the default")
	}
	if got := envInt("T_INT", 0); got != 42 {
		t.Errorf("envInt = %d, want 42", got)
	}
	if got := envInt("T_INT_BAD", 7); got != 7 {
		t.Errorf("unparseable int = %d, want default 7", got)
	}
	if got := envDur("T_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("envDur = %v, want 90s", got)
	}
	if got := envDur("T_MISSING", time.Minute); got != time.Minute {
		t.Errorf("missing duration = %v, want default 1m", got)
	}
	if got := envStr("T_STR", "d"); got != "hello" {
		t.Errorf("envStr = %q, want hello", got)
	}
	if got := envStr("T_MISSING", "d"); got != "d" {
		t.Errorf("missing string = %q, want default", got)
	}
}

func TestParseMethods(t *testing.T) {
	m := parseMethods("get, POST ,head")
	for _, want := range []string{"GET", "POST", "HEAD"} {
		if !m[want] {
			t.Errorf("parseMethods missing %s", want)
		}
	}
	if len(m) != 3 {
		t.Errorf("parseMethods size = %d, want 3", len(m))
	}
	if len(parseMethods("")) != 0 {
		t.Error("empty spec should yield no methods")
	}
}
