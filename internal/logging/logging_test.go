package logging

import "testing"

func TestParseLevelRecognizesEveryName(t *testing.T) {
	cases := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true,
		"warning": true, "error": true, "disabled": true, "": false,
		"garbage": false,
	}
	for raw, wantOK := range cases {
		_, ok := parseLevel(raw)
		if ok != wantOK {
			t.Errorf("parseLevel(%q) ok = %v, want %v", raw, ok, wantOK)
		}
	}
}

func TestParseBoolRejectsGarbage(t *testing.T) {
	if _, ok := parseBool("not-a-bool"); ok {
		t.Fatalf("parseBool accepted garbage input")
	}
}

func TestParseBoolAcceptsStandardForms(t *testing.T) {
	for _, raw := range []string{"true", "1", "t", "false", "0", "f"} {
		if _, ok := parseBool(raw); !ok {
			t.Errorf("parseBool(%q) ok = false, want true", raw)
		}
	}
}

func TestLoggerIsSafeToCallConcurrentlyBeforeConfigure(t *testing.T) {
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			_ = Logger()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
