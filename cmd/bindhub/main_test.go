package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRunMain_SuccessIsZero(t *testing.T) {
	var out bytes.Buffer
	if code := runMain(func() error { return nil }, &out); code != 0 {
		t.Fatalf("runMain() = %d, want 0", code)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), 1},
		{"canceled", context.Canceled, 130},
		{"exit error", &exitError{code: 3, err: errors.New("boom")}, 3},
		{"silent exit error", &exitError{code: 2, silent: true}, 2},
		{"wrapped exit error", &exitError{code: 4, err: errors.New("inner")}, 4},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := exitCodeForError(test.err, &out); got != test.want {
				t.Fatalf("exitCodeForError() = %d, want %d", got, test.want)
			}
		})
	}
}

func TestExitCodeForError_SilentProducesNoOutput(t *testing.T) {
	var out bytes.Buffer
	exitCodeForError(&exitError{code: 2, silent: true}, &out)
	if out.Len() != 0 {
		t.Fatalf("silent exit error wrote output: %q", out.String())
	}
}

func TestEmitCommandError_StructuredJSON(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got := payload["app"]; got != "bindhub" {
		t.Fatalf("app = %v, want %q", got, "bindhub")
	}
	if got := payload["exit_code"]; got != float64(1) {
		t.Fatalf("exit_code = %v, want %v", got, 1)
	}
	if got := payload["error"]; got != "boom" {
		t.Fatalf("error = %v, want %q", got, "boom")
	}
}

func TestEmitCommandError_FallsBackToJSONWhenLoggingEnvInvalid(t *testing.T) {
	t.Setenv("LOG_FORMAT", "invalid")
	t.Setenv("LOG_LEVEL", "info")

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("expected JSON fallback log, got parse error: %v", err)
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := error(&exitError{code: 3, err: inner})
	if !errors.Is(err, inner) {
		t.Fatal("exitError must unwrap to its cause")
	}
}
