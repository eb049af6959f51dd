package config

import (
	"testing"
	"time"
)

func TestLoadWithOptions_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGISTER_TIMEOUT", "")
	t.Setenv("DIRECTORY_TIMEOUT", "")
	t.Setenv("LIFECYCLE_SUBJECT", "")
	t.Setenv("HASH_MAX_CONCURRENCY", "")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.RegisterTimeout != defaultRegisterTimeout {
		t.Fatalf("RegisterTimeout = %s, want %s", cfg.RegisterTimeout, defaultRegisterTimeout)
	}
	if cfg.DirectoryTimeout != defaultDirectoryTimeout {
		t.Fatalf("DirectoryTimeout = %s, want %s", cfg.DirectoryTimeout, defaultDirectoryTimeout)
	}
	if cfg.LifecycleSubject != defaultLifecycleSubject {
		t.Fatalf("LifecycleSubject = %q, want %q", cfg.LifecycleSubject, defaultLifecycleSubject)
	}
	if cfg.HashMaxConcurrency != defaultHashMaxConcurrency {
		t.Fatalf("HashMaxConcurrency = %d, want %d", cfg.HashMaxConcurrency, defaultHashMaxConcurrency)
	}
}

func TestLoadWithOptions_ParsesTimeouts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGISTER_TIMEOUT", "27s")
	t.Setenv("DIRECTORY_TIMEOUT", "250ms")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.RegisterTimeout != 27*time.Second {
		t.Fatalf("RegisterTimeout = %s, want 27s", cfg.RegisterTimeout)
	}
	if cfg.DirectoryTimeout != 250*time.Millisecond {
		t.Fatalf("DirectoryTimeout = %s, want 250ms", cfg.DirectoryTimeout)
	}
}

func TestLoadWithOptions_InvalidOrNonPositiveTimeoutFallsBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REGISTER_TIMEOUT", "-3s")
	t.Setenv("DIRECTORY_TIMEOUT", "soon")

	cfg, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.RegisterTimeout != defaultRegisterTimeout {
		t.Fatalf("RegisterTimeout = %s, want default %s", cfg.RegisterTimeout, defaultRegisterTimeout)
	}
	if cfg.DirectoryTimeout != defaultDirectoryTimeout {
		t.Fatalf("DirectoryTimeout = %s, want default %s", cfg.DirectoryTimeout, defaultDirectoryTimeout)
	}
}

func TestLoadWithOptions_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true}); err == nil {
		t.Fatal("expected DATABASE_URL error")
	}
}
