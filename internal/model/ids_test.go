package model

import (
	"strings"
	"testing"
)

func TestConnectorTypeID_Deterministic(t *testing.T) {
	t.Parallel()

	a := ConnectorTypeID("s3")
	b := ConnectorTypeID("s3")
	if a != b {
		t.Fatalf("ConnectorTypeID not stable: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "ct_") {
		t.Fatalf("ConnectorTypeID = %q, want ct_ prefix", a)
	}
	if a == ConnectorTypeID("jdbc") {
		t.Fatal("distinct names must yield distinct ids")
	}
}

func TestConnectorTypeID_TrimsWhitespace(t *testing.T) {
	t.Parallel()

	if ConnectorTypeID(" s3 ") != ConnectorTypeID("s3") {
		t.Fatal("surrounding whitespace must not change the id")
	}
}

func TestBindingID_PairOrderMatters(t *testing.T) {
	t.Parallel()

	a := BindingID("acct-1", "ct_x")
	if a != BindingID("acct-1", "ct_x") {
		t.Fatal("BindingID not stable")
	}
	if !strings.HasPrefix(a, "bd_") {
		t.Fatalf("BindingID = %q, want bd_ prefix", a)
	}
	if a == BindingID("ct_x", "acct-1") {
		t.Fatal("swapping the pair must yield a different id")
	}
}

func TestBindingID_NoConcatenationAmbiguity(t *testing.T) {
	t.Parallel()

	// "ab"+"c" and "a"+"bc" must not collide.
	if BindingID("ab", "c") == BindingID("a", "bc") {
		t.Fatal("pair components must be delimited")
	}
}

func TestParseHydrationPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want HydrationPolicy
		ok   bool
	}{
		{"AUTO", HydrationAuto, true},
		{"auto", HydrationAuto, true},
		{" always_ref ", HydrationAlwaysRef, true},
		{"ALWAYS_INLINE", HydrationAlwaysInline, true},
		{"", "", false},
		{"sometimes", "", false},
	}
	for _, test := range tests {
		got, ok := ParseHydrationPolicy(test.raw)
		if ok != test.ok || got != test.want {
			t.Fatalf("ParseHydrationPolicy(%q) = (%q, %v), want (%q, %v)", test.raw, got, ok, test.want, test.ok)
		}
	}
}

func TestCustomConfigClone(t *testing.T) {
	t.Parallel()

	var nilCfg CustomConfig
	if nilCfg.Clone() != nil {
		t.Fatal("nil clone should stay nil")
	}

	src := CustomConfig{"k": "v"}
	dst := src.Clone()
	dst["k"] = "other"
	if src["k"] != "v" {
		t.Fatal("clone must not share top-level storage")
	}
}
