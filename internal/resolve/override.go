package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bindhub/bindhub/internal/model"
)

// OverrideVersion is the current typed-override envelope version.
const OverrideVersion = 1

// TypedOverride is the decoded form of a binding's serialized typed
// override. Pointer fields carry explicit presence: nil means the field is
// unset and the lower layers stand, while a pointer to the zero value (an
// explicit false, or zero bytes) overrides them. The custom-config
// sub-document participates in the shallow merge only when non-nil.
type TypedOverride struct {
	PersistPipedoc     *bool
	MaxInlineSizeBytes *int64
	HydrationPolicy    *model.HydrationPolicy
	CustomConfig       model.CustomConfig
}

// envelopeV1 is the version-1 wire form. The "v" tag is mandatory so the
// decoder can dispatch on schema version instead of guessing from shape.
type envelopeV1 struct {
	V                  int            `json:"v"`
	PersistPipedoc     *bool          `json:"persist_pipedoc,omitempty"`
	MaxInlineSizeBytes *int64         `json:"max_inline_size_bytes,omitempty"`
	HydrationPolicy    *string        `json:"hydration_policy,omitempty"`
	CustomConfig       map[string]any `json:"custom_config,omitempty"`
}

// EncodeTypedOverride serializes an override into its versioned envelope.
func EncodeTypedOverride(o TypedOverride) ([]byte, error) {
	env := envelopeV1{
		V:                  OverrideVersion,
		PersistPipedoc:     o.PersistPipedoc,
		MaxInlineSizeBytes: o.MaxInlineSizeBytes,
		CustomConfig:       o.CustomConfig,
	}
	if o.HydrationPolicy != nil {
		policy, ok := model.ParseHydrationPolicy(string(*o.HydrationPolicy))
		if !ok {
			return nil, fmt.Errorf("unknown hydration policy %q", *o.HydrationPolicy)
		}
		s := string(policy)
		env.HydrationPolicy = &s
	}
	return json.Marshal(env)
}

// DecodeTypedOverride parses a stored typed-override blob. A nil, empty, or
// JSON-null blob is a legitimately absent override and decodes to nil. Any
// other undecodable or out-of-contract payload is an error: stored bytes
// that fail to decode indicate corruption, never an empty override.
func DecodeTypedOverride(raw []byte) (*TypedOverride, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var env envelopeV1
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding override envelope: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after override envelope")
	}
	if env.V != OverrideVersion {
		return nil, fmt.Errorf("unsupported override envelope version %d", env.V)
	}

	out := &TypedOverride{
		PersistPipedoc:     env.PersistPipedoc,
		MaxInlineSizeBytes: env.MaxInlineSizeBytes,
	}
	if env.MaxInlineSizeBytes != nil && *env.MaxInlineSizeBytes < 0 {
		return nil, fmt.Errorf("max_inline_size_bytes %d is negative", *env.MaxInlineSizeBytes)
	}
	if env.HydrationPolicy != nil {
		policy, ok := model.ParseHydrationPolicy(*env.HydrationPolicy)
		if !ok {
			return nil, fmt.Errorf("unknown hydration policy %q", *env.HydrationPolicy)
		}
		out.HydrationPolicy = &policy
	}
	if env.CustomConfig != nil {
		out.CustomConfig = model.CustomConfig(env.CustomConfig)
	}
	return out, nil
}

func (o *TypedOverride) apply(base model.TypedDefaults) model.TypedDefaults {
	out := base
	if o.PersistPipedoc != nil {
		out.PersistPipedoc = *o.PersistPipedoc
	}
	if o.MaxInlineSizeBytes != nil {
		out.MaxInlineSizeBytes = *o.MaxInlineSizeBytes
	}
	if o.HydrationPolicy != nil {
		out.HydrationPolicy = *o.HydrationPolicy
	}
	return out
}
