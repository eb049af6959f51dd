// Package resolve computes the effective configuration for a binding by
// merging four layered sources with strict precedence: system defaults,
// connector-type defaults, the binding's structured custom-config override,
// and the binding's typed override envelope. Resolution is a pure function
// of its inputs; it performs no I/O and mutates nothing.
package resolve

import (
	"github.com/bindhub/bindhub/internal/fault"
	"github.com/bindhub/bindhub/internal/model"
)

const (
	systemMaxInlineSizeBytes = 1 << 20 // 1 MiB
)

// EffectiveConfig is the fully merged configuration returned on successful
// credential validation and by the administrative resolve preview.
type EffectiveConfig struct {
	PersistPipedoc     bool
	MaxInlineSizeBytes int64
	HydrationPolicy    model.HydrationPolicy
	CustomConfig       model.CustomConfig
}

// SystemDefaults is the bottom layer of the typed-field merge.
func SystemDefaults() model.TypedDefaults {
	return model.TypedDefaults{
		PersistPipedoc:     false,
		MaxInlineSizeBytes: systemMaxInlineSizeBytes,
		HydrationPolicy:    model.HydrationAuto,
	}
}

// Resolve merges connectorType and binding into one effective config.
//
// Typed fields resolve field-by-field: system default, overridden by the
// connector-type default, overridden by the binding's typed override when
// that override explicitly sets the field. Custom config is a progressive
// shallow merge: type default document, then the binding's column override,
// then the typed override's custom sub-document when present. A key found
// in a later layer fully replaces the earlier value; nothing deep-merges.
//
// A nil connectorType and/or nil binding resolves to system defaults with
// the remaining layers applied. Malformed typed-override bytes fail with a
// data-integrity error naming the binding; corrupt stored bytes are a bug,
// not an empty override.
func Resolve(connectorType *model.ConnectorType, binding *model.Binding) (EffectiveConfig, error) {
	typed := SystemDefaults()
	if connectorType != nil {
		typed = applyTypeDefaults(typed, connectorType.Defaults)
	}

	custom := model.CustomConfig{}
	if connectorType != nil {
		mergeInto(custom, connectorType.CustomConfig)
	}
	if binding != nil {
		mergeInto(custom, binding.CustomConfig)
	}

	if binding != nil {
		override, err := DecodeTypedOverride(binding.TypedOverrides)
		if err != nil {
			return EffectiveConfig{}, fault.Wrap(fault.KindDataIntegrity,
				"binding "+binding.ID+" has a malformed typed override", err)
		}
		if override != nil {
			typed = override.apply(typed)
			if override.CustomConfig != nil {
				mergeInto(custom, override.CustomConfig)
			}
		}
	}

	return EffectiveConfig{
		PersistPipedoc:     typed.PersistPipedoc,
		MaxInlineSizeBytes: typed.MaxInlineSizeBytes,
		HydrationPolicy:    typed.HydrationPolicy,
		CustomConfig:       custom,
	}, nil
}

// applyTypeDefaults overlays the connector-type defaults onto the system
// defaults. Zero-valued type fields are treated as unset so a sparsely
// seeded type row cannot zero out the system floor; the boolean persistence
// flag is the exception, a type row always states it.
func applyTypeDefaults(base, typeDefaults model.TypedDefaults) model.TypedDefaults {
	out := base
	out.PersistPipedoc = typeDefaults.PersistPipedoc
	if typeDefaults.MaxInlineSizeBytes > 0 {
		out.MaxInlineSizeBytes = typeDefaults.MaxInlineSizeBytes
	}
	if typeDefaults.HydrationPolicy != "" {
		out.HydrationPolicy = typeDefaults.HydrationPolicy
	}
	return out
}

func mergeInto(dst model.CustomConfig, layer model.CustomConfig) {
	for k, v := range layer {
		dst[k] = v
	}
}
