// Package model holds the persisted entities administered by bindhub:
// connector types, bindings, and config schemas.
package model

import (
	"strings"
	"time"
)

// HydrationPolicy controls how connector payloads are materialized.
type HydrationPolicy string

const (
	HydrationAuto         HydrationPolicy = "AUTO"
	HydrationAlwaysRef    HydrationPolicy = "ALWAYS_REF"
	HydrationAlwaysInline HydrationPolicy = "ALWAYS_INLINE"
)

func ParseHydrationPolicy(raw string) (HydrationPolicy, bool) {
	switch HydrationPolicy(strings.ToUpper(strings.TrimSpace(raw))) {
	case HydrationAuto:
		return HydrationAuto, true
	case HydrationAlwaysRef:
		return HydrationAlwaysRef, true
	case HydrationAlwaysInline:
		return HydrationAlwaysInline, true
	default:
		return "", false
	}
}

// CustomConfig is an arbitrary JSON-compatible key/value document. Keys the
// core does not recognize are carried through resolution unchanged.
type CustomConfig map[string]any

// Clone returns a shallow copy. Values are shared; resolution replaces
// whole values per key and never mutates them in place.
func (c CustomConfig) Clone() CustomConfig {
	if c == nil {
		return nil
	}
	out := make(CustomConfig, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// TypedDefaults are the strongly-typed configuration fields a connector
// type declares for all of its bindings.
type TypedDefaults struct {
	PersistPipedoc     bool
	MaxInlineSizeBytes int64
	HydrationPolicy    HydrationPolicy
}

// ConnectorType is a template describing a class of connector ("s3",
// "jdbc", ...). Its id is derived from the type name, so registering the
// same name always yields the same row.
type ConnectorType struct {
	ID             string
	Name           string
	Defaults       TypedDefaults
	CustomConfig   CustomConfig
	ConfigSchemaID string

	DisplayName string
	Owner       string
	DocsURL     string
	Tags        []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusReasonAccountInactive is the reason recorded when the lifecycle
// synchronizer disables a binding because its account went inactive. The
// reactivation guard matches on this exact value.
const StatusReasonAccountInactive = "account_inactive"

// Binding is an account's instantiation of a connector type. Its id is
// derived from the (account id, connector type id) pair; at most one
// binding exists per pair because the id is the uniqueness constraint.
type Binding struct {
	ID              string
	AccountID       string
	ConnectorTypeID string
	Name            string

	// CredentialHash is the PHC-encoded Argon2id hash of the binding's
	// bearer credential. The plaintext is never persisted.
	CredentialHash string

	Active       bool
	StatusReason string

	CustomConfig   CustomConfig
	TypedOverrides []byte
	ConfigSchemaID string

	CreatedAt           time.Time
	UpdatedAt           time.Time
	CredentialRotatedAt time.Time
}

// ConfigSchema is an immutable-once-synced pair of validation documents
// (binding tier and node tier) scoped to one connector type and versioned
// by an explicit version string.
type ConfigSchema struct {
	ID              string
	ConnectorTypeID string
	Version         string
	BindingSchema   []byte
	NodeSchema      []byte
	CreatedAt       time.Time
}
