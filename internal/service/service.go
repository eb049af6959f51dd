// Package service orchestrates the binding lifecycle: registration,
// credential validation, rotation, status changes, and effective-config
// resolution. It owns the translation of collaborator failures into the
// bindhub error taxonomy.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bindhub/bindhub/internal/credential"
	"github.com/bindhub/bindhub/internal/directory"
	"github.com/bindhub/bindhub/internal/fault"
	"github.com/bindhub/bindhub/internal/metrics"
	"github.com/bindhub/bindhub/internal/model"
	"github.com/bindhub/bindhub/internal/resolve"
)

// BindingStore is the persistence contract the service depends on. The
// Postgres implementation lives in internal/store.
type BindingStore interface {
	CreateConnectorType(ctx context.Context, ct *model.ConnectorType) error
	GetConnectorType(ctx context.Context, id string) (*model.ConnectorType, error)
	UpdateConnectorTypeDefaults(ctx context.Context, id string, defaults model.TypedDefaults, custom model.CustomConfig) error
	SetConnectorTypeSchema(ctx context.Context, id, schemaID string) error

	CreateBinding(ctx context.Context, b *model.Binding) error
	GetBinding(ctx context.Context, id string) (*model.Binding, error)
	UpdateBindingCredential(ctx context.Context, id, credentialHash string) error
	SetBindingStatus(ctx context.Context, id string, active bool, reason string) (bool, error)
	UpdateBindingOverrides(ctx context.Context, id string, custom model.CustomConfig, typedOverrides []byte) error

	CreateConfigSchema(ctx context.Context, cs *model.ConfigSchema) error
	GetConfigSchema(ctx context.Context, id string) (*model.ConfigSchema, error)
	CountConfigSchemaRefs(ctx context.Context, schemaID string) (int64, error)
	DeleteConfigSchema(ctx context.Context, id string) error
}

// reasonInvalidCredential is the one reason validation ever reports for a
// missing binding or a wrong credential, so callers cannot enumerate
// binding ids by probing.
const reasonInvalidCredential = "invalid credential"

const defaultRegisterTimeout = 10 * time.Second

type Service struct {
	store BindingStore
	creds *credential.Manager
	dir   directory.Client

	registerTimeout time.Duration
}

type Options struct {
	Store       BindingStore
	Credentials *credential.Manager
	Directory   directory.Client
	// RegisterTimeout bounds the external account lookup performed during
	// registration. <= 0 means 10s. Validation never consults the
	// directory and is not subject to it.
	RegisterTimeout time.Duration
}

func New(opts Options) *Service {
	timeout := opts.RegisterTimeout
	if timeout <= 0 {
		timeout = defaultRegisterTimeout
	}
	return &Service{
		store:           opts.Store,
		creds:           opts.Credentials,
		dir:             opts.Directory,
		registerTimeout: timeout,
	}
}

type RegisterParams struct {
	AccountID       string
	ConnectorTypeID string
	Name            string
	CustomConfig    model.CustomConfig
	TypedOverrides  []byte
	ConfigSchemaID  string
}

// Register creates a binding and returns it together with the plaintext
// credential. The plaintext is returned exactly once, here; it is never
// persisted, logged, or re-derivable afterwards.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*model.Binding, string, error) {
	accountID := strings.TrimSpace(p.AccountID)
	typeID := strings.TrimSpace(p.ConnectorTypeID)
	name := strings.TrimSpace(p.Name)
	if accountID == "" {
		return nil, "", fault.New(fault.KindInvalidArgument, "account id is required")
	}
	if typeID == "" {
		return nil, "", fault.New(fault.KindInvalidArgument, "connector type id is required")
	}
	if name == "" {
		return nil, "", fault.New(fault.KindInvalidArgument, "binding name is required")
	}
	// Malformed override bytes at rest are a data-integrity bug, but at the
	// write boundary they are simply bad input.
	if _, err := resolve.DecodeTypedOverride(p.TypedOverrides); err != nil {
		return nil, "", fault.Wrap(fault.KindInvalidArgument, "typed overrides", err)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.registerTimeout)
	defer cancel()
	account, err := s.dir.Lookup(lookupCtx, accountID)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, "", directoryErr(err)
	}
	if !account.Exists {
		metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return nil, "", fault.Newf(fault.KindInvalidArgument, "account %s does not exist", accountID)
	}
	if !account.Active {
		metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return nil, "", fault.Newf(fault.KindInvalidArgument, "account %s is inactive", accountID)
	}

	if _, err := s.store.GetConnectorType(ctx, typeID); err != nil {
		if fault.IsKind(err, fault.KindNotFound) {
			metrics.RegistrationsTotal.WithLabelValues("rejected").Inc()
			return nil, "", fault.Newf(fault.KindInvalidArgument, "unknown connector type %s", typeID)
		}
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, "", err
	}

	plaintext, err := s.creds.Generate()
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, "", err
	}
	hash, err := s.hashCredential(ctx, plaintext)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, "", err
	}

	binding := &model.Binding{
		ID:              model.BindingID(accountID, typeID),
		AccountID:       accountID,
		ConnectorTypeID: typeID,
		Name:            name,
		CredentialHash:  hash,
		Active:          true,
		CustomConfig:    p.CustomConfig,
		TypedOverrides:  p.TypedOverrides,
		ConfigSchemaID:  strings.TrimSpace(p.ConfigSchemaID),
	}
	if err := s.store.CreateBinding(ctx, binding); err != nil {
		if fault.IsKind(err, fault.KindAlreadyExists) {
			metrics.RegistrationsTotal.WithLabelValues("already_exists").Inc()
		} else {
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		}
		return nil, "", err
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	slog.Info("binding registered", "binding_id", binding.ID, "account_id", accountID, "connector_type_id", typeID)
	return binding, plaintext, nil
}

// ValidationResult is the outcome of a credential validation.
type ValidationResult struct {
	Valid  bool
	Reason string
	Config *resolve.EffectiveConfig
}

// ValidateCredential checks a presented plaintext against the binding's
// stored hash and, on success, attaches the binding's effective
// configuration. "Binding not found" and "wrong credential" are
// indistinguishable in the result; the distinction exists only in internal
// logs. This path never mutates state.
func (s *Service) ValidateCredential(ctx context.Context, bindingID, plaintext string) (ValidationResult, error) {
	binding, err := s.store.GetBinding(ctx, strings.TrimSpace(bindingID))
	if err != nil {
		if fault.IsKind(err, fault.KindNotFound) {
			slog.Debug("validation against unknown binding", "binding_id", bindingID)
			metrics.ValidationsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
			return ValidationResult{Reason: reasonInvalidCredential}, nil
		}
		metrics.ValidationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return ValidationResult{}, err
	}

	if !binding.Active {
		metrics.ValidationsTotal.WithLabelValues(metrics.ResultInactive).Inc()
		reason := "binding disabled"
		if binding.StatusReason != "" {
			reason += ": " + binding.StatusReason
		}
		return ValidationResult{Reason: reason}, nil
	}

	if !s.creds.Verify(plaintext, binding.CredentialHash) {
		metrics.ValidationsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return ValidationResult{Reason: reasonInvalidCredential}, nil
	}

	cfg, err := s.resolveForBinding(ctx, binding)
	if err != nil {
		metrics.ValidationsTotal.WithLabelValues(metrics.ResultError).Inc()
		return ValidationResult{}, err
	}

	metrics.ValidationsTotal.WithLabelValues(metrics.ResultValid).Inc()
	return ValidationResult{Valid: true, Config: cfg}, nil
}

// Rotate replaces the binding's credential. The swap commits in a single
// statement: the instant it lands, the previous credential stops
// verifying. There is deliberately no grace window where both are valid.
func (s *Service) Rotate(ctx context.Context, bindingID string) (string, error) {
	bindingID = strings.TrimSpace(bindingID)
	if _, err := s.store.GetBinding(ctx, bindingID); err != nil {
		return "", err
	}

	plaintext, err := s.creds.Generate()
	if err != nil {
		return "", err
	}
	hash, err := s.hashCredential(ctx, plaintext)
	if err != nil {
		return "", err
	}

	if err := s.store.UpdateBindingCredential(ctx, bindingID, hash); err != nil {
		return "", err
	}

	metrics.RotationsTotal.Inc()
	slog.Info("credential rotated", "binding_id", bindingID)
	return plaintext, nil
}

// SetStatus toggles a binding's active flag, recording the reason. Setting
// the current state again is a success and touches nothing; the returned
// bool reports whether anything changed.
func (s *Service) SetStatus(ctx context.Context, bindingID string, active bool, reason string) (bool, error) {
	bindingID = strings.TrimSpace(bindingID)
	changed, err := s.store.SetBindingStatus(ctx, bindingID, active, strings.TrimSpace(reason))
	if err != nil {
		return false, err
	}
	if !changed {
		// Distinguish the idempotent no-op from a missing binding.
		if _, err := s.store.GetBinding(ctx, bindingID); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// UpdateBindingConfig replaces a binding's column override and serialized
// typed override together. Overrides are validated at this write boundary;
// only well-formed envelopes ever reach disk.
func (s *Service) UpdateBindingConfig(ctx context.Context, bindingID string, custom model.CustomConfig, typedOverrides []byte) error {
	if _, err := resolve.DecodeTypedOverride(typedOverrides); err != nil {
		return fault.Wrap(fault.KindInvalidArgument, "typed overrides", err)
	}
	return s.store.UpdateBindingOverrides(ctx, strings.TrimSpace(bindingID), custom, typedOverrides)
}

// ResolveEffectiveConfig computes a binding's effective configuration
// without touching its credential, for administrative preview.
func (s *Service) ResolveEffectiveConfig(ctx context.Context, bindingID string) (*resolve.EffectiveConfig, error) {
	binding, err := s.store.GetBinding(ctx, strings.TrimSpace(bindingID))
	if err != nil {
		return nil, err
	}
	return s.resolveForBinding(ctx, binding)
}

func (s *Service) resolveForBinding(ctx context.Context, binding *model.Binding) (*resolve.EffectiveConfig, error) {
	connectorType, err := s.store.GetConnectorType(ctx, binding.ConnectorTypeID)
	if err != nil {
		if !fault.IsKind(err, fault.KindNotFound) {
			return nil, err
		}
		// A binding whose type row is gone still resolves, against system
		// defaults only.
		connectorType = nil
	}
	cfg, err := resolve.Resolve(connectorType, binding)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Service) hashCredential(ctx context.Context, plaintext string) (string, error) {
	start := time.Now()
	hash, err := s.creds.Hash(ctx, plaintext)
	metrics.CredentialHashDuration.Observe(time.Since(start).Seconds())
	return hash, err
}

func directoryErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fault.Wrap(fault.KindUnavailable, "account directory lookup timed out", err)
	}
	return fault.Wrap(fault.KindUnavailable, "account directory", err)
}

// GetBinding is a direct administrative lookup; unknown ids are NotFound
// here, unlike the validation path.
func (s *Service) GetBinding(ctx context.Context, bindingID string) (*model.Binding, error) {
	return s.store.GetBinding(ctx, strings.TrimSpace(bindingID))
}

type ConnectorTypeParams struct {
	Name         string
	Defaults     model.TypedDefaults
	CustomConfig model.CustomConfig
	DisplayName  string
	Owner        string
	DocsURL      string
	Tags         []string
}

// RegisterConnectorType creates a connector type. The id is derived from
// the name, so re-registering an existing name is AlreadyExists.
func (s *Service) RegisterConnectorType(ctx context.Context, p ConnectorTypeParams) (*model.ConnectorType, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fault.New(fault.KindInvalidArgument, "connector type name is required")
	}
	if p.Defaults.HydrationPolicy != "" {
		if _, ok := model.ParseHydrationPolicy(string(p.Defaults.HydrationPolicy)); !ok {
			return nil, fault.Newf(fault.KindInvalidArgument, "unknown hydration policy %q", p.Defaults.HydrationPolicy)
		}
	}
	if p.Defaults.MaxInlineSizeBytes < 0 {
		return nil, fault.New(fault.KindInvalidArgument, "max inline size must not be negative")
	}

	ct := &model.ConnectorType{
		ID:           model.ConnectorTypeID(name),
		Name:         name,
		Defaults:     p.Defaults,
		CustomConfig: p.CustomConfig,
		DisplayName:  strings.TrimSpace(p.DisplayName),
		Owner:        strings.TrimSpace(p.Owner),
		DocsURL:      strings.TrimSpace(p.DocsURL),
		Tags:         p.Tags,
	}
	if err := s.store.CreateConnectorType(ctx, ct); err != nil {
		return nil, err
	}
	slog.Info("connector type registered", "connector_type_id", ct.ID, "name", name)
	return ct, nil
}

func (s *Service) UpdateConnectorTypeDefaults(ctx context.Context, typeID string, defaults model.TypedDefaults, custom model.CustomConfig) error {
	if defaults.HydrationPolicy != "" {
		if _, ok := model.ParseHydrationPolicy(string(defaults.HydrationPolicy)); !ok {
			return fault.Newf(fault.KindInvalidArgument, "unknown hydration policy %q", defaults.HydrationPolicy)
		}
	}
	if defaults.MaxInlineSizeBytes < 0 {
		return fault.New(fault.KindInvalidArgument, "max inline size must not be negative")
	}
	return s.store.UpdateConnectorTypeDefaults(ctx, strings.TrimSpace(typeID), defaults, custom)
}

type ConfigSchemaParams struct {
	ConnectorTypeID string
	Version         string
	BindingSchema   []byte
	NodeSchema      []byte
}

// PutConfigSchema stores a schema version for a connector type. Versions
// are immutable once stored: writing the same version again is
// AlreadyExists, not an update.
func (s *Service) PutConfigSchema(ctx context.Context, p ConfigSchemaParams) (*model.ConfigSchema, error) {
	typeID := strings.TrimSpace(p.ConnectorTypeID)
	version := strings.TrimSpace(p.Version)
	if typeID == "" {
		return nil, fault.New(fault.KindInvalidArgument, "connector type id is required")
	}
	if version == "" {
		return nil, fault.New(fault.KindInvalidArgument, "schema version is required")
	}
	if _, err := s.store.GetConnectorType(ctx, typeID); err != nil {
		if fault.IsKind(err, fault.KindNotFound) {
			return nil, fault.Newf(fault.KindInvalidArgument, "unknown connector type %s", typeID)
		}
		return nil, err
	}

	cs := &model.ConfigSchema{
		ID:              uuid.NewString(),
		ConnectorTypeID: typeID,
		Version:         version,
		BindingSchema:   p.BindingSchema,
		NodeSchema:      p.NodeSchema,
	}
	if err := s.store.CreateConfigSchema(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// AttachConfigSchema points a connector type at one of its stored schemas.
func (s *Service) AttachConfigSchema(ctx context.Context, typeID, schemaID string) error {
	typeID = strings.TrimSpace(typeID)
	schemaID = strings.TrimSpace(schemaID)
	cs, err := s.store.GetConfigSchema(ctx, schemaID)
	if err != nil {
		return err
	}
	if cs.ConnectorTypeID != typeID {
		return fault.Newf(fault.KindInvalidArgument, "schema %s belongs to connector type %s", schemaID, cs.ConnectorTypeID)
	}
	return s.store.SetConnectorTypeSchema(ctx, typeID, schemaID)
}

// DeleteConfigSchema removes a schema, refusing while any connector type
// or binding still references it.
func (s *Service) DeleteConfigSchema(ctx context.Context, schemaID string) error {
	schemaID = strings.TrimSpace(schemaID)
	refs, err := s.store.CountConfigSchemaRefs(ctx, schemaID)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fault.Newf(fault.KindInvalidArgument, "config schema %s is still referenced by %d object(s)", schemaID, refs)
	}
	return s.store.DeleteConfigSchema(ctx, schemaID)
}
