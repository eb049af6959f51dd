// Package store is the Postgres persistence layer for connector types,
// bindings, and config schemas. Uniqueness is carried by the deterministic
// ids themselves: inserting a duplicate pair surfaces as a unique-violation
// which the store maps to an already-exists fault, so no check-then-act
// existence probe is ever needed. Status transitions are single guarded
// UPDATE statements, which is the row-level read-modify-write boundary the
// rest of the core relies on.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bindhub/bindhub/internal/fault"
	"github.com/bindhub/bindhub/internal/model"
)

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

// DB is the subset of pgxpool.Pool (or a pgx.Tx) the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateConnectorType(ctx context.Context, ct *model.ConnectorType) error {
	custom, err := encodeCustomConfig(ct.CustomConfig)
	if err != nil {
		return err
	}
	// pgx encodes a nil []string as SQL NULL, which the NOT NULL tags
	// column rejects; a type registered without tags means an empty array.
	tags := ct.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO connector_types (
			id, name, persist_pipedoc, max_inline_size_bytes, hydration_policy,
			custom_config, config_schema_id, display_name, owner, docs_url, tags
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ct.ID, ct.Name,
		ct.Defaults.PersistPipedoc, ct.Defaults.MaxInlineSizeBytes, string(ct.Defaults.HydrationPolicy),
		custom, nullIfEmpty(ct.ConfigSchemaID),
		ct.DisplayName, ct.Owner, ct.DocsURL, tags,
	)
	if isUniqueViolation(err) {
		return fault.Newf(fault.KindAlreadyExists, "connector type %q already registered", ct.Name)
	}
	return dbErr(err)
}

func (s *Store) GetConnectorType(ctx context.Context, id string) (*model.ConnectorType, error) {
	return s.getConnectorType(ctx, "id = $1", id)
}

func (s *Store) GetConnectorTypeByName(ctx context.Context, name string) (*model.ConnectorType, error) {
	return s.getConnectorType(ctx, "name = $1", name)
}

func (s *Store) getConnectorType(ctx context.Context, where string, arg any) (*model.ConnectorType, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, persist_pipedoc, max_inline_size_bytes, hydration_policy,
		       custom_config, coalesce(config_schema_id, ''), display_name, owner,
		       docs_url, tags, created_at, updated_at
		FROM connector_types
		WHERE `+where, arg)

	var (
		ct     model.ConnectorType
		policy string
		custom []byte
	)
	err := row.Scan(
		&ct.ID, &ct.Name,
		&ct.Defaults.PersistPipedoc, &ct.Defaults.MaxInlineSizeBytes, &policy,
		&custom, &ct.ConfigSchemaID, &ct.DisplayName, &ct.Owner,
		&ct.DocsURL, &ct.Tags, &ct.CreatedAt, &ct.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.New(fault.KindNotFound, "connector type not found")
	}
	if err != nil {
		return nil, dbErr(err)
	}
	ct.Defaults.HydrationPolicy = model.HydrationPolicy(policy)
	if ct.CustomConfig, err = decodeCustomConfig(custom); err != nil {
		return nil, fault.Wrap(fault.KindDataIntegrity, "connector type "+ct.ID+" custom config", err)
	}
	return &ct, nil
}

func (s *Store) UpdateConnectorTypeDefaults(ctx context.Context, id string, defaults model.TypedDefaults, custom model.CustomConfig) error {
	encoded, err := encodeCustomConfig(custom)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE connector_types
		SET persist_pipedoc = $2,
		    max_inline_size_bytes = $3,
		    hydration_policy = $4,
		    custom_config = $5,
		    updated_at = now()
		WHERE id = $1`,
		id, defaults.PersistPipedoc, defaults.MaxInlineSizeBytes, string(defaults.HydrationPolicy), encoded,
	)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, "connector type not found")
	}
	return nil
}

func (s *Store) SetConnectorTypeSchema(ctx context.Context, id, schemaID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE connector_types
		SET config_schema_id = $2, updated_at = now()
		WHERE id = $1`,
		id, nullIfEmpty(schemaID),
	)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, "connector type not found")
	}
	return nil
}

func (s *Store) CreateBinding(ctx context.Context, b *model.Binding) error {
	custom, err := encodeCustomConfig(b.CustomConfig)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO bindings (
			id, account_id, connector_type_id, name, credential_hash,
			active, status_reason, custom_config, typed_overrides, config_schema_id,
			credential_rotated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		b.ID, b.AccountID, b.ConnectorTypeID, b.Name, b.CredentialHash,
		b.Active, nullIfEmpty(b.StatusReason), custom, b.TypedOverrides, nullIfEmpty(b.ConfigSchemaID),
	)
	if isUniqueViolation(err) {
		return fault.Newf(fault.KindAlreadyExists,
			"binding already exists for account %s and connector type %s", b.AccountID, b.ConnectorTypeID)
	}
	return dbErr(err)
}

const bindingColumns = `
	id, account_id, connector_type_id, name, credential_hash,
	active, coalesce(status_reason, ''), custom_config, typed_overrides,
	coalesce(config_schema_id, ''), created_at, updated_at, credential_rotated_at`

func (s *Store) GetBinding(ctx context.Context, id string) (*model.Binding, error) {
	row := s.db.QueryRow(ctx, `SELECT`+bindingColumns+` FROM bindings WHERE id = $1`, id)
	b, err := scanBinding(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.New(fault.KindNotFound, "binding not found")
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListBindingsByAccount(ctx context.Context, accountID string) ([]model.Binding, error) {
	rows, err := s.db.Query(ctx,
		`SELECT`+bindingColumns+` FROM bindings WHERE account_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var out []model.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, dbErr(rows.Err())
}

// UpdateBindingCredential replaces the stored hash in a single statement.
// The column swap is atomic, so the previous credential is rejected by the
// very next verification after this commits; no window exists where both
// hashes validate.
func (s *Store) UpdateBindingCredential(ctx context.Context, id, credentialHash string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE bindings
		SET credential_hash = $2,
		    credential_rotated_at = now(),
		    updated_at = now()
		WHERE id = $1`,
		id, credentialHash,
	)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, "binding not found")
	}
	return nil
}

// SetBindingStatus applies a status change only when it changes something.
// A no-op (already in the requested state) touches no row, so updated_at is
// not bumped; callers distinguish "unchanged" from "missing" themselves.
func (s *Store) SetBindingStatus(ctx context.Context, id string, active bool, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bindings
		SET active = $2, status_reason = $3, updated_at = now()
		WHERE id = $1
		  AND (active IS DISTINCT FROM $2 OR status_reason IS DISTINCT FROM $3)`,
		id, active, nullIfEmpty(reason),
	)
	if err != nil {
		return false, dbErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeactivateAccountBindings disables every still-active binding of the
// account. Bindings already inactive keep their existing reason so the
// original cause is never masked. Returns how many rows transitioned.
func (s *Store) DeactivateAccountBindings(ctx context.Context, accountID, reason string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bindings
		SET active = FALSE, status_reason = $2, updated_at = now()
		WHERE account_id = $1 AND active`,
		accountID, reason,
	)
	if err != nil {
		return 0, dbErr(err)
	}
	return tag.RowsAffected(), nil
}

// ReactivateAccountBindings re-enables only the bindings whose reason
// matches exactly; bindings disabled for any other reason stay disabled.
func (s *Store) ReactivateAccountBindings(ctx context.Context, accountID, matchReason string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bindings
		SET active = TRUE, status_reason = NULL, updated_at = now()
		WHERE account_id = $1 AND NOT active AND status_reason = $2`,
		accountID, matchReason,
	)
	if err != nil {
		return 0, dbErr(err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) UpdateBindingOverrides(ctx context.Context, id string, custom model.CustomConfig, typedOverrides []byte) error {
	encoded, err := encodeCustomConfig(custom)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE bindings
		SET custom_config = $2, typed_overrides = $3, updated_at = now()
		WHERE id = $1`,
		id, encoded, typedOverrides,
	)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, "binding not found")
	}
	return nil
}

func (s *Store) CreateConfigSchema(ctx context.Context, cs *model.ConfigSchema) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO config_schemas (id, connector_type_id, version, binding_schema, node_schema)
		VALUES ($1, $2, $3, $4, $5)`,
		cs.ID, cs.ConnectorTypeID, cs.Version, cs.BindingSchema, cs.NodeSchema,
	)
	if isUniqueViolation(err) {
		return fault.Newf(fault.KindAlreadyExists,
			"config schema version %q already exists for connector type %s", cs.Version, cs.ConnectorTypeID)
	}
	return dbErr(err)
}

func (s *Store) GetConfigSchema(ctx context.Context, id string) (*model.ConfigSchema, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, connector_type_id, version, binding_schema, node_schema, created_at
		FROM config_schemas
		WHERE id = $1`, id)

	var cs model.ConfigSchema
	err := row.Scan(&cs.ID, &cs.ConnectorTypeID, &cs.Version, &cs.BindingSchema, &cs.NodeSchema, &cs.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.New(fault.KindNotFound, "config schema not found")
	}
	if err != nil {
		return nil, dbErr(err)
	}
	return &cs, nil
}

// CountConfigSchemaRefs reports how many connector types and bindings still
// reference the schema. The service refuses deletion while this is > 0.
func (s *Store) CountConfigSchemaRefs(ctx context.Context, schemaID string) (int64, error) {
	row := s.db.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM connector_types WHERE config_schema_id = $1)
		     + (SELECT count(*) FROM bindings WHERE config_schema_id = $1)`,
		schemaID)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, dbErr(err)
	}
	return n, nil
}

func (s *Store) DeleteConfigSchema(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM config_schemas WHERE id = $1`, id)
	if err != nil {
		return dbErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fault.New(fault.KindNotFound, "config schema not found")
	}
	return nil
}

func scanBinding(row pgx.Row) (*model.Binding, error) {
	var (
		b      model.Binding
		custom []byte
	)
	err := row.Scan(
		&b.ID, &b.AccountID, &b.ConnectorTypeID, &b.Name, &b.CredentialHash,
		&b.Active, &b.StatusReason, &custom, &b.TypedOverrides,
		&b.ConfigSchemaID, &b.CreatedAt, &b.UpdatedAt, &b.CredentialRotatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, dbErr(err)
	}
	if b.CustomConfig, err = decodeCustomConfig(custom); err != nil {
		return nil, fault.Wrap(fault.KindDataIntegrity, "binding "+b.ID+" custom config", err)
	}
	return &b, nil
}

func encodeCustomConfig(cfg model.CustomConfig) ([]byte, error) {
	if cfg == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding custom config: %w", err)
	}
	return raw, nil
}

func decodeCustomConfig(raw []byte) (model.CustomConfig, error) {
	if len(raw) == 0 {
		return model.CustomConfig{}, nil
	}
	var cfg model.CustomConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = model.CustomConfig{}
	}
	return cfg, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func dbErr(err error) error {
	if err == nil {
		return nil
	}
	return fault.Wrap(fault.KindUnavailable, "storage", err)
}
