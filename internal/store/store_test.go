package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bindhub/bindhub/internal/model"
)

// execRecorder captures the last Exec call so statement arguments can be
// asserted without a database.
type execRecorder struct {
	sql  string
	args []any
}

func (r *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (r *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }

func TestCreateConnectorType_NilTagsInsertsEmptyArray(t *testing.T) {
	t.Parallel()

	rec := &execRecorder{}
	err := New(rec).CreateConnectorType(context.Background(), &model.ConnectorType{
		ID:   "ct_x",
		Name: "s3",
	})
	if err != nil {
		t.Fatalf("CreateConnectorType() error = %v", err)
	}

	// Tags is the final insert argument. A nil slice would encode as SQL
	// NULL and violate the NOT NULL column.
	tags, ok := rec.args[len(rec.args)-1].([]string)
	if !ok {
		t.Fatalf("tags argument = %T, want []string", rec.args[len(rec.args)-1])
	}
	if tags == nil {
		t.Fatal("tags argument is a nil slice; must be an empty array")
	}
	if len(tags) != 0 {
		t.Fatalf("tags = %v, want empty", tags)
	}
}

func TestEncodeCustomConfig_NilIsEmptyDocument(t *testing.T) {
	t.Parallel()

	raw, err := encodeCustomConfig(nil)
	if err != nil {
		t.Fatalf("encodeCustomConfig(nil) error = %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("encodeCustomConfig(nil) = %s, want {}", raw)
	}
}

func TestCustomConfigRoundTrip(t *testing.T) {
	t.Parallel()

	raw, err := encodeCustomConfig(model.CustomConfig{"k": "v", "n": float64(3)})
	if err != nil {
		t.Fatalf("encodeCustomConfig() error = %v", err)
	}
	cfg, err := decodeCustomConfig(raw)
	if err != nil {
		t.Fatalf("decodeCustomConfig() error = %v", err)
	}
	if cfg["k"] != "v" || cfg["n"] != float64(3) {
		t.Fatalf("round trip = %v", cfg)
	}
}

func TestDecodeCustomConfig_EmptyAndNull(t *testing.T) {
	t.Parallel()

	for _, raw := range [][]byte{nil, {}, []byte("null")} {
		cfg, err := decodeCustomConfig(raw)
		if err != nil {
			t.Fatalf("decodeCustomConfig(%q) error = %v", raw, err)
		}
		if cfg == nil {
			t.Fatalf("decodeCustomConfig(%q) = nil, want empty map", raw)
		}
	}
}

func TestNullIfEmpty(t *testing.T) {
	t.Parallel()

	if nullIfEmpty("") != nil {
		t.Fatal("empty string must map to NULL")
	}
	if nullIfEmpty("x") != "x" {
		t.Fatal("non-empty string must pass through")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("23505 must be detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign-key violation is not a unique violation")
	}
	if isUniqueViolation(errors.New("plain")) {
		t.Fatal("plain errors are not unique violations")
	}
	if isUniqueViolation(nil) {
		t.Fatal("nil is not a unique violation")
	}
}
