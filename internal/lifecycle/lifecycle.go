// Package lifecycle keeps binding status in step with account lifecycle
// events from the directory feed. Deactivation disables every active
// binding of the account; reactivation re-enables only the bindings that
// the synchronizer itself disabled, so manual disables survive an
// account's round trip through inactive.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bindhub/bindhub/internal/fault"
	"github.com/bindhub/bindhub/internal/metrics"
	"github.com/bindhub/bindhub/internal/model"
)

// EventKind names an account lifecycle transition.
type EventKind string

const (
	AccountDeactivated EventKind = "ACCOUNT_DEACTIVATED"
	AccountReactivated EventKind = "ACCOUNT_REACTIVATED"
)

// Event is one account lifecycle notification. Kind and AccountID are
// required; Reason is informational and logged only.
type Event struct {
	AccountID string    `json:"account_id"`
	Kind      EventKind `json:"kind"`
	Reason    string    `json:"reason,omitempty"`
}

// ParseEvent decodes and validates a raw feed payload.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fault.Wrap(fault.KindInvalidArgument, "decoding lifecycle event", err)
	}
	if strings.TrimSpace(ev.AccountID) == "" {
		return Event{}, fault.New(fault.KindInvalidArgument, "lifecycle event has no account id")
	}
	switch ev.Kind {
	case AccountDeactivated, AccountReactivated:
	default:
		return Event{}, fault.Newf(fault.KindInvalidArgument, "unknown lifecycle event kind %q", ev.Kind)
	}
	return ev, nil
}

// SyncStore is the slice of the store the synchronizer needs. Both
// operations are single guarded statements, so replaying an event is a
// zero-row no-op rather than a double transition.
type SyncStore interface {
	DeactivateAccountBindings(ctx context.Context, accountID, reason string) (int64, error)
	ReactivateAccountBindings(ctx context.Context, accountID, matchReason string) (int64, error)
}

type Synchronizer struct {
	store SyncStore
}

func NewSynchronizer(store SyncStore) *Synchronizer {
	return &Synchronizer{store: store}
}

// Apply executes one event against the store and returns how many bindings
// changed status. Applying the same event twice returns 0 the second time.
func (s *Synchronizer) Apply(ctx context.Context, ev Event) (int64, error) {
	var (
		changed int64
		err     error
	)
	switch ev.Kind {
	case AccountDeactivated:
		changed, err = s.store.DeactivateAccountBindings(ctx, ev.AccountID, model.StatusReasonAccountInactive)
	case AccountReactivated:
		// Match only the reason we wrote on the way down; anything else was
		// disabled by an operator and stays that way.
		changed, err = s.store.ReactivateAccountBindings(ctx, ev.AccountID, model.StatusReasonAccountInactive)
	default:
		return 0, fault.Newf(fault.KindInvalidArgument, "unknown lifecycle event kind %q", ev.Kind)
	}
	if err != nil {
		metrics.LifecycleEventsTotal.WithLabelValues(string(ev.Kind), "error").Inc()
		return 0, fmt.Errorf("applying %s for account %s: %w", ev.Kind, ev.AccountID, err)
	}

	metrics.LifecycleEventsTotal.WithLabelValues(string(ev.Kind), "applied").Inc()
	metrics.LifecycleTransitionsTotal.Add(float64(changed))
	slog.Info("lifecycle event applied",
		"kind", ev.Kind, "account_id", ev.AccountID, "bindings_changed", changed, "reason", ev.Reason)
	return changed, nil
}
