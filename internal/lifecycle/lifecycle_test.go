package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bindhub/bindhub/internal/fault"
	"github.com/bindhub/bindhub/internal/model"
)

// syncStore models bindings as (active, reason) pairs keyed by account and
// binding id, with the same guard semantics as the SQL statements.
type syncStore struct {
	mu       sync.Mutex
	bindings map[string]map[string]*bindingState
}

type bindingState struct {
	active bool
	reason string
}

func newSyncStore() *syncStore {
	return &syncStore{bindings: make(map[string]map[string]*bindingState)}
}

func (s *syncStore) add(accountID, bindingID string, active bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bindings[accountID] == nil {
		s.bindings[accountID] = make(map[string]*bindingState)
	}
	s.bindings[accountID][bindingID] = &bindingState{active: active, reason: reason}
}

func (s *syncStore) state(accountID, bindingID string) bindingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bindings[accountID][bindingID]
}

func (s *syncStore) DeactivateAccountBindings(_ context.Context, accountID, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.bindings[accountID] {
		if b.active {
			b.active = false
			b.reason = reason
			n++
		}
	}
	return n, nil
}

func (s *syncStore) ReactivateAccountBindings(_ context.Context, accountID, matchReason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.bindings[accountID] {
		if !b.active && b.reason == matchReason {
			b.active = true
			b.reason = ""
			n++
		}
	}
	return n, nil
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"deactivation", `{"account_id":"acct-1","kind":"ACCOUNT_DEACTIVATED"}`, false},
		{"reactivation with reason", `{"account_id":"acct-1","kind":"ACCOUNT_REACTIVATED","reason":"rehired"}`, false},
		{"not json", `{{{`, true},
		{"missing account", `{"kind":"ACCOUNT_DEACTIVATED"}`, true},
		{"blank account", `{"account_id":"  ","kind":"ACCOUNT_DEACTIVATED"}`, true},
		{"unknown kind", `{"account_id":"acct-1","kind":"ACCOUNT_DELETED"}`, true},
		{"empty kind", `{"account_id":"acct-1"}`, true},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseEvent([]byte(test.data))
			if test.wantErr {
				if !fault.IsKind(err, fault.KindInvalidArgument) {
					t.Fatalf("ParseEvent() error = %v, want invalid_argument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEvent() error = %v", err)
			}
		})
	}
}

func TestApply_DeactivationDisablesActiveBindings(t *testing.T) {
	t.Parallel()

	store := newSyncStore()
	store.add("acct-1", "bd_a", true, "")
	store.add("acct-1", "bd_b", true, "")
	store.add("acct-2", "bd_other", true, "")
	sync := NewSynchronizer(store)

	changed, err := sync.Apply(context.Background(), Event{AccountID: "acct-1", Kind: AccountDeactivated})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}
	for _, id := range []string{"bd_a", "bd_b"} {
		st := store.state("acct-1", id)
		if st.active {
			t.Fatalf("%s still active", id)
		}
		if st.reason != model.StatusReasonAccountInactive {
			t.Fatalf("%s reason = %q, want %q", id, st.reason, model.StatusReasonAccountInactive)
		}
	}
	if st := store.state("acct-2", "bd_other"); !st.active {
		t.Fatal("other account's binding was touched")
	}
}

func TestApply_Idempotent(t *testing.T) {
	t.Parallel()

	store := newSyncStore()
	store.add("acct-1", "bd_a", true, "")
	sync := NewSynchronizer(store)
	ctx := context.Background()

	ev := Event{AccountID: "acct-1", Kind: AccountDeactivated}
	if changed, err := sync.Apply(ctx, ev); err != nil || changed != 1 {
		t.Fatalf("first Apply() = (%d, %v), want (1, nil)", changed, err)
	}
	if changed, err := sync.Apply(ctx, ev); err != nil || changed != 0 {
		t.Fatalf("replayed Apply() = (%d, %v), want (0, nil)", changed, err)
	}
}

func TestApply_ReactivationSparesManualDisables(t *testing.T) {
	t.Parallel()

	store := newSyncStore()
	store.add("acct-1", "bd_synced", false, model.StatusReasonAccountInactive)
	store.add("acct-1", "bd_manual", false, "security hold")
	sync := NewSynchronizer(store)

	changed, err := sync.Apply(context.Background(), Event{AccountID: "acct-1", Kind: AccountReactivated})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
	if st := store.state("acct-1", "bd_synced"); !st.active || st.reason != "" {
		t.Fatalf("synced binding = %+v, want active with no reason", st)
	}
	if st := store.state("acct-1", "bd_manual"); st.active || st.reason != "security hold" {
		t.Fatalf("manually disabled binding = %+v, must stay disabled", st)
	}
}

func TestApply_RoundTripPreservesManualDisable(t *testing.T) {
	t.Parallel()

	store := newSyncStore()
	store.add("acct-1", "bd_active", true, "")
	store.add("acct-1", "bd_manual", false, "operator")
	sync := NewSynchronizer(store)
	ctx := context.Background()

	if _, err := sync.Apply(ctx, Event{AccountID: "acct-1", Kind: AccountDeactivated}); err != nil {
		t.Fatalf("deactivate error = %v", err)
	}
	if _, err := sync.Apply(ctx, Event{AccountID: "acct-1", Kind: AccountReactivated}); err != nil {
		t.Fatalf("reactivate error = %v", err)
	}

	if st := store.state("acct-1", "bd_active"); !st.active {
		t.Fatal("binding that was active must be active again after the round trip")
	}
	if st := store.state("acct-1", "bd_manual"); st.active {
		t.Fatal("manual disable must survive the account round trip")
	}
}

// chanSubscriber feeds a consumer from an in-memory channel.
type chanSubscriber struct {
	ch chan []byte
}

func (c *chanSubscriber) Subscribe(string) (<-chan []byte, func(), error) {
	return c.ch, func() {}, nil
}

func TestConsumer_AppliesAndDropsMalformed(t *testing.T) {
	t.Parallel()

	store := newSyncStore()
	store.add("acct-1", "bd_a", true, "")
	sub := &chanSubscriber{ch: make(chan []byte, 8)}
	consumer := NewConsumer(sub, NewSynchronizer(store), "accounts.lifecycle", 2)

	sub.ch <- []byte(`not json`)
	sub.ch <- []byte(`{"account_id":"acct-1","kind":"ACCOUNT_DEACTIVATED"}`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		if st := store.state("acct-1", "bd_a"); !st.active {
			break
		}
		select {
		case <-deadline:
			t.Fatal("consumer never applied the event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if st := store.state("acct-1", "bd_a"); st.reason != model.StatusReasonAccountInactive {
		t.Fatalf("reason = %q, want %q", st.reason, model.StatusReasonAccountInactive)
	}
}
