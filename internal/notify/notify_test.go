package notify

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBackoffDelaySchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.attempt, DefaultBaseDelay, DefaultMaxDelay); got != tc.want {
			t.Fatalf("backoffDelay(%d)=%s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestParseNotification(t *testing.T) {
	now := time.Now().UTC()

	n, ok := parseNotification([]byte(`{"type":"transaction","data":{"transaction_id":"tx-1","amount":4200}}`), now)
	if !ok || n.Kind != KindTransaction {
		t.Fatalf("expected transaction, got %+v ok=%v", n, ok)
	}
	if n.Transaction == nil || n.Transaction.TransactionID != "tx-1" || n.Transaction.Amount != 4200 {
		t.Fatalf("unexpected payload: %+v", n.Transaction)
	}

	n, ok = parseNotification([]byte(`{"type":"loan","data":{"loan_id":"L-9"}}`), now)
	if !ok || n.Kind != KindLoan || n.Loan == nil || n.Loan.LoanID != "L-9" {
		t.Fatalf("unexpected loan parse: %+v ok=%v", n, ok)
	}

	n, ok = parseNotification([]byte(`{"type":"user","data":{"username":"alice"}}`), now)
	if !ok || n.Kind != KindUser || n.User == nil || n.User.Username != "alice" {
		t.Fatalf("unexpected user parse: %+v ok=%v", n, ok)
	}

	// Unrecognized kinds pass through as opaque for display only.
	n, ok = parseNotification([]byte(`{"type":"audit","data":{"entry":"x"}}`), now)
	if !ok || n.Kind != KindUnknown {
		t.Fatalf("expected unknown kind, got %+v ok=%v", n, ok)
	}
	var raw map[string]string
	if err := json.Unmarshal(n.Raw, &raw); err != nil || raw["entry"] != "x" {
		t.Fatalf("raw payload not preserved: %s", n.Raw)
	}

	// Malformed frames are dropped without crashing the channel.
	for _, bad := range []string{``, `not-json`, `{"data":{}}`, `{"type":"loan","data":"nope"}`} {
		if _, ok := parseNotification([]byte(bad), now); ok {
			t.Fatalf("expected frame %q to be dropped", bad)
		}
	}
}
