package id_test

import (
	"strings"
	"testing"

	"github.com/soulseer/settlement/internal/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() string
		prefix string
	}{
		{"EntryID", id.NewEntryID, "le_"},
		{"SessionID", id.NewSessionID, "ses_"},
		{"PayoutID", id.NewPayoutID, "po_"},
		{"DepositID", id.NewDepositID, "dep_"},
		{"GiftID", id.NewGiftID, "gft_"},
		{"RefundID", id.NewRefundID, "rf_"},
		{"CatalogGiftID", id.NewCatalogGiftID, "vg_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		v := id.NewEntryID()
		if seen[v] {
			t.Fatalf("duplicate id %s", v)
		}
		seen[v] = true
	}
}

func TestParseWithPrefix(t *testing.T) {
	sessionID := id.NewSessionID()

	got, err := id.ParseWithPrefix(sessionID, id.PrefixSession)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sessionID {
		t.Errorf("got %q, want %q", got, sessionID)
	}

	if _, err := id.ParseWithPrefix(sessionID, id.PrefixPayout); err == nil {
		t.Error("expected prefix mismatch error")
	}
	if _, err := id.ParseWithPrefix("", id.PrefixSession); err == nil {
		t.Error("expected error for empty string")
	}
	if _, err := id.ParseWithPrefix("not-an-id", id.PrefixSession); err == nil {
		t.Error("expected error for malformed id")
	}
}
