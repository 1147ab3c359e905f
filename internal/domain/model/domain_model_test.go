//go:build !integration

package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"saas-subscription-api/internal/domain"
)

// --- User Model Tests ---

func TestNewUser(t *testing.T) {
	t.Run("should create a free-tier user", func(t *testing.T) {
		u, err := NewUser("ada@example.com", "hash", "Ada")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if u.ID == "" {
			t.Error("expected user ID to be non-empty")
		}
		if _, err := uuid.Parse(u.ID); err != nil {
			t.Errorf("expected user ID to be a UUID, got %q", u.ID)
		}
		if u.SubscriptionTier != TierFree {
			t.Errorf("expected free tier, got %s", u.SubscriptionTier)
		}
		if u.SubscriptionStartDate != nil || u.SubscriptionEndDate != nil {
			t.Error("free tier must carry no validity window")
		}
		if !u.IsActive {
			t.Error("expected a fresh account to be active")
		}
	})

	t.Run("should fail with empty email or hash", func(t *testing.T) {
		if _, err := NewUser("", "hash", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := NewUser("a@b.c", "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestUser_SubscriptionLifecycle(t *testing.T) {
	now := time.Now()

	t.Run("activate moves to a paid tier with the window", func(t *testing.T) {
		u, _ := NewUser("a@b.c", "hash", "")
		end := now.Add(30 * 24 * time.Hour)
		if err := u.Activate(TierPro, now, end); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if u.SubscriptionTier != TierPro {
			t.Errorf("expected pro, got %s", u.SubscriptionTier)
		}
		if u.SubscriptionEndDate == nil || !u.SubscriptionEndDate.Equal(end) {
			t.Error("expected the given end date")
		}
		if !u.AutoRenew {
			t.Error("a fresh paid activation defaults auto-renew on")
		}
	})

	t.Run("activate preserves an explicit auto-renew choice", func(t *testing.T) {
		u, _ := NewUser("a@b.c", "hash", "")
		if err := u.Activate(TierBasic, now, now.Add(time.Hour)); err != nil {
			t.Fatalf("Activate: %v", err)
		}
		u.AutoRenew = false
		if err := u.Activate(TierPro, now, now.Add(2*time.Hour)); err != nil {
			t.Fatalf("Activate: %v", err)
		}
		if u.AutoRenew {
			t.Error("a renewal must not flip auto-renew back on")
		}
	})

	t.Run("activate rejects the free tier and inverted windows", func(t *testing.T) {
		u, _ := NewUser("a@b.c", "hash", "")
		if err := u.Activate(TierFree, now, now.Add(time.Hour)); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for free, got %v", err)
		}
		if err := u.Activate(TierPro, now, now.Add(-time.Hour)); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for inverted window, got %v", err)
		}
	})

	t.Run("downgrade clears the window and auto-renew", func(t *testing.T) {
		u, _ := NewUser("a@b.c", "hash", "")
		_ = u.Activate(TierEnterprise, now, now.Add(time.Hour))
		u.Downgrade()
		if u.SubscriptionTier != TierFree {
			t.Errorf("expected free, got %s", u.SubscriptionTier)
		}
		if u.SubscriptionStartDate != nil || u.SubscriptionEndDate != nil {
			t.Error("expected the window cleared")
		}
		if u.AutoRenew {
			t.Error("expected auto-renew off")
		}
	})

	t.Run("activity follows the end date, not the sweeper", func(t *testing.T) {
		u, _ := NewUser("a@b.c", "hash", "")
		if !u.IsSubscriptionActive(now) {
			t.Error("free is always active")
		}
		_ = u.Activate(TierBasic, now.Add(-time.Hour), now.Add(time.Hour))
		if !u.IsSubscriptionActive(now) {
			t.Error("inside the window must be active")
		}
		if u.IsSubscriptionActive(now.Add(2 * time.Hour)) {
			t.Error("past the end date must be inactive even before a sweep")
		}
	})
}

// --- Transaction Model Tests ---

func TestNewPendingTransaction(t *testing.T) {
	userID := uuid.NewString()
	start := time.Now()
	end := start.Add(30 * 24 * time.Hour)

	t.Run("should create a pending entry with the window in metadata", func(t *testing.T) {
		tr, err := NewPendingTransaction(userID, "basic", 5000, "NGN", start, end)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if tr.Status != TransactionStatusPending {
			t.Errorf("expected pending, got %s", tr.Status)
		}
		if tr.ID == "" {
			t.Error("expected a ULID id")
		}
		s, e, ok := tr.Window()
		if !ok {
			t.Fatal("expected the window recoverable from metadata")
		}
		// RFC3339 truncates to seconds.
		if s.Unix() != start.Unix() || e.Unix() != end.Unix() {
			t.Errorf("window mismatch: got [%v, %v]", s, e)
		}
	})

	t.Run("should fail on missing fields", func(t *testing.T) {
		if _, err := NewPendingTransaction("", "basic", 5000, "NGN", start, end); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := NewPendingTransaction(userID, "basic", 0, "NGN", start, end); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero amount, got %v", err)
		}
	})
}

func TestReference(t *testing.T) {
	userID := uuid.NewString()

	t.Run("embeds the user id with a hex suffix", func(t *testing.T) {
		ref, err := NewReference(userID)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !strings.HasPrefix(ref, "sub_"+userID+"_") {
			t.Fatalf("unexpected reference %q", ref)
		}
		suffix := ref[len("sub_"+userID+"_"):]
		if len(suffix) != 8 {
			t.Errorf("expected an 8-char hex suffix, got %q", suffix)
		}
	})

	t.Run("successive references never collide", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 1000; i++ {
			ref, err := NewReference(userID)
			if err != nil {
				t.Fatalf("NewReference: %v", err)
			}
			if seen[ref] {
				t.Fatalf("duplicate reference %q", ref)
			}
			seen[ref] = true
		}
	})

	t.Run("round-trips the user id", func(t *testing.T) {
		ref, _ := NewReference(userID)
		got, err := UserIDFromReference(ref)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got != userID {
			t.Errorf("expected %s, got %s", userID, got)
		}
	})

	t.Run("rejects malformed references", func(t *testing.T) {
		for _, ref := range []string{"", "bogus", "sub_", "sub__abc", "sub_not-a-uuid_deadbeef", "pay_" + userID + "_deadbeef"} {
			if _, err := UserIDFromReference(ref); !errors.Is(err, domain.ErrInvalidReference) {
				t.Errorf("expected ErrInvalidReference for %q, got %v", ref, err)
			}
		}
	})
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	if TransactionStatusPending.IsTerminal() {
		t.Error("pending is not terminal")
	}
	for _, s := range []TransactionStatus{TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusAbandoned} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestTransaction_Window(t *testing.T) {
	t.Run("missing metadata reports not ok", func(t *testing.T) {
		tr := &Transaction{Meta: map[string]interface{}{MetaStartDate: "2026-01-01T00:00:00Z"}}
		if _, _, ok := tr.Window(); ok {
			t.Error("half a window is no window")
		}
	})
	t.Run("unparseable metadata reports not ok", func(t *testing.T) {
		tr := &Transaction{Meta: map[string]interface{}{MetaStartDate: "yesterday", MetaEndDate: "tomorrow"}}
		if _, _, ok := tr.Window(); ok {
			t.Error("expected not ok for junk timestamps")
		}
	})
}
