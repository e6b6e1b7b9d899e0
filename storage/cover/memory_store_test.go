package cover

import (
	"context"
	"testing"
	"time"

	core "covergate-backend/core/cover"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	s.now = func() time.Time { return t0 }

	ctx := context.Background()
	provider := core.Provider{
		ProviderID:       1,
		Enabled:          true,
		MinCoverExpiry:   24 * time.Hour,
		MaxCoverExpiry:   720 * time.Hour,
		SettlementPeriod: time.Hour,
		Name:             "p1",
	}
	if err := s.SetProvider(ctx, provider); err != nil {
		t.Fatalf("set provider: %v", err)
	}
	if err := s.SetProduct(ctx, core.Product{ProviderID: 1, ProductID: 1, Enabled: true, Name: "basic"}); err != nil {
		t.Fatalf("set product: %v", err)
	}
	if err := s.SetAsset(ctx, core.Asset{
		ProviderID: 1, AssetID: 1, IsCoverAsset: true,
		MinCoverAmount: 100, MaxCoverAmount: 10_000, AssetAddress: "0xcover",
	}); err != nil {
		t.Fatalf("set cover asset: %v", err)
	}
	if err := s.SetAsset(ctx, core.Asset{
		ProviderID: 1, AssetID: 2, IsPaymentAsset: true,
		MinPaymentAmount: 50, AssetAddress: core.NativeAssetAddress,
	}); err != nil {
		t.Fatalf("set payment asset: %v", err)
	}
	return s
}

func testSubmission() core.QuoteSubmission {
	return core.QuoteSubmission{
		ProviderID:     1,
		ProductID:      1,
		CoverAssetID:   1,
		CoverAmount:    1_000,
		PaymentAssetID: 2,
		PremiumAmount:  80,
		FeeAmount:      20,
		CoverExpiry:    48 * time.Hour,
		ValidUntil:     t0.Add(time.Minute),
	}
}

func mustSubmit(t *testing.T, s *MemoryStore, owner string) core.Quote {
	t.Helper()
	q, err := s.SubmitQuote(context.Background(), testSubmission(), nil, 0, owner, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return q
}

func TestSubmitQuote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("ids start at zero and are gapless", func(t *testing.T) {
		q0 := mustSubmit(t, s, "alice")
		q1 := mustSubmit(t, s, "bob")
		if q0.QuoteID != 0 || q1.QuoteID != 1 {
			t.Errorf("expected ids 0 and 1, got %d and %d", q0.QuoteID, q1.QuoteID)
		}
		if q0.TotalPayment != 100 || q0.PaymentAsset != core.NativeAssetAddress {
			t.Errorf("unexpected payment resolution: %d %s", q0.TotalPayment, q0.PaymentAsset)
		}
		pending, _ := s.PendingAmount(ctx, core.NativeAssetAddress)
		if pending != 200 {
			t.Errorf("expected 200 pending, got %d", pending)
		}
	})

	t.Run("validation failure consumes no id", func(t *testing.T) {
		bad := testSubmission()
		bad.ProviderID = 99
		if _, err := s.SubmitQuote(ctx, bad, nil, 0, "alice", nil); err != core.ErrInvalidProvider {
			t.Fatalf("expected ErrInvalidProvider, got %v", err)
		}
		q := mustSubmit(t, s, "carol")
		if q.QuoteID != 2 {
			t.Errorf("expected id 2 after failed submission, got %d", q.QuoteID)
		}
	})

	t.Run("payment failure leaves store untouched", func(t *testing.T) {
		pullErr := Err("pull failed")
		before, _ := s.PendingAmount(ctx, core.NativeAssetAddress)
		_, err := s.SubmitQuote(ctx, testSubmission(), nil, 0, "dave",
			func(_, _ string, _ uint64) error { return pullErr })
		if err != pullErr {
			t.Fatalf("expected pull error, got %v", err)
		}
		after, _ := s.PendingAmount(ctx, core.NativeAssetAddress)
		if before != after {
			t.Errorf("pending changed across failed pull: %d -> %d", before, after)
		}
		q := mustSubmit(t, s, "erin")
		if q.QuoteID != 3 {
			t.Errorf("expected id 3, got %d", q.QuoteID)
		}
	})

	t.Run("submission past valid-until is rejected", func(t *testing.T) {
		s.now = func() time.Time { return t0.Add(2 * time.Minute) }
		defer func() { s.now = func() time.Time { return t0 } }()
		if _, err := s.SubmitQuote(ctx, testSubmission(), nil, 0, "alice", nil); err != core.ErrSubmissionExpired {
			t.Errorf("expected ErrSubmissionExpired, got %v", err)
		}
	})
}

func TestSettleQuote(t *testing.T) {
	ctx := context.Background()
	coverEnd := t0.Add(48 * time.Hour)

	t.Run("releases escrow and records settlement", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")

		settled, err := s.SettleQuote(ctx, q.QuoteID, "0xtx", coverEnd)
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if !settled.Settlement.IsSettled || settled.Settlement.SettledAt != t0 {
			t.Error("settlement record not written")
		}
		if settled.Settlement.ExternalTxHash != "0xtx" {
			t.Errorf("expected tx hash recorded, got %q", settled.Settlement.ExternalTxHash)
		}
		pending, _ := s.PendingAmount(ctx, core.NativeAssetAddress)
		if pending != 0 {
			t.Errorf("expected escrow released, got %d pending", pending)
		}
	})

	t.Run("settling after the window is still allowed", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")
		s.now = func() time.Time { return t0.Add(3 * time.Hour) }
		if _, err := s.SettleQuote(ctx, q.QuoteID, "0xtx", t0.Add(48*time.Hour)); err != nil {
			t.Errorf("late settle should succeed, got %v", err)
		}
	})

	t.Run("transition conflicts", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")
		if _, err := s.SettleQuote(ctx, 99, "0xtx", coverEnd); err != ErrQuoteNotFound {
			t.Errorf("expected ErrQuoteNotFound, got %v", err)
		}
		if _, err := s.SettleQuote(ctx, q.QuoteID, "0xtx", t0.Add(-time.Hour)); err != ErrCoverExpiryInPast {
			t.Errorf("expected ErrCoverExpiryInPast, got %v", err)
		}
		if _, err := s.SettleQuote(ctx, q.QuoteID, "0xtx", coverEnd); err != nil {
			t.Fatalf("settle: %v", err)
		}
		if _, err := s.SettleQuote(ctx, q.QuoteID, "0xtx", coverEnd); err != ErrQuoteAlreadySettled {
			t.Errorf("expected ErrQuoteAlreadySettled, got %v", err)
		}
	})
}

func TestRefundQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("pays the owner and releases escrow", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")

		var paidTo string
		var paid uint64
		refunded, err := s.RefundQuote(ctx, q.QuoteID, func(_, to string, amount uint64) error {
			paidTo, paid = to, amount
			return nil
		})
		if err != nil {
			t.Fatalf("refund: %v", err)
		}
		if !refunded.Settlement.IsRefunded {
			t.Error("refund flag not set")
		}
		if paidTo != "alice" || paid != 100 {
			t.Errorf("expected payout 100 to alice, got %d to %s", paid, paidTo)
		}
		pending, _ := s.PendingAmount(ctx, core.NativeAssetAddress)
		if pending != 0 {
			t.Errorf("expected escrow released, got %d", pending)
		}
	})

	t.Run("payout failure leaves the quote refundable", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")
		payErr := Err("payout failed")
		if _, err := s.RefundQuote(ctx, q.QuoteID, func(_, _ string, _ uint64) error { return payErr }); err != payErr {
			t.Fatalf("expected payout error, got %v", err)
		}
		got, _ := s.GetQuote(ctx, q.QuoteID)
		if got.Settlement.IsRefunded {
			t.Error("refund flag set despite payout failure")
		}
		if _, err := s.RefundQuote(ctx, q.QuoteID, nil); err != nil {
			t.Errorf("retry should succeed, got %v", err)
		}
	})

	t.Run("settled and refunded quotes cannot refund again", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")
		if _, err := s.RefundQuote(ctx, q.QuoteID, nil); err != nil {
			t.Fatalf("refund: %v", err)
		}
		if _, err := s.RefundQuote(ctx, q.QuoteID, nil); err != ErrQuoteAlreadyRefunded {
			t.Errorf("expected ErrQuoteAlreadyRefunded, got %v", err)
		}
		if _, err := s.SettleQuote(ctx, q.QuoteID, "0xtx", t0.Add(time.Hour)); err != ErrQuoteAlreadyRefunded {
			t.Errorf("expected ErrQuoteAlreadyRefunded, got %v", err)
		}
	})
}

func TestRefundUnfulfilled(t *testing.T) {
	ctx := context.Background()

	t.Run("owner reclaims after the window lapses", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")
		s.now = func() time.Time { return t0.Add(time.Hour + time.Second) }

		var paidTo string
		refunded, err := s.RefundUnfulfilled(ctx, q.QuoteID, "alice", "cold-wallet", func(_, to string, _ uint64) error {
			paidTo = to
			return nil
		})
		if err != nil {
			t.Fatalf("refund unfulfilled: %v", err)
		}
		if !refunded.Settlement.IsRefunded {
			t.Error("refund flag not set")
		}
		if paidTo != "cold-wallet" {
			t.Errorf("expected payout to cold-wallet, got %s", paidTo)
		}
	})

	t.Run("rejected while still awaiting settlement", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")
		if _, err := s.RefundUnfulfilled(ctx, q.QuoteID, "alice", "alice", nil); err != ErrQuoteNotExpired {
			t.Errorf("expected ErrQuoteNotExpired, got %v", err)
		}
	})

	t.Run("rejected for non-owner", func(t *testing.T) {
		s := newTestStore(t)
		q := mustSubmit(t, s, "alice")
		s.now = func() time.Time { return t0.Add(2 * time.Hour) }
		if _, err := s.RefundUnfulfilled(ctx, q.QuoteID, "mallory", "mallory", nil); err != ErrNotQuoteOwner {
			t.Errorf("expected ErrNotQuoteOwner, got %v", err)
		}
	})
}

func TestQuoteStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("absent quote reports none", func(t *testing.T) {
		status, err := s.QuoteStatus(ctx, 42)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != core.StatusNone {
			t.Errorf("expected none, got %s", status)
		}
	})

	q := mustSubmit(t, s, "alice")

	t.Run("awaiting inside the window", func(t *testing.T) {
		status, _ := s.QuoteStatus(ctx, q.QuoteID)
		if status != core.StatusAwaitingSettlement {
			t.Errorf("expected awaiting_settlement, got %s", status)
		}
	})

	t.Run("expired after the window", func(t *testing.T) {
		s.now = func() time.Time { return t0.Add(2 * time.Hour) }
		status, _ := s.QuoteStatus(ctx, q.QuoteID)
		if status != core.StatusQuoteExpired {
			t.Errorf("expected quote_expired, got %s", status)
		}
	})

	t.Run("settled quote tracks cover expiry", func(t *testing.T) {
		s.now = func() time.Time { return t0 }
		coverEnd := t0.Add(48 * time.Hour)
		if _, err := s.SettleQuote(ctx, q.QuoteID, "0xtx", coverEnd); err != nil {
			t.Fatalf("settle: %v", err)
		}
		status, _ := s.QuoteStatus(ctx, q.QuoteID)
		if status != core.StatusCoverActive {
			t.Errorf("expected cover_active, got %s", status)
		}
		s.now = func() time.Time { return coverEnd.Add(time.Second) }
		status, _ = s.QuoteStatus(ctx, q.QuoteID)
		if status != core.StatusCoverExpired {
			t.Errorf("expected cover_expired, got %s", status)
		}
	})
}

func TestListQuotes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustSubmit(t, s, "alice")
	mustSubmit(t, s, "bob")
	mustSubmit(t, s, "alice")

	all, err := s.ListQuotes(ctx, QuoteFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 quotes, got %d", len(all))
	}
	for i, q := range all {
		if q.QuoteID != uint64(i) {
			t.Errorf("expected ascending ids, got %d at index %d", q.QuoteID, i)
		}
	}

	byOwner, _ := s.ListQuotes(ctx, QuoteFilter{Owner: "alice"})
	if len(byOwner) != 2 {
		t.Errorf("expected 2 quotes for alice, got %d", len(byOwner))
	}

	paged, _ := s.ListQuotes(ctx, QuoteFilter{Limit: 1, Offset: 1})
	if len(paged) != 1 || paged[0].QuoteID != 1 {
		t.Errorf("expected quote 1 only, got %+v", paged)
	}

	empty, _ := s.ListQuotes(ctx, QuoteFilter{Offset: 10})
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %d", len(empty))
	}
}

func TestCatalogWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("product for unknown provider rejected", func(t *testing.T) {
		err := s.SetProduct(ctx, core.Product{ProviderID: 9, ProductID: 1, Enabled: true})
		if err != ErrProviderNotFound {
			t.Errorf("expected ErrProviderNotFound, got %v", err)
		}
	})

	t.Run("enabling a product under a disabled provider rejected", func(t *testing.T) {
		if err := s.SetProvider(ctx, core.Provider{
			ProviderID: 2, Enabled: false, MinCoverExpiry: time.Hour,
			MaxCoverExpiry: 2 * time.Hour, SettlementPeriod: time.Hour, Name: "p2",
		}); err != nil {
			t.Fatalf("set provider: %v", err)
		}
		err := s.SetProduct(ctx, core.Product{ProviderID: 2, ProductID: 1, Enabled: true})
		if err != ErrProviderDisabled {
			t.Errorf("expected ErrProviderDisabled, got %v", err)
		}
		if err := s.SetProduct(ctx, core.Product{ProviderID: 2, ProductID: 1, Enabled: false}); err != nil {
			t.Errorf("disabled product under disabled provider should be fine, got %v", err)
		}
	})

	t.Run("disabling a provider keeps existing quotes settleable", func(t *testing.T) {
		q := mustSubmit(t, s, "alice")
		p, _ := s.GetProvider(ctx, 1)
		p.Enabled = false
		if err := s.SetProvider(ctx, p); err != nil {
			t.Fatalf("disable provider: %v", err)
		}
		if _, err := s.SettleQuote(ctx, q.QuoteID, "0xtx", t0.Add(48*time.Hour)); err != nil {
			t.Errorf("settle under disabled provider should work, got %v", err)
		}
		if _, err := s.SubmitQuote(ctx, testSubmission(), nil, 0, "bob", nil); err != core.ErrInvalidProvider {
			t.Errorf("new submissions should be rejected, got %v", err)
		}
	})
}
