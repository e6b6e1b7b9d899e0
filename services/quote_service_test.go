package services

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	core "covergate-backend/core/cover"
	"covergate-backend/payments"
	covstore "covergate-backend/storage/cover"
)

type testEnv struct {
	svc   *QuoteService
	vault *payments.MemoryVault
	priv  *btcec.PrivateKey
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	store := covstore.NewMemoryStore()
	if err := covstore.Seed(context.Background(), store); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	vault := payments.NewMemoryVault()
	svc := NewQuoteService(store, vault, []string{core.SignerID(priv.PubKey())})
	return testEnv{svc: svc, vault: vault, priv: priv}
}

// seedSubmission builds a submission valid against the seed catalog:
// provider 1, product 1, cover asset 1, native payment asset 2.
func seedSubmission() core.QuoteSubmission {
	providers, products, assets := covstore.SeedData()
	cover := assets[0]
	payment := assets[1]
	return core.QuoteSubmission{
		ProviderID:     providers[0].ProviderID,
		ProductID:      products[0].ProductID,
		CoverAssetID:   cover.AssetID,
		CoverAmount:    cover.MinCoverAmount,
		PaymentAssetID: payment.AssetID,
		PremiumAmount:  payment.MinPaymentAmount,
		FeeAmount:      payment.MinPaymentAmount,
		CoverExpiry:    providers[0].MinCoverExpiry,
		ValidUntil:     time.Now().Add(time.Hour),
	}
}

func (e testEnv) signedRequest(sub core.QuoteSubmission) SubmitRequest {
	total := core.CheckedAdd(sub.PremiumAmount, sub.FeeAmount)
	return SubmitRequest{
		Submission: sub,
		Signature:  core.SignDigest(e.priv, core.QuoteDigest(sub)),
		Payer:      "alice",
		PaidValue:  total,
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("authorized submission escrows the payment", func(t *testing.T) {
		e := newTestEnv(t)
		sub := seedSubmission()
		total := core.CheckedAdd(sub.PremiumAmount, sub.FeeAmount)
		e.vault.Credit(core.NativeAssetAddress, "alice", total)

		quote, err := e.svc.Submit(ctx, e.signedRequest(sub))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if quote.Owner != "alice" {
			t.Errorf("expected owner alice, got %s", quote.Owner)
		}
		if e.vault.Balance(core.NativeAssetAddress) != total {
			t.Errorf("expected %d in vault, got %d", total, e.vault.Balance(core.NativeAssetAddress))
		}
		if e.vault.AccountBalance(core.NativeAssetAddress, "alice") != 0 {
			t.Error("payer account not debited")
		}
		status, _ := e.svc.Status(ctx, quote.QuoteID)
		if status != core.StatusAwaitingSettlement {
			t.Errorf("expected awaiting_settlement, got %s", status)
		}
	})

	t.Run("mint-to becomes the owner", func(t *testing.T) {
		e := newTestEnv(t)
		sub := seedSubmission()
		total := core.CheckedAdd(sub.PremiumAmount, sub.FeeAmount)
		e.vault.Credit(core.NativeAssetAddress, "alice", total)

		req := SubmitRequest{
			Submission: sub,
			MintTo:     "bob",
			Signature:  core.SignDigest(e.priv, core.ExtendedQuoteDigest(sub, nil, 0, "bob")),
			Payer:      "alice",
			PaidValue:  total,
		}
		quote, err := e.svc.Submit(ctx, req)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if quote.Owner != "bob" {
			t.Errorf("expected owner bob, got %s", quote.Owner)
		}
	})

	t.Run("unauthorized signer is rejected", func(t *testing.T) {
		e := newTestEnv(t)
		rogue, _ := btcec.NewPrivateKey()
		sub := seedSubmission()
		req := e.signedRequest(sub)
		req.Signature = core.SignDigest(rogue, core.QuoteDigest(sub))
		if _, err := e.svc.Submit(ctx, req); err != ErrUnauthorizedSigner {
			t.Errorf("expected ErrUnauthorizedSigner, got %v", err)
		}
	})

	t.Run("signature over different fields is rejected", func(t *testing.T) {
		e := newTestEnv(t)
		sub := seedSubmission()
		req := e.signedRequest(sub)
		req.Submission.PremiumAmount++
		_, err := e.svc.Submit(ctx, req)
		if err == nil || err == ErrIncorrectPaidValue {
			t.Errorf("expected signature rejection, got %v", err)
		}
	})

	t.Run("incorrect attached value", func(t *testing.T) {
		e := newTestEnv(t)
		sub := seedSubmission()
		e.vault.Credit(core.NativeAssetAddress, "alice", 1_000_000)
		req := e.signedRequest(sub)
		req.PaidValue++
		if _, err := e.svc.Submit(ctx, req); err != ErrIncorrectPaidValue {
			t.Errorf("expected ErrIncorrectPaidValue, got %v", err)
		}
	})

	t.Run("payer without funds", func(t *testing.T) {
		e := newTestEnv(t)
		if _, err := e.svc.Submit(ctx, e.signedRequest(seedSubmission())); err != payments.ErrInsufficientFunds {
			t.Errorf("expected ErrInsufficientFunds, got %v", err)
		}
	})
}

func TestSettleAndCollect(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	sub := seedSubmission()
	total := core.CheckedAdd(sub.PremiumAmount, sub.FeeAmount)
	e.vault.Credit(core.NativeAssetAddress, "alice", total)

	quote, err := e.svc.Submit(ctx, e.signedRequest(sub))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	t.Run("collect is blocked while escrow is pending", func(t *testing.T) {
		err := e.svc.Collect(ctx, core.NativeAssetAddress, "treasury", 1)
		if err != ErrExceedsExcess {
			t.Errorf("expected ErrExceedsExcess, got %v", err)
		}
	})

	if _, err := e.svc.Settle(ctx, quote.QuoteID, "0xtx", time.Now().Add(sub.CoverExpiry)); err != nil {
		t.Fatalf("settle: %v", err)
	}

	t.Run("settlement frees the escrow as excess", func(t *testing.T) {
		if err := e.svc.Collect(ctx, core.NativeAssetAddress, "treasury", total+1); err != ErrExceedsExcess {
			t.Errorf("expected ErrExceedsExcess for over-collect, got %v", err)
		}
		if err := e.svc.Collect(ctx, core.NativeAssetAddress, "treasury", total); err != nil {
			t.Fatalf("collect: %v", err)
		}
		if got := e.vault.AccountBalance(core.NativeAssetAddress, "treasury"); got != total {
			t.Errorf("expected treasury to hold %d, got %d", total, got)
		}
		if e.vault.Balance(core.NativeAssetAddress) != 0 {
			t.Errorf("expected empty vault, got %d", e.vault.Balance(core.NativeAssetAddress))
		}
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("refund returns funds to the owner", func(t *testing.T) {
		e := newTestEnv(t)
		sub := seedSubmission()
		total := core.CheckedAdd(sub.PremiumAmount, sub.FeeAmount)
		e.vault.Credit(core.NativeAssetAddress, "alice", total)
		quote, err := e.svc.Submit(ctx, e.signedRequest(sub))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}

		if _, err := e.svc.Refund(ctx, quote.QuoteID); err != nil {
			t.Fatalf("refund: %v", err)
		}
		if got := e.vault.AccountBalance(core.NativeAssetAddress, "alice"); got != total {
			t.Errorf("expected alice to hold %d again, got %d", total, got)
		}
		if e.vault.Balance(core.NativeAssetAddress) != 0 {
			t.Errorf("expected empty vault, got %d", e.vault.Balance(core.NativeAssetAddress))
		}
		status, _ := e.svc.Status(ctx, quote.QuoteID)
		if status != core.StatusQuoteRefunded {
			t.Errorf("expected quote_refunded, got %s", status)
		}
	})

	t.Run("payout failure leaves the quote untouched", func(t *testing.T) {
		e := newTestEnv(t)
		sub := seedSubmission()
		total := core.CheckedAdd(sub.PremiumAmount, sub.FeeAmount)
		e.vault.Credit(core.NativeAssetAddress, "alice", total)
		e.vault.RejectPushesTo("alice")
		quote, err := e.svc.Submit(ctx, e.signedRequest(sub))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}

		if _, err := e.svc.Refund(ctx, quote.QuoteID); err != payments.ErrInvalidAddress {
			t.Fatalf("expected ErrInvalidAddress, got %v", err)
		}
		status, _ := e.svc.Status(ctx, quote.QuoteID)
		if status != core.StatusAwaitingSettlement {
			t.Errorf("expected awaiting_settlement after failed payout, got %s", status)
		}
		pending, _ := e.svc.PendingAmounts(ctx)
		if pending[core.NativeAssetAddress] != total {
			t.Errorf("expected escrow intact, got %v", pending)
		}
	})
}

func TestPause(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	sub := seedSubmission()
	total := core.CheckedAdd(sub.PremiumAmount, sub.FeeAmount)
	e.vault.Credit(core.NativeAssetAddress, "alice", total)
	quote, err := e.svc.Submit(ctx, e.signedRequest(sub))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	e.svc.Pause()
	if !e.svc.Paused() {
		t.Fatal("pause flag not set")
	}

	if _, err := e.svc.Submit(ctx, e.signedRequest(sub)); err != ErrServicePaused {
		t.Errorf("submit under pause: expected ErrServicePaused, got %v", err)
	}
	if _, err := e.svc.Settle(ctx, quote.QuoteID, "0xtx", time.Now().Add(time.Hour)); err != ErrServicePaused {
		t.Errorf("settle under pause: expected ErrServicePaused, got %v", err)
	}
	if _, err := e.svc.Refund(ctx, quote.QuoteID); err != ErrServicePaused {
		t.Errorf("refund under pause: expected ErrServicePaused, got %v", err)
	}
	if _, err := e.svc.RefundUnfulfilled(ctx, quote.QuoteID, "alice", "alice"); err != ErrServicePaused {
		t.Errorf("refund-unfulfilled under pause: expected ErrServicePaused, got %v", err)
	}
	if err := e.svc.Collect(ctx, core.NativeAssetAddress, "treasury", 0); err != ErrServicePaused {
		t.Errorf("collect under pause: expected ErrServicePaused, got %v", err)
	}

	// Reads stay available while paused.
	if _, err := e.svc.Get(ctx, quote.QuoteID); err != nil {
		t.Errorf("get under pause: %v", err)
	}
	status, err := e.svc.Status(ctx, quote.QuoteID)
	if err != nil || status != core.StatusAwaitingSettlement {
		t.Errorf("status under pause: %s, %v", status, err)
	}
	if _, err := e.svc.List(ctx, covstore.QuoteFilter{}); err != nil {
		t.Errorf("list under pause: %v", err)
	}

	e.svc.Resume()
	if _, err := e.svc.Refund(ctx, quote.QuoteID); err != nil {
		t.Errorf("refund after resume: %v", err)
	}
}
