package services

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	core "covergate-backend/core/cover"
	"covergate-backend/metrics"
	"covergate-backend/payments"
	"covergate-backend/storage/cover"
)

// Err is a service-level error.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrServicePaused      = Err("service is paused")
	ErrUnauthorizedSigner = Err("signer is not authorized")
	ErrIncorrectPaidValue = Err("attached value does not match total payment")
	ErrExceedsExcess      = Err("amount exceeds collectible excess")
)

// SubmitRequest carries one quote submission through the signature gate.
type SubmitRequest struct {
	Submission       core.QuoteSubmission
	Signature        string
	CoveredAddresses []string
	IntegratorID     uint32
	MintTo           string
	Payer            string
	PaidValue        uint64
}

// QuoteService drives the quote lifecycle: signature-gated submission,
// settlement, refunds, and excess collection. A single mutex serializes
// the operations that read vault and pending balances together, and an
// atomic pause flag blocks mutating operations without touching reads.
type QuoteService struct {
	store   cover.Store
	vault   payments.Gateway
	signers map[string]bool
	paused  atomic.Bool
	mu      sync.Mutex
}

// NewQuoteService wires a store, a payment gateway, and the allow-list
// of authorized signer identities.
func NewQuoteService(store cover.Store, vault payments.Gateway, signerIDs []string) *QuoteService {
	signers := make(map[string]bool, len(signerIDs))
	for _, id := range signerIDs {
		signers[id] = true
	}
	return &QuoteService{store: store, vault: vault, signers: signers}
}

// Submit verifies the signature, recovers the signer, and commits the
// quote with the payment pulled in the same store transaction.
func (s *QuoteService) Submit(ctx context.Context, req SubmitRequest) (core.Quote, error) {
	if s.paused.Load() {
		return core.Quote{}, ErrServicePaused
	}

	digest := core.QuoteDigest(req.Submission)
	if len(req.CoveredAddresses) > 0 || req.IntegratorID != 0 || req.MintTo != "" {
		digest = core.ExtendedQuoteDigest(req.Submission, req.CoveredAddresses, req.IntegratorID, req.MintTo)
	}
	signer, err := core.RecoverSigner(digest, req.Signature)
	if err != nil {
		metrics.RejectedSubmissions.Inc()
		return core.Quote{}, err
	}
	if !s.signers[signer] {
		metrics.RejectedSubmissions.Inc()
		return core.Quote{}, ErrUnauthorizedSigner
	}

	owner := req.Payer
	if req.MintTo != "" {
		owner = req.MintTo
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	quote, err := s.store.SubmitQuote(ctx, req.Submission, req.CoveredAddresses, req.IntegratorID, owner,
		func(assetAddress, _ string, amount uint64) error {
			if assetAddress == core.NativeAssetAddress {
				if req.PaidValue != amount {
					return ErrIncorrectPaidValue
				}
			} else if req.PaidValue != 0 {
				return ErrIncorrectPaidValue
			}
			return s.vault.Pull(assetAddress, req.Payer, amount)
		})
	if err != nil {
		metrics.RejectedSubmissions.Inc()
		return core.Quote{}, err
	}

	metrics.QuoteSubmissions.Inc()
	s.refreshPending(ctx)
	log.Printf("quote %d submitted by %s, %d %s escrowed", quote.QuoteID, owner, quote.TotalPayment, quote.PaymentAsset)
	return quote, nil
}

// Settle marks a quote settled against an external settlement
// transaction. The escrow is released without a payout; the funds
// become collectible excess.
func (s *QuoteService) Settle(ctx context.Context, quoteID uint64, externalTxHash string, coverExpiresAt time.Time) (core.Quote, error) {
	if s.paused.Load() {
		return core.Quote{}, ErrServicePaused
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, err := s.store.SettleQuote(ctx, quoteID, externalTxHash, coverExpiresAt)
	if err != nil {
		return core.Quote{}, err
	}
	metrics.QuoteSettlements.Inc()
	s.refreshPending(ctx)
	log.Printf("quote %d settled, cover active until %s", quoteID, quote.Settlement.CoverExpiresAt.Format(time.RFC3339))
	return quote, nil
}

// Refund returns a quote's escrowed payment to its owner. Operators may
// refund at any point before settlement.
func (s *QuoteService) Refund(ctx context.Context, quoteID uint64) (core.Quote, error) {
	if s.paused.Load() {
		return core.Quote{}, ErrServicePaused
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, err := s.store.RefundQuote(ctx, quoteID, s.vault.Push)
	if err != nil {
		return core.Quote{}, err
	}
	metrics.QuoteRefunds.WithLabelValues("operator").Inc()
	s.refreshPending(ctx)
	log.Printf("quote %d refunded to %s", quoteID, quote.Owner)
	return quote, nil
}

// RefundUnfulfilled lets the quote owner reclaim escrow after the
// settlement window lapsed, paid to an address of their choosing.
func (s *QuoteService) RefundUnfulfilled(ctx context.Context, quoteID uint64, owner, withdrawTo string) (core.Quote, error) {
	if s.paused.Load() {
		return core.Quote{}, ErrServicePaused
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, err := s.store.RefundUnfulfilled(ctx, quoteID, owner, withdrawTo, s.vault.Push)
	if err != nil {
		return core.Quote{}, err
	}
	metrics.QuoteRefunds.WithLabelValues("owner").Inc()
	s.refreshPending(ctx)
	log.Printf("quote %d refunded unfulfilled to %s", quoteID, withdrawTo)
	return quote, nil
}

// Collect pays out vault balance in excess of pending escrow. The bound
// is computed and spent under the service mutex so a concurrent
// submission or refund cannot race the excess away.
func (s *QuoteService) Collect(ctx context.Context, assetAddress, to string, amount uint64) error {
	if s.paused.Load() {
		return ErrServicePaused
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, err := s.store.PendingAmount(ctx, assetAddress)
	if err != nil {
		return err
	}
	balance := s.vault.Balance(assetAddress)
	if balance < pending {
		panic(core.CorruptionError{Op: "collect", Asset: assetAddress, Detail: "vault balance below pending escrow"})
	}
	if amount > balance-pending {
		return ErrExceedsExcess
	}
	if err := s.vault.Push(assetAddress, to, amount); err != nil {
		return err
	}
	metrics.Collects.Inc()
	log.Printf("collected %d %s to %s", amount, assetAddress, to)
	return nil
}

// Get returns a quote by id.
func (s *QuoteService) Get(ctx context.Context, quoteID uint64) (core.Quote, error) {
	return s.store.GetQuote(ctx, quoteID)
}

// Status derives a quote's lifecycle state.
func (s *QuoteService) Status(ctx context.Context, quoteID uint64) (core.QuoteStatus, error) {
	return s.store.QuoteStatus(ctx, quoteID)
}

// List returns quotes matching the filter.
func (s *QuoteService) List(ctx context.Context, filter cover.QuoteFilter) ([]core.Quote, error) {
	return s.store.ListQuotes(ctx, filter)
}

// PendingAmounts snapshots the escrow ledger.
func (s *QuoteService) PendingAmounts(ctx context.Context) (map[string]uint64, error) {
	return s.store.PendingAmounts(ctx)
}

// Pause blocks mutating operations. Reads keep working.
func (s *QuoteService) Pause() {
	s.paused.Store(true)
	log.Printf("quote service paused")
}

// Resume unblocks mutating operations.
func (s *QuoteService) Resume() {
	s.paused.Store(false)
	log.Printf("quote service resumed")
}

// Paused reports the pause flag.
func (s *QuoteService) Paused() bool { return s.paused.Load() }

func (s *QuoteService) refreshPending(ctx context.Context) {
	amounts, err := s.store.PendingAmounts(ctx)
	if err != nil {
		return
	}
	metrics.SetPending(amounts)
}
