package cover

import (
	"context"
	"sort"
	"sync"
	"time"

	core "covergate-backend/core/cover"
)

// MemoryStore holds quote and catalog state in memory with a single
// mutex. One lock across all maps keeps every transition atomic: a
// submission that reserves escrow and a refund that releases it can
// never interleave on the same quote.
type MemoryStore struct {
	mu        sync.Mutex
	providers map[uint32]core.Provider
	products  map[uint32]map[uint32]core.Product
	assets    map[uint32]map[uint32]core.Asset
	quotes    map[uint64]core.Quote
	ledger    *core.PendingLedger

	// First quote id is 0; the counter only advances on commit, so
	// failed submissions consume no id.
	nextQuoteID uint64

	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers: make(map[uint32]core.Provider),
		products:  make(map[uint32]map[uint32]core.Product),
		assets:    make(map[uint32]map[uint32]core.Asset),
		quotes:    make(map[uint64]core.Quote),
		ledger:    core.NewPendingLedger(),
		now:       time.Now,
	}
}

// Close implements Store; nothing to release.
func (s *MemoryStore) Close() {}

// memCatalog adapts the store's maps to the validator's read surface.
// Only used while the store lock is held.
type memCatalog struct{ s *MemoryStore }

func (c memCatalog) ProviderByID(providerID uint32) (core.Provider, bool) {
	p, ok := c.s.providers[providerID]
	return p, ok
}

func (c memCatalog) ProductByID(providerID, productID uint32) (core.Product, bool) {
	p, ok := c.s.products[providerID][productID]
	return p, ok
}

func (c memCatalog) AssetByID(providerID, assetID uint32) (core.Asset, bool) {
	a, ok := c.s.assets[providerID][assetID]
	return a, ok
}

// SetProvider creates or updates a provider record.
func (s *MemoryStore) SetProvider(_ context.Context, p core.Provider) error {
	if err := core.ValidateProviderConfig(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ProviderID] = p
	return nil
}

// SetProduct creates or updates a product. Enabling is gated on the
// provider being enabled at write time; the gate is not re-checked
// later.
func (s *MemoryStore) SetProduct(_ context.Context, p core.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	provider, ok := s.providers[p.ProviderID]
	if !ok {
		return ErrProviderNotFound
	}
	if p.Enabled && !provider.Enabled {
		return ErrProviderDisabled
	}
	if s.products[p.ProviderID] == nil {
		s.products[p.ProviderID] = make(map[uint32]core.Product)
	}
	s.products[p.ProviderID][p.ProductID] = p
	return nil
}

// SetAsset creates or updates an asset record.
func (s *MemoryStore) SetAsset(_ context.Context, a core.Asset) error {
	if err := core.ValidateAssetConfig(a); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[a.ProviderID]; !ok {
		return ErrProviderNotFound
	}
	if s.assets[a.ProviderID] == nil {
		s.assets[a.ProviderID] = make(map[uint32]core.Asset)
	}
	s.assets[a.ProviderID][a.AssetID] = a
	return nil
}

// GetProvider returns a provider by id.
func (s *MemoryStore) GetProvider(_ context.Context, providerID uint32) (core.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[providerID]
	if !ok {
		return core.Provider{}, ErrProviderNotFound
	}
	return p, nil
}

// ListProviders returns all providers ordered by id.
func (s *MemoryStore) ListProviders(_ context.Context) ([]core.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out, nil
}

// GetProduct returns a product scoped to a provider.
func (s *MemoryStore) GetProduct(_ context.Context, providerID, productID uint32) (core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[providerID][productID]
	if !ok {
		return core.Product{}, ErrProductNotFound
	}
	return p, nil
}

// ListProducts returns a provider's products ordered by id.
func (s *MemoryStore) ListProducts(_ context.Context, providerID uint32) ([]core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Product, 0, len(s.products[providerID]))
	for _, p := range s.products[providerID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// GetAsset returns an asset scoped to a provider.
func (s *MemoryStore) GetAsset(_ context.Context, providerID, assetID uint32) (core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[providerID][assetID]
	if !ok {
		return core.Asset{}, ErrAssetNotFound
	}
	return a, nil
}

// ListAssets returns a provider's assets ordered by id.
func (s *MemoryStore) ListAssets(_ context.Context, providerID uint32) ([]core.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Asset, 0, len(s.assets[providerID]))
	for _, a := range s.assets[providerID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

// SubmitQuote validates the submission, pulls the payment, reserves the
// escrow, and commits the quote under the next id. The pull callback
// runs before any state changes, so a payment failure leaves the store
// untouched and the id unconsumed.
func (s *MemoryStore) SubmitQuote(_ context.Context, sub core.QuoteSubmission, coveredAddresses []string, integratorID uint32, owner string, pull PaymentFunc) (core.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	paymentAsset, totalPayment, err := core.ValidateSubmission(sub, memCatalog{s}, now)
	if err != nil {
		return core.Quote{}, err
	}
	if pull != nil {
		if err := pull(paymentAsset, owner, totalPayment); err != nil {
			return core.Quote{}, err
		}
	}

	quote := core.Quote{
		QuoteID:          s.nextQuoteID,
		Submission:       sub,
		Owner:            owner,
		CoveredAddresses: append([]string(nil), coveredAddresses...),
		IntegratorID:     integratorID,
		PaymentAsset:     paymentAsset,
		TotalPayment:     totalPayment,
		Settlement:       core.QuoteSettlement{SubmittedAt: now},
	}
	s.ledger.Reserve(paymentAsset, totalPayment)
	s.quotes[quote.QuoteID] = quote
	s.nextQuoteID++
	return quote, nil
}

// SettleQuote marks a quote settled and releases its escrow. Settling
// is allowed both inside and after the settlement window; operators may
// settle late quotes.
func (s *MemoryStore) SettleQuote(_ context.Context, quoteID uint64, externalTxHash string, coverExpiresAt time.Time) (core.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[quoteID]
	if !ok {
		return core.Quote{}, ErrQuoteNotFound
	}
	if q.Settlement.IsSettled {
		return core.Quote{}, ErrQuoteAlreadySettled
	}
	if q.Settlement.IsRefunded {
		return core.Quote{}, ErrQuoteAlreadyRefunded
	}
	now := s.now()
	if coverExpiresAt.Before(now) {
		return core.Quote{}, ErrCoverExpiryInPast
	}

	q.Settlement.IsSettled = true
	q.Settlement.SettledAt = now
	q.Settlement.CoverExpiresAt = coverExpiresAt
	q.Settlement.ExternalTxHash = externalTxHash
	s.ledger.Release(q.PaymentAsset, q.TotalPayment)
	s.quotes[quoteID] = q
	return q, nil
}

// RefundQuote refunds a quote to its current owner. Operators may
// refund a quote still inside its settlement window; only an already
// settled or already refunded quote blocks the transition.
func (s *MemoryStore) RefundQuote(_ context.Context, quoteID uint64, payout PaymentFunc) (core.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[quoteID]
	if !ok {
		return core.Quote{}, ErrQuoteNotFound
	}
	if q.Settlement.IsSettled {
		return core.Quote{}, ErrQuoteAlreadySettled
	}
	if q.Settlement.IsRefunded {
		return core.Quote{}, ErrQuoteAlreadyRefunded
	}
	if payout != nil {
		if err := payout(q.PaymentAsset, q.Owner, q.TotalPayment); err != nil {
			return core.Quote{}, err
		}
	}

	q.Settlement.IsRefunded = true
	s.ledger.Release(q.PaymentAsset, q.TotalPayment)
	s.quotes[quoteID] = q
	return q, nil
}

// RefundUnfulfilled lets the quote owner reclaim an escrowed payment,
// but only once the settlement window has lapsed without settlement.
func (s *MemoryStore) RefundUnfulfilled(_ context.Context, quoteID uint64, owner, withdrawTo string, payout PaymentFunc) (core.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[quoteID]
	if !ok {
		return core.Quote{}, ErrQuoteNotFound
	}
	if q.Settlement.IsSettled {
		return core.Quote{}, ErrQuoteAlreadySettled
	}
	if q.Settlement.IsRefunded {
		return core.Quote{}, ErrQuoteAlreadyRefunded
	}
	if q.Owner != owner {
		return core.Quote{}, ErrNotQuoteOwner
	}
	provider, ok := s.providers[q.Submission.ProviderID]
	if !ok {
		return core.Quote{}, ErrProviderNotFound
	}
	now := s.now()
	if core.DeriveStatus(q.Settlement, provider.SettlementPeriod, now) != core.StatusQuoteExpired {
		return core.Quote{}, ErrQuoteNotExpired
	}
	if payout != nil {
		if err := payout(q.PaymentAsset, withdrawTo, q.TotalPayment); err != nil {
			return core.Quote{}, err
		}
	}

	q.Settlement.IsRefunded = true
	s.ledger.Release(q.PaymentAsset, q.TotalPayment)
	s.quotes[quoteID] = q
	return q, nil
}

// GetQuote returns a quote by id.
func (s *MemoryStore) GetQuote(_ context.Context, quoteID uint64) (core.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[quoteID]
	if !ok {
		return core.Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

// QuoteStatus derives a quote's lifecycle state. An absent quote is
// StatusNone, not an error.
func (s *MemoryStore) QuoteStatus(_ context.Context, quoteID uint64) (core.QuoteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[quoteID]
	if !ok {
		return core.StatusNone, nil
	}
	provider, ok := s.providers[q.Submission.ProviderID]
	if !ok {
		return core.StatusNone, ErrProviderNotFound
	}
	return core.DeriveStatus(q.Settlement, provider.SettlementPeriod, s.now()), nil
}

// ListQuotes returns quotes matching the filter, ordered by id.
func (s *MemoryStore) ListQuotes(_ context.Context, filter QuoteFilter) ([]core.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Quote, 0, len(s.quotes))
	for _, q := range s.quotes {
		if filter.ProviderID != 0 && q.Submission.ProviderID != filter.ProviderID {
			continue
		}
		if filter.Owner != "" && q.Owner != filter.Owner {
			continue
		}
		if filter.PaymentAsset != "" && q.PaymentAsset != filter.PaymentAsset {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuoteID < out[j].QuoteID })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []core.Quote{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// PendingAmount returns the escrowed total for one payment asset.
func (s *MemoryStore) PendingAmount(_ context.Context, assetAddress string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Amount(assetAddress), nil
}

// PendingAmounts returns the full pending map.
func (s *MemoryStore) PendingAmounts(_ context.Context) (map[string]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Snapshot(), nil
}
