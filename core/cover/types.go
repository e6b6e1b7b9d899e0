package cover

import "time"

// NativeAssetAddress is the reserved payment-asset address denoting the
// chain's native currency rather than a token contract.
const NativeAssetAddress = "native"

// QuoteStatus is the derived lifecycle state of a quote. It is never
// persisted; only the two settlement flags and the timestamps are.
type QuoteStatus string

const (
	StatusNone               QuoteStatus = "none"
	StatusAwaitingSettlement QuoteStatus = "awaiting_settlement"
	StatusQuoteExpired       QuoteStatus = "quote_expired"
	StatusQuoteRefunded      QuoteStatus = "quote_refunded"
	StatusCoverActive        QuoteStatus = "cover_active"
	StatusCoverExpired       QuoteStatus = "cover_expired"
)

// Provider is a cover provider configuration record. Providers are never
// deleted, only disabled.
type Provider struct {
	ProviderID       uint32        `json:"provider_id"`
	Enabled          bool          `json:"enabled"`
	ChainID          uint64        `json:"chain_id"`
	MinCoverExpiry   time.Duration `json:"min_cover_expiry_sec"`
	MaxCoverExpiry   time.Duration `json:"max_cover_expiry_sec"`
	SettlementPeriod time.Duration `json:"settlement_period_sec"`
	Name             string        `json:"name"`
}

// Product is a cover product, scoped to a provider.
type Product struct {
	ProviderID uint32 `json:"provider_id"`
	ProductID  uint32 `json:"product_id"`
	Enabled    bool   `json:"enabled"`
	Name       string `json:"name"`
}

// Asset is a cover or payment asset configuration, scoped to a provider.
type Asset struct {
	ProviderID       uint32 `json:"provider_id"`
	AssetID          uint32 `json:"asset_id"`
	IsCoverAsset     bool   `json:"is_cover_asset"`
	IsPaymentAsset   bool   `json:"is_payment_asset"`
	MinCoverAmount   uint64 `json:"min_cover_amount"`
	MaxCoverAmount   uint64 `json:"max_cover_amount"`
	MinPaymentAmount uint64 `json:"min_payment_amount"`
	AssetAddress     string `json:"asset_address"`
	Decimals         uint8  `json:"decimals"`
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
}

// QuoteSubmission is the immutable submission input. Its digest is the
// object signed by the authorizing signer.
type QuoteSubmission struct {
	ProviderID     uint32        `json:"provider_id"`
	ProductID      uint32        `json:"product_id"`
	CoverAssetID   uint32        `json:"cover_asset_id"`
	CoverAmount    uint64        `json:"cover_amount"`
	PaymentAssetID uint32        `json:"payment_asset_id"`
	PremiumAmount  uint64        `json:"premium_amount"`
	FeeAmount      uint64        `json:"fee_amount"`
	CoverExpiry    time.Duration `json:"cover_expiry_sec"`
	ValidUntil     time.Time     `json:"valid_until"`
}

// QuoteSettlement is the mutable per-quote settlement record. It is
// written once at submission and mutated exactly once into either the
// settled or the refunded state.
type QuoteSettlement struct {
	IsSettled      bool      `json:"is_settled"`
	IsRefunded     bool      `json:"is_refunded"`
	SubmittedAt    time.Time `json:"submitted_at"`
	SettledAt      time.Time `json:"settled_at,omitempty"`
	CoverExpiresAt time.Time `json:"cover_expires_at,omitempty"`
	ExternalTxHash string    `json:"external_tx_hash,omitempty"`
}

// Quote is a committed cover quote with escrowed payment.
type Quote struct {
	QuoteID          uint64          `json:"quote_id"`
	Submission       QuoteSubmission `json:"submission"`
	Owner            string          `json:"owner"`
	CoveredAddresses []string        `json:"covered_addresses,omitempty"`
	IntegratorID     uint32          `json:"integrator_id,omitempty"`
	PaymentAsset     string          `json:"payment_asset"`
	TotalPayment     uint64          `json:"total_payment"`
	Settlement       QuoteSettlement `json:"settlement"`
}

// Status derives the quote's lifecycle state at the given instant. The
// caller reads "now" once per operation and passes it to every check in
// that operation.
func (q Quote) Status(settlementPeriod time.Duration, now time.Time) QuoteStatus {
	return DeriveStatus(q.Settlement, settlementPeriod, now)
}

// DeriveStatus computes the lifecycle state from the settlement record.
// Only the two flags are authoritative; everything else follows from
// timestamps and the clock.
func DeriveStatus(s QuoteSettlement, settlementPeriod time.Duration, now time.Time) QuoteStatus {
	switch {
	case s.IsSettled:
		if now.After(s.CoverExpiresAt) {
			return StatusCoverExpired
		}
		return StatusCoverActive
	case s.IsRefunded:
		return StatusQuoteRefunded
	case now.After(s.SubmittedAt.Add(settlementPeriod)):
		return StatusQuoteExpired
	default:
		return StatusAwaitingSettlement
	}
}
