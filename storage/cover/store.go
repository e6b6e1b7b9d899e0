package cover

import (
	"context"
	"time"

	core "covergate-backend/core/cover"
)

// PaymentFunc moves value at the boundary of a store transition. It runs
// inside the transition's commit scope: if it fails, the whole operation
// aborts with no state change. On submission it pulls the escrowed
// payment in; on refund it pushes the payment back out.
type PaymentFunc func(assetAddress, counterparty string, amount uint64) error

// QuoteFilter narrows ListQuotes.
type QuoteFilter struct {
	ProviderID   uint32
	Owner        string
	PaymentAsset string
	Limit        int
	Offset       int
}

// Store abstracts quote, settlement, catalog, and pending-amount
// persistence. Every transition commits fully or leaves no trace, and
// reads each operation's "now" exactly once.
type Store interface {
	// Catalog writes, validated per the config invariants.
	SetProvider(ctx context.Context, p core.Provider) error
	SetProduct(ctx context.Context, p core.Product) error
	SetAsset(ctx context.Context, a core.Asset) error

	// Catalog reads.
	GetProvider(ctx context.Context, providerID uint32) (core.Provider, error)
	ListProviders(ctx context.Context) ([]core.Provider, error)
	GetProduct(ctx context.Context, providerID, productID uint32) (core.Product, error)
	ListProducts(ctx context.Context, providerID uint32) ([]core.Product, error)
	GetAsset(ctx context.Context, providerID, assetID uint32) (core.Asset, error)
	ListAssets(ctx context.Context, providerID uint32) ([]core.Asset, error)

	// Lifecycle transitions.
	SubmitQuote(ctx context.Context, sub core.QuoteSubmission, coveredAddresses []string, integratorID uint32, owner string, pull PaymentFunc) (core.Quote, error)
	SettleQuote(ctx context.Context, quoteID uint64, externalTxHash string, coverExpiresAt time.Time) (core.Quote, error)
	RefundQuote(ctx context.Context, quoteID uint64, payout PaymentFunc) (core.Quote, error)
	RefundUnfulfilled(ctx context.Context, quoteID uint64, owner, withdrawTo string, payout PaymentFunc) (core.Quote, error)

	// Reads.
	GetQuote(ctx context.Context, quoteID uint64) (core.Quote, error)
	QuoteStatus(ctx context.Context, quoteID uint64) (core.QuoteStatus, error)
	ListQuotes(ctx context.Context, filter QuoteFilter) ([]core.Quote, error)
	PendingAmount(ctx context.Context, assetAddress string) (uint64, error)
	PendingAmounts(ctx context.Context) (map[string]uint64, error)

	Close()
}
