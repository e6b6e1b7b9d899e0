package cover

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	core "covergate-backend/core/cover"
)

// PGStore persists quote and catalog state in Postgres. Every lifecycle
// transition runs in a transaction with the quote row locked FOR UPDATE,
// and payment callbacks execute inside the transaction scope so a failed
// payout rolls the state change back.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore connects, initializes schema, and optionally seeds fixtures.
func NewPGStore(ctx context.Context, dsn string, seed bool) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PGStore{pool: pool, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if seed {
		if err := s.seedFixtures(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS cover_providers (
  provider_id INT PRIMARY KEY,
  enabled BOOLEAN NOT NULL,
  chain_id BIGINT NOT NULL,
  min_cover_expiry_sec BIGINT NOT NULL,
  max_cover_expiry_sec BIGINT NOT NULL,
  settlement_period_sec BIGINT NOT NULL,
  name TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS cover_products (
  provider_id INT NOT NULL,
  product_id INT NOT NULL,
  enabled BOOLEAN NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (provider_id, product_id)
);
CREATE TABLE IF NOT EXISTS cover_assets (
  provider_id INT NOT NULL,
  asset_id INT NOT NULL,
  is_cover_asset BOOLEAN NOT NULL,
  is_payment_asset BOOLEAN NOT NULL,
  min_cover_amount BIGINT NOT NULL,
  max_cover_amount BIGINT NOT NULL,
  min_payment_amount BIGINT NOT NULL,
  asset_address TEXT NOT NULL,
  decimals SMALLINT NOT NULL DEFAULT 0,
  name TEXT NOT NULL DEFAULT '',
  symbol TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (provider_id, asset_id)
);
CREATE TABLE IF NOT EXISTS cover_quotes (
  quote_id BIGINT PRIMARY KEY,
  provider_id INT NOT NULL,
  product_id INT NOT NULL,
  cover_asset_id INT NOT NULL,
  cover_amount BIGINT NOT NULL,
  payment_asset_id INT NOT NULL,
  premium_amount BIGINT NOT NULL,
  fee_amount BIGINT NOT NULL,
  cover_expiry_sec BIGINT NOT NULL,
  valid_until TIMESTAMPTZ NOT NULL,
  owner TEXT NOT NULL,
  covered_addresses TEXT[],
  integrator_id INT NOT NULL DEFAULT 0,
  payment_asset TEXT NOT NULL,
  total_payment BIGINT NOT NULL,
  is_settled BOOLEAN NOT NULL DEFAULT FALSE,
  is_refunded BOOLEAN NOT NULL DEFAULT FALSE,
  submitted_at TIMESTAMPTZ NOT NULL,
  settled_at TIMESTAMPTZ,
  cover_expires_at TIMESTAMPTZ,
  external_tx_hash TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS cover_pending (
  asset_address TEXT PRIMARY KEY,
  amount BIGINT NOT NULL CHECK (amount >= 0)
);
CREATE TABLE IF NOT EXISTS cover_meta (
  id INT PRIMARY KEY CHECK (id = 1),
  next_quote_id BIGINT NOT NULL
);
INSERT INTO cover_meta (id, next_quote_id) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
CREATE INDEX IF NOT EXISTS idx_cover_quotes_owner ON cover_quotes(owner);
CREATE INDEX IF NOT EXISTS idx_cover_quotes_provider ON cover_quotes(provider_id);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PGStore) seedFixtures(ctx context.Context) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM cover_providers`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	providers, products, assets := SeedData()
	for _, p := range providers {
		if err := s.SetProvider(ctx, p); err != nil {
			return err
		}
	}
	for _, p := range products {
		if err := s.SetProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, a := range assets {
		if err := s.SetAsset(ctx, a); err != nil {
			return err
		}
	}
	log.Printf("seeded catalog fixtures: %d providers, %d products, %d assets",
		len(providers), len(products), len(assets))
	return nil
}

// Close shuts down the pool.
func (s *PGStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// pgCatalog adapts transaction-scoped catalog reads to the validator.
type pgCatalog struct {
	ctx context.Context
	q   querier
}

func (c pgCatalog) ProviderByID(providerID uint32) (core.Provider, bool) {
	p, err := scanProvider(c.q.QueryRow(c.ctx, `
SELECT provider_id, enabled, chain_id, min_cover_expiry_sec, max_cover_expiry_sec, settlement_period_sec, name
FROM cover_providers WHERE provider_id=$1`, int64(providerID)))
	return p, err == nil
}

func (c pgCatalog) ProductByID(providerID, productID uint32) (core.Product, bool) {
	var p core.Product
	var pid, prid int64
	err := c.q.QueryRow(c.ctx, `
SELECT provider_id, product_id, enabled, name
FROM cover_products WHERE provider_id=$1 AND product_id=$2`, int64(providerID), int64(productID)).
		Scan(&prid, &pid, &p.Enabled, &p.Name)
	p.ProviderID = uint32(prid)
	p.ProductID = uint32(pid)
	return p, err == nil
}

func (c pgCatalog) AssetByID(providerID, assetID uint32) (core.Asset, bool) {
	a, err := scanAsset(c.q.QueryRow(c.ctx, `
SELECT provider_id, asset_id, is_cover_asset, is_payment_asset, min_cover_amount, max_cover_amount, min_payment_amount, asset_address, decimals, name, symbol
FROM cover_assets WHERE provider_id=$1 AND asset_id=$2`, int64(providerID), int64(assetID)))
	return a, err == nil
}

func scanProvider(row pgx.Row) (core.Provider, error) {
	var p core.Provider
	var pid, chainID, minExp, maxExp, period int64
	if err := row.Scan(&pid, &p.Enabled, &chainID, &minExp, &maxExp, &period, &p.Name); err != nil {
		return core.Provider{}, err
	}
	p.ProviderID = uint32(pid)
	p.ChainID = uint64(chainID)
	p.MinCoverExpiry = time.Duration(minExp) * time.Second
	p.MaxCoverExpiry = time.Duration(maxExp) * time.Second
	p.SettlementPeriod = time.Duration(period) * time.Second
	return p, nil
}

func scanAsset(row pgx.Row) (core.Asset, error) {
	var a core.Asset
	var pid, aid, minCover, maxCover, minPay int64
	var decimals int16
	if err := row.Scan(&pid, &aid, &a.IsCoverAsset, &a.IsPaymentAsset, &minCover, &maxCover, &minPay, &a.AssetAddress, &decimals, &a.Name, &a.Symbol); err != nil {
		return core.Asset{}, err
	}
	a.ProviderID = uint32(pid)
	a.AssetID = uint32(aid)
	a.MinCoverAmount = uint64(minCover)
	a.MaxCoverAmount = uint64(maxCover)
	a.MinPaymentAmount = uint64(minPay)
	a.Decimals = uint8(decimals)
	return a, nil
}

func scanQuote(row pgx.Row) (core.Quote, error) {
	var q core.Quote
	var quoteID, providerID, productID, coverAssetID, coverAmount int64
	var paymentAssetID, premium, fee, coverExpirySec, totalPayment, integratorID int64
	var settledAt, coverExpiresAt *time.Time
	err := row.Scan(
		&quoteID, &providerID, &productID, &coverAssetID, &coverAmount,
		&paymentAssetID, &premium, &fee, &coverExpirySec, &q.Submission.ValidUntil,
		&q.Owner, &q.CoveredAddresses, &integratorID, &q.PaymentAsset, &totalPayment,
		&q.Settlement.IsSettled, &q.Settlement.IsRefunded, &q.Settlement.SubmittedAt,
		&settledAt, &coverExpiresAt, &q.Settlement.ExternalTxHash,
	)
	if err != nil {
		return core.Quote{}, err
	}
	q.QuoteID = uint64(quoteID)
	q.Submission.ProviderID = uint32(providerID)
	q.Submission.ProductID = uint32(productID)
	q.Submission.CoverAssetID = uint32(coverAssetID)
	q.Submission.CoverAmount = uint64(coverAmount)
	q.Submission.PaymentAssetID = uint32(paymentAssetID)
	q.Submission.PremiumAmount = uint64(premium)
	q.Submission.FeeAmount = uint64(fee)
	q.Submission.CoverExpiry = time.Duration(coverExpirySec) * time.Second
	q.IntegratorID = uint32(integratorID)
	q.TotalPayment = uint64(totalPayment)
	if settledAt != nil {
		q.Settlement.SettledAt = *settledAt
	}
	if coverExpiresAt != nil {
		q.Settlement.CoverExpiresAt = *coverExpiresAt
	}
	return q, nil
}

const quoteColumns = `quote_id, provider_id, product_id, cover_asset_id, cover_amount,
payment_asset_id, premium_amount, fee_amount, cover_expiry_sec, valid_until,
owner, covered_addresses, integrator_id, payment_asset, total_payment,
is_settled, is_refunded, submitted_at, settled_at, cover_expires_at, external_tx_hash`

// SetProvider creates or updates a provider record.
func (s *PGStore) SetProvider(ctx context.Context, p core.Provider) error {
	if err := core.ValidateProviderConfig(p); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO cover_providers (provider_id, enabled, chain_id, min_cover_expiry_sec, max_cover_expiry_sec, settlement_period_sec, name)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (provider_id) DO UPDATE SET
  enabled=EXCLUDED.enabled, chain_id=EXCLUDED.chain_id,
  min_cover_expiry_sec=EXCLUDED.min_cover_expiry_sec, max_cover_expiry_sec=EXCLUDED.max_cover_expiry_sec,
  settlement_period_sec=EXCLUDED.settlement_period_sec, name=EXCLUDED.name
`, int64(p.ProviderID), p.Enabled, int64(p.ChainID),
		int64(p.MinCoverExpiry/time.Second), int64(p.MaxCoverExpiry/time.Second),
		int64(p.SettlementPeriod/time.Second), p.Name)
	return err
}

// SetProduct creates or updates a product. Enabling requires the
// provider to be enabled at write time.
func (s *PGStore) SetProduct(ctx context.Context, p core.Product) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	provider, ok := pgCatalog{ctx, tx}.ProviderByID(p.ProviderID)
	if !ok {
		return ErrProviderNotFound
	}
	if p.Enabled && !provider.Enabled {
		return ErrProviderDisabled
	}
	_, err = tx.Exec(ctx, `
INSERT INTO cover_products (provider_id, product_id, enabled, name)
VALUES ($1,$2,$3,$4)
ON CONFLICT (provider_id, product_id) DO UPDATE SET enabled=EXCLUDED.enabled, name=EXCLUDED.name
`, int64(p.ProviderID), int64(p.ProductID), p.Enabled, p.Name)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetAsset creates or updates an asset record.
func (s *PGStore) SetAsset(ctx context.Context, a core.Asset) error {
	if err := core.ValidateAssetConfig(a); err != nil {
		return err
	}
	if _, ok := (pgCatalog{ctx, s.pool}).ProviderByID(a.ProviderID); !ok {
		return ErrProviderNotFound
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO cover_assets (provider_id, asset_id, is_cover_asset, is_payment_asset, min_cover_amount, max_cover_amount, min_payment_amount, asset_address, decimals, name, symbol)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (provider_id, asset_id) DO UPDATE SET
  is_cover_asset=EXCLUDED.is_cover_asset, is_payment_asset=EXCLUDED.is_payment_asset,
  min_cover_amount=EXCLUDED.min_cover_amount, max_cover_amount=EXCLUDED.max_cover_amount,
  min_payment_amount=EXCLUDED.min_payment_amount, asset_address=EXCLUDED.asset_address,
  decimals=EXCLUDED.decimals, name=EXCLUDED.name, symbol=EXCLUDED.symbol
`, int64(a.ProviderID), int64(a.AssetID), a.IsCoverAsset, a.IsPaymentAsset,
		int64(a.MinCoverAmount), int64(a.MaxCoverAmount), int64(a.MinPaymentAmount),
		a.AssetAddress, int16(a.Decimals), a.Name, a.Symbol)
	return err
}

// GetProvider returns a provider by id.
func (s *PGStore) GetProvider(ctx context.Context, providerID uint32) (core.Provider, error) {
	p, ok := (pgCatalog{ctx, s.pool}).ProviderByID(providerID)
	if !ok {
		return core.Provider{}, ErrProviderNotFound
	}
	return p, nil
}

// ListProviders returns all providers ordered by id.
func (s *PGStore) ListProviders(ctx context.Context) ([]core.Provider, error) {
	rows, err := s.pool.Query(ctx, `
SELECT provider_id, enabled, chain_id, min_cover_expiry_sec, max_cover_expiry_sec, settlement_period_sec, name
FROM cover_providers ORDER BY provider_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct returns a product scoped to a provider.
func (s *PGStore) GetProduct(ctx context.Context, providerID, productID uint32) (core.Product, error) {
	p, ok := (pgCatalog{ctx, s.pool}).ProductByID(providerID, productID)
	if !ok {
		return core.Product{}, ErrProductNotFound
	}
	return p, nil
}

// ListProducts returns a provider's products ordered by id.
func (s *PGStore) ListProducts(ctx context.Context, providerID uint32) ([]core.Product, error) {
	rows, err := s.pool.Query(ctx, `
SELECT provider_id, product_id, enabled, name
FROM cover_products WHERE provider_id=$1 ORDER BY product_id`, int64(providerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Product{}
	for rows.Next() {
		var p core.Product
		var prid, pid int64
		if err := rows.Scan(&prid, &pid, &p.Enabled, &p.Name); err != nil {
			return nil, err
		}
		p.ProviderID = uint32(prid)
		p.ProductID = uint32(pid)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetAsset returns an asset scoped to a provider.
func (s *PGStore) GetAsset(ctx context.Context, providerID, assetID uint32) (core.Asset, error) {
	a, ok := (pgCatalog{ctx, s.pool}).AssetByID(providerID, assetID)
	if !ok {
		return core.Asset{}, ErrAssetNotFound
	}
	return a, nil
}

// ListAssets returns a provider's assets ordered by id.
func (s *PGStore) ListAssets(ctx context.Context, providerID uint32) ([]core.Asset, error) {
	rows, err := s.pool.Query(ctx, `
SELECT provider_id, asset_id, is_cover_asset, is_payment_asset, min_cover_amount, max_cover_amount, min_payment_amount, asset_address, decimals, name, symbol
FROM cover_assets WHERE provider_id=$1 ORDER BY asset_id`, int64(providerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SubmitQuote validates, pulls the payment, and commits the quote under
// the next id. The id counter lives in cover_meta and is read FOR
// UPDATE, so concurrent submissions serialize and committed ids stay
// gapless.
func (s *PGStore) SubmitQuote(ctx context.Context, sub core.QuoteSubmission, coveredAddresses []string, integratorID uint32, owner string, pull PaymentFunc) (core.Quote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Quote{}, err
	}
	defer tx.Rollback(ctx)

	var nextID int64
	if err := tx.QueryRow(ctx, `SELECT next_quote_id FROM cover_meta WHERE id=1 FOR UPDATE`).Scan(&nextID); err != nil {
		return core.Quote{}, err
	}

	now := s.now()
	paymentAsset, totalPayment, err := core.ValidateSubmission(sub, pgCatalog{ctx, tx}, now)
	if err != nil {
		return core.Quote{}, err
	}
	if pull != nil {
		if err := pull(paymentAsset, owner, totalPayment); err != nil {
			return core.Quote{}, err
		}
	}

	quote := core.Quote{
		QuoteID:          uint64(nextID),
		Submission:       sub,
		Owner:            owner,
		CoveredAddresses: append([]string(nil), coveredAddresses...),
		IntegratorID:     integratorID,
		PaymentAsset:     paymentAsset,
		TotalPayment:     totalPayment,
		Settlement:       core.QuoteSettlement{SubmittedAt: now},
	}
	_, err = tx.Exec(ctx, `
INSERT INTO cover_quotes (quote_id, provider_id, product_id, cover_asset_id, cover_amount,
  payment_asset_id, premium_amount, fee_amount, cover_expiry_sec, valid_until,
  owner, covered_addresses, integrator_id, payment_asset, total_payment, submitted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`, nextID, int64(sub.ProviderID), int64(sub.ProductID), int64(sub.CoverAssetID), int64(sub.CoverAmount),
		int64(sub.PaymentAssetID), int64(sub.PremiumAmount), int64(sub.FeeAmount),
		int64(sub.CoverExpiry/time.Second), sub.ValidUntil,
		owner, quote.CoveredAddresses, int64(integratorID), paymentAsset, int64(totalPayment), now)
	if err != nil {
		return core.Quote{}, err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO cover_pending (asset_address, amount) VALUES ($1,$2)
ON CONFLICT (asset_address) DO UPDATE SET amount = cover_pending.amount + EXCLUDED.amount
`, paymentAsset, int64(totalPayment)); err != nil {
		return core.Quote{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE cover_meta SET next_quote_id = next_quote_id + 1 WHERE id=1`); err != nil {
		return core.Quote{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return core.Quote{}, err
	}
	return quote, nil
}

// lockQuote reads a quote row FOR UPDATE and applies the shared
// transition preconditions.
func (s *PGStore) lockQuote(ctx context.Context, tx pgx.Tx, quoteID uint64) (core.Quote, error) {
	q, err := scanQuote(tx.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM cover_quotes WHERE quote_id=$1 FOR UPDATE`, int64(quoteID)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return core.Quote{}, ErrQuoteNotFound
		}
		return core.Quote{}, err
	}
	if q.Settlement.IsSettled {
		return core.Quote{}, ErrQuoteAlreadySettled
	}
	if q.Settlement.IsRefunded {
		return core.Quote{}, ErrQuoteAlreadyRefunded
	}
	return q, nil
}

// releasePending decrements the escrow row. A decrement that would go
// negative means the pending ledger has diverged from the quote table,
// which is an internal consistency failure, not a domain error.
func releasePending(ctx context.Context, tx pgx.Tx, assetAddress string, amount uint64) {
	tag, err := tx.Exec(ctx, `
UPDATE cover_pending SET amount = amount - $2 WHERE asset_address=$1 AND amount >= $2
`, assetAddress, int64(amount))
	if err != nil {
		panic(core.CorruptionError{Op: "release", Asset: assetAddress, Detail: err.Error()})
	}
	if tag.RowsAffected() == 0 {
		panic(core.CorruptionError{Op: "release", Asset: assetAddress, Detail: "pending amount underflow"})
	}
}

// SettleQuote marks a quote settled and releases its escrow.
func (s *PGStore) SettleQuote(ctx context.Context, quoteID uint64, externalTxHash string, coverExpiresAt time.Time) (core.Quote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Quote{}, err
	}
	defer tx.Rollback(ctx)

	q, err := s.lockQuote(ctx, tx, quoteID)
	if err != nil {
		return core.Quote{}, err
	}
	now := s.now()
	if coverExpiresAt.Before(now) {
		return core.Quote{}, ErrCoverExpiryInPast
	}

	if _, err := tx.Exec(ctx, `
UPDATE cover_quotes SET is_settled=TRUE, settled_at=$2, cover_expires_at=$3, external_tx_hash=$4 WHERE quote_id=$1
`, int64(quoteID), now, coverExpiresAt, externalTxHash); err != nil {
		return core.Quote{}, err
	}
	releasePending(ctx, tx, q.PaymentAsset, q.TotalPayment)

	q.Settlement.IsSettled = true
	q.Settlement.SettledAt = now
	q.Settlement.CoverExpiresAt = coverExpiresAt
	q.Settlement.ExternalTxHash = externalTxHash
	if err := tx.Commit(ctx); err != nil {
		return core.Quote{}, err
	}
	return q, nil
}

// RefundQuote refunds a quote to its owner, payout inside the
// transaction.
func (s *PGStore) RefundQuote(ctx context.Context, quoteID uint64, payout PaymentFunc) (core.Quote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Quote{}, err
	}
	defer tx.Rollback(ctx)

	q, err := s.lockQuote(ctx, tx, quoteID)
	if err != nil {
		return core.Quote{}, err
	}
	if payout != nil {
		if err := payout(q.PaymentAsset, q.Owner, q.TotalPayment); err != nil {
			return core.Quote{}, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE cover_quotes SET is_refunded=TRUE WHERE quote_id=$1`, int64(quoteID)); err != nil {
		return core.Quote{}, err
	}
	releasePending(ctx, tx, q.PaymentAsset, q.TotalPayment)

	q.Settlement.IsRefunded = true
	if err := tx.Commit(ctx); err != nil {
		return core.Quote{}, err
	}
	return q, nil
}

// RefundUnfulfilled lets the owner reclaim escrow once the settlement
// window lapsed without settlement.
func (s *PGStore) RefundUnfulfilled(ctx context.Context, quoteID uint64, owner, withdrawTo string, payout PaymentFunc) (core.Quote, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Quote{}, err
	}
	defer tx.Rollback(ctx)

	q, err := s.lockQuote(ctx, tx, quoteID)
	if err != nil {
		return core.Quote{}, err
	}
	if q.Owner != owner {
		return core.Quote{}, ErrNotQuoteOwner
	}
	provider, ok := pgCatalog{ctx, tx}.ProviderByID(q.Submission.ProviderID)
	if !ok {
		return core.Quote{}, ErrProviderNotFound
	}
	if core.DeriveStatus(q.Settlement, provider.SettlementPeriod, s.now()) != core.StatusQuoteExpired {
		return core.Quote{}, ErrQuoteNotExpired
	}
	if payout != nil {
		if err := payout(q.PaymentAsset, withdrawTo, q.TotalPayment); err != nil {
			return core.Quote{}, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE cover_quotes SET is_refunded=TRUE WHERE quote_id=$1`, int64(quoteID)); err != nil {
		return core.Quote{}, err
	}
	releasePending(ctx, tx, q.PaymentAsset, q.TotalPayment)

	q.Settlement.IsRefunded = true
	if err := tx.Commit(ctx); err != nil {
		return core.Quote{}, err
	}
	return q, nil
}

// GetQuote returns a quote by id.
func (s *PGStore) GetQuote(ctx context.Context, quoteID uint64) (core.Quote, error) {
	q, err := scanQuote(s.pool.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM cover_quotes WHERE quote_id=$1`, int64(quoteID)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return core.Quote{}, ErrQuoteNotFound
		}
		return core.Quote{}, err
	}
	return q, nil
}

// QuoteStatus derives a quote's lifecycle state. Absent quotes report
// StatusNone.
func (s *PGStore) QuoteStatus(ctx context.Context, quoteID uint64) (core.QuoteStatus, error) {
	q, err := s.GetQuote(ctx, quoteID)
	if err != nil {
		if err == ErrQuoteNotFound {
			return core.StatusNone, nil
		}
		return core.StatusNone, err
	}
	provider, ok := (pgCatalog{ctx, s.pool}).ProviderByID(q.Submission.ProviderID)
	if !ok {
		return core.StatusNone, ErrProviderNotFound
	}
	return core.DeriveStatus(q.Settlement, provider.SettlementPeriod, s.now()), nil
}

// ListQuotes returns quotes matching the filter, ordered by id.
func (s *PGStore) ListQuotes(ctx context.Context, filter QuoteFilter) ([]core.Quote, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+quoteColumns+` FROM cover_quotes
WHERE ($1 = 0 OR provider_id = $1)
  AND ($2 = '' OR owner = $2)
  AND ($3 = '' OR payment_asset = $3)
ORDER BY quote_id
LIMIT NULLIF($4, 0) OFFSET $5
`, int64(filter.ProviderID), filter.Owner, filter.PaymentAsset, int64(filter.Limit), int64(filter.Offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// PendingAmount returns the escrowed total for one payment asset.
func (s *PGStore) PendingAmount(ctx context.Context, assetAddress string) (uint64, error) {
	var amount int64
	err := s.pool.QueryRow(ctx, `SELECT amount FROM cover_pending WHERE asset_address=$1`, assetAddress).Scan(&amount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return uint64(amount), nil
}

// PendingAmounts returns all nonzero pending totals.
func (s *PGStore) PendingAmounts(ctx context.Context) (map[string]uint64, error) {
	rows, err := s.pool.Query(ctx, `SELECT asset_address, amount FROM cover_pending WHERE amount > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var addr string
		var amount int64
		if err := rows.Scan(&addr, &amount); err != nil {
			return nil, err
		}
		out[addr] = uint64(amount)
	}
	return out, rows.Err()
}
