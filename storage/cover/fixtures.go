package cover

import (
	"context"
	"time"

	core "covergate-backend/core/cover"
)

// SeedData returns a demo catalog for local development: one enabled
// provider with a single product, a native payment asset, and a token
// cover asset.
func SeedData() ([]core.Provider, []core.Product, []core.Asset) {
	providers := []core.Provider{
		{
			ProviderID:       1,
			Enabled:          true,
			ChainID:          1,
			MinCoverExpiry:   24 * time.Hour,
			MaxCoverExpiry:   365 * 24 * time.Hour,
			SettlementPeriod: time.Hour,
			Name:             "Demo Mutual",
		},
	}
	products := []core.Product{
		{ProviderID: 1, ProductID: 1, Enabled: true, Name: "Protocol Cover"},
	}
	assets := []core.Asset{
		{
			ProviderID:     1,
			AssetID:        1,
			IsCoverAsset:   true,
			IsPaymentAsset: false,
			MinCoverAmount: 1_000_000,
			MaxCoverAmount: 1_000_000_000_000,
			AssetAddress:   "0x6b175474e89094c44da98b954eedeac495271d0f",
			Decimals:       18,
			Name:           "Dai Stablecoin",
			Symbol:         "DAI",
		},
		{
			ProviderID:       1,
			AssetID:          2,
			IsCoverAsset:     false,
			IsPaymentAsset:   true,
			MinPaymentAmount: 1_000,
			AssetAddress:     core.NativeAssetAddress,
			Decimals:         18,
			Name:             "Ether",
			Symbol:           "ETH",
		},
	}
	return providers, products, assets
}

// Seed loads the demo catalog into a store.
func Seed(ctx context.Context, s Store) error {
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
	return nil
}
