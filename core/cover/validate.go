package cover

import (
	"fmt"
	"strings"
	"time"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrSubmissionExpired        = Err("submission is past its valid-until deadline")
	ErrInvalidProvider          = Err("provider unknown or disabled")
	ErrInvalidProduct           = Err("product unknown or disabled")
	ErrInvalidCoverAsset        = Err("asset is not enabled as a cover asset")
	ErrInvalidPaymentAsset      = Err("asset is not enabled as a payment asset")
	ErrInvalidCoverExpiry       = Err("cover expiry outside the provider's allowed range")
	ErrUnsupportedCoverAmount   = Err("cover amount outside the asset's allowed range")
	ErrUnsupportedPaymentAmount = Err("total payment below the asset's minimum")
)

// Catalog is the read surface the validator needs. Both stores satisfy it
// under their own lock.
type Catalog interface {
	ProviderByID(providerID uint32) (Provider, bool)
	ProductByID(providerID, productID uint32) (Product, bool)
	AssetByID(providerID, assetID uint32) (Asset, bool)
}

// ValidateSubmission checks a submission against the catalog in a fixed
// order, each check producing its own error value, and returns the
// resolved payment-asset address and the total payment due. It is a pure
// function of the catalog snapshot, the submission, and the clock.
func ValidateSubmission(sub QuoteSubmission, catalog Catalog, now time.Time) (string, uint64, error) {
	if now.After(sub.ValidUntil) {
		return "", 0, ErrSubmissionExpired
	}

	provider, ok := catalog.ProviderByID(sub.ProviderID)
	if !ok || !provider.Enabled {
		return "", 0, ErrInvalidProvider
	}

	product, ok := catalog.ProductByID(sub.ProviderID, sub.ProductID)
	if !ok || !product.Enabled {
		return "", 0, ErrInvalidProduct
	}

	coverAsset, ok := catalog.AssetByID(sub.ProviderID, sub.CoverAssetID)
	if !ok || !coverAsset.IsCoverAsset {
		return "", 0, ErrInvalidCoverAsset
	}

	paymentAsset, ok := catalog.AssetByID(sub.ProviderID, sub.PaymentAssetID)
	if !ok || !paymentAsset.IsPaymentAsset {
		return "", 0, ErrInvalidPaymentAsset
	}

	if sub.CoverExpiry < provider.MinCoverExpiry || sub.CoverExpiry > provider.MaxCoverExpiry {
		return "", 0, ErrInvalidCoverExpiry
	}

	if sub.CoverAmount < coverAsset.MinCoverAmount || sub.CoverAmount > coverAsset.MaxCoverAmount {
		return "", 0, ErrUnsupportedCoverAmount
	}

	totalPayment := CheckedAdd(sub.PremiumAmount, sub.FeeAmount)
	if totalPayment < paymentAsset.MinPaymentAmount {
		return "", 0, ErrUnsupportedPaymentAmount
	}

	return paymentAsset.AssetAddress, totalPayment, nil
}

// ValidateProviderConfig enforces the provider write invariants.
func ValidateProviderConfig(p Provider) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("provider name required")
	}
	if p.MinCoverExpiry <= 0 {
		return fmt.Errorf("min cover expiry must be positive")
	}
	if p.MaxCoverExpiry < p.MinCoverExpiry {
		return fmt.Errorf("max cover expiry %s below min %s", p.MaxCoverExpiry, p.MinCoverExpiry)
	}
	if p.SettlementPeriod <= 0 {
		return fmt.Errorf("settlement period must be positive")
	}
	return nil
}

// ValidateAssetConfig enforces the asset write invariants.
func ValidateAssetConfig(a Asset) error {
	if strings.TrimSpace(a.AssetAddress) == "" {
		return fmt.Errorf("asset address required")
	}
	if a.IsCoverAsset {
		if a.MinCoverAmount <= 0 {
			return fmt.Errorf("min cover amount must be positive")
		}
		if a.MaxCoverAmount < a.MinCoverAmount {
			return fmt.Errorf("max cover amount %d below min %d", a.MaxCoverAmount, a.MinCoverAmount)
		}
	}
	return nil
}
