package cover

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrQuoteNotFound        = Err("quote not found")
	ErrQuoteAlreadySettled  = Err("quote already settled")
	ErrQuoteAlreadyRefunded = Err("quote already refunded")
	ErrQuoteNotExpired      = Err("quote settlement window has not lapsed")
	ErrNotQuoteOwner        = Err("caller is not the quote owner")
	ErrCoverExpiryInPast    = Err("cover expiry must not be in the past")
	ErrProviderNotFound     = Err("provider not found")
	ErrProviderDisabled     = Err("provider is disabled")
	ErrProductNotFound      = Err("product not found")
	ErrAssetNotFound        = Err("asset not found")
)
