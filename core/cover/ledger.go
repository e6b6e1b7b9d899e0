package cover

import "fmt"

// CorruptionError is the panic value raised when the escrow accounting
// would go inconsistent: an accumulator underflow on release or an
// arithmetic overflow. These signal a bug, never bad input, so they are
// deliberately not ordinary errors.
type CorruptionError struct {
	Op     string
	Asset  string
	Detail string
}

func (e CorruptionError) Error() string {
	return fmt.Sprintf("escrow ledger corruption in %s (asset %q): %s", e.Op, e.Asset, e.Detail)
}

// CheckedAdd returns a+b, panicking on unsigned overflow.
func CheckedAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		panic(CorruptionError{Op: "add", Detail: fmt.Sprintf("%d + %d overflows", a, b)})
	}
	return sum
}

// PendingLedger tracks, per payment asset, the total payment escrowed
// against quotes that are neither settled nor refunded. It carries no
// lock of its own; the owning store serializes access.
type PendingLedger struct {
	amounts map[string]uint64
}

// NewPendingLedger returns an empty ledger.
func NewPendingLedger() *PendingLedger {
	return &PendingLedger{amounts: make(map[string]uint64)}
}

// Reserve adds a newly escrowed payment to the asset's accumulator.
// Called exactly once per committed submission.
func (l *PendingLedger) Reserve(asset string, amount uint64) {
	current := l.amounts[asset]
	sum := current + amount
	if sum < current {
		panic(CorruptionError{Op: "reserve", Asset: asset, Detail: fmt.Sprintf("%d + %d overflows", current, amount)})
	}
	l.amounts[asset] = sum
}

// Release subtracts a payment leaving escrow. Called exactly once per
// quote, on settlement or refund, never both. An accumulator smaller
// than the amount released means the ledger no longer matches the
// quotes, so this panics rather than returning an error.
func (l *PendingLedger) Release(asset string, amount uint64) {
	current := l.amounts[asset]
	if current < amount {
		panic(CorruptionError{Op: "release", Asset: asset, Detail: fmt.Sprintf("pending %d below release %d", current, amount)})
	}
	l.amounts[asset] = current - amount
}

// Amount returns the pending total for one asset.
func (l *PendingLedger) Amount(asset string) uint64 {
	return l.amounts[asset]
}

// Snapshot copies the full pending map, omitting zeroed assets.
func (l *PendingLedger) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(l.amounts))
	for asset, amount := range l.amounts {
		if amount > 0 {
			out[asset] = amount
		}
	}
	return out
}
