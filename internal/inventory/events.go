package inventory

import "context"

// LedgerHook is notified after a mutation and its ledger entry are durably recorded.
type LedgerHook interface {
	LedgerAppended(ctx context.Context, entry LedgerEntry)
}

// LedgerHookFunc adapts a function to LedgerHook.
type LedgerHookFunc func(ctx context.Context, entry LedgerEntry)

// LedgerAppended calls f.
func (f LedgerHookFunc) LedgerAppended(ctx context.Context, entry LedgerEntry) {
	f(ctx, entry)
}
