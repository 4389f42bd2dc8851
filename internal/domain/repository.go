package domain

import "context"

// The interfaces below are the engine's boundaries to external
// collaborators. Record lifecycle, form numbering, warehouse sync and
// ledger extraction all live behind them; the engine only ever consumes a
// TransactionSource and hands a FormReturn to the sinks.

// TransactionSource extracts the transaction records an assessment run
// consumes, typically from raw accounting ledger entries.
type TransactionSource interface {
	// Extract returns the transactions of the period under assessment.
	Extract(ctx context.Context) ([]Transaction, error)
}

// FormReturnRepository persists computed form returns and owns their
// draft/confirmed/posted/cancelled lifecycle.
type FormReturnRepository interface {
	// Save stores a computed form return.
	Save(ctx context.Context, ret *FormReturn) error
}

// WarehouseSyncClient pushes posted form returns to an external data
// warehouse.
type WarehouseSyncClient interface {
	// SyncReturn transmits one form return.
	SyncReturn(ctx context.Context, ret *FormReturn) error
}
