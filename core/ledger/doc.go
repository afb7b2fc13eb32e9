// Package ledger provides in-memory per-user token accounting for
// chargeable operations.
//
// Each user owns an integer balance that is created lazily with a fixed
// starting grant the first time the user is seen. Debits are
// check-and-subtract atomic: two concurrent debits for the same user can
// never both succeed past the remaining balance, and a balance never
// goes negative.
//
// Denied debits are not errors. TryDebit reports false and the caller is
// expected to turn that into an insufficient-balance denial:
//
//	l := ledger.New(ledger.WithStartingGrant(5))
//
//	if !l.TryDebit("user-1", 2) {
//		// deny the operation, nothing was charged
//	}
//
//	// refund after a failed upstream call
//	l.Credit("user-1", 2)
//
// Balances live for the lifetime of the process; there is no persistence
// and no account deletion. This is a known limitation of the system, not
// an oversight.
package ledger
