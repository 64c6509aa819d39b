// Package xerrors enumerates the error taxonomy the engine reasons
// about explicitly: which failures are retryable, which are
// local to a pair or opportunity, and which are fatal to a cycle or
// the process.
package xerrors

import "errors"

var (
	// ErrTransientNetwork covers network blips, 5xx and similar —
	// retried locally by the exchange adapter.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrRateLimited is converted into a bounded sleep by the adapter.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthentication is fatal to the current cycle; it surfaces to
	// the orchestrator, which transitions to DEGRADED.
	ErrAuthentication = errors.New("authentication error")

	// ErrInsufficientBalance is opportunity-local: skip the trade,
	// trigger an exchange resync.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOrderRejected means the exchange declined the order outright.
	ErrOrderRejected = errors.New("order rejected")

	// ErrOrderUnknown means the terminal status could not be
	// determined; the ledger is left untouched and reconciled next
	// cycle.
	ErrOrderUnknown = errors.New("order status unknown")

	// ErrDataUnavailable is pair-local: exclude the pair, continue
	// the cycle.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrAdvisoryUnavailable triggers the advisory strategy's
	// safe-HOLD fallback; never propagates past the strategy.
	ErrAdvisoryUnavailable = errors.New("advisory model unavailable")

	// ErrLedgerCorruption is raised by the portfolio ledger loader
	// when the ledger file exists but neither it nor its .bak can be
	// read and parsed.
	ErrLedgerCorruption = errors.New("ledger corruption")

	// ErrLockContested is startup-fatal: another live process holds
	// the single-process lock.
	ErrLockContested = errors.New("lock contested")
)

// Retryable reports whether the exchange adapter should retry a call
// that failed with err.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrRateLimited)
}

// CycleFatal reports whether err must abort the current cycle rather
// than be absorbed locally (pair-, opportunity- or component-local).
func CycleFatal(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrLockContested)
}
