package admission

// Decision is the pipeline's verdict on one chargeable operation.
type Decision int

const (
	// DecisionCacheHit means a cached or shared in-flight result was
	// returned. Nothing was charged and no limit was consumed.
	DecisionCacheHit Decision = iota
	// DecisionAdmitted means the upstream call ran and succeeded; the
	// operation's cost was debited and the result cached.
	DecisionAdmitted
	// DecisionDeniedRateLimit means the user exceeded the rolling
	// admission window. Nothing was charged.
	DecisionDeniedRateLimit
	// DecisionDeniedInsufficientBalance means the user's token balance
	// does not cover the operation. Nothing was charged.
	DecisionDeniedInsufficientBalance
	// DecisionDeniedCircuitOpen means the circuit breaker rejected the
	// call without touching upstream. Any debit was refunded.
	DecisionDeniedCircuitOpen
	// DecisionUpstreamFailed means the upstream call failed past the
	// retry budget (or a shared flight was abandoned). Any debit was
	// refunded.
	DecisionUpstreamFailed
)

// String returns the decision name for logs and status payloads.
func (d Decision) String() string {
	switch d {
	case DecisionCacheHit:
		return "cache_hit"
	case DecisionAdmitted:
		return "admitted"
	case DecisionDeniedRateLimit:
		return "denied_rate_limit"
	case DecisionDeniedInsufficientBalance:
		return "denied_insufficient_balance"
	case DecisionDeniedCircuitOpen:
		return "denied_circuit_open"
	case DecisionUpstreamFailed:
		return "upstream_failed"
	default:
		return "unknown"
	}
}

// Outcome is the transient result of one pipeline invocation. Denials
// and failures are data, not errors: the request-handling layer decides
// how to render each decision to the end user.
type Outcome[T any] struct {
	Decision Decision
	// Result holds the produced or cached value. Valid only when
	// Granted reports true.
	Result T
	// Cost is the number of tokens actually charged: the operation cost
	// for admitted calls, zero for cache hits, denials, and refunds.
	Cost int
	// Balance is the user's token balance after this invocation.
	Balance int
	// Err carries the cause for DecisionUpstreamFailed.
	Err error
}

// Granted reports whether the caller received a usable result.
func (o Outcome[T]) Granted() bool {
	return o.Decision == DecisionCacheHit || o.Decision == DecisionAdmitted
}

// Denied reports whether the operation was rejected by policy: rate
// limit, balance, or circuit breaker.
func (o Outcome[T]) Denied() bool {
	switch o.Decision {
	case DecisionDeniedRateLimit, DecisionDeniedInsufficientBalance, DecisionDeniedCircuitOpen:
		return true
	default:
		return false
	}
}
