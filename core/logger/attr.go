package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers use the empty Attr pattern for nil safety: a zero
// Attr is silently dropped by slog handlers, so call sites never need
// explicit nil or empty checks.

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates and logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// UserID creates an attribute for the acting user.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// AdmissionID creates an attribute for one pipeline invocation.
func AdmissionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("admission_id", id)
}

// Fingerprint creates an attribute for a request fingerprint.
func Fingerprint(fp string) slog.Attr {
	if fp == "" {
		return slog.Attr{}
	}
	return slog.String("fingerprint", fp)
}

// Operation creates an attribute for the requested operation kind.
func Operation(kind string) slog.Attr {
	if kind == "" {
		return slog.Attr{}
	}
	return slog.String("operation", kind)
}

// Outcome creates an attribute for an admission outcome.
func Outcome(outcome string) slog.Attr {
	return slog.String("outcome", outcome)
}

// Cost creates an attribute for the token cost of an operation.
func Cost(tokens int) slog.Attr {
	return slog.Int("cost", tokens)
}

// Balance creates an attribute for a user's remaining token balance.
func Balance(tokens int) slog.Attr {
	return slog.Int("balance", tokens)
}

// Attempt creates an attribute for upstream retry attempts.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// BreakerState creates an attribute for the circuit breaker state.
func BreakerState(state string) slog.Attr {
	return slog.String("breaker_state", state)
}
