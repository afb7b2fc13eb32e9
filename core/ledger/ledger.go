package ledger

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

// account tracks a single user's token balance and usage.
type account struct {
	balance    int
	createdAt  time.Time
	lastUsed   time.Time
	debitCount int
}

// Ledger holds per-user token balances with atomic debit and credit.
// Accounts are created lazily with a starting grant on first access and
// live for the lifetime of the process.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account

	startingGrant int
	logger        *slog.Logger

	// Observability counters
	debitsGranted int64
	debitsDenied  int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStartingGrant sets the token balance granted to newly seen users.
func WithStartingGrant(tokens int) Option {
	return func(l *Ledger) {
		if tokens >= 0 {
			l.startingGrant = tokens
		}
	}
}

// WithLogger sets the logger for internal operations.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts:      make(map[string]*account),
		startingGrant: DefaultStartingGrant,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// DefaultStartingGrant is the balance assigned to a user on first contact.
const DefaultStartingGrant = 5

// ensureLocked returns the account for userID, creating it with the
// starting grant if absent. Caller must hold the write lock.
func (l *Ledger) ensureLocked(userID string) *account {
	acc, ok := l.accounts[userID]
	if !ok {
		acc = &account{
			balance:   l.startingGrant,
			createdAt: time.Now(),
		}
		l.accounts[userID] = acc
		l.logger.Debug("account created",
			slog.String("user_id", userID),
			slog.Int("starting_grant", l.startingGrant))
	}
	return acc
}

// Ensure creates the account for userID if it does not exist yet and
// returns its current balance. It is idempotent.
func (l *Ledger) Ensure(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.ensureLocked(userID).balance
}

// TryDebit atomically subtracts amount from the user's balance if the
// balance covers it. It reports whether the debit was applied; a false
// return means insufficient balance and leaves the account untouched.
// The balance never goes negative.
func (l *Ledger) TryDebit(userID string, amount int) bool {
	if amount < 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.ensureLocked(userID)
	if acc.balance < amount {
		l.debitsDenied++
		return false
	}

	acc.balance -= amount
	acc.lastUsed = time.Now()
	acc.debitCount++
	l.debitsGranted++
	return true
}

// Credit adds amount to the user's balance. It is used for refunds after
// failed chargeable operations and for top-ups. The balance saturates at
// the platform integer maximum instead of overflowing.
func (l *Ledger) Credit(userID string, amount int) {
	if amount < 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.ensureLocked(userID)
	if acc.balance > math.MaxInt-amount {
		acc.balance = math.MaxInt
		return
	}
	acc.balance += amount
}

// Balance returns a snapshot of the user's balance. The value may be
// stale under concurrent mutation but is never read mid-update.
func (l *Ledger) Balance(userID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if acc, ok := l.accounts[userID]; ok {
		return acc.balance
	}
	return l.startingGrant
}

// AccountStats is a read-only snapshot of one user's account.
type AccountStats struct {
	UserID        string
	Balance       int
	TotalRequests int
	CreatedAt     time.Time
	LastUsed      time.Time
}

// Stats returns a snapshot of the user's account, creating it if absent.
func (l *Ledger) Stats(userID string) AccountStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.ensureLocked(userID)
	return AccountStats{
		UserID:        userID,
		Balance:       acc.balance,
		TotalRequests: acc.debitCount,
		CreatedAt:     acc.createdAt,
		LastUsed:      acc.lastUsed,
	}
}

// SystemStats aggregates ledger-wide counters for operational visibility.
type SystemStats struct {
	ActiveUsers   int
	DebitsGranted int64
	DebitsDenied  int64
}

// SystemSnapshot returns ledger-wide counters.
func (l *Ledger) SystemSnapshot() SystemStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return SystemStats{
		ActiveUsers:   len(l.accounts),
		DebitsGranted: l.debitsGranted,
		DebitsDenied:  l.debitsDenied,
	}
}
