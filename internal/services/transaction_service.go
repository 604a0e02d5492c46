package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parlabank/backend/internal/models"
	"github.com/parlabank/backend/internal/store"
)

var (
	// ErrInvalidAmount is returned for zero or negative operation amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameAccount is returned for a transfer from an account to itself.
	ErrSameAccount = errors.New("cannot transfer to the same account")
)

// Settler receives transfers whose recipient is outside the bank.
type Settler interface {
	RecordExternalTransfer(txID, source, recipient string, amountCents int64) error
}

// TransactionEngine owns every mutation of account balances. It keeps one
// mutex per username so operations on different accounts run concurrently;
// a transfer takes both account locks in lexical username order so two
// opposite transfers cannot deadlock. The store mutex is only ever taken
// while holding the relevant account locks, never the other way around.
type TransactionEngine struct {
	store      store.Store
	settlement Settler

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTransactionEngine(st store.Store, settlement Settler) *TransactionEngine {
	return &TransactionEngine{
		store:      st,
		settlement: settlement,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (e *TransactionEngine) lockFor(username string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[username]
	if !ok {
		l = &sync.Mutex{}
		e.locks[username] = l
	}
	return l
}

// Deposit credits amount to the user and persists the new balance. The
// returned balance reflects the credit only when err is nil.
func (e *TransactionEngine) Deposit(u *models.User, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	l := e.lockFor(u.Username)
	l.Lock()
	defer l.Unlock()

	u.Balance += amount
	if err := e.store.PersistBalance(u); err != nil {
		u.Balance -= amount
		return u.Balance, fmt.Errorf("deposit not saved: %w", err)
	}
	u.Records = append(u.Records, models.TransactionRecord{
		Timestamp: time.Now(),
		Kind:      models.KindDeposit,
		Amount:    amount,
	})
	log.Printf("[TX] deposit of %s for %q", models.FormatAmount(amount), u.Username)
	return u.Balance, nil
}

// Withdraw debits amount from the user and persists the new balance.
func (e *TransactionEngine) Withdraw(u *models.User, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	l := e.lockFor(u.Username)
	l.Lock()
	defer l.Unlock()

	if u.Balance < amount {
		return u.Balance, ErrInsufficientFunds
	}
	u.Balance -= amount
	if err := e.store.PersistBalance(u); err != nil {
		u.Balance += amount
		return u.Balance, fmt.Errorf("withdrawal not saved: %w", err)
	}
	u.Records = append(u.Records, models.TransactionRecord{
		Timestamp: time.Now(),
		Kind:      models.KindWithdraw,
		Amount:    amount,
	})
	log.Printf("[TX] withdrawal of %s for %q", models.FormatAmount(amount), u.Username)
	return u.Balance, nil
}

// Transfer moves amount out of src. A nil dst means the recipient is outside
// the bank: the debit still happens and a settlement message is queued for
// the recipient address. For an internal transfer both account locks are
// taken in lexical username order.
func (e *TransactionEngine) Transfer(src, dst *models.User, recipient string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if dst != nil && src.Username == dst.Username {
		return 0, ErrSameAccount
	}

	if dst == nil {
		return e.transferExternal(src, recipient, amount)
	}

	first, second := src, dst
	if first.Username > second.Username {
		first, second = second, first
	}
	firstLock := e.lockFor(first.Username)
	secondLock := e.lockFor(second.Username)
	firstLock.Lock()
	defer firstLock.Unlock()
	secondLock.Lock()
	defer secondLock.Unlock()

	if src.Balance < amount {
		return src.Balance, ErrInsufficientFunds
	}

	src.Balance -= amount
	dst.Balance += amount
	if err := e.store.PersistBalance(src); err != nil {
		src.Balance += amount
		dst.Balance -= amount
		return src.Balance, fmt.Errorf("transfer not saved: %w", err)
	}
	if err := e.store.PersistBalance(dst); err != nil {
		// The debit is already durable. Leave both sides as they are and
		// surface the error; the recipient's balance lands on the next
		// successful persist for them.
		log.Printf("[TX] failed to persist credit for %q: %v", dst.Username, err)
		return src.Balance, fmt.Errorf("transfer partially saved: %w", err)
	}

	now := time.Now()
	src.Records = append(src.Records, models.TransactionRecord{
		Timestamp:    now,
		Kind:         models.KindTransfer,
		Amount:       amount,
		Counterparty: dst.Username,
	})
	dst.Records = append(dst.Records, models.TransactionRecord{
		Timestamp:    now,
		Kind:         models.KindDeposit,
		Amount:       amount,
		Counterparty: src.Username,
	})
	log.Printf("[TX] transfer of %s from %q to %q", models.FormatAmount(amount), src.Username, dst.Username)
	return src.Balance, nil
}

func (e *TransactionEngine) transferExternal(src *models.User, recipient string, amount int64) (int64, error) {
	l := e.lockFor(src.Username)
	l.Lock()
	defer l.Unlock()

	if src.Balance < amount {
		return src.Balance, ErrInsufficientFunds
	}
	src.Balance -= amount
	if err := e.store.PersistBalance(src); err != nil {
		src.Balance += amount
		return src.Balance, fmt.Errorf("transfer not saved: %w", err)
	}
	src.Records = append(src.Records, models.TransactionRecord{
		Timestamp:    time.Now(),
		Kind:         models.KindTransfer,
		Amount:       amount,
		Counterparty: models.ExternalCounterparty,
	})

	txID := uuid.New().String()
	if e.settlement != nil {
		if err := e.settlement.RecordExternalTransfer(txID, src.Username, recipient, amount); err != nil {
			// The account is already debited; the settlement message can be
			// regenerated from the transaction log.
			log.Printf("[TX] settlement message %s not queued: %v", txID, err)
		}
	}
	log.Printf("[TX] external transfer of %s from %q", models.FormatAmount(amount), src.Username)
	return src.Balance, nil
}

// Balance reads the user's balance under their account lock.
func (e *TransactionEngine) Balance(u *models.User) int64 {
	l := e.lockFor(u.Username)
	l.Lock()
	defer l.Unlock()
	return u.Balance
}

// History returns a copy of the user's transaction records for this run.
func (e *TransactionEngine) History(u *models.User) []models.TransactionRecord {
	l := e.lockFor(u.Username)
	l.Lock()
	defer l.Unlock()
	out := make([]models.TransactionRecord, len(u.Records))
	copy(out, u.Records)
	return out
}
