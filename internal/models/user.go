package models

import (
	"fmt"
	"time"
)

// TransactionKind classifies a ledger entry on a user's transaction log.
type TransactionKind string

const (
	KindDeposit  TransactionKind = "Deposit"
	KindWithdraw TransactionKind = "Withdrawal"
	KindTransfer TransactionKind = "Transfer"
)

// ExternalCounterparty marks a transfer whose recipient is not a managed
// account (e.g. a transfer addressed to an outside email).
const ExternalCounterparty = "external"

// TransactionRecord is a single immutable entry on a user's transaction log.
// Counterparty is set only for transfers.
type TransactionRecord struct {
	Timestamp    time.Time       `json:"timestamp"`
	Kind         TransactionKind `json:"kind"`
	Amount       int64           `json:"amount"` // minor units (cents)
	Counterparty string          `json:"counterparty,omitempty"`
}

// String renders the record in the log line format shown to clients,
// e.g. "[2024-01-02 15:04:05] --- Transfer --- $50.00 --- -> bob".
func (r TransactionRecord) String() string {
	line := fmt.Sprintf("%s --- %s --- $%s",
		r.Timestamp.Format("[2006-01-02 15:04:05]"), r.Kind, FormatAmount(r.Amount))
	if r.Counterparty != "" {
		line += " --- -> " + r.Counterparty
	}
	return line
}

// User is a managed account record. It is owned by the account store; balance
// and the transaction log are mutated only by the transaction engine, which
// serializes access through its per-user locks. Credential holds the argon2id
// hash of the password ("saltHex$hashHex"), never the plaintext.
type User struct {
	Username   string
	Credential string
	Balance    int64 // minor units (cents)
	Records    []TransactionRecord
}
