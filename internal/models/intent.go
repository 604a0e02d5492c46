package models

// IntentAction is the action component of an intent, whether chosen from the
// structured menu or produced by the natural-language resolver.
type IntentAction string

const (
	ActionDeposit   IntentAction = "deposit"
	ActionWithdraw  IntentAction = "withdraw"
	ActionTransfer  IntentAction = "transfer"
	ActionBalance   IntentAction = "balance"
	ActionHistory   IntentAction = "history"
	ActionBackwards IntentAction = "backwards"
	ActionOptions   IntentAction = "options"
	ActionLogout    IntentAction = "logout"
	ActionUnknown   IntentAction = "unknown"
)

// AmountUnspecified is the resolver's sentinel for "the user did not say how
// much"; the session must prompt for an amount before proceeding.
const AmountUnspecified = -1

// Intent is an (action, amount) pair. Amount is in dollars as produced by the
// resolver contract; AmountUnspecified means no amount was given.
type Intent struct {
	Action IntentAction `json:"action"`
	Amount float64      `json:"amount"`
}

// KnownAction reports whether a resolver-produced action string is one the
// session can dispatch.
func KnownAction(a IntentAction) bool {
	switch a {
	case ActionDeposit, ActionWithdraw, ActionTransfer, ActionBalance,
		ActionHistory, ActionBackwards, ActionOptions, ActionLogout, ActionUnknown:
		return true
	}
	return false
}
