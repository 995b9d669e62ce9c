package model

// EventKind classifies a decoded vault contract event.
type EventKind string

const (
	EventDeposit         EventKind = "deposit"
	EventActionExecuted  EventKind = "action_executed"
	EventERC20Withdrawal EventKind = "erc20_withdrawal"
	EventUnknown         EventKind = "unknown"
)

// DepositEvent is a new commitment inserted by the contract at a
// contract-assigned leaf index. NullifierHash is optional: contracts that
// emit the note's nullifier alongside the deposit register it on the leaf so
// a later spend can be matched back to the note.
type DepositEvent struct {
	Commitment    string `json:"commitment"`
	LeafIndex     uint64 `json:"leaf_index"`
	NullifierHash string `json:"nullifier_hash,omitempty"`
}

// ActionExecutedEvent is a nullifier spend plus the change commitment the
// contract inserted for the remainder value. Token and Recipient are set only
// for the ERC20 withdrawal variant.
type ActionExecutedEvent struct {
	NullifierHash    string `json:"nullifier_hash"`
	ChangeCommitment string `json:"change_commitment"`
	ChangeIndex      uint64 `json:"change_index"`
	Token            string `json:"token,omitempty"`
	Recipient        string `json:"recipient,omitempty"`
}

// Event is the tagged union the router produces from a keyed parameter map.
// Exactly one of the pointer fields is set for a known kind; both are nil for
// EventUnknown.
type Event struct {
	Kind    EventKind            `json:"kind"`
	Deposit *DepositEvent        `json:"deposit,omitempty"`
	Action  *ActionExecutedEvent `json:"action,omitempty"`
}
