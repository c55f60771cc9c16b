package invest

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is the investment flow state
type State string

const (
	StateIdle      State = "idle"
	StateChecking  State = "checking"
	StateApproving State = "approving"
	StateInvesting State = "investing"
)

// NoticeKind mirrors the transaction status board entry types
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeWarning NoticeKind = "warning"
)

// Notice is a progress message emitted during a flow
type Notice struct {
	Kind    NoticeKind
	Message string
	TxHash  string
}

// Request is a single investment intent
type Request struct {
	Investor  string
	InvoiceID uint64
	Amount    decimal.Decimal
}

// Result describes a completed investment
type Result struct {
	FlowID         uuid.UUID
	InvoiceID      uint64
	Amount         decimal.Decimal
	TxHash         string
	Block          uint64
	Minted         bool
	ApprovedAmount decimal.Decimal
	Message        string
}

// MintResult describes a completed test mint
type MintResult struct {
	Amount decimal.Decimal
	TxHash string
}
