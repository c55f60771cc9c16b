package invoices

import (
	"github.com/earnx/earnx/internal/platform/invoice"
)

// Submission is a supplier's new invoice
type Submission = invoice.Submission

// TxOutcome is a confirmed transaction
type TxOutcome struct {
	TxHash string `json:"tx_hash"`
	Block  uint64 `json:"block"`
}

// StatusReport is the lifecycle position of one invoice.
// Verified is nil when the verification flag could not be read.
type StatusReport struct {
	ID       uint64         `json:"id"`
	Status   invoice.Status `json:"status"`
	Verified *bool          `json:"verified"`
}

// OracleResponse is the last document verification answer held on chain
type OracleResponse struct {
	RequestID   string `json:"request_id"`
	Response    string `json:"response"`
	ResponseHex string `json:"response_hex"`
	Error       string `json:"error,omitempty"`
}
