package verification

import (
	"encoding/json"
	"fmt"
	"time"
)

// ServiceStatus is the body of the health and status endpoints
type ServiceStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// MinimalRequest is the compact payload oracle jobs send
type MinimalRequest struct {
	InvoiceID       string `json:"invoiceId"`
	DocumentHash    string `json:"documentHash,omitempty"`
	Commodity       string `json:"commodity"`
	Amount          int64  `json:"amount"`
	SupplierCountry string `json:"supplierCountry"`
	BuyerCountry    string `json:"buyerCountry"`
}

// InvoiceDetails describes the trade behind a document verification
type InvoiceDetails struct {
	Commodity       string `json:"commodity"`
	Amount          int64  `json:"amount"`
	SupplierCountry string `json:"supplierCountry"`
	BuyerCountry    string `json:"buyerCountry"`
	ExporterName    string `json:"exporterName"`
	BuyerName       string `json:"buyerName"`
}

// DocumentsRequest asks for a full document verification
type DocumentsRequest struct {
	InvoiceID      string         `json:"invoiceId"`
	DocumentHash   string         `json:"documentHash"`
	InvoiceDetails InvoiceDetails `json:"invoiceDetails"`
}

// Result is a verification verdict. Raw keeps the full body, since the
// service adds fields over time.
type Result struct {
	InvoiceID    string          `json:"invoiceId"`
	IsValid      bool            `json:"isValid"`
	RiskScore    int             `json:"riskScore"`
	CreditRating string          `json:"creditRating"`
	Details      string          `json:"details"`
	Raw          json.RawMessage `json:"-"`
}

// Dashboard is the analytics summary; the body is kept verbatim
type Dashboard struct {
	Summary json.RawMessage `json:"summary"`
	Raw     json.RawMessage `json:"-"`
}

// Check is one line of a connectivity report
type Check struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail"`
}

// Report is the outcome of CheckConnectivity
type Report struct {
	Checks []Check `json:"checks"`
}

// Failed reports whether any check failed
func (r Report) Failed() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return true
		}
	}
	return false
}

// APIError is a non-success HTTP response
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("verification API error: status %d, body: %s", e.StatusCode, e.Body)
}

// RateLimitError is returned once 429 retries are exhausted
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
}
