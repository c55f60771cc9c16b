package evm

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// JSON-RPC request/response structures

// RPCRequest represents a JSON-RPC 2.0 request
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RPCResponse represents a JSON-RPC 2.0 response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Provider error codes (EIP-1193, EIP-1474)
const (
	CodeUserRejected       = 4001
	CodeUnauthorized       = 4100
	CodeUnsupportedMethod  = 4200
	CodeDisconnected       = 4900
	CodeExecutionReverted  = 3
	CodeInternalError      = -32603
	CodeServerError        = -32000
	CodeTransactionRefused = -32003
)

// RPCError represents a JSON-RPC error.
// Data is kept raw because nodes return either a hex string or a nested object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// DataHex extracts revert data carried by the error, if any
func (e *RPCError) DataHex() string {
	if len(e.Data) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		if strings.HasPrefix(s, "0x") {
			return s
		}
		return ""
	}

	var nested struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(e.Data, &nested); err == nil && len(nested.Data) > 0 {
		inner := &RPCError{Data: nested.Data}
		return inner.DataHex()
	}

	return ""
}

// RateLimitError represents an HTTP 429 from the RPC endpoint
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
}

// CallMsg is the argument of eth_call
type CallMsg struct {
	From string
	To   string
	Data []byte
}

func (m CallMsg) toArg() map[string]string {
	arg := map[string]string{
		"to":   m.To,
		"data": EncodeHex(m.Data),
	}
	if m.From != "" {
		arg["from"] = m.From
	}
	return arg
}

// TxRequest is the argument of eth_sendTransaction
type TxRequest struct {
	From  string
	To    string
	Data  []byte
	Value *big.Int
	Gas   uint64
}

func (t TxRequest) toArg() map[string]string {
	arg := map[string]string{
		"from": t.From,
		"to":   t.To,
		"data": EncodeHex(t.Data),
	}
	if t.Value != nil && t.Value.Sign() > 0 {
		arg["value"] = "0x" + t.Value.Text(16)
	}
	if t.Gas > 0 {
		arg["gas"] = FormatHexUint(t.Gas)
	}
	return arg
}

// Receipt is the subset of eth_getTransactionReceipt the service relies on
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	From            string `json:"from"`
	To              string `json:"to"`
	Status          string `json:"status"`
	GasUsed         string `json:"gasUsed"`
}

// Succeeded reports whether the transaction executed without reverting
func (r *Receipt) Succeeded() bool {
	return r.Status == "0x1"
}

// Block returns the inclusion block number
func (r *Receipt) Block() uint64 {
	n, _ := ParseHexUint(r.BlockNumber)
	return n
}

// ParseHexValue converts a hex value string to *big.Int
func ParseHexValue(hexStr string) *big.Int {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	if hexStr == "" {
		return big.NewInt(0)
	}

	num := new(big.Int)
	if _, ok := num.SetString(hexStr, 16); !ok {
		return big.NewInt(0)
	}
	return num
}

// ParseHexUint parses a 0x-prefixed quantity
func ParseHexUint(hexStr string) (uint64, error) {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	if hexStr == "" {
		return 0, nil
	}
	return strconv.ParseUint(hexStr, 16, 64)
}

// FormatHexUint formats a quantity as 0x-prefixed hex
func FormatHexUint(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

// EncodeHex encodes bytes as 0x-prefixed hex
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex decodes 0x-prefixed hex, tolerating an odd digit count
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
