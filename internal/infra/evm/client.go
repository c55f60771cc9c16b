package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/earnx/earnx/pkg/logger"
)

const requestTimeout = 30 * time.Second

// Client is a JSON-RPC 2.0 client for one EVM endpoint.
// Read calls go to a node; eth_sendTransaction and eth_accounts go to the wallet provider,
// so the service builds one Client per endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *logger.Logger
	nextID     atomic.Int64
}

// NewClient creates a new JSON-RPC client
func NewClient(url string, log *logger.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: log.WithField("component", "evm"),
	}
}

// URL returns the endpoint this client talks to
func (c *Client) URL() string {
	return c.url
}

// doRequest performs a JSON-RPC request
func (c *Client) doRequest(ctx context.Context, req *RPCRequest) (*RPCResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("rpc call", "method", req.Method, "status_code", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			RetryAfter: time.Minute,
			Message:    "RPC endpoint rate limit exceeded",
		}
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return &rpcResp, nil
}

// call issues method and unmarshals the result into out (when non-nil)
func (c *Client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}

	req := &RPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	resp, err := c.doRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", method, err)
	}

	return nil
}

// Call executes a read-only contract call against the latest block
func (c *Client) Call(ctx context.Context, msg CallMsg) ([]byte, error) {
	var result string
	if err := c.call(ctx, &result, "eth_call", msg.toArg(), "latest"); err != nil {
		return nil, err
	}

	data, err := DecodeHex(result)
	if err != nil {
		return nil, fmt.Errorf("eth_call returned malformed hex: %w", err)
	}
	return data, nil
}

// SendTransaction asks the wallet provider to sign and broadcast a transaction.
// It returns the transaction hash as soon as the provider accepts it.
func (c *Client) SendTransaction(ctx context.Context, tx TxRequest) (string, error) {
	var hash string
	if err := c.call(ctx, &hash, "eth_sendTransaction", tx.toArg()); err != nil {
		return "", err
	}
	if hash == "" {
		return "", fmt.Errorf("eth_sendTransaction returned an empty hash")
	}
	return hash, nil
}

// TransactionReceipt returns the receipt for hash, or nil while the transaction is pending
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var receipt *Receipt
	if err := c.call(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return receipt, nil
}

// ChainID returns the chain ID reported by the endpoint
func (c *Client) ChainID(ctx context.Context) (int64, error) {
	var result string
	if err := c.call(ctx, &result, "eth_chainId"); err != nil {
		return 0, err
	}
	id, err := ParseHexUint(result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse chain id: %w", err)
	}
	return int64(id), nil
}

// BlockNumber returns the latest block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, &result, "eth_blockNumber"); err != nil {
		return 0, err
	}
	n, err := ParseHexUint(result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block number: %w", err)
	}
	return n, nil
}

// Accounts returns the accounts the wallet provider exposes
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Ping checks that the endpoint answers
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.BlockNumber(ctx)
	return err
}
