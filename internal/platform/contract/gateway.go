package contract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/platform/invoice"
	"github.com/earnx/earnx/pkg/config"
	"github.com/earnx/earnx/pkg/logger"
)

// ChainReader executes read-only calls and fetches receipts
type ChainReader interface {
	Call(ctx context.Context, msg evm.CallMsg) ([]byte, error)
	TransactionReceipt(ctx context.Context, hash string) (*evm.Receipt, error)
}

// TransactionSender submits transactions through the wallet provider
type TransactionSender interface {
	SendTransaction(ctx context.Context, tx evm.TxRequest) (string, error)
}

// ErrEmptyReturn is reported when a call returns no data, which is what a missing contract looks like
var ErrEmptyReturn = errors.New("contract call returned no data")

// Gateway is the typed entry point to the deployed contracts.
// Reads never fail: they return an unavailable Field and log instead.
// Writes return a TxResult as soon as the wallet accepts the transaction.
type Gateway struct {
	reader    ChainReader
	sender    TransactionSender
	contracts config.Contracts
	receipts  ReceiptPolicy
	logger    *logger.Logger
}

// ReceiptPolicy bounds the receipt polling of WaitForReceipt
type ReceiptPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
}

// DefaultReceiptPolicy polls from 1s up to 8s apart for at most 60s
func DefaultReceiptPolicy() ReceiptPolicy {
	return ReceiptPolicy{
		InitialInterval: time.Second,
		MaxInterval:     8 * time.Second,
		Timeout:         60 * time.Second,
	}
}

// NewGateway creates a gateway for one chain deployment
func NewGateway(reader ChainReader, sender TransactionSender, contracts config.Contracts, policy ReceiptPolicy, log *logger.Logger) *Gateway {
	if policy.Timeout <= 0 {
		policy = DefaultReceiptPolicy()
	}
	return &Gateway{
		reader:    reader,
		sender:    sender,
		contracts: contracts,
		receipts:  policy,
		logger:    log.WithField("component", "contract_gateway"),
	}
}

// ProtocolAddress returns the protocol core address, the spender for investments
func (g *Gateway) ProtocolAddress() string {
	return g.contracts.Protocol
}

// Contracts returns the configured deployment
func (g *Gateway) Contracts() config.Contracts {
	return g.contracts
}

func (g *Gateway) call(ctx context.Context, to string, m evm.Method, args ...interface{}) ([]interface{}, error) {
	data, err := m.Pack(args...)
	if err != nil {
		return nil, err
	}

	out, err := g.reader.Call(ctx, evm.CallMsg{To: to, Data: data})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", m.Name, ErrEmptyReturn)
	}

	return m.Unpack(out)
}

// readField performs a call and decodes it, turning any failure into Unavailable
func readField[T any](ctx context.Context, g *Gateway, to string, m evm.Method, decode func(values) (T, error), args ...interface{}) invoice.Field[T] {
	out, err := g.call(ctx, to, m, args...)
	if err == nil {
		var v T
		v, err = decode(values(out))
		if err == nil {
			return invoice.Loaded(v)
		}
	}

	g.logger.Warn("contract read failed", "method", m.Name, "contract", to, "error", err)
	return invoice.Unavailable[T](err)
}

// readIDs performs a call returning uint256[]; failures yield an empty list
func (g *Gateway) readIDs(ctx context.Context, m evm.Method, args ...interface{}) []uint64 {
	field := readField(ctx, g, g.contracts.Protocol, m, func(v values) ([]uint64, error) {
		raw, err := v.bigs(0)
		if err != nil {
			return nil, err
		}
		out := make([]uint64, 0, len(raw))
		for _, id := range raw {
			out = append(out, toUint64(id))
		}
		return out, nil
	}, args...)
	return field.OrElse([]uint64{})
}

// values gives typed access to decoded return values
type values []interface{}

func (v values) big(i int) (*big.Int, error) {
	if i >= len(v) {
		return nil, fmt.Errorf("missing return value %d", i)
	}
	n, ok := v[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("return value %d: expected integer, got %T", i, v[i])
	}
	return n, nil
}

func (v values) bigs(i int) ([]*big.Int, error) {
	if i >= len(v) {
		return nil, fmt.Errorf("missing return value %d", i)
	}
	n, ok := v[i].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("return value %d: expected integer list, got %T", i, v[i])
	}
	return n, nil
}

func (v values) str(i int) (string, error) {
	if i >= len(v) {
		return "", fmt.Errorf("missing return value %d", i)
	}
	s, ok := v[i].(string)
	if !ok {
		return "", fmt.Errorf("return value %d: expected string, got %T", i, v[i])
	}
	return s, nil
}

func (v values) flag(i int) (bool, error) {
	if i >= len(v) {
		return false, fmt.Errorf("missing return value %d", i)
	}
	b, ok := v[i].(bool)
	if !ok {
		return false, fmt.Errorf("return value %d: expected bool, got %T", i, v[i])
	}
	return b, nil
}

func (v values) bytes(i int) ([]byte, error) {
	if i >= len(v) {
		return nil, fmt.Errorf("missing return value %d", i)
	}
	b, ok := v[i].([]byte)
	if !ok {
		return nil, fmt.Errorf("return value %d: expected bytes, got %T", i, v[i])
	}
	return b, nil
}

// decoder accumulates the first decode error so record builders stay flat
type decoder struct {
	v   values
	err error
}

func (d *decoder) big(i int) *big.Int {
	n, err := d.v.big(i)
	if err != nil {
		d.fail(err)
		return new(big.Int)
	}
	return n
}

func (d *decoder) str(i int) string {
	s, err := d.v.str(i)
	d.fail(err)
	return s
}

func (d *decoder) flag(i int) bool {
	b, err := d.v.flag(i)
	d.fail(err)
	return b
}

func (d *decoder) bytes(i int) []byte {
	b, err := d.v.bytes(i)
	d.fail(err)
	return b
}

func (d *decoder) fail(err error) {
	if d.err == nil && err != nil {
		d.err = err
	}
}

func toUint64(n *big.Int) uint64 {
	if !n.IsUint64() {
		return math.MaxUint64
	}
	return n.Uint64()
}

func toInt64(n *big.Int) int64 {
	if !n.IsInt64() {
		if n.Sign() < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return n.Int64()
}

func toTime(n *big.Int) time.Time {
	secs := toInt64(n)
	if secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
