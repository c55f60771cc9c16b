package market

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/earnx/earnx/internal/infra/evm"
	"github.com/earnx/earnx/internal/platform/invoice"
	apperrors "github.com/earnx/earnx/internal/shared/errors"
	"github.com/earnx/earnx/pkg/logger"
	"github.com/earnx/earnx/pkg/money"
)

// Service assembles protocol and market data for the dashboard
type Service struct {
	reader    Reader
	fallback  PriceSource
	stale     StaleStore
	pricesKey string
	logger    *logger.Logger
}

// NewService creates a market service. fallback and stale may be nil.
func NewService(reader Reader, fallback PriceSource, stale StaleStore, chainID int64, log *logger.Logger) *Service {
	return &Service{
		reader:    reader,
		fallback:  fallback,
		stale:     stale,
		pricesKey: fmt.Sprintf("%d:prices", chainID),
		logger:    log.WithField("component", "market"),
	}
}

// Overview reads every dashboard section in parallel. A section that
// cannot be read is left nil; only a cancelled context fails the call.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var (
		out Overview
		mu  sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.Stats(gctx)
		if err == nil {
			mu.Lock()
			out.Stats = stats
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		if n, ok := s.reader.InvoiceCounter(gctx).Get(); ok {
			mu.Lock()
			out.InvoiceCounter = &n
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		c := s.contract(gctx)
		mu.Lock()
		out.Contract = c
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		prices, err := s.Prices(gctx)
		if err == nil {
			mu.Lock()
			out.Prices = prices
			mu.Unlock()
		}
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns the protocol summary
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	field := s.reader.ProtocolStats(ctx)
	ps, ok := field.Get()
	if !ok {
		return nil, apperrors.TransportFailure("Protocol stats are unavailable", field.Err())
	}
	return &Stats{
		TotalInvoices:    ps.TotalInvoices,
		TotalFundsRaised: ps.TotalFundsRaised,
		PendingInvoices:  ps.PendingInvoices,
		VerifiedInvoices: ps.VerifiedInvoices,
		FundedInvoices:   ps.FundedInvoices,
		FormattedFunds:   money.FormatUSD(ps.TotalFundsRaised),
	}, nil
}

// Prices returns the price manager snapshot, falling back to the off-chain
// source and then to the last good snapshot.
func (s *Service) Prices(ctx context.Context) (*Prices, error) {
	field := s.reader.LatestPrices(ctx)
	if mp, ok := field.Get(); ok {
		p := s.decorate(ctx, mp, SourcePriceManager)
		s.remember(ctx, p)
		return p, nil
	}

	log := s.logger.WithContext(ctx)
	log.Warn("price manager unavailable", "error", field.Err())

	if s.fallback != nil {
		mp, err := s.fallback.MarketPrices(ctx)
		if err == nil {
			p := s.decorate(ctx, mp, SourceCoinGecko)
			s.remember(ctx, p)
			return p, nil
		}
		log.Warn("fallback price source failed", "error", err)
	}

	if s.stale != nil {
		var p Prices
		found, err := s.stale.GetStale(ctx, s.pricesKey, &p)
		if err != nil {
			log.Warn("stale price lookup failed", "error", err)
		}
		if found {
			p.Source = SourceCache
			return &p, nil
		}
	}

	return nil, apperrors.TransportFailure("Market prices are unavailable", field.Err())
}

// Balance returns the stablecoin holding of address with its USD value
func (s *Service) Balance(ctx context.Context, address string) (*Balance, error) {
	addr, err := evm.ValidateAddress(address)
	if err != nil {
		return nil, apperrors.Validation("invalid wallet address")
	}

	field := s.reader.TokenBalance(ctx, addr)
	amount, ok := field.Get()
	if !ok {
		return nil, apperrors.TransportFailure("Balance is unavailable", field.Err())
	}

	rate := decimal.NewFromInt(1)
	if mp, ok := s.reader.LatestPrices(ctx).Get(); ok && mp.USDC.IsPositive() {
		rate = mp.USDC
	}

	return &Balance{
		Address:   addr,
		USDC:      amount,
		USDValue:  amount.Mul(rate).Round(2),
		Formatted: money.FormatAmount(amount.Round(2)) + " USDC",
	}, nil
}

func (s *Service) contract(ctx context.Context) *Contract {
	if info, ok := s.reader.ContractInfo(ctx).Get(); ok {
		return &Contract{Name: info.Name, Version: info.Version, Owner: info.Owner, Paused: info.Paused}
	}
	if v, ok := s.reader.Version(ctx).Get(); ok {
		return &Contract{Version: v}
	}
	return nil
}

func (s *Service) decorate(ctx context.Context, mp invoice.MarketPrices, source PriceSourceKind) *Prices {
	var fetched *bool
	if v, ok := s.reader.InitialPricesFetched(ctx).Get(); ok {
		fetched = &v
	}

	return &Prices{
		ETH:                  mp.ETH,
		USDC:                 mp.USDC,
		BTC:                  mp.BTC,
		LINK:                 mp.LINK,
		LastUpdate:           mp.LastUpdate,
		Volatility:           s.reader.MarketVolatility(ctx).OrElse(DefaultVolatility),
		InitialPricesFetched: fetched,
		Source:               source,
	}
}

func (s *Service) remember(ctx context.Context, p *Prices) {
	if s.stale == nil {
		return
	}
	if err := s.stale.SetStale(ctx, s.pricesKey, p); err != nil {
		s.logger.Debug("failed to store price snapshot", "error", err)
	}
}
