package opportunity

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/earnx/earnx/internal/platform/invoice"
	apperrors "github.com/earnx/earnx/internal/shared/errors"
	"github.com/earnx/earnx/pkg/logger"
)

// DefaultConcurrency is how many invoices are aggregated at once
const DefaultConcurrency = 8

// Aggregator turns invoice ids into View records.
// Each invoice is read with seven parallel calls; invoices whose core reads fail are dropped.
type Aggregator struct {
	reader      Reader
	concurrency int
	now         func() time.Time
	logger      *logger.Logger
}

// NewAggregator creates an aggregator over reader
func NewAggregator(reader Reader, concurrency int, log *logger.Logger) *Aggregator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Aggregator{
		reader:      reader,
		concurrency: concurrency,
		now:         time.Now,
		logger:      log.WithField("service", "opportunity"),
	}
}

// Opportunities returns every investable invoice, highest APR first
func (a *Aggregator) Opportunities(ctx context.Context) ([]View, error) {
	ids := a.reader.Opportunities(ctx)

	views, err := a.Build(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]View, 0, len(views))
	for _, v := range views {
		if v.Status == invoice.StatusVerified && v.RemainingFunding.IsPositive() {
			out = append(out, v)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].APRBasisPoints != out[j].APRBasisPoints {
			return out[i].APRBasisPoints > out[j].APRBasisPoints
		}
		return out[i].ID < out[j].ID
	})

	a.logger.Debug("opportunities aggregated", "ids", len(ids), "available", len(out))
	return out, nil
}

// Details returns the view of a single invoice regardless of its status
func (a *Aggregator) Details(ctx context.Context, id uint64) (*View, error) {
	views, err := a.Build(ctx, []uint64{id})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperrors.NotFound("invoice")
	}
	return &views[0], nil
}

// Portfolio returns the invoices investor holds a position in, largest position first
func (a *Aggregator) Portfolio(ctx context.Context, investor string) ([]PortfolioEntry, error) {
	ids := a.reader.InvestorInvoices(ctx, investor)

	entries := make([]*PortfolioEntry, len(ids))
	err := a.forEach(ctx, ids, func(ctx context.Context, i int, id uint64) {
		var (
			view   View
			ok     bool
			amount invoice.Field[decimal.Decimal]
		)

		var g errgroup.Group
		g.Go(func() error {
			view, ok = a.build(ctx, id)
			return nil
		})
		g.Go(func() error {
			amount = a.reader.InvestorAmount(ctx, investor, id)
			return nil
		})
		_ = g.Wait()

		invested := amount.OrElse(decimal.Zero)
		if !ok || !invested.IsPositive() {
			return
		}
		entries[i] = &PortfolioEntry{View: view, Investment: investmentOf(view, invested)}
	})
	if err != nil {
		return nil, err
	}

	out := make([]PortfolioEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, *e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Investment.Amount.GreaterThan(out[j].Investment.Amount)
	})

	return out, nil
}

// Build aggregates ids into views in input order, dropping unreadable invoices
func (a *Aggregator) Build(ctx context.Context, ids []uint64) ([]View, error) {
	results := make([]*View, len(ids))

	err := a.forEach(ctx, ids, func(ctx context.Context, i int, id uint64) {
		if v, ok := a.build(ctx, id); ok {
			results[i] = &v
		}
	})
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(results))
	for _, v := range results {
		if v != nil {
			views = append(views, *v)
		}
	}
	return views, nil
}

// forEach runs fn for every id with bounded concurrency; each call owns index i of any result slice
func (a *Aggregator) forEach(ctx context.Context, ids []uint64, fn func(ctx context.Context, i int, id uint64)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(gctx, i, id)
			return nil
		})
	}

	return g.Wait()
}

// build issues the seven reads of one invoice in parallel and derives its view
func (a *Aggregator) build(ctx context.Context, id uint64) (View, bool) {
	var r reads
	var g errgroup.Group

	g.Go(func() error { r.basics = a.reader.InvoiceBasics(ctx, id); return nil })
	g.Go(func() error { r.parties = a.reader.InvoiceParties(ctx, id); return nil })
	g.Go(func() error { r.financials = a.reader.InvoiceFinancials(ctx, id); return nil })
	g.Go(func() error { r.locations = a.reader.InvoiceLocations(ctx, id); return nil })
	g.Go(func() error { r.metadata = a.reader.InvoiceMetadata(ctx, id); return nil })
	g.Go(func() error { r.verify = a.reader.Verification(ctx, id); return nil })
	g.Go(func() error { r.investment = a.reader.InvestmentBasics(ctx, id); return nil })
	_ = g.Wait()

	view, ok := buildView(id, r, a.now())
	if !ok {
		a.logger.Warn("dropping invoice with missing core data",
			"invoice_id", id,
			"basics", r.basics.State().String(),
			"parties", r.parties.State().String(),
			"financials", r.financials.State().String(),
		)
	}
	return view, ok
}
