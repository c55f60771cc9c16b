package verification

import (
	"context"
	"fmt"
	"time"
)

// CheckConnectivity runs every read-only endpoint plus one minimal verification and
// reports each outcome. It never returns early.
func (c *Client) CheckConnectivity(ctx context.Context) Report {
	var report Report

	run := func(name string, fn func() (string, error)) {
		start := time.Now()
		detail, err := fn()
		check := Check{Name: name, OK: err == nil, Duration: time.Since(start), Detail: detail}
		if err != nil {
			check.Detail = err.Error()
		}
		report.Checks = append(report.Checks, check)
	}

	run("health", func() (string, error) {
		s, err := c.Health(ctx)
		if err != nil {
			return "", err
		}
		return s.Status, nil
	})
	run("verification status", func() (string, error) {
		s, err := c.Status(ctx)
		if err != nil {
			return "", err
		}
		return s.Status, nil
	})
	run("verification test", func() (string, error) {
		s, err := c.Test(ctx)
		if err != nil {
			return "", err
		}
		return s.Message, nil
	})
	run("verify minimal", func() (string, error) {
		r, err := c.VerifyMinimal(ctx, MinimalRequest{
			InvoiceID:       fmt.Sprintf("CONNECTIVITY-%d", time.Now().Unix()),
			Commodity:       "COFFEE",
			Amount:          50000,
			SupplierCountry: "Ethiopia",
			BuyerCountry:    "USA",
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("valid=%t risk=%d rating=%s", r.IsValid, r.RiskScore, r.CreditRating), nil
	})
	run("analytics dashboard", func() (string, error) {
		d, err := c.AnalyticsDashboard(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d bytes", len(d.Raw)), nil
	})

	return report
}
