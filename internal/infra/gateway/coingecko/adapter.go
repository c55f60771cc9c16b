package coingecko

import (
	"context"
	"fmt"
	"time"

	"github.com/earnx/earnx/internal/platform/invoice"
)

// CoinGecko ids of the assets the price manager tracks
const (
	IDEthereum  = "ethereum"
	IDUSDCoin   = "usd-coin"
	IDBitcoin   = "bitcoin"
	IDChainlink = "chainlink"
)

// MarketPriceAdapter serves the price manager's asset set from CoinGecko
type MarketPriceAdapter struct {
	client *Client
	now    func() time.Time
}

// NewMarketPriceAdapter creates a new adapter
func NewMarketPriceAdapter(client *Client) *MarketPriceAdapter {
	return &MarketPriceAdapter{client: client, now: time.Now}
}

// MarketPrices fetches ETH, USDC, BTC and LINK in USD
func (a *MarketPriceAdapter) MarketPrices(ctx context.Context) (invoice.MarketPrices, error) {
	prices, err := a.client.GetCurrentPrices(ctx, []string{IDEthereum, IDUSDCoin, IDBitcoin, IDChainlink})
	if err != nil {
		return invoice.MarketPrices{}, err
	}

	for _, id := range []string{IDEthereum, IDUSDCoin, IDBitcoin, IDChainlink} {
		if _, ok := prices[id]; !ok {
			return invoice.MarketPrices{}, fmt.Errorf("price for %s missing from response", id)
		}
	}

	return invoice.MarketPrices{
		ETH:        prices[IDEthereum],
		USDC:       prices[IDUSDCoin],
		BTC:        prices[IDBitcoin],
		LINK:       prices[IDChainlink],
		LastUpdate: a.now().UTC(),
	}, nil
}
