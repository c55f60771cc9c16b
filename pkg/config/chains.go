package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MorphTestnetChainID is the chain the deployed contracts live on
const MorphTestnetChainID = 2810

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Contracts holds the deployed contract addresses of one chain
type Contracts struct {
	Protocol           string `yaml:"protocol"`
	USDC               string `yaml:"usdc"`
	InvoiceNFT         string `yaml:"invoice_nft"`
	PriceManager       string `yaml:"price_manager"`
	RiskCalculator     string `yaml:"risk_calculator"`
	InvestmentModule   string `yaml:"investment_module"`
	VRFModule          string `yaml:"vrf_module"`
	VerificationModule string `yaml:"verification_module"`
	Fallback           string `yaml:"fallback"`
}

// Chain represents a supported EVM chain configuration
type Chain struct {
	ChainID        int64     `yaml:"chain_id"`
	Name           string    `yaml:"name"`
	RPCURL         string    `yaml:"rpc_url"`
	ExplorerURL    string    `yaml:"explorer_url"`
	NativeAsset    string    `yaml:"native_asset"`
	NativeDecimals int       `yaml:"native_decimals"`
	Contracts      Contracts `yaml:"contracts"`
}

// TxURL returns the explorer link for a transaction hash
func (c *Chain) TxURL(hash string) string {
	if c.ExplorerURL == "" || hash == "" {
		return ""
	}
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + hash
}

// ChainsConfig holds all supported chains
type ChainsConfig struct {
	Chains []Chain `yaml:"chains"`

	// Lookup maps for fast access
	byChainID map[int64]*Chain
}

// DefaultChainsConfig returns the Morph testnet deployment
func DefaultChainsConfig() *ChainsConfig {
	config := &ChainsConfig{
		Chains: []Chain{
			{
				ChainID:        MorphTestnetChainID,
				Name:           "Morph Testnet",
				RPCURL:         "https://rpc-quicknode-holesky.morphl2.io",
				ExplorerURL:    "https://explorer-holesky.morphl2.io",
				NativeAsset:    "ETH",
				NativeDecimals: 18,
				Contracts: Contracts{
					Protocol:           "0x454aeA0eDA332a09FFc61C5799B336AEa24Cd863",
					USDC:               "0x0B94780aA755533276390e6269B8a9bf17F67018",
					InvoiceNFT:         "0x76E504803D09250a2870D5021f65705CaC996a77",
					PriceManager:       "0x72f14FCBf3C294e901F7D2EFB5C1efb6C2758384",
					RiskCalculator:     "0xB33EC213C33050F3a0b814dB264985fE69876948",
					InvestmentModule:   "0x8A0b2a30a3aD12e8f0448af4EAe826fAa7E37eE2",
					VRFModule:          "0xAe5d0B6F5f7112c6742cf1F6E097c71dDA85E352",
					VerificationModule: "0x4402aF89143b8c36fFa6bF75Df99dBc4Beb4c7dc",
					Fallback:           "0xD16780D7e6CC8aa3ca67992E570D6C9697Dc0C64",
				},
			},
		},
	}
	config.index()
	return config
}

// LoadChainsConfig loads chain configuration from a YAML file.
// An empty path yields DefaultChainsConfig.
func LoadChainsConfig(path string) (*ChainsConfig, error) {
	if path == "" {
		return DefaultChainsConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chains config file: %w", err)
	}

	return ParseChainsConfig(data)
}

// ParseChainsConfig parses and validates YAML chain configuration
func ParseChainsConfig(data []byte) (*ChainsConfig, error) {
	var config ChainsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse chains config: %w", err)
	}

	config.index()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *ChainsConfig) index() {
	c.byChainID = make(map[int64]*Chain, len(c.Chains))
	for i := range c.Chains {
		chain := &c.Chains[i]
		c.byChainID[chain.ChainID] = chain
	}
}

// Validate validates the chains configuration
func (c *ChainsConfig) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	seen := make(map[int64]bool)
	for _, chain := range c.Chains {
		if chain.ChainID <= 0 {
			return fmt.Errorf("invalid chain_id for chain %s", chain.Name)
		}
		if chain.Name == "" {
			return fmt.Errorf("chain name is required for chain_id %d", chain.ChainID)
		}
		if chain.RPCURL == "" {
			return fmt.Errorf("rpc_url is required for chain %s", chain.Name)
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("duplicate chain_id %d", chain.ChainID)
		}
		seen[chain.ChainID] = true

		required := map[string]string{
			"protocol":            chain.Contracts.Protocol,
			"usdc":                chain.Contracts.USDC,
			"price_manager":       chain.Contracts.PriceManager,
			"verification_module": chain.Contracts.VerificationModule,
		}
		for name, addr := range required {
			if !addressPattern.MatchString(addr) {
				return fmt.Errorf("contracts.%s must be a 0x-prefixed 20-byte address for chain %s", name, chain.Name)
			}
		}
	}

	return nil
}

// GetChain returns the chain configuration for a given chain ID
func (c *ChainsConfig) GetChain(chainID int64) (*Chain, bool) {
	chain, ok := c.byChainID[chainID]
	return chain, ok
}

// GetChainIDs returns all supported chain IDs
func (c *ChainsConfig) GetChainIDs() []int64 {
	ids := make([]int64, 0, len(c.Chains))
	for _, chain := range c.Chains {
		ids = append(ids, chain.ChainID)
	}
	return ids
}

// IsSupported checks if a chain ID is supported
func (c *ChainsConfig) IsSupported(chainID int64) bool {
	_, ok := c.byChainID[chainID]
	return ok
}
