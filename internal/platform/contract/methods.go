package contract

import "github.com/earnx/earnx/internal/infra/evm"

var (
	u256 = evm.Uint256
	u8   = evm.Uint8
	addr = evm.Address
	str  = evm.String
	ids  = evm.Uint256s
	flag = evm.Bool
	i256 = evm.Int256
	raw  = evm.Bytes
)

// Protocol core
var (
	mGetInvestmentOpportunities = evm.NewMethod("getInvestmentOpportunities", nil, ids)
	mGetAllInvoices             = evm.NewMethod("getAllInvoices", nil, ids)
	mGetInvoicesByStatus        = evm.NewMethod("getInvoicesByStatus", []evm.Type{u8}, ids)
	mGetSupplierInvoices        = evm.NewMethod("getSupplierInvoices", []evm.Type{addr}, ids)
	mGetInvestorInvoices        = evm.NewMethod("getInvestorInvoices", []evm.Type{addr}, ids)
	mGetInvoiceBasics           = evm.NewMethod("getInvoiceBasics", []evm.Type{u256}, u256, addr, u256, u8)
	mGetInvoiceParties          = evm.NewMethod("getInvoiceParties", []evm.Type{u256}, addr, str, str, str)
	mGetInvoiceFinancials       = evm.NewMethod("getInvoiceFinancials", []evm.Type{u256}, u256, u256, u256, u256)
	mGetInvoiceLocations        = evm.NewMethod("getInvoiceLocations", []evm.Type{u256}, str, str)
	mGetInvoiceMetadata         = evm.NewMethod("getInvoiceMetadata", []evm.Type{u256}, u256, flag, u256)
	mGetInvestmentBasics        = evm.NewMethod("getInvestmentBasics", []evm.Type{u256}, u256, u256, u256, u256)
	mGetInvestorData            = evm.NewMethod("getInvestorData", []evm.Type{addr, u256}, u256)
	mGetInvoiceStatus           = evm.NewMethod("getInvoiceStatus", []evm.Type{u256}, u8)
	mIsInvoiceVerified          = evm.NewMethod("isInvoiceVerified", []evm.Type{u256}, flag)
	mGetProtocolStats           = evm.NewMethod("getProtocolStats", nil, u256, u256, u256, u256, u256)
	mInvoiceCounter             = evm.NewMethod("invoiceCounter", nil, u256)
	mVersion                    = evm.NewMethod("version", nil, str)
	mGetContractInfo            = evm.NewMethod("getContractInfo", nil, str, str, addr, flag, u256)

	mInvestInInvoice    = evm.NewMethod("investInInvoice", []evm.Type{u256, u256})
	mSubmitInvoice      = evm.NewMethod("submitInvoice", []evm.Type{addr, u256, str, str, str, str, str, u256, str}, u256)
	mInitializeProtocol = evm.NewMethod("initializeProtocol", nil)
)

// Stablecoin
var (
	mBalanceOf = evm.NewMethod("balanceOf", []evm.Type{addr}, u256)
	mAllowance = evm.NewMethod("allowance", []evm.Type{addr, addr}, u256)
	mApprove   = evm.NewMethod("approve", []evm.Type{addr, u256}, flag)
	mMint      = evm.NewMethod("mint", []evm.Type{addr, u256})
)

// Verification module
var (
	mGetDocumentVerification   = evm.NewMethod("getDocumentVerification", []evm.Type{u256}, flag, flag, str, u256, str, u256)
	mGetLastFunctionsResponse  = evm.NewMethod("getLastFunctionsResponse", nil, evm.Bytes32, raw, raw)
	mStartDocumentVerification = evm.NewMethod("startDocumentVerification", []evm.Type{u256, str, str, u256, str, str, str, str}, evm.Bytes32)
	mTestDirectRequest         = evm.NewMethod("testDirectRequest", nil)
)

// Price manager
var (
	mGetLatestPrices           = evm.NewMethod("getLatestPrices", nil, i256, i256, i256, i256, u256)
	mCalculateMarketVolatility = evm.NewMethod("calculateMarketVolatility", nil, u256)
	mInitialPricesFetched      = evm.NewMethod("initialPricesFetched", nil, flag)
	mUpdateLivePrices          = evm.NewMethod("updateLivePrices", nil)
)
