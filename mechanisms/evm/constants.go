package evm

const (
	// Router function names. These double as relayer operation names.
	FunctionAddLiquidity              = "addLiquidity"
	FunctionRemoveLiquidity           = "removeLiquidity"
	FunctionRemoveLiquidityWithPermit = "removeLiquidityWithPermit"
	FunctionSwapExactTokensForTokens  = "swapExactTokensForTokens"
	FunctionSwapTokensForExactTokens  = "swapTokensForExactTokens"
	FunctionNonces                    = "nonces"
	FunctionMetaEnabled               = "metaEnabled"
	FunctionExecuteMetaTransaction    = "executeMetaTransaction"

	// Factory, pair, token and oracle function names
	FunctionGetPair         = "getPair"
	FunctionName            = "name"
	FunctionDecimals        = "decimals"
	FunctionLatestRoundData = "latestRoundData"

	// EventMetaTransactionExecuted is emitted by the router for every relayed call
	EventMetaTransactionExecuted = "MetaTransactionExecuted"

	// Transaction status
	TxStatusSuccess = 1
	TxStatusFailed  = 0

	// ZeroAddress is the "pair does not exist" sentinel
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// Default EIP-712 domain parameters
	DefaultForwarderDomainName    = "MetaSwapRouter"
	DefaultForwarderDomainVersion = "1"
	DefaultPermitDomainVersion    = "1"

	// Default gas limits
	AddLiquidityGas    uint64 = 300000
	RemoveLiquidityGas uint64 = 280000
	SwapBaseGas        uint64 = 200000
	SwapPerHopGas      uint64 = 90000

	// DefaultPermitValidity is how long a PermitLP signature stays valid (seconds)
	DefaultPermitValidity = 1200

	// Native tokens carry 18 decimals on every supported chain
	NativeDecimals = 18
)

var (
	// RouterABI covers the router calls the relay client encodes or reads
	RouterABI = []byte(`[
		{
			"inputs": [
				{"name": "tokenA", "type": "address"},
				{"name": "tokenB", "type": "address"},
				{"name": "amountADesired", "type": "uint256"},
				{"name": "amountBDesired", "type": "uint256"},
				{"name": "amountAMin", "type": "uint256"},
				{"name": "amountBMin", "type": "uint256"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			],
			"name": "addLiquidity",
			"outputs": [
				{"name": "amountA", "type": "uint256"},
				{"name": "amountB", "type": "uint256"},
				{"name": "liquidity", "type": "uint256"}
			],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "tokenA", "type": "address"},
				{"name": "tokenB", "type": "address"},
				{"name": "liquidity", "type": "uint256"},
				{"name": "amountAMin", "type": "uint256"},
				{"name": "amountBMin", "type": "uint256"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			],
			"name": "removeLiquidity",
			"outputs": [
				{"name": "amountA", "type": "uint256"},
				{"name": "amountB", "type": "uint256"}
			],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "tokenA", "type": "address"},
				{"name": "tokenB", "type": "address"},
				{"name": "liquidity", "type": "uint256"},
				{"name": "amountAMin", "type": "uint256"},
				{"name": "amountBMin", "type": "uint256"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"},
				{"name": "approveMax", "type": "bool"},
				{"name": "v", "type": "uint8"},
				{"name": "r", "type": "bytes32"},
				{"name": "s", "type": "bytes32"}
			],
			"name": "removeLiquidityWithPermit",
			"outputs": [
				{"name": "amountA", "type": "uint256"},
				{"name": "amountB", "type": "uint256"}
			],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "amountIn", "type": "uint256"},
				{"name": "amountOutMin", "type": "uint256"},
				{"name": "path", "type": "address[]"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			],
			"name": "swapExactTokensForTokens",
			"outputs": [{"name": "amounts", "type": "uint256[]"}],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "amountOut", "type": "uint256"},
				{"name": "amountInMax", "type": "uint256"},
				{"name": "path", "type": "address[]"},
				{"name": "to", "type": "address"},
				{"name": "deadline", "type": "uint256"}
			],
			"name": "swapTokensForExactTokens",
			"outputs": [{"name": "amounts", "type": "uint256[]"}],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [{"name": "user", "type": "address"}],
			"name": "nonces",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [],
			"name": "metaEnabled",
			"outputs": [{"name": "", "type": "bool"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "from", "type": "address"},
				{"name": "to", "type": "address"},
				{"name": "value", "type": "uint256"},
				{"name": "gas", "type": "uint256"},
				{"name": "nonce", "type": "uint256"},
				{"name": "data", "type": "bytes"},
				{"name": "feeToken", "type": "address"},
				{"name": "maxTokenFee", "type": "uint256"},
				{"name": "v", "type": "uint8"},
				{"name": "r", "type": "bytes32"},
				{"name": "s", "type": "bytes32"}
			],
			"name": "executeMetaTransaction",
			"outputs": [{"name": "", "type": "bytes"}],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"anonymous": false,
			"inputs": [
				{"indexed": true, "name": "from", "type": "address"},
				{"indexed": true, "name": "nonce", "type": "uint256"},
				{"indexed": false, "name": "feeToken", "type": "address"},
				{"indexed": false, "name": "tokenFee", "type": "uint256"}
			],
			"name": "MetaTransactionExecuted",
			"type": "event"
		}
	]`)

	// FactoryABI for pair lookups
	FactoryABI = []byte(`[
		{
			"inputs": [
				{"name": "tokenA", "type": "address"},
				{"name": "tokenB", "type": "address"}
			],
			"name": "getPair",
			"outputs": [{"name": "pair", "type": "address"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// PairABI for LP-token permit parameters
	PairABI = []byte(`[
		{
			"inputs": [{"name": "owner", "type": "address"}],
			"name": "nonces",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [],
			"name": "name",
			"outputs": [{"name": "", "type": "string"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// ERC20DecimalsABI for fee-token decimals
	ERC20DecimalsABI = []byte(`[
		{
			"inputs": [],
			"name": "decimals",
			"outputs": [{"name": "", "type": "uint8"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// PriceFeedABI is the Chainlink aggregator subset used for fee conversion
	PriceFeedABI = []byte(`[
		{
			"inputs": [],
			"name": "latestRoundData",
			"outputs": [
				{"name": "roundId", "type": "uint80"},
				{"name": "answer", "type": "int256"},
				{"name": "startedAt", "type": "uint256"},
				{"name": "updatedAt", "type": "uint256"},
				{"name": "answeredInRound", "type": "uint80"}
			],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [],
			"name": "decimals",
			"outputs": [{"name": "", "type": "uint8"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
)

// SwapGasLimit returns the default gas limit for a swap along a path of pathLen tokens
func SwapGasLimit(pathLen int) uint64 {
	if pathLen <= 2 {
		return SwapBaseGas
	}
	return SwapBaseGas + SwapPerHopGas*uint64(pathLen-2)
}
