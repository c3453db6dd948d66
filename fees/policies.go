package fees

import (
	"github.com/metaswap/relay/go/mechanisms/evm"
)

// Chain ids with a default policy
const (
	ChainEthereum    uint64 = 1
	ChainPolygon     uint64 = 137
	ChainBSC         uint64 = 56
	ChainSepolia     uint64 = 11155111
	ChainPolygonAmoy uint64 = 80002
	ChainBSCTestnet  uint64 = 97
)

// Chainlink native/USD feeds used for USD-pegged fee tokens
const (
	FeedETHUSD   = "0x5f4eC3Df9cbd43714FE2740F5E3616155c5b8419"
	FeedMATICUSD = "0xAB594600376Ec9fD91F8e885dADF0CE036862dE0"
	FeedBNBUSD   = "0x0567F2323251f0Aab15c8dFb1967E4e8A7D42aeE"
)

// DefaultPolicies returns the production chain table.
// Mainnets convert through their native/USD feed; testnets are waived.
func DefaultPolicies(reader evm.ChainReader) map[uint64]Policy {
	return map[uint64]Policy{
		ChainEthereum:    Charge(&OracleStrategy{Reader: reader, Feed: FeedETHUSD}),
		ChainPolygon:     Charge(&OracleStrategy{Reader: reader, Feed: FeedMATICUSD}),
		ChainBSC:         Charge(&OracleStrategy{Reader: reader, Feed: FeedBNBUSD}),
		ChainSepolia:     Waive(),
		ChainPolygonAmoy: Waive(),
		ChainBSCTestnet:  Waive(),
	}
}
