package http

import (
	"math/big"
)

// Relayer environments
const (
	EnvironmentProd = "prod"
	EnvironmentTest = "test"
)

// EndpointTable maps (environment, chain id) to a relayer URL
type EndpointTable map[string]map[uint64]string

// DefaultEndpoints is the relayer endpoint table shipped with the client
var DefaultEndpoints = EndpointTable{
	EnvironmentProd: {
		1:   "https://relayer.metaswap.io/eth",
		137: "https://relayer.metaswap.io/polygon",
		56:  "https://relayer.metaswap.io/bsc",
	},
	EnvironmentTest: {
		11155111: "https://relayer-test.metaswap.io/sepolia",
		80002:    "https://relayer-test.metaswap.io/amoy",
		97:       "https://relayer-test.metaswap.io/bsc-testnet",
	},
}

// Resolve returns the relayer URL for chainID, or "" when the pair is unsupported
func (t EndpointTable) Resolve(environment string, chainID *big.Int) string {
	if chainID == nil || !chainID.IsUint64() {
		return ""
	}
	chains, ok := t[environment]
	if !ok {
		return ""
	}
	return chains[chainID.Uint64()]
}

// With returns a copy of the table with url registered for (environment, chainID)
func (t EndpointTable) With(environment string, chainID uint64, url string) EndpointTable {
	out := make(EndpointTable, len(t)+1)
	for env, chains := range t {
		copied := make(map[uint64]string, len(chains))
		for id, u := range chains {
			copied[id] = u
		}
		out[env] = copied
	}
	if out[environment] == nil {
		out[environment] = make(map[uint64]string)
	}
	out[environment][chainID] = url
	return out
}
