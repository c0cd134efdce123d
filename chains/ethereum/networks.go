package ethereum

// Network describes one EVM chain the bundler accepts payment on.
type Network struct {
	Name       string
	Ticker     string
	RPC        string
	MinConfirm uint64
}

// Networks lists the supported EVM currencies by bundler name.
var Networks = map[string]Network{
	"ethereum":  {Name: "ethereum", Ticker: "ETH", RPC: "https://ethereum-rpc.publicnode.com", MinConfirm: 5},
	"matic":     {Name: "matic", Ticker: "MATIC", RPC: "https://polygon-rpc.com", MinConfirm: 5},
	"bnb":       {Name: "bnb", Ticker: "BNB", RPC: "https://bsc-dataseed.binance.org", MinConfirm: 5},
	"avalanche": {Name: "avalanche", Ticker: "AVAX", RPC: "https://api.avax.network/ext/bc/C/rpc", MinConfirm: 5},
	"fantom":    {Name: "fantom", Ticker: "FTM", RPC: "https://rpc.ftm.tools", MinConfirm: 5},
	"arbitrum":  {Name: "arbitrum", Ticker: "ETH", RPC: "https://arb1.arbitrum.io/rpc", MinConfirm: 5},
	"boba-eth":  {Name: "boba-eth", Ticker: "ETH", RPC: "https://mainnet.boba.network", MinConfirm: 1},
}

// Lookup returns the network registered under name.
func Lookup(name string) (Network, bool) {
	n, ok := Networks[name]
	return n, ok
}
