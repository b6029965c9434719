package constants

import "time"

const (
	ContractCallTimeout   = 10 * time.Second // timeout for a single eth_call
	MetadataFetchTimeout  = 15 * time.Second // timeout for one metadata document fetch
	SubmitTimeout         = 30 * time.Second // bounded wait for the wallet to return a tx hash
	ConfirmationTimeout   = 90 * time.Second // bounded wait for a receipt before status is unknown
	ReceiptPollInterval   = 2 * time.Second  // delay between receipt polls
	TLSHandshakeTimeout   = 10 * time.Second // timeout for TLS handshake
	ResponseHeaderTimeout = 20 * time.Second // timeout for response header
	ExpectContinueTimeout = 1 * time.Second  // timeout for expect continue
	DelayBetweenRPCCalls  = 200              // delay in milliseconds between RPC failover attempts
	MetadataFanOutLimit   = 8                // concurrent metadata fetches per aggregation
	MaxResponseBodySize   = 4 * 1024 * 1024  // maximum metadata document size in bytes (4MB)
	MaxErrorExcerptLen    = 140              // bound on user-visible error text
)

// Network Types
const (
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"
	NetworkPolygon     = "polygon"
	NetworkPolygonAmoy = "polygon-amoy"
)

// mapping from network name to numeric chain ID
var NetworkToChainID = map[string]int64{
	NetworkBase:        8453,
	NetworkBaseSepolia: 84532,
	NetworkPolygon:     137,
	NetworkPolygonAmoy: 80002,
}

// MarketplaceAddress maps a network to its deployed marketplace contract.
var MarketplaceAddress = map[string]string{
	NetworkBase:        "0x5B48f71325C9b1B7f2b2c713EbCd24B399f3a4D1",
	NetworkBaseSepolia: "0x9d4454B023096f34B160D6B654540c56A1F81688",
	NetworkPolygonAmoy: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
}

var OfficialRPCEndpoints = map[string][]string{
	NetworkBase:        {"https://mainnet.base.org"},
	NetworkBaseSepolia: {"https://sepolia.base.org"},
	NetworkPolygon:     {"https://polygon-rpc.com"},
	NetworkPolygonAmoy: {"https://rpc-amoy.polygon.technology"},
}

// DefaultIPFSGateway resolves ipfs:// token URIs.
const DefaultIPFSGateway = "https://ipfs.io/ipfs/"
