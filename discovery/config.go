package discovery

import (
	"log/slog"
	"math/big"
	"time"

	"github.com/jejunetwork/compute-registry/interfaces"
)

// Defaults applied where Config leaves a field unset.
const (
	DefaultCacheTTL         = time.Minute
	DefaultRPCTimeout       = 15 * time.Second
	DefaultSweepConcurrency = 8
)

// Config configures a discovery Service. It is a plain struct: every field
// has an explicit override point and unset fields fall back to the chain's
// network parameters or package defaults.
type Config struct {
	// RPCAddr is the Ethereum RPC endpoint, used by Dial.
	RPCAddr string

	// Contract is the NodeVerifier contract address.
	Contract interfaces.ContractAddress

	// ChainID selects the network defaults, see Networks.
	ChainID uint64

	// CacheTTL bounds the age of the discovery snapshot. 0 means
	// DefaultCacheTTL.
	CacheTTL time.Duration

	// RPCTimeout bounds every individual chain read. 0 means
	// DefaultRPCTimeout.
	RPCTimeout time.Duration

	// SweepConcurrency bounds in-flight per-node reads during a sweep.
	// 0 means DefaultSweepConcurrency.
	SweepConcurrency int

	// MinStake overrides the chain's minimum stake parameter when non-nil.
	MinStake *big.Int

	// AttestationValidity overrides the chain's attestation validity
	// window when non-zero.
	AttestationValidity time.Duration

	// Resolver maps node ids to their advertised endpoints for liveness
	// probing. Nil disables probing; discovery still works, providers
	// simply keep an unknown ResourceProfile.
	Resolver interfaces.EndpointResolver

	// Log receives operational logs. Nil discards them.
	Log *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.RPCTimeout == 0 {
		c.RPCTimeout = DefaultRPCTimeout
	}
	if c.SweepConcurrency == 0 {
		c.SweepConcurrency = DefaultSweepConcurrency
	}
	if c.Log == nil {
		c.Log = slog.New(slog.DiscardHandler)
	}
	return c
}

// NetworkConfig holds the per-network defaults a Config starts from.
type NetworkConfig struct {
	Name     string
	ChainID  uint64
	RPCAddr  string
	Contract string
	CacheTTL time.Duration
}

// Networks maps chain ids to their default configuration. Entries cover
// the local development chain and the public testnet; mainnet parameters
// are supplied by deployment config, not hardcoded here.
var Networks = map[uint64]NetworkConfig{
	31337: {
		Name:     "localnet",
		ChainID:  31337,
		RPCAddr:  "http://127.0.0.1:8545",
		Contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		CacheTTL: 10 * time.Second,
	},
	420690: {
		Name:     "testnet",
		ChainID:  420690,
		RPCAddr:  "https://rpc.testnet.jejunetwork.org",
		Contract: "0x8dAF17A20c9DBA35f005b6324F493785D239719d",
		CacheTTL: time.Minute,
	},
}

// ConfigForChain returns a Config pre-filled from the network defaults for
// chainID. Unknown chain ids yield a zero Config with only the chain id
// set; the caller must fill RPCAddr and Contract.
func ConfigForChain(chainID uint64) Config {
	nc, ok := Networks[chainID]
	if !ok {
		return Config{ChainID: chainID}
	}

	contract, err := interfaces.NewContractAddressFromHex(nc.Contract)
	if err != nil {
		// Addresses in the Networks table are compile-time constants.
		panic("discovery: invalid contract address for " + nc.Name)
	}

	return Config{
		RPCAddr:  nc.RPCAddr,
		Contract: contract,
		ChainID:  nc.ChainID,
		CacheTTL: nc.CacheTTL,
	}
}
