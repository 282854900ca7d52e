/*
Package discovery implements cached discovery and selection over the on-chain
compute node registry.

It maintains a TTL-bounded snapshot of the eligible provider set and serves
selection queries from it, so routine queries cost zero chain reads while the
snapshot is fresh. The snapshot is refreshed wholesale by a discovery sweep
and swapped in atomically; readers never observe a partially refreshed set.

The package provides two main components:

1. Cache - The snapshot store and sweep machinery
2. Service - The selection API over the cache

# Cache

A sweep lists the active node set, fetches each node's record and stake with
bounded concurrency, runs the trust pipeline over them and enriches accepted
providers with their probed capacity. Concurrent cache-miss callers share a
single in-flight sweep. A per-node read failure excludes that node only; a
failure of the listing itself surfaces as a chain error rather than an empty
result.

# Service

  - List: eligible providers, filtered and sorted by stake descending
  - Best: the highest-stake provider satisfying resource constraints
  - Verify: authoritative re-evaluation against fresh chain state, no cache
  - VerifySignature: signature check through the on-chain verifier
  - ClearCache: drop the snapshot after external dispute or slashing signals

# Connecting

Use Dial to connect to an RPC endpoint and get a fully wired Service, or
NewService to supply your own registry reader, e.g. a mock in tests.

	svc, err := discovery.Dial(ctx, discovery.Config{
		RPCAddr:  "wss://rpc.testnet.jejunetwork.org",
		Contract: verifierAddr,
	})
*/
package discovery
