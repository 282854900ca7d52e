// Package registry provides read-only access to the on-chain NodeVerifier
// contract that tracks compute node identities, attestations, stake and the
// trusted measurement allowlist.
//
// The package implements the interfaces.NodeRegistry interface. All methods
// are point-in-time chain reads issued under an explicit per-call timeout.
// Any RPC failure or malformed response surfaces as a
// *interfaces.ChainReadError; the client never retries - retry policy
// belongs to the caller of the discovery or verification operation.
//
// Two test doubles ship alongside the real client:
//
//   - MockRegistry: a testify mock for expectation-style tests.
//   - MockRegistryClient: an in-memory registry with per-method call
//     counters and failure injection, used to assert cache behavior such as
//     "a warm cache issues zero chain reads".
//
// # Usage Example
//
//	ethClient, err := ethclient.Dial(rpcAddr)
//	if err != nil {
//	    log.Fatalf("Failed to dial RPC: %v", err)
//	}
//
//	client := registry.NewOnchainRegistryClient(ethClient, verifierAddr, 15*time.Second)
//
//	ids, err := client.ActiveNodes(ctx)
package registry
