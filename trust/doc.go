// Package trust implements the node eligibility pipeline. Evaluate applies
// the checks in a fixed order (active flag, attestation freshness, stake,
// verification flag, measurement allowlist) and reports the first failure as
// a typed rejection reason. Only the measurement check touches the chain;
// everything before it runs on already-fetched state, and MemoChecker
// deduplicates allowlist lookups across a sweep.
package trust
