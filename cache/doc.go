// Package cache implements the tiered, fail-open cache engine the domain
// caches are built on: TTL classification, owner scoping, single-flight
// fetch coalescing, and fan-out invalidation.
//
// # Envelope
//
// Every stored value is wrapped in an [Envelope] carrying the payload, the
// owner identity that produced it, the write time, and a versioned schema
// tag. Envelopes serialize to msgpack ([github.com/vmihailenco/msgpack/v5])
// and the payload stays a [msgpack.RawMessage], so classification and
// existence checks never decode domain data. Bytes that fail to decode are
// treated as an absent entry, never as a fatal error.
//
// # Staleness
//
// Each domain configures a soft and a hard TTL (soft <= hard). Entry age
// against that pair yields one of three states:
//
//   - [StateFresh]: younger than the soft TTL, always servable
//   - [StateStale]: between the TTLs, servable only on explicit request
//   - [StateExpired]: past the hard TTL, treated as a miss
//
// # The Engine
//
// [New] builds a [Cache] for one domain over any [kv.Store]:
//
//	c := cache.New[Detail](store, cache.Config{
//	    Name:    "place.detail",
//	    Schema:  "place.detail.v1",
//	    SoftTTL: 12 * time.Hour,
//	    HardTTL: 24 * time.Hour,
//	})
//
// Operations are [Cache.Save], [Cache.Get], [Cache.HasValid], [Cache.Update],
// [Cache.Clear], [Cache.ClearAll], [Cache.Stats] and [Cache.Sweep]. None of
// them return errors: the engine fails open, so a storage failure, a corrupt
// entry, an owner mismatch or a hung store degrades to a cache miss and a
// log line. Application correctness must never depend on cache availability.
//
// Every store call is bounded by Config.StorageTimeout (default
// [DefaultStorageTimeout]); a store that hangs is a miss, not a stuck caller.
//
// # Owner Scoping
//
// User-scoped domains pass the owner identity to Save and Get. An entry
// read back by a different identity is purged and reported as a miss, so a
// second account on the same device can never observe the first account's
// cached data. Unscoped domains pass "".
//
// # Read Paths
//
// [Through] is fetch-on-miss: a miss runs the domain's [Fetcher] through the
// shared [Flight] table (one in-flight fetch per key, shared result), saves
// and returns. When the fetch fails a stale entry, if any, is served as a
// fallback; otherwise the fetch error propagates.
//
// [Revalidate] is stale-while-revalidate: stale entries return to the caller
// immediately while one background refresh runs through the same flight
// table. Refresh failures are swallowed and retried on the next stale access.
//
// # Coordinator
//
// The [Coordinator] is a registry of [Domain] implementations built once at
// startup. [Coordinator.Invalidate] fans one entity's invalidation out to
// every domain holding a denormalized copy; [Coordinator.ClearAllForUser]
// fans out sign-out; [Coordinator.Stats] aggregates per-domain diagnostics.
// It owns no TTL policy and performs no cross-domain transaction; each
// domain clear is independent.
package cache
