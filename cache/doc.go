// Package cache implements the two-tier cache that memoizes role lookups and
// request results.
//
// A [Hybrid] consults a bounded in-process LRU first and a shared Redis tier
// second; a shared hit backfills the local tier. Writes go to the local tier and
// then, best effort, to the shared tier. Shared-tier failures are logged and
// counted but never returned: the cache degrades to local-only operation.
//
// Values are stored as JSON in both tiers so that a value written by one
// process decodes identically in another.
//
// Reset never flushes the Redis database. It purges the local tier and deletes
// only keys under the cache's namespace.
package cache
