// Package cachestore defines the durable tier store backing the offline agent.
// A tier is a named key/value mapping from request identity (method + URL) to a
// captured response (status, headers, body). All tiers share one goleveldb
// database; the tier name prefixes every entry key, so deleting a tier is a
// ranged batch delete. The store exposes miss as ErrNotFound and reserves
// returned errors for storage-layer faults, which callers treat as misses and
// log rather than propagate.
package cachestore
