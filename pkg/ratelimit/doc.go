// Package ratelimit implements fixed-window request accounting.
//
// # Overview
//
// A Store counts requests per key inside a window described by a Config. The
// first request for a key (or the first after the previous window expired)
// opens a new window with a count of one. Every further request increments the
// count, and the request is limited once the count exceeds the limit. Limited
// requests still count, so a client that keeps retrying does not get a fresh
// budget before the window resets.
//
// # Stores
//
// MemoryStore keeps records in process and is the default. RedisStore runs the
// same accounting in a Lua script so that several replicas share one budget per
// client. InstrumentedStore decorates either with Prometheus counters.
//
//	store := ratelimit.Instrument(ratelimit.NewMemoryStore(), ratelimit.NewMetrics(registry))
//	res, err := store.Check(ctx, ratelimit.ClientKey(r, false), ratelimit.Strict())
//
// # Presets
//
// Strict, Standard and Lenient are the built-in policies. Their limits are
// strictly increasing and the strict window is never longer than the standard
// one; Presets.Validate enforces this when presets are overridden from
// configuration.
package ratelimit
