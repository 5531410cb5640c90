// Package rate provides the Redis-backed fixed-window counter behind the
// optional refresh throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key
// prefix tlrate:rf: — refresh attempts per family.
//
// # What this package must NOT do
//
//   - Implement rotation or reuse-detection policy.
//   - Be imported outside the tokenlife module.
package rate
