// Package family implements the token-family registry: the durable record
// of one login lineage and the atomic operations the rotation protocol
// performs on it.
//
// # Storage model
//
// One JSON record per family id plus a revocation tombstone key. The
// tombstone outlives the record by the refresh-token lifetime so a revoked
// family stays distinguishable from one that never existed for as long as
// any of its tokens could still be presented.
//
// # Architecture boundaries
//
// Rotation commit (consume the used-marker, load, cap check, increment,
// persist) and revocation (delete plus tombstone) each run as a single
// Redis Lua script, because multiple service instances share the store
// and no in-process lock can cover them.
//
// # What this package must NOT do
//
//   - Parse or sign token strings.
//   - Decide rotation policy; it only enforces the atomic state transitions.
//   - Import tokenlife or token.
package family
