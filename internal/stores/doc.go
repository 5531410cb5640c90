// Package stores provides Redis-backed record stores for the token
// lifecycle: per-JTI revocation records and used-refresh markers.
//
// # Design
//
// Every record carries a TTL equal to the remaining lifetime of the token
// it shadows, so the store self-cleans and never grows past the set of
// live tokens. The used-marker is SET NX, the one atomic primitive the
// whole reuse-detection protocol leans on: of two concurrent rotations
// presenting the same refresh token, exactly one wins the marker and the
// other is rejected as reuse. The marker write itself happens inside the
// family registry's rotation script (this package hands over the key via
// UsedKey) so consuming the token and advancing the family is one step;
// this package reads the markers.
//
// # Architecture boundaries
//
// This package owns persistence only. It does not parse tokens, decide
// revocation policy, or know about token families; those belong to the
// flow functions in internal/flows and the family package.
//
// # What this package must NOT do
//
//   - Import tokenlife or any sibling internal package.
//   - Return "not revoked" on store failure; errors must surface so
//     callers can fail closed.
package stores
