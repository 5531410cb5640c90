// Package internal contains helper utilities that are intentionally private
// to tokenlife, including secure random identifier generation.
//
// # Sub-packages
//
//   - flows — pure-function flow orchestrators for every Service operation
//   - rate — Redis-backed fixed-window refresh throttle
//   - stores — per-JTI revocation records and used-refresh markers
//
// # What this package must NOT do
//
//   - Export types that appear in the public tokenlife API.
//   - Be imported by any package outside the tokenlife module.
package internal
