// Package tokenlife is a token-lifecycle service for multi-tenant systems:
// it issues paired short-lived access tokens and long-lived refresh tokens,
// validates them on every protected request, and rotates refresh tokens on
// renewal while detecting and responding to token theft.
//
// The package is designed for concurrent server workloads: Service methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build], and multiple Service instances may share one backing
// store; every check-then-act sequence the rotation protocol needs is a
// single atomic store operation.
//
// # Architecture boundaries
//
// tokenlife is the public surface. It exposes [Service], [Builder],
// [Config], the error taxonomy, and value types (TokenPairResult,
// ValidationResult, TokenInfo, FamilyInfo). Signing lives in the token
// package, the family registry in family, and all orchestration internals
// under internal/.
//
// External collaborators stay external: credential/MFA verification hands
// this package a verified [Identity]; HTTP delivery of the opaque token
// strings is the caller's concern.
//
// # Failure policy
//
// Revocation and reuse checks fail closed: an unreachable store makes a
// token invalid, never valid. Issuance fails open only into an error:
// no token is ever returned without a backing family record.
package tokenlife
