// Package token implements the signing codec for paired access and refresh
// tokens.
//
// # Token format
//
// Standard three-part HMAC-SHA256 signed tokens. Access and refresh tokens
// carry a "type" discriminator claim and are signed with distinct secrets,
// so a leaked access secret never lets an attacker forge refresh tokens.
//
// # Architecture boundaries
//
// This package owns signing, verification, and unverified decoding. It has
// no knowledge of revocation, token families, or storage; those live in the
// family and internal/stores packages and are orchestrated by the root
// Service.
//
// # What this package must NOT do
//
//   - Access Redis or perform any I/O.
//   - Import tokenlife, family, or internal packages.
//   - Make authorization decisions from unverified claims.
package token
