// Package flows contains pure-function orchestrators for every Service
// operation.
//
// Each flow function (RunIssue, RunValidate, RunRefresh, etc.) accepts a
// typed dependency struct and returns a result carrying either the
// operation payload or a classified failure kind. The root package maps
// failure kinds to its sentinel errors, emits audit events, and bumps
// metrics; flows stay free of those concerns.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token codec, family registry,
// revocation store, and refresh throttle. They do NOT own any of these
// resources; ownership stays with the Service.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tokenlife (to avoid import cycles).
//   - Perform I/O except through dependency interfaces.
//   - Reorder the refresh protocol: the reuse pre-check runs before full
//     validation, and the used-marker is written before any new token is
//     signed.
package flows
