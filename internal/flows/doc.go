// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunRegister, RunLogin, RunReconcile, RunRefresh, etc.)
// accepts a typed dependency struct of function fields and sentinel values,
// and performs no I/O of its own. The root package builds the dependency
// structs from its collaborators, which keeps this package free of imports on
// authcore and lets tests drive every branch with plain closures.
//
// # Architecture boundaries
//
// Flows coordinate the account store, reset-token store, password hasher,
// token manager, identity verifier, notifier, rate limiter, audit dispatcher
// and metrics. They do not own any of these resources.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Decide error identities: host sentinels arrive through the Errors structs.
package flows
