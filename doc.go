// Package authcore is a credential and session lifecycle engine: password
// registration and login, external identity-provider login, stateless JWT
// access/refresh tokens and a single-use, time-bounded password reset.
//
// An [Engine] is assembled once through [Builder] and is safe for concurrent use
// afterwards. Persistence, email delivery and identity-token verification are
// collaborators supplied to the builder (see packages store, notify and
// identity); the engine owns only the orchestration and its invariants:
//
//   - Login failures for unknown identifiers, OAuth-only accounts and wrong
//     passwords are indistinguishable, including in timing.
//   - A password reset request answers identically whether or not the email
//     is registered.
//   - A reset token changes a password at most once.
//   - An external identity is linked to at most one local account.
//
// # Architecture boundaries
//
// Flow orchestration lives in internal/flows as pure functions over dependency
// structs; this package wires those structs from configuration and owns the
// public error, audit and metrics surface. The HTTP transport lives in
// packages httpapi and middleware, and cmd/authcore-server wires everything
// from the environment through package envconfig.
package authcore
