// Package middleware exposes HTTP guards that authenticate requests with
// bearer access tokens issued by an authcore.Engine.
//
// # Guards
//
//   - [RequireAccess] verifies the token signature and expiry only. No store
//     lookup happens on the request path.
//   - [RequireActiveAccount] additionally loads the account and rejects
//     deleted or deactivated accounts.
//
// Each guard reads the Authorization header, delegates the decision to the
// Engine and injects the authenticated account id (and, for
// RequireActiveAccount, the account) into the request context.
//
// Rejections are written as JSON envelopes with a WWW-Authenticate: Bearer
// header. This package never parses tokens itself.
package middleware
