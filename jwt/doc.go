// Package jwt issues and verifies the engine's bearer tokens.
//
// Every token carries the same fixed claim set: subject, a kind discriminator
// ("access" or "refresh") under the "type" claim, issued-at and expiry. Tokens
// are signed with HS256 by default, or Ed25519 when asymmetric verification is
// needed. Verification collapses every failure into [ErrTokenInvalid] so
// callers cannot tell a bad signature from a wrong kind or an expired token.
package jwt
