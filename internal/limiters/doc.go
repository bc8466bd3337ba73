// Package limiters provides the per-client-IP throttles for the credential
// endpoints, built on internal/rate windows.
//
// A nil *IPLimiter allows everything, so callers can wire it unconditionally
// and only construct one when Redis is available.
package limiters
