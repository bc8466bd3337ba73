// Package internal holds helpers private to authcore: random token
// generation for password resets and the timing-equalization secret.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for every Engine operation
//   - limiters: per-client-IP throttles for register, login and reset-request
//   - rate: Redis-backed fixed-window primitive
package internal
