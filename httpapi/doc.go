// Package httpapi serves an authcore.Engine over HTTP.
//
// Routes:
//
//	GET  /                     service banner
//	GET  /health               liveness probe
//	GET  /metrics              Prometheus scrape endpoint (when configured)
//	POST /auth/register        create a password account
//	POST /auth/login           email or username plus password
//	POST /auth/google          exchange a Google ID token
//	POST /auth/refresh         exchange a refresh token
//	POST /auth/reset/request   send a password reset link
//	POST /auth/reset/confirm   set a new password with a reset token
//	GET  /auth/me              account behind the bearer access token
//
// Every JSON response uses the {success, message, data} envelope. Engine
// errors are translated to status codes in one place (writeError).
package httpapi
