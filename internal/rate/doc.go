// Package rate implements a Redis fixed-window counter.
//
// The first hit in a window creates the key and sets its TTL; later hits only
// increment. A key therefore resets exactly one window after its first hit.
package rate
