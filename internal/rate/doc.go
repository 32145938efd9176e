// Package rate implements the Redis-backed failed-login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR plus EXPIRE on the first hit of the window.
// Key layout under the configured prefix:
//   - <prefix>:rl:login:<email>  failed logins per account
//   - <prefix>:rl:loginip:<ip>   failed logins per client IP
package rate
