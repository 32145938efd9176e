// Package middleware adapts an authcore.Engine to net/http.
//
//   - [Authenticate] verifies the bearer access token and attaches the caller.
//   - [Policy] and [Require] enforce per-route role and permission
//     requirements registered at startup.
//   - [Cached] serves GET responses from the hybrid cache.
//   - [ClientIP] hands the remote address to the Engine for throttling and
//     audit.
//
// Decisions are delegated to the Engine; this package only translates HTTP
// in and out.
package middleware
