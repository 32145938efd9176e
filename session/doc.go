// Package session owns server-side session records: the unit of refresh-token
// validity.
//
// A [Session] binds a user to a rotating secret hash. The hash changes on every
// refresh, and a refresh token is only honoured while the session exists and the
// hash embedded in the token equals the stored one.
//
// # Implementations
//
// [RedisStore] keeps each session as a Redis hash plus a per-user index set. Hash
// rotation runs inside a Lua script so that concurrent refreshes presenting the
// same hash have exactly one winner. [MemoryStore] offers the same contract for
// single-process deployments and tests.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or permission (no upward imports).
//   - Interpret tokens or make authorization decisions.
package session
