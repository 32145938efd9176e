// Package authcore is the authentication and authorization core of the service:
// it issues and rotates session-bound tokens, tracks active sessions, resolves
// role permissions, and answers per-route authorization questions.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore exposes [Engine], [Builder], [Config], the error taxonomy ([Error]),
// and the collaborator contracts it depends on: [UserRepository],
// [RoleRepository], [SessionStore], [PasswordHasher], and [Mailer]. Token
// encoding lives in jwt, session persistence in session, the role table in
// permission, and the two-tier cache in cache. None of those packages import
// authcore.
//
// # Session model
//
// A login creates one session holding a random hash. The refresh token carries
// the session id and that hash; refreshing swaps the hash atomically at the
// store, so a superseded refresh token can never be replayed. Logging out
// deletes the session, which also invalidates outstanding access tokens because
// [Engine.ValidateAccess] checks that the session still exists.
//
// # What this package must NOT do
//
//   - Mutate sessions except through [SessionStore].
//   - Surface why a token failed verification.
//   - Let a shared-cache outage fail an authentication request.
package authcore
