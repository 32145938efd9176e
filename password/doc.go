// Package password hashes and verifies passwords with bcrypt.
//
// Hashes use the modular crypt format ($2a$/$2b$) so records created by other
// bcrypt implementations verify unchanged. [Bcrypt.NeedsRehash] reports hashes
// produced with a lower cost than the configured one.
//
// Password policy (minimum length, old-password checks) is enforced by the
// caller, not here.
package password
