// Package jwt encodes and verifies the bearer tokens the service hands out:
// access tokens, refresh tokens, and the short-lived confirmation tokens used by
// e-mail confirmation and password reset.
//
// Every token family is signed with HS256 under its own secret, so a token
// minted for one purpose never verifies for another. Verification failures are
// collapsed into [ErrInvalidToken]; callers cannot tell an expired token from a
// forged one.
package jwt
