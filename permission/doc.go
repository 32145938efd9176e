// Package permission resolves role names to permission sets and decides whether
// a caller satisfies a route's declared requirement.
//
// The role table is static: it is registered at startup, frozen, and read
// without I/O afterwards. The wildcard permission [Wildcard] grants every
// permission.
//
// # What this package must NOT do
//
//   - Perform I/O or consult caches; role entities live elsewhere.
//   - Import authcore (errors are mapped to HTTP statuses by callers).
package permission
