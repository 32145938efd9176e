// Package memory provides in-process user and role repositories. They back
// single-instance deployments without DATABASE_URL and the engine tests.
package memory
