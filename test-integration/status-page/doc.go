// Package integration provides end-to-end tests for the status page server.
// They run the complete server against a SQLite store and check that admin
// mutations end up in the published site and reach connected browsers.
package integration
