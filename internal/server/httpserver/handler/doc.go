// Package handler provides the intercepting HTTP handler for snapql.
//
// Every request is classified by method, origin and path into one branch:
//
//   - classify.go: request classification against the configured routes
//   - handler.go: the diagnostic, forbidden-write and SQL query branches
//   - passthrough.go: the handler for everything not intercepted
//
// Intercepted branches answer with plain JSON bodies ({"error": ...},
// {"ready": ...} or a row array); there is no response envelope.
package handler
