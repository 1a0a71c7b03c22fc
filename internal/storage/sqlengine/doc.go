// Package sqlengine builds read-only SQLite engines from snapshot bytes.
//
// The snapshot image is written to a private temporary file and opened
// with the immutable, read-only URI flags, so SQLite never takes locks
// or writes journals. An Engine is safe for concurrent use; every
// Statement belongs to a single request.
package sqlengine
