// Package domain defines the core types shared by snapql components.
//
// Types here carry no IO dependencies:
//
//   - Engine, Statement: the opaque query capability built from a snapshot
//   - QueryRequest, Row, Envelope: the SQL request/response contract
//   - Message: the tagged messages exchanged with connected pages
//   - Errors: domain error codes
package domain
