// Package connection talks to a running snapql-server.
//
// Client speaks the intercepted HTTP API: POST <base>api runs a query and
// GET <base>api reports readiness. NotifyConn opens the notification
// WebSocket and exchanges PING_DB / DB_READY / DB_ERROR messages.
package connection
