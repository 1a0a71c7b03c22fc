// Package wsserver provides the page notification channel.
//
// Every page that wants readiness notifications opens a WebSocket to the
// notify path. The Hub tracks those connections, hands inbound frames to
// a MessageHandler and lets the notifier enumerate and post to pages.
//
// Messages are JSON text frames:
//
//	{"type":"DB_READY"}
//	{"type":"DB_ERROR","error":"DB fetch failed: 404 Not Found"}
//	{"type":"PING_DB"}
package wsserver
