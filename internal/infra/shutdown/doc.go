// Package shutdown provides graceful shutdown for snapql.
//
// A Handler waits for SIGINT/SIGTERM, a cancelled context or an explicit
// Trigger, then runs the registered hooks newest first under one
// deadline:
//
//	h := shutdown.NewHandler(15*time.Second, logger)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
