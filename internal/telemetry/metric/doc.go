// Package metric provides Prometheus metrics for snapql.
//
// All collectors live on a private registry together with the Go runtime
// and process collectors, and are exposed through Registry.Handler.
// Recording methods are safe to call on a nil *Registry, so components
// can run without metrics in tests.
package metric
