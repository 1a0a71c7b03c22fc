package httpserver

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// New creates a new HTTP server.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		handler: handler,
	}
}

// Listen opens the server's TCP listener without serving yet.
func (s *Server) Listen() (net.Listener, error) {
	addr := s.httpServer.Addr
	if addr == "" {
		addr = ":http"
	}
	return net.Listen("tcp", addr)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// ServeTLS accepts TLS connections on ln.
func (s *Server) ServeTLS(ln net.Listener, certFile, keyFile string) error {
	return s.httpServer.ServeTLS(ln, certFile, keyFile)
}

// ServeTLSConfig accepts TLS connections on ln using cfg, which must
// supply certificates itself, e.g. through GetCertificate.
func (s *Server) ServeTLSConfig(ln net.Listener, cfg *tls.Config) error {
	s.httpServer.TLSConfig = cfg
	return s.httpServer.ServeTLS(ln, "", "")
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ListenAndServeTLS starts the HTTPS server.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
