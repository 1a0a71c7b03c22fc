package tlsroots

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
)

type fakeWatcher struct {
	mu        sync.Mutex
	watched   []string
	callbacks []func(string)
	err       error
}

func (w *fakeWatcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched = append(w.watched, path)
	return w.err
}

func (w *fakeWatcher) OnChange(cb func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

func (w *fakeWatcher) fire(path string) {
	w.mu.Lock()
	cbs := append([]func(string){}, w.callbacks...)
	w.mu.Unlock()
	for _, cb := range cbs {
		cb(path)
	}
}

func keyPairFiles(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "tls.crt"), filepath.Join(dir, "tls.key")
}

func leafDER(t *testing.T, pemData []byte) []byte {
	t.Helper()
	block, _ := pem.Decode(pemData)
	if block == nil {
		t.Fatal("no PEM block")
	}
	return block.Bytes
}

func TestNewReloader(t *testing.T) {
	certFile, keyFile := keyPairFiles(t)
	certPEM := writeKeyPair(t, certFile, keyFile, "snapql")

	r, err := NewReloader(certFile, keyFile, nil)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}

	cert, err := r.GetCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}
	if !bytes.Equal(cert.Certificate[0], leafDER(t, certPEM)) {
		t.Error("GetCertificate() returned a different certificate")
	}
}

func TestNewReloader_Missing(t *testing.T) {
	if _, err := NewReloader("/nonexistent/tls.crt", "/nonexistent/tls.key", nil); err == nil {
		t.Fatal("NewReloader() should fail for missing files")
	}
}

func TestReloader_WatchWith(t *testing.T) {
	certFile, keyFile := keyPairFiles(t)
	writeKeyPair(t, certFile, keyFile, "first")

	r, err := NewReloader(certFile, keyFile, nil)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}

	w := &fakeWatcher{}
	if err := r.WatchWith(w); err != nil {
		t.Fatalf("WatchWith() error = %v", err)
	}
	if len(w.watched) != 2 {
		t.Fatalf("watched = %v, want cert and key", w.watched)
	}

	second := writeKeyPair(t, certFile, keyFile, "second")

	// Unrelated files are ignored
	w.fire(filepath.Join(filepath.Dir(certFile), "other.pem"))
	cert, _ := r.GetCertificate(nil)
	if bytes.Equal(cert.Certificate[0], leafDER(t, second)) {
		t.Fatal("reloaded on an unrelated file")
	}

	w.fire(certFile)
	cert, _ = r.GetCertificate(nil)
	if !bytes.Equal(cert.Certificate[0], leafDER(t, second)) {
		t.Error("certificate was not reloaded")
	}
}

func TestReloader_KeepsLastGoodPair(t *testing.T) {
	certFile, keyFile := keyPairFiles(t)
	first := writeKeyPair(t, certFile, keyFile, "first")

	r, err := NewReloader(certFile, keyFile, nil)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}

	// A cert without its matching key
	writeKeyPair(t, certFile, "", "half-written")
	if err := r.Reload(); err == nil {
		t.Fatal("Reload() should fail for a mismatched pair")
	}

	cert, _ := r.GetCertificate(nil)
	if !bytes.Equal(cert.Certificate[0], leafDER(t, first)) {
		t.Error("failed reload replaced the certificate")
	}
}

func TestReloader_ServesTLS(t *testing.T) {
	certFile, keyFile := keyPairFiles(t)
	writeKeyPair(t, certFile, keyFile, "snapql")

	r, err := NewReloader(certFile, keyFile, nil)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", r.ServerConfig())
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok")
	})}
	go srv.Serve(ln)
	defer srv.Close()

	pool, err := LoadPool(certFile)
	if err != nil {
		t.Fatalf("LoadPool() error = %v", err)
	}
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: pool.ClientConfig()}}

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	resp, err := client.Get("https://127.0.0.1:" + port + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	// Untrusted without the pool
	plain := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: x509.NewCertPool()}}}
	if _, err := plain.Get("https://127.0.0.1:" + port + "/"); err == nil {
		t.Error("GET should fail without the custom root")
	}
}
