package tlsroots

import (
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewPool(t *testing.T) {
	if NewPool().Pool() == nil {
		t.Fatal("NewPool().Pool() returned nil")
	}
	if p := NewEmptyPool(); p.Pool() == nil || p.Added() != 0 {
		t.Fatal("NewEmptyPool() is not empty")
	}
}

func TestAddCertPEM(t *testing.T) {
	pool := NewEmptyPool()
	a := writeKeyPair(t, "", "", "cdn-a")
	b := writeKeyPair(t, "", "", "cdn-b")

	if err := pool.AddCertPEM(append(a, b...)); err != nil {
		t.Fatalf("AddCertPEM() error = %v", err)
	}
	if pool.Added() != 2 {
		t.Errorf("Added() = %d, want 2", pool.Added())
	}
}

func TestAddCertPEM_NoCerts(t *testing.T) {
	pool := NewEmptyPool()

	for _, in := range [][]byte{nil, []byte("not a certificate"), pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}})} {
		if err := pool.AddCertPEM(in); !errors.Is(err, ErrNoCertsFound) {
			t.Errorf("AddCertPEM(%q) error = %v, want ErrNoCertsFound", in, err)
		}
	}
}

func TestAddCertPEM_InvalidCert(t *testing.T) {
	pool := NewEmptyPool()
	bad := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")})

	if err := pool.AddCertPEM(bad); err == nil {
		t.Error("AddCertPEM() expected error for invalid certificate")
	}
}

func TestLoadPool(t *testing.T) {
	dir := t.TempDir()
	ca := filepath.Join(dir, "ca.pem")
	writeKeyPair(t, ca, "", "private-cdn")

	pool, err := LoadPool("", ca)
	if err != nil {
		t.Fatalf("LoadPool() error = %v", err)
	}
	if pool.Added() != 1 {
		t.Errorf("Added() = %d, want 1", pool.Added())
	}

	cfg := pool.ClientConfig()
	if cfg.RootCAs != pool.Pool() {
		t.Error("ClientConfig() does not use the pool")
	}
}

func TestLoadPool_Errors(t *testing.T) {
	if _, err := LoadPool("/nonexistent/ca.pem"); err == nil {
		t.Error("LoadPool() should fail for a missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(empty, []byte("# nothing\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPool(empty); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("LoadPool() error = %v, want ErrNoCertsFound", err)
	}
}
