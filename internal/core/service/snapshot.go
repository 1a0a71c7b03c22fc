package service

import (
	"context"
	"log/slog"

	"github.com/yndnr/snapql/internal/core/domain"
	"github.com/yndnr/snapql/internal/storage/snapshot"
)

// Fetcher retrieves the raw snapshot bytes.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// EngineOpener builds an engine from a database image.
type EngineOpener func(ctx context.Context, data []byte) (domain.Engine, error)

// SnapshotLoader fetches a snapshot and turns it into an engine.
// Every Load is independent; caching belongs to Lifecycle.
type SnapshotLoader struct {
	fetcher    Fetcher
	open       EngineOpener
	passphrase []byte
	logger     *slog.Logger
}

// NewSnapshotLoader creates a SnapshotLoader. passphrase is only needed for
// sealed snapshots.
func NewSnapshotLoader(fetcher Fetcher, open EngineOpener, passphrase string, logger *slog.Logger) *SnapshotLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotLoader{
		fetcher:    fetcher,
		open:       open,
		passphrase: []byte(passphrase),
		logger:     logger.With("component", "snapshot_loader"),
	}
}

// Load implements Loader.
func (s *SnapshotLoader) Load(ctx context.Context) (domain.Engine, error) {
	// 1. Fetch
	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		if domain.IsDomainError(err, "") {
			return nil, err
		}
		return nil, domain.ErrSnapshotFetch.WithCause(err)
	}

	// 2. Unseal
	if snapshot.IsSealed(data) {
		plain, err := snapshot.Unseal(data, s.passphrase)
		if err != nil {
			return nil, domain.ErrSnapshotFormat.WithCause(err)
		}
		s.logger.Debug("snapshot unsealed", "sealed_bytes", len(data), "bytes", len(plain))
		data = plain
	}

	// 3. Construct
	engine, err := s.open(ctx, data)
	if err != nil {
		return nil, domain.ErrSnapshotFormat.WithCause(err)
	}
	return engine, nil
}
