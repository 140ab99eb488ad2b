package sdk

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/pkg/engine"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

// StoreOptions select and configure a backend.
type StoreOptions struct {
	Backend string
	// DataDir holds the memory backend's snapshot and the default SQLite file.
	DataDir    string
	SQLitePath string
	DSN        string
	RemoteAddr string
	TLS        bool
	Log        logging.Logger
}

// Closer releases a backend opened by Open.
type Closer func() error

// Open initializes the store named by opts.Backend. The caller does not care
// whether it is local or remote; every backend is an engine.Store.
func Open(ctx context.Context, opts StoreOptions) (engine.Store, Closer, error) {
	switch opts.Backend {
	case BackendMemory, "":
		if opts.DataDir == "" {
			return engine.NewMemStore(nil, nil), noopClose, nil
		}
		ms, err := engine.OpenMemStore(opts.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return ms, func() error { ms.Wait(); return nil }, nil

	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.DataDir, "celerix-hr.db")
		}
		s, err := engine.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case BackendPostgres:
		if opts.DSN == "" {
			return nil, nil, fmt.Errorf("postgres backend needs a DSN")
		}
		s, err := engine.OpenPostgres(ctx, opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case BackendRemote:
		if opts.RemoteAddr == "" {
			return nil, nil, fmt.Errorf("remote backend needs an address")
		}
		c, err := Connect(ctx, opts.RemoteAddr, ClientOptions{TLS: opts.TLS, Log: opts.Log})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", opts.Backend)
}

func noopClose() error { return nil }
