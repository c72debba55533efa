package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/oppuna-lab/oppuna/pkg/domain/interfaces"
	"github.com/oppuna-lab/oppuna/pkg/repository/chromem"
	"github.com/oppuna-lab/oppuna/pkg/utils/logging"
)

// Store holds CLI flags for vector store backend configuration
type Store struct {
	backend string
	path    string
}

// Flags returns CLI flags for vector store configuration
func (s *Store) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "store-backend",
			Usage:       "Vector store backend type (chromem or memory)",
			Value:       "chromem",
			Sources:     cli.EnvVars("OPPUNA_STORE_BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "store-path",
			Usage:       "Directory for the persistent vector database",
			Value:       "./data/memory",
			Sources:     cli.EnvVars("OPPUNA_STORE_PATH"),
			Destination: &s.path,
		},
	}
}

// Backend returns the configured backend type
func (s *Store) Backend() string {
	return s.backend
}

// Configure initializes the persistent vector store based on the configured
// backend. It returns nil for the memory backend; the fallback store then
// carries all traffic. The caller is responsible for calling Close() on a
// non-nil store.
func (s *Store) Configure(ctx context.Context) (interfaces.VectorStore, error) {
	switch s.backend {
	case "chromem":
		store, err := chromem.New(s.path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize vector store")
		}
		logging.Default().Info("Using chromem vector store", "path", s.path)
		return store, nil

	case "memory":
		logging.Default().Info("Using in-process memory store only (development mode)")
		return nil, nil

	default:
		return nil, goerr.New("invalid store backend", goerr.V("backend", s.backend))
	}
}
