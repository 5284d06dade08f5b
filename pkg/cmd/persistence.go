package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/persistence/file"
	"github.com/dukex/nodeflow/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence opens the store named by databaseURL. postgres:// and
// postgresql:// URLs select PostgreSQL; file:// URLs and bare paths select
// the JSON file store rooted at the path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, location := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgresql persistence: %w", err)
		}

		return p, nil
	default:
		if location == "" {
			return nil, fmt.Errorf("%w: empty database url", persistence.ErrPersistence)
		}

		return file.NewPersistence(location), nil
	}
}

func parsePersistenceProvider(databaseURL string) (string, string) {
	provider, location, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", databaseURL
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider, location
		}
	}

	return "file", databaseURL
}
