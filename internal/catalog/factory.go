package catalog

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed catalog when configured, otherwise an
// in-memory catalog seeded from seedPath (empty when seedPath is empty).
func NewStore(ctx context.Context, databaseURL, seedPath string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(seedPath) == "" {
		return NewInMemoryStore(Data{}), nil
	}
	data, err := LoadFile(seedPath)
	if err != nil {
		return nil, err
	}
	return NewInMemoryStore(data), nil
}
