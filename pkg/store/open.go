package store

import (
	"context"
	"fmt"
	"strings"
)

// Open selects a backend by DSN scheme: postgres:// and postgresql:// open a
// Postgres store, mongodb:// and mongodb+srv:// a Mongo store, and an empty
// DSN or "memory" the in-process store.
func Open(ctx context.Context, dsn, mongoDatabase string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(ctx, dsn)
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return NewMongo(ctx, dsn, mongoDatabase)
	default:
		return nil, fmt.Errorf("unsupported store DSN %q", dsn)
	}
}
