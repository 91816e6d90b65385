package store

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-live/live-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// SessionStore holds the latest session snapshot for readers outside the
// event loop, such as the REST API or other instances.
type SessionStore interface {
	Save(ctx context.Context, snap *domain.SessionSnapshot) error
	// Load returns nil and no error when nothing has been saved.
	Load(ctx context.Context) (*domain.SessionSnapshot, error)
	Close() error
}

// New creates the configured store.
func New(cfg config.StoreConfig) (SessionStore, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisSessionStore(cfg)
	case "memory", "":
		return NewMemorySessionStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
