// Package termmeta is the public entry point for term metadata. Open attaches
// a backend, registers the term metadata component and brings the active
// site's schema up to date.
package termmeta

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/internal/store"
	component "github.com/mesh-intelligence/termmeta/internal/termmeta"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// Version is the release version reported by the CLI.
const Version = "0.2.0"

// Store is an open term metadata store on the main site.
type Store struct {
	*component.Component
	backend *store.Backend
}

var _ types.TermMetaStore = (*Store)(nil)

// Open attaches the backend described by cfg and installs the schema on the
// main site when it is missing or outdated. A nil logger disables logging.
func Open(ctx context.Context, cfg types.Config, logger *zap.Logger) (*Store, error) {
	b := store.NewBackend(logger)
	c := component.New(b, logger)
	if err := b.Register(c); err != nil {
		return nil, err
	}
	if err := b.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	if err := b.AdminInit(ctx); err != nil {
		b.Detach()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{Component: c, backend: b}, nil
}

// Backend returns the underlying backend for site and term management.
func (s *Store) Backend() *store.Backend { return s.backend }

// Close detaches the backend.
func (s *Store) Close() error { return s.backend.Detach() }
