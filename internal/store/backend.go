// Package store implements the host side of term metadata: the database
// backend, sites and context switching, options, the generic object-type
// metadata subsystem, and the term listing query builder.
//
// Components register with a Backend and implement the optional lifecycle
// interfaces from pkg/types; the backend calls them at the matching points
// instead of dispatching string-named events.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/internal/cache"
	"github.com/mesh-intelligence/termmeta/internal/logging"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// DatabaseFile is the SQLite database created inside DataDir.
const DatabaseFile = "termmeta.db"

// Backend owns the database connection, the active site handle and the
// registered components. Context switching mutates the active site and is
// meant for serialized use; the mutex only keeps handle reads consistent.
type Backend struct {
	mu         sync.RWMutex
	attached   bool
	config     types.Config
	db         *sql.DB
	dialect    Dialect
	cache      cache.Cache
	logger     *zap.Logger
	handle     Handle
	switched   []int64 // sites to restore, innermost last
	components []types.Component
}

// NewBackend creates a detached backend. A nil logger disables logging.
func NewBackend(logger *zap.Logger) *Backend {
	return &Backend{
		logger: logging.OrNop(logger),
		cache:  cache.Nop{},
	}
}

// Attach opens the database described by config, creates the network tables
// and the main site when missing, and runs every Initializer.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	if b.attached {
		b.mu.Unlock()
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		b.mu.Unlock()
		return err
	}

	dialect, err := dialectFor(config.Backend)
	if err != nil {
		b.mu.Unlock()
		return err
	}

	db, err := openDB(config, dialect)
	if err != nil {
		b.mu.Unlock()
		return err
	}

	ctx := context.Background()
	if err := bootstrap(ctx, db, dialect, config.GetTablePrefix(), config.GetNetworkID()); err != nil {
		db.Close()
		b.mu.Unlock()
		return err
	}

	var c cache.Cache = cache.Nop{}
	if config.Cache.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, config.Cache.RedisAddr, config.Cache.GetTTL())
		if err != nil {
			db.Close()
			b.mu.Unlock()
			return fmt.Errorf("connect cache: %w", err)
		}
		c = rc
	}

	b.db = db
	b.dialect = dialect
	b.cache = c
	b.config = config
	b.handle = newHandle(config.GetTablePrefix(), MainSiteID)
	b.switched = nil
	b.attached = true
	b.mu.Unlock()

	b.logger.Info("backend attached",
		zap.String("backend", config.Backend),
		zap.String("dsn", logging.SanitizeDSN(dataSource(config))),
		zap.String("prefix", config.GetTablePrefix()),
		zap.Bool("cache", config.Cache.RedisAddr != ""))

	for _, c := range b.snapshot() {
		if in, ok := c.(types.Initializer); ok {
			in.OnInit()
		}
	}
	return nil
}

// Detach closes the cache and the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if err := b.cache.Close(); err != nil {
		b.logger.Warn("closing cache", zap.Error(err))
	}
	b.cache = cache.Nop{}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.handle = Handle{}
	b.switched = nil
	b.logger.Info("backend detached")
	return nil
}

// Register adds a component. Names are unique; registering a second
// component under a taken name returns ErrAlreadyRegistered. When the
// backend is already attached an Initializer runs immediately.
func (b *Backend) Register(c types.Component) error {
	b.mu.Lock()
	for _, existing := range b.components {
		if existing.Name() == c.Name() {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s", types.ErrAlreadyRegistered, c.Name())
		}
	}
	b.components = append(b.components, c)
	attached := b.attached
	b.mu.Unlock()

	if in, ok := c.(types.Initializer); ok && attached {
		in.OnInit()
	}
	return nil
}

// AdminInit runs every AdminInitializer, stopping at the first error.
func (b *Backend) AdminInit(ctx context.Context) error {
	if _, _, err := b.conn(); err != nil {
		return err
	}
	for _, c := range b.snapshot() {
		if ai, ok := c.(types.AdminInitializer); ok {
			if err := ai.OnAdminInit(ctx); err != nil {
				return fmt.Errorf("admin init %s: %w", c.Name(), err)
			}
		}
	}
	return nil
}

// Activate runs the named component's Activator. Network-wide activation is
// recorded first so the component reads as network-active while it installs.
func (b *Backend) Activate(ctx context.Context, name string, networkWide bool) error {
	c, err := b.component(name)
	if err != nil {
		return err
	}

	if networkWide {
		if err := b.setNetworkOption(ctx, networkActiveKey(name), "1"); err != nil {
			return fmt.Errorf("recording network activation: %w", err)
		}
	}

	b.logger.Info("activating component", zap.String("component", name), zap.Bool("network_wide", networkWide))
	if a, ok := c.(types.Activator); ok {
		if err := a.OnActivate(ctx, networkWide); err != nil {
			return fmt.Errorf("activate %s: %w", name, err)
		}
	}
	return nil
}

// IsNetworkActive reports whether name was activated network-wide.
func (b *Backend) IsNetworkActive(ctx context.Context, name string) (bool, error) {
	v, ok, err := b.networkOption(ctx, networkActiveKey(name))
	if err != nil {
		return false, err
	}
	return ok && v == "1", nil
}

// Handle returns the handle of the active site.
func (b *Backend) Handle() Handle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle
}

// RegisterTable registers table under name on the active site's handle. The
// registration lasts until the next context entry.
func (b *Backend) RegisterTable(name, table string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handle = b.handle.WithTable(name, table)
}

// Config returns the configuration the backend was attached with.
func (b *Backend) Config() types.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// Dialect returns the dialect of the attached database.
func (b *Backend) Dialect() Dialect {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dialect
}

// DB returns the underlying database. The returned value must not be closed.
func (b *Backend) DB() (*sql.DB, error) {
	db, _, err := b.conn()
	return db, err
}

// conn returns the database and dialect, or ErrBackendDetached.
func (b *Backend) conn() (*sql.DB, Dialect, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, nil, types.ErrBackendDetached
	}
	return b.db, b.dialect, nil
}

func (b *Backend) snapshot() []types.Component {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Component, len(b.components))
	copy(out, b.components)
	return out
}

func (b *Backend) component(name string) (types.Component, error) {
	for _, c := range b.snapshot() {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", types.ErrNotRegistered, name)
}

func networkActiveKey(name string) string {
	return "active_sitewide_" + name
}

// openDB opens the configured database. SQLite uses a single connection so
// writes from one process never contend for the file lock.
func openDB(config types.Config, d Dialect) (*sql.DB, error) {
	if d.Name() == types.BackendSQLite {
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.DriverName(), dataSource(config))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}
	if d.Name() == types.BackendSQLite {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name(), err)
	}
	return db, nil
}

func dataSource(config types.Config) string {
	if config.Backend == types.BackendPostgres {
		return config.DSN
	}
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, DatabaseFile) + "?_pragma=busy_timeout(5000)"
}

// bootstrap creates the network tables and, on an empty network, the main
// site with its tables.
func bootstrap(ctx context.Context, db *sql.DB, d Dialect, basePrefix string, networkID int64) error {
	if err := execAll(ctx, db, networkDDL(d, basePrefix)); err != nil {
		return fmt.Errorf("creating network tables: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+sitesTable(basePrefix)).Scan(&count); err != nil {
		return fmt.Errorf("counting sites: %w", err)
	}
	if count == 0 {
		_, err := db.ExecContext(ctx, d.Rebind(
			"INSERT INTO "+sitesTable(basePrefix)+" (network_id, domain, path, created_at) VALUES (?, ?, ?, ?)"),
			networkID, "localhost", "/", time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("creating main site: %w", err)
		}
	}

	if err := execAll(ctx, db, siteDDL(d, newHandle(basePrefix, MainSiteID))); err != nil {
		return fmt.Errorf("creating main site tables: %w", err)
	}
	return nil
}
