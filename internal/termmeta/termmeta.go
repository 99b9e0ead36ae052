// Package termmeta adds key-value metadata to taxonomy terms. A Component
// owns the per-site termmeta table: it creates and versions the table,
// registers it on the backend handle, exposes the term metadata accessors,
// reacts to site and term lifecycle events, and lets term listings filter on
// metadata.
package termmeta

import (
	"context"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/internal/logging"
	"github.com/mesh-intelligence/termmeta/internal/store"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// Name is the component name used for registration and network activation.
const Name = "termmeta"

// TableName is the handle key and the unprefixed name of the table.
const TableName = "termmeta"

// Host is the backend surface the component depends on. *store.Backend
// implements it.
type Host interface {
	Handle() store.Handle
	RegisterTable(name, table string)
	Dialect() store.Dialect
	Config() types.Config
	ApplySchema(ctx context.Context, stmts []string) error

	GetOption(ctx context.Context, name string) (string, bool, error)
	UpdateOption(ctx context.Context, name, value string) error

	SwitchToSite(ctx context.Context, siteID int64) error
	RestoreCurrentSite() error
	SiteIDs(ctx context.Context, networkID int64) ([]int64, error)
	IsLargeNetwork(ctx context.Context) (bool, error)
	IsNetworkActive(ctx context.Context, name string) (bool, error)

	AddMetadata(ctx context.Context, h store.Handle, objectType string, objectID int64, key, value string, unique bool) (int64, error)
	GetMetadata(ctx context.Context, h store.Handle, objectType string, objectID int64, key string) ([]string, error)
	AllMetadata(ctx context.Context, h store.Handle, objectType string, objectID int64) (map[string][]string, error)
	UpdateMetadata(ctx context.Context, h store.Handle, objectType string, objectID int64, key, value, prevValue string) (bool, error)
	DeleteMetadata(ctx context.Context, h store.Handle, objectType string, objectID int64, key, value string, deleteAll bool) (bool, error)
	DeleteMetadataByMID(ctx context.Context, h store.Handle, objectType string, metaID int64) (bool, error)
	MetaRows(ctx context.Context, h store.Handle, objectType string, objectID int64) ([]store.MetaRow, error)
}

var _ Host = (*store.Backend)(nil)

var (
	_ types.TermMetaStore        = (*Component)(nil)
	_ types.Initializer          = (*Component)(nil)
	_ types.ContextSwitcher      = (*Component)(nil)
	_ types.AdminInitializer     = (*Component)(nil)
	_ types.Activator            = (*Component)(nil)
	_ types.SiteProvisioner      = (*Component)(nil)
	_ types.TableDropper         = (*Component)(nil)
	_ types.TermDeleteObserver   = (*Component)(nil)
	_ types.ListingArgsFilter    = (*Component)(nil)
	_ types.ListingClausesFilter = (*Component)(nil)
)

// Component implements term metadata on top of a Host.
type Component struct {
	host   Host
	logger *zap.Logger
}

// New creates a component bound to host. Register it with the backend so it
// receives lifecycle calls. A nil logger disables logging.
func New(host Host, logger *zap.Logger) *Component {
	return &Component{
		host:   host,
		logger: logging.OrNop(logger).Named(Name),
	}
}

// Name implements types.Component.
func (c *Component) Name() string { return Name }

// Table returns the termmeta table of the active site.
func (c *Component) Table() string {
	return c.host.Handle().Prefix + TableName
}

// PatchHandle registers the active site's termmeta table on the backend
// handle. Calling it again has no further effect.
func (c *Component) PatchHandle() {
	c.host.RegisterTable(TableName, c.Table())
}

// OnInit implements types.Initializer.
func (c *Component) OnInit() { c.PatchHandle() }

// OnContextSwitch implements types.ContextSwitcher.
func (c *Component) OnContextSwitch(int64) { c.PatchHandle() }

// AddTermMeta adds a metadata row to a term. With unique set it returns
// false when the term already has a row for key.
func (c *Component) AddTermMeta(ctx context.Context, termID int64, key, value string, unique bool) (bool, error) {
	id, err := c.host.AddMetadata(ctx, c.host.Handle(), types.ObjectTypeTerm, termID, key, value, unique)
	if err != nil {
		return false, err
	}
	return id > 0, nil
}

// GetTermMeta returns every value of key on a term in insertion order.
func (c *Component) GetTermMeta(ctx context.Context, termID int64, key string) ([]string, error) {
	return c.host.GetMetadata(ctx, c.host.Handle(), types.ObjectTypeTerm, termID, key)
}

// GetTermMetaSingle returns the first value of key on a term, or "".
func (c *Component) GetTermMetaSingle(ctx context.Context, termID int64, key string) (string, error) {
	values, err := c.GetTermMeta(ctx, termID, key)
	if err != nil || len(values) == 0 {
		return "", err
	}
	return values[0], nil
}

// AllTermMeta returns every key of a term with its values.
func (c *Component) AllTermMeta(ctx context.Context, termID int64) (map[string][]string, error) {
	return c.host.AllMetadata(ctx, c.host.Handle(), types.ObjectTypeTerm, termID)
}

// UpdateTermMeta sets key on a term. See store.Backend.UpdateMetadata for
// how prevValue selects rows.
func (c *Component) UpdateTermMeta(ctx context.Context, termID int64, key, value, prevValue string) (bool, error) {
	return c.host.UpdateMetadata(ctx, c.host.Handle(), types.ObjectTypeTerm, termID, key, value, prevValue)
}

// DeleteTermMeta removes key from a term, only rows holding value when value
// is not empty.
func (c *Component) DeleteTermMeta(ctx context.Context, termID int64, key, value string) (bool, error) {
	return c.host.DeleteMetadata(ctx, c.host.Handle(), types.ObjectTypeTerm, termID, key, value, false)
}

// DeleteTermMetaByKey removes key from every term.
func (c *Component) DeleteTermMetaByKey(ctx context.Context, key string) (bool, error) {
	return c.host.DeleteMetadata(ctx, c.host.Handle(), types.ObjectTypeTerm, 0, key, "", true)
}

// TermMetaRows returns the rows of a term in meta_id order.
func (c *Component) TermMetaRows(ctx context.Context, termID int64) ([]types.TermMeta, error) {
	rows, err := c.host.MetaRows(ctx, c.host.Handle(), types.ObjectTypeTerm, termID)
	if err != nil {
		return nil, err
	}
	out := make([]types.TermMeta, len(rows))
	for i, r := range rows {
		out[i] = types.TermMeta{MetaID: r.MetaID, TermID: r.ObjectID, Key: r.Key, Value: r.Value}
	}
	return out, nil
}

// SchemaVersion returns the stored schema version of the active site, 0 when
// unset or unreadable as a number.
func (c *Component) SchemaVersion(ctx context.Context) (int64, error) {
	raw, ok, err := c.host.GetOption(ctx, VersionOption)
	if err != nil || !ok {
		return 0, err
	}
	return parseVersion(raw), nil
}
