package types

import (
	"context"
	"errors"
)

// Component is anything registered with a backend. The backend checks each
// component for the optional lifecycle interfaces below and calls the ones
// it implements at the matching point.
type Component interface {
	Name() string
}

// Initializer runs when the backend attaches, or at registration when the
// backend is already attached.
type Initializer interface {
	OnInit()
}

// ContextSwitcher runs after the active site changed, including restores.
// The handle it sees has been re-derived for the new site.
type ContextSwitcher interface {
	OnContextSwitch(siteID int64)
}

// AdminInitializer runs on Backend.AdminInit, the point where schema
// upgrades are checked.
type AdminInitializer interface {
	OnAdminInit(ctx context.Context) error
}

// Activator runs when the component is activated on the current site or,
// with networkWide, on the whole network.
type Activator interface {
	OnActivate(ctx context.Context, networkWide bool) error
}

// SiteProvisioner runs after a new site and its tables were created.
type SiteProvisioner interface {
	OnNewSite(ctx context.Context, siteID int64) error
}

// TableDropper extends the list of tables dropped with a site.
type TableDropper interface {
	OnDropTables(tables []string) []string
}

// TermDeleteObserver runs after a term was removed from a taxonomy.
type TermDeleteObserver interface {
	OnTermDeleted(ctx context.Context, termID int64) error
}

// ListingArgsFilter normalizes term listing arguments before anything else
// reads them.
type ListingArgsFilter interface {
	OnListingArgs(args ListingArgs) ListingArgs
}

// ListingClausesFilter may extend the SQL pieces of a term listing.
type ListingClausesFilter interface {
	OnListingClauses(ctx context.Context, clauses Clauses, taxonomies []string, args ListingArgs) (Clauses, error)
}

// Backend lifecycle errors.
var (
	ErrBackendDetached   = errors.New("backend is detached")
	ErrAlreadyAttached   = errors.New("backend is already attached")
	ErrAlreadyRegistered = errors.New("component is already registered")
	ErrNotRegistered     = errors.New("component is not registered")
	ErrSiteNotFound      = errors.New("site not found")
	ErrMainSite          = errors.New("the main site cannot be deleted")
	ErrNoSwitchedSite    = errors.New("no switched site to restore")
	ErrTermNotFound      = errors.New("term not found")
	ErrInvalidTaxonomy   = errors.New("taxonomy must not be empty")
	ErrInvalidName       = errors.New("name must not be empty")
)
