package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// CreateSite adds a site to the configured network, creates its tables and
// runs every SiteProvisioner for it.
func (b *Backend) CreateSite(ctx context.Context, domain, path string) (int64, error) {
	db, d, err := b.conn()
	if err != nil {
		return 0, err
	}
	cfg := b.Config()
	base := cfg.GetTablePrefix()

	if path == "" {
		path = "/"
	}

	var siteID int64
	err = db.QueryRowContext(ctx, d.Rebind(
		"INSERT INTO "+sitesTable(base)+" (network_id, domain, path, created_at) VALUES (?, ?, ?, ?) RETURNING site_id"),
		cfg.GetNetworkID(), domain, path, time.Now().UTC().Format(time.RFC3339)).Scan(&siteID)
	if err != nil {
		return 0, fmt.Errorf("inserting site: %w", err)
	}

	if err := execAll(ctx, db, siteDDL(d, newHandle(base, siteID))); err != nil {
		return 0, fmt.Errorf("creating tables for site %d: %w", siteID, err)
	}
	b.logger.Info("site created", zap.Int64("site_id", siteID), zap.String("domain", domain), zap.String("path", path))

	for _, c := range b.snapshot() {
		if sp, ok := c.(types.SiteProvisioner); ok {
			if err := sp.OnNewSite(ctx, siteID); err != nil {
				return siteID, fmt.Errorf("provisioning site %d for %s: %w", siteID, c.Name(), err)
			}
		}
	}
	return siteID, nil
}

// GetSite returns a site by id, or ErrSiteNotFound.
func (b *Backend) GetSite(ctx context.Context, siteID int64) (types.Site, error) {
	db, d, err := b.conn()
	if err != nil {
		return types.Site{}, err
	}
	row := db.QueryRowContext(ctx, d.Rebind(
		"SELECT site_id, network_id, domain, path, created_at FROM "+sitesTable(b.Config().GetTablePrefix())+" WHERE site_id = ?"),
		siteID)
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Site{}, fmt.Errorf("%w: %d", types.ErrSiteNotFound, siteID)
	}
	return site, err
}

// ListSites returns the sites of networkID ordered by id.
func (b *Backend) ListSites(ctx context.Context, networkID int64) ([]types.Site, error) {
	db, d, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, d.Rebind(
		"SELECT site_id, network_id, domain, path, created_at FROM "+sitesTable(b.Config().GetTablePrefix())+" WHERE network_id = ? ORDER BY site_id"),
		networkID)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var sites []types.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// SiteIDs returns the ids of the sites of networkID in ascending order.
func (b *Backend) SiteIDs(ctx context.Context, networkID int64) ([]int64, error) {
	db, d, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, d.Rebind(
		"SELECT site_id FROM "+sitesTable(b.Config().GetTablePrefix())+" WHERE network_id = ? ORDER BY site_id"),
		networkID)
	if err != nil {
		return nil, fmt.Errorf("listing site ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountSites returns the number of sites in networkID.
func (b *Backend) CountSites(ctx context.Context, networkID int64) (int, error) {
	db, d, err := b.conn()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, d.Rebind(
		"SELECT COUNT(*) FROM "+sitesTable(b.Config().GetTablePrefix())+" WHERE network_id = ?"),
		networkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting sites: %w", err)
	}
	return n, nil
}

// IsLargeNetwork reports whether the configured network has more sites than
// the large network threshold.
func (b *Backend) IsLargeNetwork(ctx context.Context) (bool, error) {
	cfg := b.Config()
	n, err := b.CountSites(ctx, cfg.GetNetworkID())
	if err != nil {
		return false, err
	}
	return n > cfg.GetLargeNetworkThreshold(), nil
}

// SwitchToSite makes siteID the active site. The previous site is pushed so
// RestoreCurrentSite can return to it. Every ContextSwitcher runs after the
// handle was re-derived.
func (b *Backend) SwitchToSite(ctx context.Context, siteID int64) error {
	if _, err := b.GetSite(ctx, siteID); err != nil {
		return err
	}

	b.mu.Lock()
	b.switched = append(b.switched, b.handle.SiteID)
	b.handle = newHandle(b.config.GetTablePrefix(), siteID)
	b.mu.Unlock()

	b.logger.Debug("switched site", zap.Int64("site_id", siteID))
	b.contextSwitched(siteID)
	return nil
}

// RestoreCurrentSite returns to the site active before the last
// SwitchToSite. Returns ErrNoSwitchedSite when nothing was switched.
func (b *Backend) RestoreCurrentSite() error {
	b.mu.Lock()
	if len(b.switched) == 0 {
		b.mu.Unlock()
		return types.ErrNoSwitchedSite
	}
	prev := b.switched[len(b.switched)-1]
	b.switched = b.switched[:len(b.switched)-1]
	b.handle = newHandle(b.config.GetTablePrefix(), prev)
	b.mu.Unlock()

	b.logger.Debug("restored site", zap.Int64("site_id", prev))
	b.contextSwitched(prev)
	return nil
}

func (b *Backend) contextSwitched(siteID int64) {
	for _, c := range b.snapshot() {
		if cs, ok := c.(types.ContextSwitcher); ok {
			cs.OnContextSwitch(siteID)
		}
	}
}

// DeleteSite removes a site from the network. With drop set, the site's
// tables and every table a TableDropper adds are dropped as well.
func (b *Backend) DeleteSite(ctx context.Context, siteID int64, drop bool) error {
	db, d, err := b.conn()
	if err != nil {
		return err
	}
	if siteID == MainSiteID {
		return types.ErrMainSite
	}

	var tables []string
	if drop {
		if err := b.SwitchToSite(ctx, siteID); err != nil {
			return err
		}
		tables = siteTables(b.Handle())
		for _, c := range b.snapshot() {
			if td, ok := c.(types.TableDropper); ok {
				tables = td.OnDropTables(tables)
			}
		}
		if err := b.RestoreCurrentSite(); err != nil {
			return err
		}
	} else if _, err := b.GetSite(ctx, siteID); err != nil {
		return err
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}

	if _, err := db.ExecContext(ctx, d.Rebind(
		"DELETE FROM "+sitesTable(b.Config().GetTablePrefix())+" WHERE site_id = ?"), siteID); err != nil {
		return fmt.Errorf("deleting site %d: %w", siteID, err)
	}

	b.logger.Info("site deleted", zap.Int64("site_id", siteID), zap.String("dropped", strings.Join(tables, ",")))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (types.Site, error) {
	var (
		site    types.Site
		created string
	)
	if err := row.Scan(&site.SiteID, &site.NetworkID, &site.Domain, &site.Path, &created); err != nil {
		return types.Site{}, err
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		site.CreatedAt = t
	}
	return site, nil
}
