package termmeta

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// OnAdminInit implements types.AdminInitializer.
func (c *Component) OnAdminInit(ctx context.Context) error {
	return c.EnsureSchema(ctx)
}

// InstallSite creates the table on siteID and stamps its version. A zero
// siteID, or the id of the active site, installs without switching. When it
// switches, the previous site is restored before InstallSite returns.
func (c *Component) InstallSite(ctx context.Context, siteID int64) (err error) {
	if siteID != 0 && siteID != c.host.Handle().SiteID {
		if err := c.host.SwitchToSite(ctx, siteID); err != nil {
			return err
		}
		defer func() {
			if rerr := c.host.RestoreCurrentSite(); rerr != nil && err == nil {
				err = rerr
			}
		}()
	}

	if err := c.upgradeDatabase(ctx, 0); err != nil {
		return err
	}
	c.logger.Info("installed", zap.Int64("site_id", c.host.Handle().SiteID), zap.String("table", c.Table()))
	return nil
}

// OnActivate implements types.Activator. Network-wide activation installs
// on every site of the network in order and stops at the first failure.
// Large networks are skipped; each site then needs an explicit install.
func (c *Component) OnActivate(ctx context.Context, networkWide bool) error {
	if !networkWide {
		return c.InstallSite(ctx, 0)
	}

	large, err := c.host.IsLargeNetwork(ctx)
	if err != nil {
		return err
	}
	networkID := c.host.Config().GetNetworkID()
	if large {
		c.logger.Warn("large network, skipping per-site installation; run `termmeta install --site N` for each site",
			zap.Int64("network_id", networkID),
			zap.Int("threshold", c.host.Config().GetLargeNetworkThreshold()))
		return nil
	}

	siteIDs, err := c.host.SiteIDs(ctx, networkID)
	if err != nil {
		return err
	}
	for _, id := range siteIDs {
		if err := c.InstallSite(ctx, id); err != nil {
			return fmt.Errorf("installing on site %d: %w", id, err)
		}
	}
	return nil
}

// OnNewSite implements types.SiteProvisioner. Only network-active installs
// follow new sites.
func (c *Component) OnNewSite(ctx context.Context, siteID int64) error {
	active, err := c.host.IsNetworkActive(ctx, Name)
	if err != nil {
		return err
	}
	if !active {
		return nil
	}
	return c.InstallSite(ctx, siteID)
}

// OnDropTables implements types.TableDropper.
func (c *Component) OnDropTables(tables []string) []string {
	table := c.Table()
	if slices.Contains(tables, table) {
		return tables
	}
	return append(tables, table)
}

// OnTermDeleted implements types.TermDeleteObserver. Rows go one by one
// through the per-row delete so each invalidates the cache.
func (c *Component) OnTermDeleted(ctx context.Context, termID int64) error {
	c.PatchHandle()
	h := c.host.Handle()

	rows, err := c.host.MetaRows(ctx, h, types.ObjectTypeTerm, termID)
	if err != nil {
		return fmt.Errorf("listing metadata of term %d: %w", termID, err)
	}
	for _, r := range rows {
		if _, err := c.host.DeleteMetadataByMID(ctx, h, types.ObjectTypeTerm, r.MetaID); err != nil {
			return fmt.Errorf("deleting metadata %d of term %d: %w", r.MetaID, termID, err)
		}
	}
	if len(rows) > 0 {
		c.logger.Debug("term metadata removed", zap.Int64("term_id", termID), zap.Int("rows", len(rows)))
	}
	return nil
}
