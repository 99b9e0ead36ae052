package termmeta

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/internal/store"
)

const (
	// VersionOption is the site option holding the schema version stamp.
	VersionOption = "wpdb_termmeta_version"

	// DBVersion is the schema version this build writes.
	DBVersion int64 = 201509010001

	// createdVersion is the first version that has the table. Sites stamped
	// before it get the table created on upgrade.
	createdVersion int64 = 201508110005

	// maxIndexLength caps the meta_key index at 191 characters, the most a
	// 767 byte index holds at 4 bytes per character.
	maxIndexLength = 191
)

// EnsureSchema upgrades the active site when its stored version is older
// than DBVersion. A missing version counts as 0.
func (c *Component) EnsureSchema(ctx context.Context) error {
	old, err := c.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if old >= DBVersion {
		return nil
	}
	return c.upgradeDatabase(ctx, old)
}

func (c *Component) upgradeDatabase(ctx context.Context, old int64) error {
	if old < createdVersion {
		if err := c.createTable(ctx); err != nil {
			return err
		}
	}
	if err := c.host.UpdateOption(ctx, VersionOption, strconv.FormatInt(DBVersion, 10)); err != nil {
		return fmt.Errorf("stamping schema version: %w", err)
	}
	c.logger.Debug("schema upgraded",
		zap.Int64("site_id", c.host.Handle().SiteID),
		zap.Int64("from", old),
		zap.Int64("to", DBVersion))
	return nil
}

func (c *Component) createTable(ctx context.Context) error {
	table := c.Table()
	if err := c.host.ApplySchema(ctx, tableDDL(c.host.Dialect(), table)); err != nil {
		return fmt.Errorf("creating %s: %w", table, err)
	}
	c.PatchHandle()
	return nil
}

// tableDDL renders the termmeta table and its two indexes. Every statement
// is IF NOT EXISTS, so applying it again leaves the schema unchanged.
func tableDDL(d store.Dialect, table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s,
    term_id %s NOT NULL DEFAULT 0,
    meta_key VARCHAR(255) DEFAULT NULL,
    meta_value TEXT
)`, table, d.SerialPK("meta_id"), d.BigInt()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_term_id ON %s (term_id)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_meta_key ON %s ((%s))`, table, table, d.PrefixIndex("meta_key", maxIndexLength)),
	}
}

func parseVersion(raw string) int64 {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
