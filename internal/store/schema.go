package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Network-wide table names. They carry the base prefix but not the site
// number.
func sitesTable(basePrefix string) string          { return basePrefix + "sites" }
func networkOptionsTable(basePrefix string) string { return basePrefix + "network_options" }

// networkDDL returns the CREATE statements for the network-wide tables.
func networkDDL(d Dialect, basePrefix string) []string {
	sites := sitesTable(basePrefix)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s,
    network_id %s NOT NULL DEFAULT 1,
    domain VARCHAR(200) NOT NULL DEFAULT '',
    path VARCHAR(100) NOT NULL DEFAULT '/',
    created_at TEXT NOT NULL
)`, sites, d.SerialPK("site_id"), d.BigInt()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_network ON %s (network_id)`, sites, sites),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    option_name VARCHAR(191) PRIMARY KEY,
    option_value TEXT NOT NULL
)`, networkOptionsTable(basePrefix)),
	}
}

// siteDDL returns the CREATE statements for the tables every site owns.
func siteDDL(d Dialect, h Handle) []string {
	terms := h.Terms()
	tt := h.TermTaxonomy()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    option_name VARCHAR(191) PRIMARY KEY,
    option_value TEXT NOT NULL
)`, h.Options()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s,
    name VARCHAR(200) NOT NULL DEFAULT '',
    slug VARCHAR(200) NOT NULL DEFAULT ''
)`, terms, d.SerialPK("term_id")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_slug ON %s (slug)`, terms, terms),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s,
    term_id %s NOT NULL DEFAULT 0,
    taxonomy VARCHAR(32) NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    parent %s NOT NULL DEFAULT 0,
    count %s NOT NULL DEFAULT 0
)`, tt, d.SerialPK("term_taxonomy_id"), d.BigInt(), d.BigInt(), d.BigInt()),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_term_id_taxonomy ON %s (term_id, taxonomy)`, tt, tt),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_taxonomy ON %s (taxonomy)`, tt, tt),
	}
}

// siteTables lists the tables dropped with a site before components extend
// the list.
func siteTables(h Handle) []string {
	return []string{h.Options(), h.Terms(), h.TermTaxonomy()}
}

// execAll runs each statement in order, stopping at the first failure.
func execAll(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// ApplySchema runs DDL statements against the attached database in order.
// Statements are expected to be convergent (IF NOT EXISTS).
func (b *Backend) ApplySchema(ctx context.Context, stmts []string) error {
	db, _, err := b.conn()
	if err != nil {
		return err
	}
	return execAll(ctx, db, stmts)
}
