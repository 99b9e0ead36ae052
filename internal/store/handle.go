package store

import (
	"strconv"
)

// MainSiteID is the first site of every network. Its tables use the bare
// base prefix.
const MainSiteID int64 = 1

// Handle describes the active site: its id, its table prefix, and the
// extra tables components registered for it. A Handle is a value; the
// backend derives a fresh one on every context entry, so registrations do
// not survive a site switch until the owning component re-applies them.
type Handle struct {
	SiteID     int64
	Prefix     string
	BasePrefix string
	tables     map[string]string
}

// newHandle derives the handle for siteID with no registered tables.
func newHandle(basePrefix string, siteID int64) Handle {
	return Handle{
		SiteID:     siteID,
		Prefix:     SitePrefix(basePrefix, siteID),
		BasePrefix: basePrefix,
	}
}

// SitePrefix returns the table prefix for siteID.
func SitePrefix(basePrefix string, siteID int64) string {
	if siteID <= MainSiteID {
		return basePrefix
	}
	return basePrefix + strconv.FormatInt(siteID, 10) + "_"
}

// Table returns the table registered under name.
func (h Handle) Table(name string) (string, bool) {
	t, ok := h.tables[name]
	return t, ok
}

// WithTable returns a copy of h with name registered as table.
func (h Handle) WithTable(name, table string) Handle {
	tables := make(map[string]string, len(h.tables)+1)
	for k, v := range h.tables {
		tables[k] = v
	}
	tables[name] = table
	h.tables = tables
	return h
}

// Options is the site's options table.
func (h Handle) Options() string { return h.Prefix + "options" }

// Terms is the site's terms table.
func (h Handle) Terms() string { return h.Prefix + "terms" }

// TermTaxonomy is the site's term_taxonomy table.
func (h Handle) TermTaxonomy() string { return h.Prefix + "term_taxonomy" }
