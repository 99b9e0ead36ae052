package types

// Term is a taxonomy term as returned by a listing.
type Term struct {
	TermID         int64  `json:"term_id"`
	TermTaxonomyID int64  `json:"term_taxonomy_id"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	Taxonomy       string `json:"taxonomy"`
}

// ListingArgs are the arguments of a term listing. MetaQuery is nil until
// the argument filters have run; MetaKey, MetaValue, MetaCompare and MetaType
// are a shorthand for a single leading clause, merged only into a non-empty
// MetaQuery.
type ListingArgs struct {
	Taxonomies []string `json:"taxonomies,omitempty"`
	Search     string   `json:"search,omitempty"`
	Number     int      `json:"number,omitempty"`
	Offset     int      `json:"offset,omitempty"`

	MetaQuery   *MetaQuery `json:"meta_query,omitempty"`
	MetaKey     string     `json:"meta_key,omitempty"`
	MetaValue   any        `json:"meta_value,omitempty"`
	MetaCompare string     `json:"meta_compare,omitempty"`
	MetaType    string     `json:"meta_type,omitempty"`
}

// Clauses are the SQL pieces of a term listing. Join and Where are
// fragments that filters append to; JoinArgs and WhereArgs hold their bind
// values in placeholder order.
type Clauses struct {
	Fields    string
	Join      string
	JoinArgs  []any
	Where     string
	WhereArgs []any
	OrderBy   string
	Limits    string
}

// Append adds join and where fragments with their bind values.
func (c Clauses) Append(join string, joinArgs []any, where string, whereArgs []any) Clauses {
	c.Join += join
	c.JoinArgs = append(append([]any(nil), c.JoinArgs...), joinArgs...)
	c.Where += where
	c.WhereArgs = append(append([]any(nil), c.WhereArgs...), whereArgs...)
	return c
}
