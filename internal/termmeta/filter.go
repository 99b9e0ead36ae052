package termmeta

import (
	"context"

	"github.com/mesh-intelligence/termmeta/internal/metaquery"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// OnListingArgs implements types.ListingArgsFilter. Later stages may assume
// MetaQuery is never nil.
func (c *Component) OnListingArgs(args types.ListingArgs) types.ListingArgs {
	if args.MetaQuery == nil {
		args.MetaQuery = &types.MetaQuery{}
	}
	return args
}

// OnListingClauses implements types.ListingClausesFilter. Nothing happens
// unless args carries a non-empty meta query; the meta_key shorthand is only
// merged into one. A meta query that sanitizes to nothing also leaves the
// clauses untouched.
func (c *Component) OnListingClauses(_ context.Context, clauses types.Clauses, _ []string, args types.ListingArgs) (types.Clauses, error) {
	if args.MetaQuery.IsEmpty() {
		return clauses, nil
	}
	mq := metaquery.FromListingArgs(args)

	c.PatchHandle()
	table, ok := c.host.Handle().Table(TableName)
	if !ok {
		return clauses, nil
	}

	q := metaquery.New(mq)
	if !q.HasClauses() {
		return clauses, nil
	}
	frag := q.SQL(metaquery.Target{
		MetaTable:       table,
		PrimaryTable:    "tt",
		PrimaryIDColumn: "term_id",
		ObjectColumn:    "term_id",
	})
	return clauses.Append(frag.Join, frag.JoinArgs, frag.Where, frag.WhereArgs), nil
}
