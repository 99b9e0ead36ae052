// Package metaquery turns a metadata predicate tree into SQL join and where
// fragments for any object type whose metadata lives in a {type}meta table.
//
// Input is sanitized first: clauses with neither key nor value are dropped,
// unknown operators fall back to "=", unknown types to CHAR, and clauses
// whose value cannot satisfy their operator (an empty IN list, a BETWEEN
// without exactly two bounds) or cannot be bound (a map, a nested list) are
// dropped. A query left with nothing to
// evaluate renders no fragments, so a malformed predicate never narrows a
// listing.
//
// Fragments use "?" placeholders; callers rebind them for their dialect.
package metaquery

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// Query is a sanitized predicate tree.
type Query struct {
	relation string
	clauses  []clause
	groups   []*Query
}

type clause struct {
	key      string
	value    any
	compare  string
	castType string
}

// Fragments are the SQL pieces produced by a query. Join and Where start with
// a space so they can be appended to existing clause strings.
type Fragments struct {
	Join      string
	JoinArgs  []any
	Where     string
	WhereArgs []any
}

// Target names the tables and columns a query is rendered against.
type Target struct {
	MetaTable       string // e.g. wp_termmeta
	PrimaryTable    string // alias of the primary table in the outer query
	PrimaryIDColumn string // id column on the primary table
	ObjectColumn    string // object id column on the meta table, e.g. term_id
}

var validCompares = map[string]bool{
	types.CompareEqual:        true,
	types.CompareNotEqual:     true,
	types.CompareGreater:      true,
	types.CompareGreaterEqual: true,
	types.CompareLess:         true,
	types.CompareLessEqual:    true,
	types.CompareLike:         true,
	types.CompareNotLike:      true,
	types.CompareIn:           true,
	types.CompareNotIn:        true,
	types.CompareBetween:      true,
	types.CompareNotBetween:   true,
	types.CompareExists:       true,
	types.CompareNotExists:    true,
}

// castTypes maps accepted value types to the SQL type meta_value is cast to.
// An empty target compares meta_value as text.
var castTypes = map[string]string{
	types.MetaTypeChar:     "",
	types.MetaTypeBinary:   "",
	types.MetaTypeDate:     "",
	types.MetaTypeDatetime: "",
	types.MetaTypeTime:     "",
	types.MetaTypeNumeric:  "NUMERIC",
	types.MetaTypeDecimal:  "NUMERIC",
	types.MetaTypeSigned:   "BIGINT",
	types.MetaTypeUnsigned: "BIGINT",
}

// New sanitizes mq into a Query. A nil mq yields an empty query.
func New(mq *types.MetaQuery) *Query {
	q := &Query{relation: types.RelationAnd}
	if mq == nil {
		return q
	}
	q.relation = normalizeRelation(mq.Relation)

	for _, c := range mq.Clauses {
		if cl, ok := sanitizeClause(c); ok {
			q.clauses = append(q.clauses, cl)
		}
	}
	for i := range mq.Groups {
		sub := New(&mq.Groups[i])
		if sub.HasClauses() {
			q.groups = append(q.groups, sub)
		}
	}
	return q
}

// HasClauses reports whether anything survived sanitizing.
func (q *Query) HasClauses() bool {
	return q != nil && (len(q.clauses) > 0 || len(q.groups) > 0)
}

// FromListingArgs merges the single-clause shorthand of args with its meta
// query. The shorthand clause comes first and both are ANDed. Callers that
// only honour a non-empty meta query check that before merging.
func FromListingArgs(args types.ListingArgs) *types.MetaQuery {
	var primary *types.MetaClause
	if args.MetaKey != "" || args.MetaValue != nil {
		primary = &types.MetaClause{
			Key:     args.MetaKey,
			Value:   args.MetaValue,
			Compare: args.MetaCompare,
			Type:    args.MetaType,
		}
	}

	if primary == nil {
		return args.MetaQuery
	}
	if args.MetaQuery.IsEmpty() {
		return &types.MetaQuery{Clauses: []types.MetaClause{*primary}}
	}
	return &types.MetaQuery{
		Relation: types.RelationAnd,
		Clauses:  []types.MetaClause{*primary},
		Groups:   []types.MetaQuery{*args.MetaQuery},
	}
}

// SQL renders the query against target. An empty query renders empty
// fragments.
func (q *Query) SQL(target Target) Fragments {
	if !q.HasClauses() {
		return Fragments{}
	}

	b := &builder{target: target}
	where := b.group(q)
	if where == "" {
		return Fragments{}
	}

	// A LEFT JOIN means some clause matches terms with no metadata row. An
	// INNER JOIN on a sibling would drop those terms, so every join is
	// widened and the where clause does the filtering.
	join := b.join.String()
	if strings.Contains(join, " LEFT JOIN ") {
		join = strings.ReplaceAll(join, " INNER JOIN ", " LEFT JOIN ")
	}

	return Fragments{
		Join:      join,
		JoinArgs:  b.joinArgs,
		Where:     " AND ( " + where + " )",
		WhereArgs: b.whereArgs,
	}
}

type builder struct {
	target    Target
	aliases   int
	join      strings.Builder
	joinArgs  []any
	whereArgs []any
}

func (b *builder) group(q *Query) string {
	var parts []string
	shared := ""

	for _, c := range q.clauses {
		parts = append(parts, b.clause(c, q.relation, &shared))
	}
	for _, g := range q.groups {
		if sub := b.group(g); sub != "" {
			parts = append(parts, "( "+sub+" )")
		}
	}

	return strings.Join(parts, " "+q.relation+" ")
}

// clause renders one predicate. Siblings under OR share a join so a single
// matching row satisfies the group; NOT EXISTS always gets its own LEFT JOIN.
func (b *builder) clause(c clause, relation string, shared *string) string {
	t := b.target

	var alias string
	if relation == types.RelationOr && c.compare != types.CompareNotExists && *shared != "" {
		alias = *shared
	} else {
		var table string
		alias, table = b.nextAlias()
		if c.compare == types.CompareNotExists {
			fmt.Fprintf(&b.join, " LEFT JOIN %s ON ( %s.%s = %s.%s AND %s.meta_key = ? )",
				table, t.PrimaryTable, t.PrimaryIDColumn, alias, t.ObjectColumn, alias)
			b.joinArgs = append(b.joinArgs, c.key)
		} else {
			fmt.Fprintf(&b.join, " INNER JOIN %s ON ( %s.%s = %s.%s )",
				table, t.PrimaryTable, t.PrimaryIDColumn, alias, t.ObjectColumn)
			if relation == types.RelationOr {
				*shared = alias
			}
		}
	}

	switch c.compare {
	case types.CompareNotExists:
		return fmt.Sprintf("%s.%s IS NULL", alias, t.ObjectColumn)
	case types.CompareExists:
		b.whereArgs = append(b.whereArgs, c.key)
		return fmt.Sprintf("%s.meta_key = ?", alias)
	}

	var conds []string
	if c.key != "" {
		conds = append(conds, alias+".meta_key = ?")
		b.whereArgs = append(b.whereArgs, c.key)
	}
	if c.value != nil {
		conds = append(conds, b.valueCondition(c, alias))
	}
	return "( " + strings.Join(conds, " AND ") + " )"
}

func (b *builder) valueCondition(c clause, alias string) string {
	column := alias + ".meta_value"
	if c.castType != "" {
		column = fmt.Sprintf("CAST(%s AS %s)", column, c.castType)
	}

	switch c.compare {
	case types.CompareIn, types.CompareNotIn:
		list := c.value.([]any)
		b.whereArgs = append(b.whereArgs, list...)
		return fmt.Sprintf("%s %s (%s)", column, c.compare, placeholders(len(list)))
	case types.CompareBetween, types.CompareNotBetween:
		bounds := c.value.([]any)
		b.whereArgs = append(b.whereArgs, bounds[0], bounds[1])
		return fmt.Sprintf("%s %s ? AND ?", column, c.compare)
	case types.CompareLike, types.CompareNotLike:
		b.whereArgs = append(b.whereArgs, "%"+EscapeLike(fmt.Sprint(c.value))+"%")
		return fmt.Sprintf("%s %s ? ESCAPE '\\'", column, c.compare)
	default:
		b.whereArgs = append(b.whereArgs, c.value)
		return fmt.Sprintf("%s %s ?", column, c.compare)
	}
}

// nextAlias returns the alias for the next join and the table expression to
// join. The first join uses the bare table name.
func (b *builder) nextAlias() (alias, table string) {
	i := b.aliases
	b.aliases++
	if i == 0 {
		return b.target.MetaTable, b.target.MetaTable
	}
	alias = fmt.Sprintf("mt%d", i)
	return alias, b.target.MetaTable + " AS " + alias
}

func sanitizeClause(c types.MetaClause) (clause, bool) {
	if c.Key == "" && c.Value == nil {
		return clause{}, false
	}

	list, isList := listValue(c.Value)
	if isList {
		for _, v := range list {
			if !scalar(v) {
				return clause{}, false
			}
		}
	} else if c.Value != nil && !scalar(c.Value) {
		return clause{}, false
	}

	out := clause{key: c.Key, value: c.Value}
	out.compare = strings.ToUpper(strings.TrimSpace(c.Compare))
	switch {
	case out.compare == "" && isList:
		out.compare = types.CompareIn
	case !validCompares[out.compare]:
		out.compare = types.CompareEqual
	}

	cast, ok := castTypes[strings.ToUpper(strings.TrimSpace(c.Type))]
	if !ok {
		cast = ""
	}
	out.castType = cast

	switch out.compare {
	case types.CompareExists, types.CompareNotExists:
		if c.Key == "" {
			return clause{}, false
		}
		out.value = nil
	case types.CompareIn, types.CompareNotIn:
		list := toList(c.Value)
		if len(list) == 0 {
			return clause{}, false
		}
		out.value = list
	case types.CompareBetween, types.CompareNotBetween:
		list := toList(c.Value)
		if len(list) != 2 {
			return clause{}, false
		}
		out.value = list
	default:
		if isList {
			return clause{}, false
		}
	}
	return out, true
}

// scalar reports whether v can be bound as a single query argument.
func scalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func normalizeRelation(r string) string {
	if strings.EqualFold(strings.TrimSpace(r), types.RelationOr) {
		return types.RelationOr
	}
	return types.RelationAnd
}

// listValue converts slice values to []any.
func listValue(v any) ([]any, bool) {
	switch vv := v.(type) {
	case []any:
		return vv, true
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

// toList accepts a slice, a comma separated string, or a single scalar.
func toList(v any) []any {
	if list, ok := listValue(v); ok {
		return list
	}
	switch vv := v.(type) {
	case nil:
		return nil
	case string:
		var out []any
		for part := range strings.SplitSeq(vv, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []any{v}
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// EscapeLike escapes LIKE wildcards so value matches literally under
// ESCAPE '\'.
func EscapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}
